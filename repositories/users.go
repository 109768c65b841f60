package repositories

import (
	"time"

	"wallet-chat/domain"
	"wallet-chat/errors"

	"github.com/google/uuid"
)

func userKey(id domain.UserID) string { return "user:" + id.String() }

func walletKey(wallet string) string { return "wallet:" + domain.NormalizeWallet(wallet) }

// GetUser loads a user by id.
func (tx *Tx) GetUser(id domain.UserID) (domain.User, error) {
	user, found, err := getValue[domain.User](tx.txn, userKey(id))
	if err != nil {
		return domain.User{}, errors.StoreFailure(err)
	}
	if !found {
		return domain.User{}, errors.ErrUserNotFound
	}
	return user, nil
}

// GetUserByWallet resolves a wallet address, in any case, to its user.
func (tx *Tx) GetUserByWallet(wallet string) (domain.User, error) {
	id, found, err := getValue[domain.UserID](tx.txn, walletKey(wallet))
	if err != nil {
		return domain.User{}, errors.StoreFailure(err)
	}
	if !found {
		return domain.User{}, errors.ErrUserNotFound
	}
	return tx.GetUser(id)
}

// EnsureUser returns the user owning wallet, creating it on first sight.
// The wallet index key is the uniqueness guard: two concurrent creations
// conflict at commit time.
func (tx *Tx) EnsureUser(wallet string, at time.Time) (domain.User, bool, error) {
	user, err := tx.GetUserByWallet(wallet)
	if err == nil {
		return user, false, nil
	}
	if !errors.IsNotFound(err) {
		return domain.User{}, false, err
	}
	user = domain.User{
		ID:        domain.UserID(uuid.NewString()),
		Wallet:    domain.NormalizeWallet(wallet),
		CreatedAt: at.UTC(),
	}
	if err := setValue(tx.txn, userKey(user.ID), user); err != nil {
		return domain.User{}, false, errors.StoreFailure(err)
	}
	if err := setValue(tx.txn, walletKey(user.Wallet), user.ID); err != nil {
		return domain.User{}, false, errors.StoreFailure(err)
	}
	return user, true, nil
}
