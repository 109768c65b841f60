package services

import (
	"context"
	"log/slog"
	"time"

	"wallet-chat/auth"
	"wallet-chat/domain"
	"wallet-chat/repositories"
)

type IAuthService interface {
	Nonce(ctx context.Context, wallet string) (string, error)
	Verify(ctx context.Context, wallet, signature string) (Token, domain.User, error)
}

type Token string

func (t Token) String() string {
	return string(t)
}

// AuthService signs users in with their wallet: a nonce is handed out, the
// wallet signs it, and a session token is issued once the signature checks out.
type AuthService struct {
	store  *repositories.Store
	nonces *auth.NonceStore
	tokens *auth.TokenManager
	log    *slog.Logger
	now    func() time.Time
}

func NewAuthService(store *repositories.Store, nonces *auth.NonceStore, tokens *auth.TokenManager, log *slog.Logger) *AuthService {
	return &AuthService{store: store, nonces: nonces, tokens: tokens, log: log, now: time.Now}
}

// Nonce registers the wallet on first sight and returns the message it must sign.
func (s *AuthService) Nonce(ctx context.Context, wallet string) (string, error) {
	// Validate before any store access.
	if err := auth.ValidateWallet(wallet); err != nil {
		return "", err
	}

	var created bool
	err := s.store.Update(ctx, func(tx *repositories.Tx) error {
		var err error
		_, created, err = tx.EnsureUser(wallet, s.now())
		return err
	})
	if err != nil {
		return "", err
	}
	if created {
		s.log.Info("User created", "wallet", domain.NormalizeWallet(wallet))
	}

	return auth.SignInMessage(s.nonces.Issue(wallet)), nil
}

// Verify consumes the outstanding nonce of wallet and checks the signature over it.
func (s *AuthService) Verify(ctx context.Context, wallet, signature string) (Token, domain.User, error) {
	if err := auth.ValidateWallet(wallet); err != nil {
		return "", domain.User{}, err
	}

	nonce, err := s.nonces.Consume(wallet)
	if err != nil {
		return "", domain.User{}, err
	}
	if err := auth.VerifySignature(wallet, auth.SignInMessage(nonce), signature); err != nil {
		s.log.Debug("Signature rejected", "wallet", domain.NormalizeWallet(wallet))
		return "", domain.User{}, err
	}

	var user domain.User
	err = s.store.View(ctx, func(tx *repositories.Tx) error {
		var lookupErr error
		user, lookupErr = tx.GetUserByWallet(wallet)
		return lookupErr
	})
	if err != nil {
		return "", domain.User{}, err
	}

	token, err := s.tokens.GenerateToken(user)
	if err != nil {
		return "", domain.User{}, err
	}
	return Token(token), user, nil
}
