package auth

import (
	"context"
	"time"

	"wallet-chat/domain"
	"wallet-chat/errors"

	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"
)

// NonceStore keeps one outstanding sign-in nonce per wallet. A nonce is
// consumed by its first verification attempt, successful or not.
type NonceStore struct {
	cache *ttlcache.Cache[string, string]
}

func NewNonceStore(ttl time.Duration) *NonceStore {
	cache := ttlcache.New[string, string](
		ttlcache.WithTTL[string, string](ttl),
		ttlcache.WithDisableTouchOnHit[string, string](),
	)
	return &NonceStore{cache: cache}
}

// Issue replaces any outstanding nonce of wallet with a fresh one.
func (s *NonceStore) Issue(wallet string) string {
	nonce := uuid.NewString()
	s.cache.Set(domain.NormalizeWallet(wallet), nonce, ttlcache.DefaultTTL)
	return nonce
}

// Consume returns and forgets the outstanding nonce of wallet.
func (s *NonceStore) Consume(wallet string) (string, error) {
	item, found := s.cache.GetAndDelete(domain.NormalizeWallet(wallet))
	if !found || item.IsExpired() {
		return "", errors.ErrNonceNotFound
	}
	return item.Value(), nil
}

// Run evicts expired nonces until ctx is cancelled.
func (s *NonceStore) Run(ctx context.Context) error {
	go s.cache.Start()
	<-ctx.Done()
	s.cache.Stop()
	return nil
}
