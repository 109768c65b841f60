package auth

import (
	"strings"
	"testing"
	"time"

	"wallet-chat/domain"
	"wallet-chat/errors"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/stretchr/testify/require"
)

func TestTokenManager_RoundTrip(t *testing.T) {
	req := require.New(t)

	// Given a manager and a user
	manager := NewTokenManager("a-secret-long-enough-for-hs256", time.Hour)
	user := domain.User{ID: "user-1", Wallet: "0xabc"}

	// When a token is issued then verified
	token, err := manager.GenerateToken(user)
	req.NoError(err)
	identity, err := manager.Verify(token)

	// Then the identity matches the user
	req.NoError(err)
	req.Equal(domain.UserID("user-1"), identity.UserID)
	req.Equal("0xabc", identity.Wallet)
}

func TestTokenManager_Rejects(t *testing.T) {
	manager := NewTokenManager("a-secret-long-enough-for-hs256", time.Hour)
	user := domain.User{ID: "user-1", Wallet: "0xabc"}

	t.Run("should reject a token signed with another secret", func(t *testing.T) {
		req := require.New(t)
		other := NewTokenManager("another-secret", time.Hour)
		token, err := other.GenerateToken(user)
		req.NoError(err)

		_, err = manager.Verify(token)

		req.ErrorIs(err, errors.ErrInvalidToken)
		req.ErrorIs(err, errors.ErrUnauthenticated)
	})

	t.Run("should reject an expired token", func(t *testing.T) {
		req := require.New(t)
		expired := NewTokenManager("a-secret-long-enough-for-hs256", time.Hour)
		expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
		token, err := expired.GenerateToken(user)
		req.NoError(err)

		_, err = manager.Verify(token)

		req.ErrorIs(err, errors.ErrInvalidToken)
	})

	t.Run("should reject garbage", func(t *testing.T) {
		_, err := manager.Verify("not-a-jwt")
		require.ErrorIs(t, err, errors.ErrInvalidToken)
	})
}

func TestVerifySignature(t *testing.T) {
	key, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	wallet := Address(key.PubKey())
	message := SignInMessage("nonce-1")

	t.Run("should accept a signature from the wallet owner in any case", func(t *testing.T) {
		req := require.New(t)
		signature := SignPersonalMessage(key, message)

		req.NoError(VerifySignature(wallet, message, signature))
		req.NoError(VerifySignature(strings.ToUpper(wallet[:2])+strings.ToUpper(wallet[2:]), message, signature))
	})

	t.Run("should reject a signature over another message", func(t *testing.T) {
		signature := SignPersonalMessage(key, SignInMessage("nonce-2"))
		require.ErrorIs(t, VerifySignature(wallet, message, signature), errors.ErrInvalidSignature)
	})

	t.Run("should reject a signature from another key", func(t *testing.T) {
		other, err := secp256k1.GeneratePrivateKey()
		require.NoError(t, err)
		signature := SignPersonalMessage(other, message)
		require.ErrorIs(t, VerifySignature(wallet, message, signature), errors.ErrInvalidSignature)
	})

	t.Run("should reject malformed signatures", func(t *testing.T) {
		req := require.New(t)
		req.ErrorIs(VerifySignature(wallet, message, "0x1234"), errors.ErrInvalidSignature)
		req.ErrorIs(VerifySignature(wallet, message, "zz"), errors.ErrInvalidSignature)
	})
}

func TestNonceStore_SingleUse(t *testing.T) {
	req := require.New(t)
	store := NewNonceStore(time.Minute)

	// Given a nonce issued for a mixed case wallet
	nonce := store.Issue("0xABCDEF")

	// When it is consumed twice
	first, err := store.Consume("0xabcdef")
	req.NoError(err)
	_, err = store.Consume("0xabcdef")

	// Then only the first attempt sees it
	req.Equal(nonce, first)
	req.ErrorIs(err, errors.ErrNonceNotFound)
}

func TestNonceStore_Expired(t *testing.T) {
	store := NewNonceStore(time.Millisecond)
	store.Issue("0xabc")
	time.Sleep(10 * time.Millisecond)

	_, err := store.Consume("0xabc")

	require.ErrorIs(t, err, errors.ErrNonceNotFound)
}

func TestValidation(t *testing.T) {
	t.Run("wallets", func(t *testing.T) {
		req := require.New(t)
		req.NoError(ValidateWallet("0x52908400098527886E0F7030069857D2E4169EE7"))
		req.NoError(ValidateWallet("0xde709f2102306220921060314715629080e2fb77"))
		req.ErrorIs(ValidateWallet("0x123"), errors.ErrInvalidWallet)
		req.ErrorIs(ValidateWallet(""), errors.ErrInvalid)
	})

	t.Run("rooms", func(t *testing.T) {
		req := require.New(t)
		req.NoError(ValidateCreateRoom(CreateRoomRequest{Name: "general", Type: "public"}))
		req.ErrorIs(ValidateCreateRoom(CreateRoomRequest{Name: "dm", Type: "p2p"}), errors.ErrInvalidRoomType)
		req.ErrorIs(ValidateCreateRoom(CreateRoomRequest{Type: "private"}), errors.ErrInvalid)
	})

	t.Run("content", func(t *testing.T) {
		req := require.New(t)
		content, err := ValidateContent("  hello  ", 10)
		req.NoError(err)
		req.Equal("hello", content)

		_, err = ValidateContent("   ", 10)
		req.ErrorIs(err, errors.ErrEmptyContent)

		_, err = ValidateContent(strings.Repeat("é", 11), 10)
		req.ErrorIs(err, errors.ErrContentTooLong)

		_, err = ValidateContent(strings.Repeat("é", 10), 10)
		req.NoError(err)
	})
}
