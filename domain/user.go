package domain

import (
	"strings"
	"time"
)

type UserID string

func (id UserID) String() string { return string(id) }

// User is identified by its wallet address, stored in canonical lowercase form.
type User struct {
	ID        UserID
	Wallet    string
	CreatedAt time.Time
}

// Identity is the authenticated principal a session token resolves to.
type Identity struct {
	UserID UserID
	Wallet string
}

// NormalizeWallet canonicalizes a wallet address for comparisons and lookups.
func NormalizeWallet(wallet string) string {
	return strings.ToLower(strings.TrimSpace(wallet))
}

// SameWallet compares two wallet addresses case-insensitively.
func SameWallet(a, b string) bool {
	return NormalizeWallet(a) == NormalizeWallet(b)
}
