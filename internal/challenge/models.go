// Package challenge issues the shard-signed challenge tokens that a caller
// must sign to authenticate.
package challenge

import (
	"time"

	"shardauth/internal/chainnode"
)

// KeyPrefix namespaces challenge tokens in the expiring cache.
const KeyPrefix = "challengeToken:"

// Key returns the cache key for a hashed identity.
func Key(hashedID string) string {
	return KeyPrefix + hashedID
}

// Token is an issued challenge. Only Value is cached; the rest describes the
// issuance.
type Token struct {
	Value         string
	OwnerHashedID string
	IssuedAt      time.Time
	TTL           time.Duration
}

// ExpiresAt is when the cache drops the token.
func (t Token) ExpiresAt() time.Time {
	return t.IssuedAt.Add(t.TTL)
}

// RequestAuth echoes the hashed identity and the request time in unix ms.
type RequestAuth struct {
	UserID    string `json:"userId"`
	Timestamp int64  `json:"timestamp"`
}

// SignedToken pairs a shard member's address with the bundle signature.
type SignedToken struct {
	PublicKey chainnode.Address `json:"publicKey"`
	Signature string            `json:"signature"`
}

// PreAuthResult is the challenge bundle returned to the caller.
type PreAuthResult struct {
	RequestAuth    RequestAuth   `json:"requestAuth"`
	SelectedShard  int           `json:"selectedShard"`
	ChallengeToken string        `json:"challengeToken"`
	SignedTokens   []SignedToken `json:"signedTokens"`
}
