package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
)

// checkEvery bounds how many nonces Mine tries between context checks.
const checkEvery = 1024

type hashInput struct {
	Index        uint64          `json:"index"`
	Timestamp    string          `json:"timestamp"`
	Data         json.RawMessage `json:"data"`
	PreviousHash *string         `json:"previousHash"`
	PublicKey    string          `json:"publicKey"`
}

// canonical is the serialization that precedes the nonce in the digest input.
// The private key is never part of it.
func canonical(b Block) ([]byte, error) {
	in := hashInput{
		Index:     b.Index,
		Timestamp: b.Timestamp.UTC().Format(time.RFC3339Nano),
		Data:      b.Data,
		PublicKey: b.PublicKey,
	}
	if b.PreviousHash != "" {
		prev := b.PreviousHash
		in.PreviousHash = &prev
	}
	out, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("serialize block %d: %w", b.Index, err)
	}
	return out, nil
}

func digestWithNonce(prefix []byte, nonce uint64) string {
	buf := strconv.AppendUint(append([]byte(nil), prefix...), nonce, 10)
	return crypto.Keccak256Hash(buf).Hex()
}

func digestGenesis() string {
	return crypto.Keccak256Hash([]byte(GenesisMessage)).Hex()
}

// ComputeHash returns the keccak256 digest of b's canonical form and nonce.
func ComputeHash(b Block) (string, error) {
	prefix, err := canonical(b)
	if err != nil {
		return "", err
	}
	return digestWithNonce(prefix, b.Nonce), nil
}

// LeadingZeros counts the leading '0' hex digits of hash, after any 0x prefix.
func LeadingZeros(hash string) int {
	hex := strings.TrimPrefix(hash, "0x")
	n := 0
	for n < len(hex) && hex[n] == '0' {
		n++
	}
	return n
}

// VerifyWork reports whether b's stored hash is its digest and meets difficulty.
func VerifyWork(b Block, difficulty int) bool {
	got, err := ComputeHash(b)
	if err != nil {
		return false
	}
	return got == b.Hash && LeadingZeros(got) >= difficulty
}

// Mine searches nonces upward from 0 until the digest has at least
// difficulty leading zero hex digits, then sets b.Nonce and b.Hash. It
// returns the number of digests computed.
func Mine(ctx context.Context, b *Block, difficulty int) (uint64, error) {
	prefix, err := canonical(*b)
	if err != nil {
		return 0, err
	}
	for nonce := uint64(0); ; nonce++ {
		if nonce%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nonce, fmt.Errorf("mine block %d: %w", b.Index, err)
			}
		}
		hash := digestWithNonce(prefix, nonce)
		if LeadingZeros(hash) >= difficulty {
			b.Nonce = nonce
			b.Hash = hash
			return nonce + 1, nil
		}
	}
}
