// Package shard maps hashed identities onto shards of the validator set.
package shard

import (
	"math/big"
	"strconv"

	"shardauth/pkg/digest"
)

// Select returns the shard in [0, shardCount) for hashedID at timestamp.
// The input is sha256(hashedID + decimal timestamp) read as a 256-bit
// unsigned integer. Callers pass the request time, so one identity can land
// on different shards across requests. A non-positive shardCount yields 0.
func Select(hashedID string, timestamp int64, shardCount int) int {
	if shardCount <= 0 {
		return 0
	}
	sum := digest.SHA256Hex(hashedID + strconv.FormatInt(timestamp, 10))
	v, ok := new(big.Int).SetString(sum, 16)
	if !ok {
		return 0
	}
	return int(v.Mod(v, big.NewInt(int64(shardCount))).Int64())
}

// Nodes returns the perShard members assigned to shard: the contiguous run
// starting at shard*perShard, clamped to the end of all.
func Nodes[T any](all []T, shard, perShard int) []T {
	if shard < 0 || perShard <= 0 {
		return nil
	}
	start := shard * perShard
	if start >= len(all) {
		return nil
	}
	end := min(start+perShard, len(all))
	return append([]T(nil), all[start:end]...)
}
