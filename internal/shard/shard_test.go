package shard

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"

	"shardauth/pkg/digest"
)

func TestSelect(t *testing.T) {
	hashed := digest.SHA256Hex("1")
	const ts int64 = 1730000000000

	t.Run("pure in its inputs", func(t *testing.T) {
		assert.Equal(t, Select(hashed, ts, 2), Select(hashed, ts, 2))
	})

	t.Run("within range for every shard count", func(t *testing.T) {
		for m := 1; m <= 17; m++ {
			for i := int64(0); i < 50; i++ {
				got := Select(hashed, ts+i, m)
				assert.GreaterOrEqual(t, got, 0)
				assert.Less(t, got, m)
			}
		}
	})

	t.Run("matches the 256-bit reduction", func(t *testing.T) {
		v, _ := new(big.Int).SetString(digest.SHA256Hex(hashed+"1730000000000"), 16)
		want := new(big.Int).Mod(v, big.NewInt(7)).Int64()
		assert.Equal(t, int(want), Select(hashed, ts, 7))
	})

	t.Run("spreads over time", func(t *testing.T) {
		seen := map[int]bool{}
		for i := int64(0); i < 64; i++ {
			seen[Select(hashed, ts+i, 2)] = true
		}
		assert.Len(t, seen, 2)
	})

	t.Run("non-positive shard count", func(t *testing.T) {
		assert.Zero(t, Select(hashed, ts, 0))
		assert.Zero(t, Select(hashed, ts, -3))
	})
}

func TestNodes(t *testing.T) {
	all := []string{"a", "b", "c", "d", "e"}

	assert.Equal(t, []string{"a", "b"}, Nodes(all, 0, 2))
	assert.Equal(t, []string{"c", "d"}, Nodes(all, 1, 2))
	assert.Equal(t, []string{"e"}, Nodes(all, 2, 2))
	assert.Empty(t, Nodes(all, 3, 2))
	assert.Empty(t, Nodes(all, -1, 2))
	assert.Empty(t, Nodes(all, 0, 0))

	got := Nodes(all, 0, 2)
	got[0] = "z"
	assert.Equal(t, "a", all[0])
}
