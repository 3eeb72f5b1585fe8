// Package hrw places keys on shards with rendezvous (highest random weight)
// hashing. Adding a shard only moves the keys that now score highest on it.
package hrw

import (
	"cmp"
	"encoding/binary"
	"slices"

	"golang.org/x/crypto/blake2b"
)

// Best returns the index of the candidate scoring highest for key, or -1
// when there are no candidates. seed salts every score.
func Best(key uint64, candidates []string, seed string) int {
	best, bestScore := -1, uint64(0)
	for i, c := range candidates {
		if s := Score(key, c, seed); best < 0 || s > bestScore {
			best, bestScore = i, s
		}
	}
	return best
}

// Rank returns candidate indices ordered best first.
func Rank(key uint64, candidates []string, seed string) []int {
	scores := make([]uint64, len(candidates))
	idx := make([]int, len(candidates))
	for i, c := range candidates {
		scores[i] = Score(key, c, seed)
		idx[i] = i
	}
	slices.SortFunc(idx, func(a, b int) int { return cmp.Compare(scores[b], scores[a]) })
	return idx
}

// Score is the weight of candidate for key.
func Score(key uint64, candidate string, seed string) uint64 {
	// 8-byte digest => uint64 score
	h, _ := blake2b.New(8, nil)

	if seed != "" {
		h.Write([]byte(seed))
		h.Write([]byte{0})
	}

	var k [8]byte
	binary.BigEndian.PutUint64(k[:], key)
	h.Write(k[:])
	h.Write([]byte{0})
	h.Write([]byte(candidate))

	return binary.BigEndian.Uint64(h.Sum(nil))
}
