package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashUser_Deterministic(t *testing.T) {
	assert.Equal(t, HashUser(123456789), HashUser(123456789))
}

func TestHashUser_DistinctIDs(t *testing.T) {
	seen := make(map[uint64]int64)
	for _, id := range []int64{0, 1, 2, 42, 123456789, -1, 1 << 40} {
		h := HashUser(id)
		if prev, ok := seen[h]; ok {
			t.Fatalf("hash collision between user ids %d and %d", prev, id)
		}
		seen[h] = id
	}
}

func TestHashUser_NotIdentity(t *testing.T) {
	// The hash must not leak the raw id
	assert.NotEqual(t, uint64(123456789), HashUser(123456789))
}
