package ledger

import (
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// HashUser derives the ledger identity from a platform-native user id.
// The hash is deterministic across restarts and one-way; the raw id is
// never written anywhere.
func HashUser(userID int64) uint64 {
	return xxhash.Sum64String(strconv.FormatInt(userID, 10))
}
