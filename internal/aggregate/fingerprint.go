package aggregate

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"

	"finchat/internal/core"
)

// Fingerprint derives a stable cache key from the normalized query plus
// the user's ledger version. Two questions that resolve to the same
// structured query share a fingerprint; any new transaction for the user
// changes the version and with it the key.
func Fingerprint(q core.StructuredQuery, ledgerVersion int64) string {
	cats := make([]string, len(q.Categories))
	for i, c := range q.Categories {
		cats[i] = strings.ToLower(strings.TrimSpace(c))
	}
	sort.Strings(cats)

	var b strings.Builder
	b.WriteString(q.UserID)
	b.WriteByte('|')
	b.WriteString(strconv.FormatInt(ledgerVersion, 10))
	b.WriteByte('|')
	b.WriteString(string(q.Kind))
	b.WriteByte('|')
	b.WriteString(strconv.FormatInt(q.Range.Start.UTC().Unix(), 10))
	b.WriteByte('|')
	b.WriteString(strconv.FormatInt(q.Range.End.UTC().Unix(), 10))
	b.WriteByte('|')
	b.WriteString(strings.Join(cats, ","))

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
