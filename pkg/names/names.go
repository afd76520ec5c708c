// Package names hashes and compares module and export names the way the
// Windows loader does: ASCII case-insensitively.
package names

import "strings"

const (
	offsetBasis uint32 = 2166136261
	prime       uint32 = 16777619
)

// Fold hashes buffer with FNV-1a after upper-casing ASCII letters.
// NUL bytes are skipped so fixed-size name buffers hash like their strings.
func Fold(buffer []byte) uint32 {
	h := offsetBasis
	for _, b := range buffer {
		if b == 0 {
			continue
		}
		if b >= 'a' && b <= 'z' {
			b -= 0x20
		}
		h = (h ^ uint32(b)) * prime
	}
	return h
}

// Uint64 hashes an integer key, for caches keyed by addresses.
func Uint64(v uint64) uint32 {
	h := offsetBasis
	for i := 0; i < 8; i++ {
		h = (h ^ uint32(byte(v>>(8*i)))) * prime
	}
	return h
}

// Name is an export name with its folded hash, computed once when the name
// is read so later lookups compare hashes before strings.
type Name struct {
	Text string
	Hash uint32
}

func NewName(text string) Name {
	return Name{Text: text, Hash: Fold([]byte(text))}
}

// Matches reports whether n names symbol, whose folded hash is symbolHash.
// Hashes reject almost every mismatch; EqualFold settles collisions.
func (n Name) Matches(symbol string, symbolHash uint32) bool {
	return n.Hash == symbolHash &&
		len(n.Text) == len(symbol) &&
		strings.EqualFold(n.Text, symbol)
}
