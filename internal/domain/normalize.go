package domain

import (
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// cityChainPool holds fresh transformer chains; a chain keeps internal buffers
// and must not be shared between goroutines.
var cityChainPool = sync.Pool{
	New: func() any {
		return transform.Chain(
			norm.NFKD,
			runes.Remove(runes.In(unicode.Mn)), // diacritics left by decomposition
			runes.Remove(runes.Predicate(func(r rune) bool { return r > unicode.MaxASCII })),
		)
	},
}

// NormalizeCity folds a free-text city name to its lookup key: accents
// stripped, ASCII only, lowercase, single spaces, trimmed.
func NormalizeCity(s string) string {
	if s == "" {
		return ""
	}
	s = strings.ToValidUTF8(s, "")

	tr := cityChainPool.Get().(transform.Transformer)
	out, _, err := transform.String(tr, s)
	tr.Reset()
	cityChainPool.Put(tr)
	if err != nil {
		return ""
	}

	return strings.Join(strings.Fields(strings.ToLower(out)), " ")
}

// NormalizeRegion trims and upper-cases a state code.
func NormalizeRegion(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
