package plate

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Canonicalize builds the lookup key for a plate: NFKC-folded, without
// whitespace or dashes, upper-cased. It is for searching history only and is
// never applied to the text a run writes out.
func Canonicalize(raw string) string {
	normalized := norm.NFKC.String(raw)
	normalized = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == '-' {
			return -1
		}
		return r
	}, normalized)
	return strings.ToUpper(normalized)
}
