package taxonomy

import (
	"html"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// fallbackSlug is used when a name contains nothing sluggable.
const fallbackSlug = "term"

// Slugify derives the URL-safe slug for a term name.
//
// HTML entities are decoded first ("Track &amp; Field" and "Track & Field"
// share a slug), then the name is NFKD-decomposed so diacritics can be
// dropped. Letters and digits are lower-cased and kept, apostrophes vanish,
// and every other run of characters collapses into a single hyphen.
func Slugify(name string) string {
	// Transformers carry state, so build one per call.
	fold := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	s, _, err := transform.String(fold, html.UnescapeString(name))
	if err != nil {
		s = name
	}

	var b strings.Builder
	b.Grow(len(s))
	pendingHyphen := false
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(unicode.ToLower(r))
		case r == '\'' || r == '’':
			// "Children's" -> "childrens"
		default:
			pendingHyphen = true
		}
	}

	if b.Len() == 0 {
		return fallbackSlug
	}
	return b.String()
}
