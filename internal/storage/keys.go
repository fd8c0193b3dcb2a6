package storage

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/phrazzld/stylebatch/internal/domain"
)

var (
	reservedChars = regexp.MustCompile(`[<>:"/\\|?*]`)
	whitespaceRun = regexp.MustCompile(`\s+`)
)

// ImageExtensions are the extensions tried when looking for a downloaded
// original, in lookup order.
var ImageExtensions = []string{"jpg", "jpeg", "png", "gif", "webp"}

// Sanitize turns an arbitrary display string into a filename fragment:
// diacritics are stripped, filesystem-reserved characters become "_",
// whitespace runs collapse to a single "_" and the result is lower-cased.
func Sanitize(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	folded = reservedChars.ReplaceAllString(folded, "_")
	folded = whitespaceRun.ReplaceAllString(strings.TrimSpace(folded), "_")
	return strings.ToLower(folded)
}

// BaseName is the deterministic key stem shared by all artifacts of one
// record: "<id>_<brand>_<category>_<name>", each part sanitized.
func BaseName(r domain.Record) string {
	return strings.Join([]string{
		Sanitize(r.ID),
		Sanitize(r.Brand),
		Sanitize(r.Category),
		Sanitize(r.Name),
	}, "_")
}

// RawName is the filename of a downloaded original with the given extension.
func RawName(r domain.Record, ext string) string {
	return BaseName(r) + "." + strings.TrimPrefix(strings.ToLower(ext), ".")
}

// TransformedName is the filename of one style variant of a record.
func TransformedName(r domain.Record, style string) string {
	return BaseName(r) + "_" + Sanitize(style) + ".png"
}

// DocumentName is the filename of a record's rendered guide.
func DocumentName(r domain.Record) string {
	return BaseName(r) + ".md"
}
