package identity

import (
	"strings"

	"golang.org/x/text/width"
)

// NormalizeID canonicalizes a student id for every comparison and storage
// key: surrounding whitespace is trimmed, full-width alphanumerics are
// folded to half-width, and the result is upper-cased. "p22001",
// "Ｐ２２００１" and "P22001" all normalize to "P22001".
func NormalizeID(id string) string {
	return strings.ToUpper(width.Narrow.String(strings.TrimSpace(id)))
}

// nameJunk strips the separators that creep into roster display names:
// ASCII and full-width spaces, underscores, tabs.
var nameJunk = strings.NewReplacer(" ", "", "\t", "", "　", "", "_", "", "＿", "")

// NormalizeName cleans a display name before storing it. Unlike ids the
// name keeps its case and width; only separator junk is removed from the
// edges and interior.
func NormalizeName(name string) string {
	return nameJunk.Replace(strings.TrimSpace(name))
}
