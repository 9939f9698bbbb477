package attribution

import (
	"unicode/utf8"

	"github.com/agext/levenshtein"
	"golang.org/x/text/unicode/norm"
)

// indel scores substitutions as a deletion plus an insertion.
var indel = levenshtein.NewParams().SubCost(2)

// Ratio is the normalized edit similarity of a and b in [0, 1]:
// (len(a)+len(b)-d)/(len(a)+len(b)) where d is the insert/delete distance.
// Both strings are NFC-normalized first. Two empty strings are identical.
func Ratio(a, b string) float64 {
	a, b = norm.NFC.String(a), norm.NFC.String(b)
	total := utf8.RuneCountInString(a) + utf8.RuneCountInString(b)
	if total == 0 {
		return 1
	}
	d := levenshtein.Distance(a, b, indel)
	return float64(total-d) / float64(total)
}
