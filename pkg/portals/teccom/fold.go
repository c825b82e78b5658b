package teccom

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// accentFolder strips combining marks after NFD decomposition, turning
// Ş/Ğ/Ü/Ö/Ç into their ASCII base letters.
var accentFolder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Turkish dotless ı and dotted İ are standalone letters, not base + mark,
// so they need explicit mapping before folding.
var dotlessReplacer = strings.NewReplacer("ı", "i", "İ", "I")

// foldText normalizes free text for fuzzy comparison: accents folded,
// uppercased, whitespace collapsed.
func foldText(s string) string {
	s = dotlessReplacer.Replace(s)

	folded, _, err := transform.String(accentFolder, s)
	if err != nil {
		folded = s
	}

	return strings.Join(strings.Fields(strings.ToUpper(folded)), " ")
}

// MatchOption picks the dropdown option matching the customer name. The
// folded name is tried against the folded options word by word: first the
// whole name, then progressively shorter word prefixes, so "HNR OTOMOTIV
// SAN. TIC." still finds an option labelled just "HNR".
func MatchOption(options []string, customerName string) (string, bool) {
	words := strings.Fields(foldText(customerName))
	if len(words) == 0 {
		return "", false
	}

	folded := make([]string, len(options))
	for i, opt := range options {
		folded[i] = foldText(opt)
	}

	for n := len(words); n >= 1; n-- {
		prefix := strings.Join(words[:n], " ")

		for i, opt := range folded {
			if strings.Contains(opt, prefix) {
				return options[i], true
			}
		}
	}

	return "", false
}
