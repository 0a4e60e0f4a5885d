package clean

import (
	"regexp"
	"strings"

	"github.com/KaramelBytes/tidyloom-cli/internal/frame"
)

var symbolReplacer = strings.NewReplacer(
	"₹", "", "$", "", "€", "", "£", "", "¥", "",
	",", "",
	"\u00a0", " ",
	"—", "-", // em dash
	"–", "-", // en dash
	"−", "-", // minus sign
)

// A unit counts when it stands alone or directly follows a digit.
var unitPattern = regexp.MustCompile(`(?i)(^|[\s\d])(km/h|kmh|mph|kwh|kw|km|rpm|hrs|hr|sec|min|m|s)\b`)

// NormalizeValue strips currency symbols, grouping commas and, when
// stripUnits is set, unit tokens, and maps dash variants to '-'.
func NormalizeValue(s string, stripUnits bool) string {
	s = strings.TrimSpace(symbolReplacer.Replace(s))
	if stripUnits {
		s = strings.TrimSpace(unitPattern.ReplaceAllString(s, "${1}"))
	}
	return s
}

// NormalizeCell normalizes the string form of v. Missing cells report false.
func NormalizeCell(v frame.Value, stripUnits bool) (string, bool) {
	if v.IsMissing() {
		return "", false
	}
	return NormalizeValue(v.String(), stripUnits), true
}
