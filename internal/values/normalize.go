// Package values finds numeric indicator values in Italian-locale text:
// candidate numbers near keywords, normalized and confidence-scored.
package values

import (
	"strconv"
	"strings"
)

// NormalizeNumber parses an Italian-formatted numeric string: dots and
// spaces are thousands separators, the comma is the decimal mark,
// parentheses mean negative (accounting style), a trailing % divides by
// 100. Returns false when no number can be recovered.
func NormalizeNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	s = strings.ReplaceAll(s, "€", "")
	s = strings.ReplaceAll(s, "EUR", "")
	s = strings.TrimSpace(s)

	percent := strings.HasSuffix(s, "%")
	s = strings.TrimSpace(strings.TrimSuffix(s, "%"))

	// Either marker flags negative; redundant markers never cancel out.
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	if strings.HasPrefix(s, "-") {
		negative = true
		s = s[1:]
	}
	s = strings.TrimPrefix(s, "+")

	s = stripGroupSeparators(s)
	s = strings.ReplaceAll(s, ",", ".")
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	if negative {
		v = -v
	}
	if percent {
		v /= 100
	}
	return v, true
}

// stripGroupSeparators removes dots and spaces that sit between two
// digits. Go's regexp has no lookbehind, so this is a direct scan.
func stripGroupSeparators(s string) string {
	runes := []rune(s)
	out := make([]rune, 0, len(runes))
	for i, r := range runes {
		if r == '.' || r == ' ' || r == ' ' {
			if i > 0 && i < len(runes)-1 && isDigit(runes[i-1]) && isDigit(runes[i+1]) {
				continue
			}
		}
		out = append(out, r)
	}
	return string(out)
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }
