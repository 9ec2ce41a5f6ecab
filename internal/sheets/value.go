package sheets

import (
	"strconv"
	"strings"
)

var currencyPrefixes = []string{"US$", "$", "€", "£", "¥", "₹", "R$"}

// ParseNumber reads the formatted value of a cell as a number. Thousands
// separators, a trailing percent sign, a currency prefix and accounting
// parentheses are understood. Percentages keep their displayed magnitude.
func ParseNumber(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	if strings.HasPrefix(s, "-") {
		negative = !negative
		s = strings.TrimSpace(s[1:])
	} else if strings.HasPrefix(s, "+") {
		s = strings.TrimSpace(s[1:])
	}
	for _, prefix := range currencyPrefixes {
		if strings.HasPrefix(s, prefix) {
			s = strings.TrimSpace(strings.TrimPrefix(s, prefix))
			break
		}
	}
	// "$-12" style
	if strings.HasPrefix(s, "-") {
		negative = !negative
		s = s[1:]
	}
	s = strings.TrimSuffix(s, "%")
	s = strings.TrimSpace(s)
	if s == "" || !validGrouping(s) {
		return 0, false
	}
	s = strings.ReplaceAll(s, ",", "")
	if strings.Trim(s, "0123456789.") != "" {
		return 0, false
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	if negative {
		v = -v
	}
	return v, true
}

// validGrouping rejects "1,2" while accepting "1,234.5".
func validGrouping(s string) bool {
	if !strings.Contains(s, ",") {
		return true
	}
	intPart := s
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart = s[:i]
		if strings.Contains(s[i:], ",") {
			return false
		}
	}
	groups := strings.Split(intPart, ",")
	if len(groups[0]) == 0 || len(groups[0]) > 3 {
		return false
	}
	for _, g := range groups[1:] {
		if len(g) != 3 {
			return false
		}
	}
	return true
}
