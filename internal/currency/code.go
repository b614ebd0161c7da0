package currency

import "strings"

// NormalizeCode upper-cases and trims a currency code
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidCode reports whether code is three ASCII letters after normalization
func ValidCode(code string) bool {
	code = NormalizeCode(code)
	if len(code) != 3 {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < 'A' || code[i] > 'Z' {
			return false
		}
	}
	return true
}
