package whatsapp

import "strings"

// NormalizePhone strips everything but digits. A ten-digit number gets
// countryCode prepended unless it already starts with it.
func NormalizePhone(raw, countryCode string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) == 10 && countryCode != "" && !strings.HasPrefix(digits, countryCode) {
		return countryCode + digits
	}
	return digits
}
