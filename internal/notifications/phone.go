package notifications

import "strings"

// DefaultCountryCode is prefixed to national numbers
const DefaultCountryCode = "91"

// FormatPhoneNumber strips everything but digits and returns +<cc><number>.
// A ten-digit national number always gets the country code, even when it
// happens to start with the same digits.
func FormatPhoneNumber(phone, countryCode string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := strings.TrimLeft(b.String(), "0")
	if digits == "" {
		return ""
	}

	if len(digits) == 10 || !strings.HasPrefix(digits, countryCode) {
		digits = countryCode + digits
	}
	return "+" + digits
}
