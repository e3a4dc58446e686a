package phone

import (
	"regexp"
	"strings"
)

const countryCode = "254"

var (
	nonDigits = regexp.MustCompile(`\D`)
	msisdn    = regexp.MustCompile(`^254\d{9}$`)
)

// Normalize converts a user-entered phone string into the 2547XXXXXXXX
// format the gateway requires. Unrecognized shapes pass through cleaned of
// non-digits; callers that need a guarantee must check Valid.
func Normalize(raw string) string {
	cleaned := nonDigits.ReplaceAllString(raw, "")

	switch {
	case strings.HasPrefix(cleaned, "0"):
		return countryCode + cleaned[1:]
	case len(cleaned) == 9 && !strings.HasPrefix(cleaned, countryCode):
		return countryCode + cleaned
	default:
		// covers both "+254..." (the "+" is gone after cleaning) and the
		// already-correct 12-digit form
		return cleaned
	}
}

// Valid reports whether number is a full international M-Pesa MSISDN.
func Valid(number string) bool {
	return msisdn.MatchString(number)
}
