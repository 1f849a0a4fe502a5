package submission

import "strings"

const (
	countryCode   = "91"
	localDigits   = 10
	intlDigits    = len(countryCode) + localDigits // 12
	intlDigitsAlt = intlDigits + 1                 // 13, accepted as entered
)

// NormalizePhone canonicalises a local mobile number into "+91XXXXXXXXXX".
//
// It strips every non-digit, then:
//
//	10 digits             → "+91" + digits
//	12 or 13 digits, "91…" → "+" + digits
//
// Any other input has no canonical form; NormalizePhone then returns raw
// unchanged and ok == false.  The ban gate and the record builder share
// this function.
func NormalizePhone(raw string) (canonical string, ok bool) {
	digits := digitsOnly(raw)
	switch {
	case len(digits) == localDigits:
		return "+" + countryCode + digits, true
	case (len(digits) == intlDigits || len(digits) == intlDigitsAlt) &&
		strings.HasPrefix(digits, countryCode):
		return "+" + digits, true
	default:
		return raw, false
	}
}

func digitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if c := s[i]; c >= '0' && c <= '9' {
			b.WriteByte(c)
		}
	}
	return b.String()
}
