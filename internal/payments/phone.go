package payments

import (
	"regexp"
	"strings"
)

// Mobile numbers per country, accepting the international prefix with or
// without "+" or the national trunk "0".
var mobilePatterns = map[string]*regexp.Regexp{
	"ZM": regexp.MustCompile(`^(?:\+?260|0)(?:9[5-7]|7[5-7])\d{7}$`),
	"KE": regexp.MustCompile(`^(?:\+?254|0)(?:7\d|1[01])\d{7}$`),
	"GH": regexp.MustCompile(`^(?:\+?233|0)(?:2[0346-9]|5[0345679])\d{7}$`),
	"UG": regexp.MustCompile(`^(?:\+?256|0)7\d{8}$`),
	"TZ": regexp.MustCompile(`^(?:\+?255|0)[67]\d{8}$`),
	"NG": regexp.MustCompile(`^(?:\+?234|0)[789][01]\d{8}$`),
}

var phoneSeparators = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", ".", "")

// MobilePattern returns the mobile-number pattern for an ISO country code.
func MobilePattern(countryCode string) (*regexp.Regexp, bool) {
	pattern, ok := mobilePatterns[strings.ToUpper(strings.TrimSpace(countryCode))]
	return pattern, ok
}

// NormalizePhone strips common separators from a phone number.
func NormalizePhone(phone string) string {
	return phoneSeparators.Replace(strings.TrimSpace(phone))
}
