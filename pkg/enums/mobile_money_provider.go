package enums

import (
	"fmt"
	"strings"
)

// MobileMoneyProvider identifies the wallet operator for mobile money payments.
type MobileMoneyProvider string

const (
	MobileMoneyProviderMTN    MobileMoneyProvider = "mtn"
	MobileMoneyProviderAirtel MobileMoneyProvider = "airtel"
	MobileMoneyProviderZamtel MobileMoneyProvider = "zamtel"
)

var validMobileMoneyProviders = []MobileMoneyProvider{
	MobileMoneyProviderMTN,
	MobileMoneyProviderAirtel,
	MobileMoneyProviderZamtel,
}

// String implements fmt.Stringer.
func (m MobileMoneyProvider) String() string {
	return string(m)
}

// IsValid reports whether the provider is recognized.
func (m MobileMoneyProvider) IsValid() bool {
	for _, candidate := range validMobileMoneyProviders {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseMobileMoneyProvider converts raw input into a MobileMoneyProvider.
func ParseMobileMoneyProvider(value string) (MobileMoneyProvider, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validMobileMoneyProviders {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid mobile money provider %q", value)
}
