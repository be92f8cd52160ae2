package payments

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	referencePrefix    = "WC"
	referenceSuffixLen = 6
	referenceAlphabet  = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

// NewReference builds a reference of the form WC_<unix seconds>_<6 alphanumerics>.
func NewReference(now time.Time) string {
	id := uuid.New()
	var suffix strings.Builder
	for i := 0; i < referenceSuffixLen; i++ {
		suffix.WriteByte(referenceAlphabet[int(id[i])%len(referenceAlphabet)])
	}
	return fmt.Sprintf("%s_%d_%s", referencePrefix, now.Unix(), suffix.String())
}

// NormalizeReference trims surrounding whitespace; references are otherwise opaque.
func NormalizeReference(reference string) string {
	return strings.TrimSpace(reference)
}
