package validators

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	pkgerrors "github.com/angelmondragon/paytrack/pkg/errors"
)

const maxReferenceLength = 64

// ReferenceParam reads the {reference} route parameter.
func ReferenceParam(r *http.Request) (string, error) {
	reference := strings.TrimSpace(chi.URLParam(r, "reference"))
	if reference == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "payment reference required")
	}
	if len(reference) > maxReferenceLength {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "payment reference too long").WithDetails(map[string]any{"max": maxReferenceLength})
	}
	return reference, nil
}

// SanitizeString trims input and caps it at maxLen bytes.
func SanitizeString(input string, maxLen int) string {
	trimmed := strings.TrimSpace(input)
	if maxLen > 0 && len(trimmed) > maxLen {
		return trimmed[:maxLen]
	}
	return trimmed
}
