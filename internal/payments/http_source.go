package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/paytrack/pkg/errors"
)

const maxStatusBody = 1 << 20

// HTTPSource looks payments up through the status API at a base URL.
type HTTPSource struct {
	baseURL string
	client  *http.Client
}

// NewHTTPSource builds a source rooted at baseURL; a nil client gets timeout applied.
func NewHTTPSource(baseURL string, client *http.Client, timeout time.Duration) (*HTTPSource, error) {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if _, err := url.ParseRequestURI(base); err != nil || base == "" {
		return nil, fmt.Errorf("invalid api base url %q", baseURL)
	}
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &HTTPSource{baseURL: base, client: client}, nil
}

type statusEnvelope struct {
	Data  *Status `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Get fetches the current snapshot for reference.
func (h *HTTPSource) Get(ctx context.Context, reference string) (Status, error) {
	reference = NormalizeReference(reference)
	if reference == "" {
		return Status{}, pkgerrors.New(pkgerrors.CodeValidation, "payment reference required")
	}
	endpoint := h.baseURL + "/payments/" + url.PathEscape(reference)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Status{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build status request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return Status{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "Failed to fetch payment status")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxStatusBody))
	if err != nil {
		return Status{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "Failed to fetch payment status")
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return Status{}, pkgerrors.New(pkgerrors.CodeNotFound, "Payment not found")
	case resp.StatusCode >= 300:
		return Status{}, pkgerrors.New(pkgerrors.CodeDependency, "Failed to fetch payment status").
			WithDetails(map[string]any{"http_status": resp.StatusCode})
	}

	var envelope statusEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return Status{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode payment status")
	}
	if envelope.Data == nil {
		return Status{}, pkgerrors.New(pkgerrors.CodeNotFound, "Payment not found")
	}
	return *envelope.Data, nil
}
