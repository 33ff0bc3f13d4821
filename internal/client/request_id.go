package client

import (
	"net/http"

	"github.com/google/uuid"
)

// RequestIDHeader carries a per-request correlation ID to the backend
const RequestIDHeader = "X-Request-ID"

type requestIDTransport struct {
	base http.RoundTripper
}

// NewRequestIDTransport stamps each request with a fresh X-Request-ID unless one is set.
// A replay keeps the ID of the request it replays.
func NewRequestIDTransport(base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &requestIDTransport{base: base}
}

func (t *requestIDTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get(RequestIDHeader) != "" {
		return t.base.RoundTrip(req)
	}
	r := req.Clone(req.Context())
	r.Header.Set(RequestIDHeader, uuid.NewString())
	return t.base.RoundTrip(r)
}
