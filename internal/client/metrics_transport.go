package client

import (
	"context"
	"errors"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/devilmonastery/openfolio/internal/pkg/metrics"
)

// metricsTransport wraps an http.RoundTripper to collect metrics on backend API calls
type metricsTransport struct {
	base http.RoundTripper
}

// NewMetricsTransport creates a new transport wrapper that collects metrics
// for all API calls. It sits below the auth transport so replays and refresh
// calls are counted individually.
func NewMetricsTransport(base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &metricsTransport{base: base}
}

// RoundTrip implements http.RoundTripper, wrapping the base transport with metrics collection
func (t *metricsTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.base.RoundTrip(req)
	duration := time.Since(start)

	route := normalizeRoute(req.URL.Path)
	statusCode := 0
	if resp != nil {
		statusCode = resp.StatusCode
	}

	metrics.APICalls.WithLabelValues(req.Method, route, strconv.Itoa(statusCode)).Inc()
	metrics.APIDuration.WithLabelValues(req.Method, route).Observe(float64(duration.Milliseconds()))

	if err != nil || statusCode >= 400 {
		metrics.APIErrors.WithLabelValues(route, classifyError(statusCode, err)).Inc()
	}

	return resp, err
}

var (
	numericSegment = regexp.MustCompile(`/\d+(/|$)`)
	downloadToken  = regexp.MustCompile(`/export/download/[^/]+`)
	publicSlug     = regexp.MustCompile(`/public/[^/]+`)
	templateKey    = regexp.MustCompile(`(/preview)/[a-zA-Z][\w-]*$`)
)

// normalizeRoute replaces IDs, slugs and tokens in API paths with placeholders
// This prevents high cardinality in metrics while still providing useful aggregation
func normalizeRoute(path string) string {
	normalized := downloadToken.ReplaceAllString(path, "/export/download/:token")
	normalized = publicSlug.ReplaceAllString(normalized, "/public/:slug")
	normalized = templateKey.ReplaceAllString(normalized, "$1/:template")
	// Applied twice because adjacent IDs share a slash
	for i := 0; i < 2; i++ {
		normalized = numericSegment.ReplaceAllString(normalized, "/:id$1")
	}
	return normalized
}

// classifyError categorizes API errors for metrics
func classifyError(statusCode int, err error) string {
	if err != nil {
		var netErr net.Error
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			return "timeout"
		case errors.As(err, &netErr) && netErr.Timeout():
			return "timeout"
		case errors.Is(err, context.Canceled):
			return "canceled"
		default:
			return "network"
		}
	}

	switch {
	case statusCode == 400:
		return "bad_request"
	case statusCode == 401:
		return "unauthorized"
	case statusCode == 403:
		return "forbidden"
	case statusCode == 404:
		return "not_found"
	case statusCode == 409:
		return "conflict"
	case statusCode == 429:
		return "rate_limited"
	case statusCode >= 500:
		return "server_error"
	case statusCode >= 400:
		return "client_error"
	default:
		return "unknown"
	}
}
