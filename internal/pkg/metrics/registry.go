package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// API Call Metrics
var (
	// APICalls tracks backend API calls
	APICalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "openfolio_api_calls_total",
			Help: "Total backend API calls by method, route (normalized path), and status code",
		},
		[]string{"method", "route", "status_code"},
	)

	// APIDuration tracks backend API latency
	APIDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:                            "openfolio_api_duration_ms",
			Help:                            "Backend API call duration in milliseconds",
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 1 * time.Hour,
		},
		[]string{"method", "route"},
	)

	// APIErrors tracks backend API errors
	APIErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "openfolio_api_errors_total",
			Help: "Total backend API errors by route and error type",
		},
		[]string{"route", "error_type"},
	)
)

// Token Refresh Metrics
var (
	// RefreshEpisodes tracks completed refresh episodes by outcome
	RefreshEpisodes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "openfolio_token_refresh_episodes_total",
			Help: "Total token refresh episodes by outcome (success, failed, missing_token)",
		},
		[]string{"outcome"},
	)

	// RefreshDuration tracks the refresh endpoint round trip
	RefreshDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:                            "openfolio_token_refresh_duration_ms",
			Help:                            "Token refresh call duration in milliseconds",
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 1 * time.Hour,
		},
	)

	// RefreshWaiters tracks requests parked behind an in-flight refresh
	RefreshWaiters = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "openfolio_token_refresh_waiters_total",
			Help: "Total requests parked behind an in-flight token refresh",
		},
	)

	// Replays tracks requests re-issued after a refresh
	Replays = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "openfolio_request_replays_total",
			Help: "Total requests replayed with a refreshed token, by outcome",
		},
		[]string{"outcome"},
	)
)

// Session Metrics
var (
	// SessionRestores tracks session restore attempts at startup
	SessionRestores = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "openfolio_session_restores_total",
			Help: "Total session restore attempts by result",
		},
		[]string{"result"},
	)
)
