package metrics

import (
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RecordRefresh records a completed refresh episode.
// outcome: "success", "failed" or "missing_token"
// duration: time spent calling the refresh endpoint (zero if no call was made)
func RecordRefresh(outcome string, duration time.Duration) {
	RefreshEpisodes.WithLabelValues(outcome).Inc()
	if duration > 0 {
		RefreshDuration.Observe(float64(duration.Milliseconds()))
	}
}

// RecordReplay records the result of replaying a request after a refresh
func RecordReplay(err error, statusCode int) {
	outcome := "success"
	switch {
	case err != nil:
		outcome = "error"
	case statusCode == 401:
		outcome = "unauthorized"
	case statusCode >= 400:
		outcome = "failed"
	}
	Replays.WithLabelValues(outcome).Inc()
}

// WriteTextfile writes every registered metric in Prometheus text format to path,
// for pickup by a node exporter textfile collector.
func WriteTextfile(path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
