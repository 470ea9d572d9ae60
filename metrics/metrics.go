package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// --- Media delivery ---
	StreamURLsMinted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "resonate_stream_urls_minted_total",
		Help: "Signed stream URLs issued",
	})

	TokenRejections = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "resonate_stream_token_rejections_total",
		Help: "Stream token validation failures by reason",
	}, []string{"reason"}) // reason: malformed, bad_signature, expired, mismatch

	StreamResponses = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "resonate_stream_responses_total",
		Help: "Media endpoint responses by status code",
	}, []string{"status"})

	StreamBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "resonate_stream_bytes_total",
		Help: "Total audio bytes written to clients",
	})

	// --- HTTP surface ---
	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "resonate_http_requests_total",
		Help: "HTTP requests by method and route",
	}, []string{"method", "route"})
)

func init() {
	prometheus.MustRegister(
		StreamURLsMinted,
		TokenRejections,
		StreamResponses,
		StreamBytes,
		HTTPRequests,
	)
}

// Handler returns the /metrics endpoint handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
