package mid

import (
	"context"
	"net/http"

	"github.com/ekehi/blockchain/foundation/web"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metrics holds the request counters for the node. The chain level gauges
// are registered by the application where the state exists.
var metrics = struct {
	requests prometheus.Counter
	errors   prometheus.Counter
	panics   prometheus.Counter
}{
	requests: promauto.NewCounter(prometheus.CounterOpts{
		Name: "node_http_requests_total",
		Help: "Total number of requests handled.",
	}),
	errors: promauto.NewCounter(prometheus.CounterOpts{
		Name: "node_http_request_errors_total",
		Help: "Total number of requests that produced an error.",
	}),
	panics: promauto.NewCounter(prometheus.CounterOpts{
		Name: "node_http_request_panics_total",
		Help: "Total number of requests that panicked.",
	}),
}

// Metrics updates the request counters.
func Metrics() web.Middleware {

	m := func(handler web.Handler) web.Handler {

		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			metrics.requests.Inc()

			err := handler(ctx, w, r)
			if err != nil {
				metrics.errors.Inc()
			}

			return err
		}

		return h
	}

	return m
}
