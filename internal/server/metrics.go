package server

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "goalreach_http_requests_total",
		Help: "HTTP requests by route, method and status code",
	}, []string{"route", "method", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "goalreach_http_request_duration_seconds",
		Help:    "HTTP request latency by route",
		Buckets: []float64{0.005, 0.05, 0.25, 1, 5, 15, 30, 60},
	}, []string{"route"})
)

func observeRequest(route, method string, status int, elapsed time.Duration) {
	requestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	requestDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}
