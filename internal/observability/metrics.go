package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RouteRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ecoride", Name: "route_requests_total", Help: "Route requests by candidate source and outcome"},
		[]string{"source", "outcome"},
	)
	RouteRecommendedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ecoride", Name: "route_recommended_total", Help: "Recommended candidates by summary"},
		[]string{"summary"},
	)
	RouteFusionTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ecoride", Name: "route_fusion_total", Help: "Eco candidate signal origin in fallback mode"},
		[]string{"origin"},
	)
	RouteProviderLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "ecoride", Name: "route_provider_latency_seconds", Help: "Latency of external mapping provider calls",
	})

	EmissionDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ecoride", Name: "emission_decisions_total", Help: "Emission check decisions by action"},
		[]string{"action"},
	)
	JoinOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ecoride", Name: "ride_join_outcomes_total", Help: "Ride join attempts by outcome"},
		[]string{"outcome"},
	)
	SensorReadingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ecoride", Name: "sensor_readings_total", Help: "Sensor readings accepted by path"},
		[]string{"path"},
	)
	RelaySubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "ecoride", Name: "relay_subscribers", Help: "Open ride channel websocket subscribers",
	})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ecoride", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ecoride",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
