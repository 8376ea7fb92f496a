// Package metrics defines the Prometheus collectors exported on /metrics.
// Collectors register with the default registry at init through promauto.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recipebook_http_requests_total",
			Help: "HTTP requests by method, route pattern and status code",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recipebook_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route pattern",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Recipes
	RecipesCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recipebook_recipes_created_total",
			Help: "Recipes created",
		},
	)

	RecipesDeletedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recipebook_recipes_deleted_total",
			Help: "Recipes deleted",
		},
	)

	// FavouriteTogglesTotal is labelled with the resulting state: added or removed.
	FavouriteTogglesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recipebook_favourite_toggles_total",
			Help: "Favourite toggles by resulting state",
		},
		[]string{"result"},
	)

	FeedbackTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recipebook_feedback_total",
			Help: "Comments and ratings accepted",
		},
		[]string{"kind"}, // "comment", "rating"
	)

	ImageDeleteFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recipebook_image_delete_failures_total",
			Help: "Stored images that could not be removed after their recipe was deleted",
		},
	)
)

// RecordHTTPRequest records one finished request. route is the chi route
// pattern, not the raw path, to keep label cardinality bounded.
func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func RecordFavouriteToggle(result string) {
	FavouriteTogglesTotal.WithLabelValues(result).Inc()
}

func RecordComment() { FeedbackTotal.WithLabelValues("comment").Inc() }

func RecordRating() { FeedbackTotal.WithLabelValues("rating").Inc() }
