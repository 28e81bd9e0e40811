// Package metrics exposes Prometheus counters for the booking service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	BookingsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "platzbuch_bookings_created_total",
		Help: "Accepted bookings by type.",
	}, []string{"booking_type"})

	BookingsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "platzbuch_bookings_rejected_total",
		Help: "Rejected booking requests by reason.",
	}, []string{"reason"})

	BookingsJoined = promauto.NewCounter(prometheus.CounterOpts{
		Name: "platzbuch_bookings_joined_total",
		Help: "Half-bookings completed by a second player.",
	})

	BookingsCancelled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "platzbuch_bookings_cancelled_total",
		Help: "Bookings cancelled by members.",
	})

	SeriesCommitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "platzbuch_series_committed_total",
		Help: "Special booking series committed by admins.",
	})

	SweeperDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "platzbuch_sweeper_deleted_total",
		Help: "Half-bookings removed by the expiry sweep.",
	})

	RateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "platzbuch_rate_limited_total",
		Help: "Booking submissions blocked by the rate limiter.",
	})
)

// Handler serves the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
