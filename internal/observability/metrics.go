// Package observability expone las métricas Prometheus del servicio.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Motivos de rechazo de una creación de post.
const (
	RejectUnauthenticated = "unauthenticated"
	RejectRateLimited     = "rate_limited"
	RejectInvalid         = "invalid"
	RejectStorage         = "storage"
)

var (
	// PostsCreated cuenta los posts persistidos.
	PostsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chirp_posts_created_total",
		Help: "Total number of posts created",
	})

	// PostsRejected cuenta las creaciones rechazadas por motivo.
	PostsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chirp_posts_rejected_total",
		Help: "Total number of rejected post creations by reason",
	}, []string{"reason"})

	PostsDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chirp_posts_deleted_total",
		Help: "Total number of posts deleted by their owner",
	})

	// NotificationFailures cuenta los avisos post-commit que fallaron o entraron en pánico.
	NotificationFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chirp_notification_failures_total",
		Help: "Total number of failed post notifications",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chirp_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)
