package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "api_http_requests_total", Help: "HTTP requests"},
		[]string{"method", "path", "status"},
	)
	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
	PublishedJobsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "api_published_dispatch_jobs_total", Help: "Dispatch jobs published to queue"},
	)
	AccessDeniedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "api_broadcast_access_denied_total", Help: "Broadcast authorization denials"},
		[]string{"reason"},
	)

	DispatchRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "worker_dispatch_runs_total", Help: "Dispatch runs by final state"},
		[]string{"state"},
	)
	RecipientsSentTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "worker_recipients_sent_total", Help: "Recipients sent successfully"},
	)
	RecipientsFailedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "worker_recipients_failed_total", Help: "Recipient sends failed"},
	)
	DispatchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "worker_dispatch_run_duration_seconds",
			Help:    "Time spent on one dispatch run",
			Buckets: prometheus.DefBuckets,
		},
	)
	ScheduledPickedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "worker_scheduled_campaigns_picked_total", Help: "Due campaigns picked by the scheduler scan"},
	)
)

func init() {
	prometheus.MustRegister(
		APIRequestsTotal, APIRequestDuration, PublishedJobsTotal, AccessDeniedTotal,
		DispatchRunsTotal, RecipientsSentTotal, RecipientsFailedTotal, DispatchDuration, ScheduledPickedTotal,
	)
}

func Handler() http.Handler { return promhttp.Handler() }
