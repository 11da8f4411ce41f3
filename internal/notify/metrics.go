package notify

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Run counters, exported at /metrics. They mirror the Summary fields so a
// scrape shows the same numbers the trigger response reports.
var (
	metricRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clubnotify_dispatch_runs_total",
		Help: "Completed dispatch runs.",
	})
	metricProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clubnotify_notifications_processed_total",
		Help: "Notifications processed (marked sent) across all runs.",
	})
	metricPushSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clubnotify_push_sent_total",
		Help: "Successful primary-channel sends.",
	})
	metricPushFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clubnotify_push_failed_total",
		Help: "Transient primary-channel failures.",
	})
	metricPruned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clubnotify_subscriptions_pruned_total",
		Help: "Push subscriptions deleted on permanent failure.",
	})
	metricEmailSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clubnotify_email_sent_total",
		Help: "Successful secondary-channel sends.",
	})
	metricEmailFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clubnotify_email_failed_total",
		Help: "Secondary-channel failures, missing addresses included.",
	})
	metricEmailSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clubnotify_email_skipped_total",
		Help: "Fallback recipients skipped because the secondary channel is unconfigured.",
	})
)

func recordSummary(s Summary) {
	metricRuns.Inc()
	metricProcessed.Add(float64(s.Processed))
	metricPushSent.Add(float64(s.Sent))
	metricPushFailed.Add(float64(s.Failed))
	metricPruned.Add(float64(s.RemovedSubscriptions))
	metricEmailSent.Add(float64(s.EmailSent))
	metricEmailFailed.Add(float64(s.EmailFailed))
	metricEmailSkipped.Add(float64(s.EmailSkipped))
}
