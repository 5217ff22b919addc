package verification

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics instruments the workflow. A nil *Metrics records nothing.
type Metrics struct {
	submissions          *prometheus.CounterVec
	finalizations        *prometheus.CounterVec
	photoReviews         prometheus.Counter
	notificationFailures *prometheus.CounterVec
	uploadDuration       prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		submissions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "verification",
			Name:      "submissions_total",
			Help:      "Submission attempts by variant and outcome code.",
		}, []string{"variant", "outcome"}),
		finalizations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "verification",
			Name:      "finalizations_total",
			Help:      "Finalized records by resulting status.",
		}, []string{"status"}),
		photoReviews: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "verification",
			Name:      "photo_reviews_total",
			Help:      "Completed photo reviews.",
		}),
		notificationFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "verification",
			Name:      "notification_failures_total",
			Help:      "Outcome notifications that failed on every channel.",
		}, []string{"kind"}),
		uploadDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "verification",
			Name:      "photo_upload_seconds",
			Help:      "Wall time to upload all photos of one submission.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) observeSubmission(variant string, err error) {
	if m == nil {
		return
	}
	outcome := "created"
	if err != nil {
		outcome = string(CodeOf(err))
	}
	m.submissions.WithLabelValues(variant, outcome).Inc()
}

func (m *Metrics) observeFinalize(status Status) {
	if m == nil {
		return
	}
	m.finalizations.WithLabelValues(string(status)).Inc()
}

func (m *Metrics) observePhotoReview() {
	if m == nil {
		return
	}
	m.photoReviews.Inc()
}

func (m *Metrics) observeNotificationFailure(kind string) {
	if m == nil {
		return
	}
	m.notificationFailures.WithLabelValues(kind).Inc()
}

func (m *Metrics) observeUpload(d time.Duration) {
	if m == nil {
		return
	}
	m.uploadDuration.Observe(d.Seconds())
}
