package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "feedctx"

// Refresh outcomes.
const (
	RefreshSuccess     = "success"
	RefreshNotModified = "not_modified"
	RefreshError       = "error"
)

// Metrics methods are safe to call on a nil receiver.
type Metrics struct {
	feedRefreshes    *prometheus.CounterVec
	refreshDuration  prometheus.Histogram
	articlesIngested prometheus.Counter
	articlesPurged   prometheus.Counter
	mentions         *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		feedRefreshes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_refreshes_total",
			Help:      "Feed refreshes by outcome.",
		}, []string{"result"}),
		refreshDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "feed_refresh_duration_seconds",
			Help:      "Duration of single feed refreshes.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		articlesIngested: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "articles_ingested_total",
			Help:      "Articles stored for the first time.",
		}),
		articlesPurged: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "articles_purged_total",
			Help:      "Articles removed by the retention sweep.",
		}),
		mentions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mentions_total",
			Help:      "Processed chat messages containing a feed mention, by outcome.",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) ObserveRefresh(result string, newArticles int, d time.Duration) {
	if m == nil {
		return
	}

	m.feedRefreshes.WithLabelValues(result).Inc()
	m.refreshDuration.Observe(d.Seconds())
	if newArticles > 0 {
		m.articlesIngested.Add(float64(newArticles))
	}
}

func (m *Metrics) ObservePurge(n int64) {
	if m == nil || n <= 0 {
		return
	}

	m.articlesPurged.Add(float64(n))
}

func (m *Metrics) ObserveMention(outcome string) {
	if m == nil {
		return
	}

	m.mentions.WithLabelValues(outcome).Inc()
}
