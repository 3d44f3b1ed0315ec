package dispatcher

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	postsDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "postloom_posts_dispatched_total",
		Help: "Posts finalized by the dispatcher, labeled by resulting status.",
	}, []string{"status"})

	publishAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "postloom_publish_attempts_total",
		Help: "Individual platform publish calls, labeled by platform and result.",
	}, []string{"platform", "result"})

	claimConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "postloom_claim_conflicts_total",
		Help: "Claim attempts lost to a concurrent dispatcher or manual publish.",
	})

	cycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "postloom_dispatch_cycle_seconds",
		Help:    "Wall time of one scan-claim-publish cycle.",
		Buckets: prometheus.DefBuckets,
	})
)

func attemptResult(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
