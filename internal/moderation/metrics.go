package moderation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var submissionsReceived = promauto.NewCounter(prometheus.CounterOpts{
	Name: "suggestbot_submissions_received",
	Help: "Number of photos submitted for moderation",
})

var pendingSubmissions = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "suggestbot_submissions_pending",
	Help: "Submissions currently under review",
})

var votesCast = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "suggestbot_votes_cast",
	Help: "Number of recorded reviewer votes",
}, []string{"decision"})

var submissionsResolved = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "suggestbot_submissions_resolved",
	Help: "Number of submissions leaving review",
}, []string{"state"})

var deliveryFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "suggestbot_delivery_failures",
	Help: "Per-recipient delivery failures during fan-out",
}, []string{"op"})
