package publish

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var publicationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "suggestbot_publications_total",
	Help: "Publication attempts by result",
}, []string{"status"})

var publishDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "suggestbot_publish_duration_sec",
	Help:    "Time spent handing a photo to the channel",
	Buckets: prometheus.DefBuckets,
})
