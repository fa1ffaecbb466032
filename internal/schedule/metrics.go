package schedule

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var bookingsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "suggestbot_bookings_total",
	Help: "Number of publications booked, by slot",
}, []string{"slot"})

var armedPublications = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "suggestbot_publications_armed",
	Help: "Publications waiting for their time",
})
