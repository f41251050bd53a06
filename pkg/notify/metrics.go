package notify

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// pushesTotal tracks handled push events by result
	pushesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offline_pushes_total",
			Help: "Total push events handled by result",
		},
		[]string{"result"}, // "displayed", "error"
	)

	// clicksTotal tracks notification clicks by resolution
	clicksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offline_notification_clicks_total",
			Help: "Total notification clicks by resolution",
		},
		[]string{"result"}, // "focused", "opened", "error"
	)
)
