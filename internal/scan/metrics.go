package scan

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	scansAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scans_accepted_total",
		Help: "QR scans admitted and written as attendance.",
	})
	scansRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scans_rejected_total",
		Help: "QR scans rejected, by reason.",
	}, []string{"reason"})
)
