package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var authTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "vendora",
	Subsystem: "gateway",
	Name:      "auth_total",
	Help:      "Auth endpoint outcomes by operation.",
}, []string{"op", "outcome"})
