package service

import "github.com/prometheus/client_golang/prometheus"

var (
	accountEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "accounts_events_total", Help: "Account lifecycle events"},
		[]string{"event"},
	)
	guardDenials = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "accounts_guard_denials_total", Help: "Operations refused by the authorization guard"},
		[]string{"op", "reason"},
	)
)

func init() { prometheus.MustRegister(accountEvents, guardDenials) }
