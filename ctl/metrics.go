package ctl

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	commands      *prometheus.CounterVec
	activeRoutes  prometheus.Gauge
	pointLocks    prometheus.Gauge
	reloads       *prometheus.CounterVec
	parseWarnings prometheus.Gauge
	invalidRoutes prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer) *metrics {
	f := promauto.With(reg)
	return &metrics{
		commands: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rendo_commands_total",
			Help: "Operator commands dispatched, by kind and result.",
		}, []string{"kind", "result"}),
		activeRoutes: f.NewGauge(prometheus.GaugeOpts{
			Name: "rendo_active_routes",
			Help: "Train routes currently holding locks.",
		}),
		pointLocks: f.NewGauge(prometheus.GaugeOpts{
			Name: "rendo_point_locks",
			Help: "Points currently locked.",
		}),
		reloads: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rendo_reloads_total",
			Help: "Station reloads, by result.",
		}, []string{"result"}),
		parseWarnings: f.NewGauge(prometheus.GaugeOpts{
			Name: "rendo_parse_warnings",
			Help: "Warnings from the last successful station parse.",
		}),
		invalidRoutes: f.NewGauge(prometheus.GaugeOpts{
			Name: "rendo_invalid_routes",
			Help: "Routes the last validation rejected.",
		}),
	}
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
