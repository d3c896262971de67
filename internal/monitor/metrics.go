package monitor

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cme-labs/cme-init/pkg/logger"
)

var (
	// StageTransitions counts boot pipeline stage entries, partitioned by stage.
	StageTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cmeinit_boot_stage_total",
		Help: "Boot pipeline stage entries",
	}, []string{"stage"})

	// HoldDuration tracks measured reset-button hold durations in seconds.
	HoldDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cmeinit_reset_hold_seconds",
		Help:    "Reset button hold duration",
		Buckets: []float64{0.1, 0.5, 1, 3, 8, 15, 30},
	})

	// ResetIntents counts emitted reset intents, partitioned by kind.
	ResetIntents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cmeinit_reset_intents_total",
		Help: "Reset intents emitted by the hold classifier",
	}, []string{"intent"})

	// ServiceExits counts supervised service terminations, partitioned by service.
	ServiceExits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cmeinit_service_exits_total",
		Help: "Supervised service terminations",
	}, []string{"service"})

	// LaunchOutcomes counts supervisor launch attempts, partitioned by outcome.
	LaunchOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cmeinit_launches_total",
		Help: "Service group launch attempts by outcome",
	}, []string{"outcome"})
)

// InitMetrics registers the controller's metrics and starts an HTTP server
// exposing them on addr (e.g. ":9090").
func InitMetrics(addr string) {
	prometheus.MustRegister(StageTransitions)
	prometheus.MustRegister(HoldDuration)
	prometheus.MustRegister(ResetIntents)
	prometheus.MustRegister(ServiceExits)
	prometheus.MustRegister(LaunchOutcomes)

	go func() {
		http.Handle("/metrics", promhttp.Handler())
		logger.Log.Info("Metrics server starting", "addr", addr)
		if err := http.ListenAndServe(addr, nil); err != nil {
			logger.Log.Error("Metrics server failed", "err", err)
		}
	}()
}
