package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/pulsewatch/pulsewatch/internal/domain"
)

type Metrics struct {
	ChecksTotal           *prometheus.CounterVec
	CheckDurationSeconds  prometheus.Histogram
	ProbeFallbackTotal    prometheus.Counter
	NotificationsTotal    *prometheus.CounterVec
	RetentionDeletedTotal *prometheus.CounterVec
	ServiceStatus         *prometheus.GaugeVec
}

type Bundle struct {
	Registry *prometheus.Registry
	Metrics  *Metrics
}

func NewBundle() *Bundle {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		ChecksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pulsewatch_checks_total",
				Help: "Service checks executed, labeled by resulting status.",
			},
			[]string{"status"},
		),
		CheckDurationSeconds: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "pulsewatch_check_duration_seconds",
				Help:    "End-to-end duration of one service check (probe through persist).",
				Buckets: prometheus.DefBuckets,
			},
		),
		ProbeFallbackTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "pulsewatch_probe_fallback_total",
				Help: "Checks where the multi-region backend failed and the local fallback probe was used.",
			},
		),
		NotificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pulsewatch_notifications_total",
				Help: "Notification deliveries, labeled by channel and result.",
			},
			[]string{"channel", "result"},
		),
		RetentionDeletedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pulsewatch_retention_deleted_total",
				Help: "Rows removed by the retention sweeper, labeled by kind.",
			},
			[]string{"kind"},
		),
		ServiceStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pulsewatch_service_status",
				Help: "Current aggregate status per service (0=up, 1=degraded, 2=down).",
			},
			[]string{"service_id", "tenant"},
		),
	}

	reg.MustRegister(
		m.ChecksTotal,
		m.CheckDurationSeconds,
		m.ProbeFallbackTotal,
		m.NotificationsTotal,
		m.RetentionDeletedTotal,
		m.ServiceStatus,
	)

	return &Bundle{Registry: reg, Metrics: m}
}

// StatusValue maps a status onto the gauge scale.
func StatusValue(s domain.ServiceStatus) float64 {
	switch s {
	case domain.StatusDegraded:
		return 1
	case domain.StatusDown:
		return 2
	default:
		return 0
	}
}
