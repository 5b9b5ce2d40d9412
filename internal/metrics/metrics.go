package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector 服务指标
// 所有方法对 nil Collector 安全（测试中可不注入）
type Collector struct {
	registry *prometheus.Registry

	AlertsTotal         *prometheus.CounterVec
	NotifierSendsTotal  *prometheus.CounterVec
	FallAlarmActive     prometheus.Gauge
	SchedulerTicksTotal prometheus.Counter
	ActiveSessions      prometheus.Gauge
}

// NewCollector 创建指标收集器（独立 registry，避免重复注册）
func NewCollector(namespace string) *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,

		AlertsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "dispatched_total",
			Help:      "Total alerts appended to the event log by kind.",
		}, []string{"kind"}),

		NotifierSendsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifier",
			Name:      "sends_total",
			Help:      "Outbound channel sends by channel and outcome.",
		}, []string{"channel", "outcome"}),

		FallAlarmActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "fall_alarm",
			Name:      "active",
			Help:      "1 while the fall alarm of the current session is active.",
		}),

		SchedulerTicksTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "ticks_total",
			Help:      "Total reminder scheduler evaluations.",
		}),

		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "active",
			Help:      "1 while a user session is open.",
		}),
	}
}

// Handler /metrics 处理器
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) ObserveAlert(kind string) {
	if c == nil {
		return
	}
	c.AlertsTotal.WithLabelValues(kind).Inc()
}

func (c *Collector) ObserveSend(channel string, err error) {
	if c == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	c.NotifierSendsTotal.WithLabelValues(channel, outcome).Inc()
}

func (c *Collector) SetFallAlarmActive(active bool) {
	if c == nil {
		return
	}
	if active {
		c.FallAlarmActive.Set(1)
	} else {
		c.FallAlarmActive.Set(0)
	}
}

func (c *Collector) ObserveTick() {
	if c == nil {
		return
	}
	c.SchedulerTicksTotal.Inc()
}

func (c *Collector) SetSessionActive(active bool) {
	if c == nil {
		return
	}
	if active {
		c.ActiveSessions.Set(1)
	} else {
		c.ActiveSessions.Set(0)
	}
}
