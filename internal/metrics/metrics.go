package metrics

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "holehe_bot"

// Metrics 机器人运行指标，使用独立的 Registry，便于测试中多次创建
type Metrics struct {
	registry *prometheus.Registry

	lookupsTotal   *prometheus.CounterVec
	lookupDuration prometheus.Histogram
	hitsTotal      *prometheus.CounterVec
	inflight       prometheus.Gauge
	toolAvailable  prometheus.Gauge

	toolOK atomic.Bool
}

func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.lookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lookups_total",
			Help:      "Total number of email lookups by outcome",
		},
		[]string{"outcome"},
	)
	m.lookupDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "lookup_duration_seconds",
			Help:      "Wall-clock duration of holehe runs",
			Buckets:   []float64{1, 2, 5, 10, 20, 30, 60, 120, 300},
		},
	)
	m.hitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hits_total",
			Help:      "Total number of parsed hit lines by kind",
		},
		[]string{"kind"},
	)
	m.inflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "lookups_inflight",
			Help:      "Number of lookups currently running",
		},
	)
	m.toolAvailable = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tool_available",
			Help:      "Whether the holehe executable was found by the last health check",
		},
	)

	m.registry.MustRegister(
		m.lookupsTotal,
		m.lookupDuration,
		m.hitsTotal,
		m.inflight,
		m.toolAvailable,
	)
	return m
}

// Registry 返回指标注册表
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// LookupStarted 标记一次查询开始，返回的函数在结束时以结果分类调用
func (m *Metrics) LookupStarted() func(outcome string) {
	m.inflight.Inc()
	return func(outcome string) {
		m.inflight.Dec()
		m.lookupsTotal.WithLabelValues(outcome).Inc()
	}
}

// ObserveRun 记录一次 holehe 进程的运行时长
func (m *Metrics) ObserveRun(elapsed time.Duration) {
	m.lookupDuration.Observe(elapsed.Seconds())
}

// ObserveHits 记录解析出的命中数量
func (m *Metrics) ObserveHits(sites, extras int) {
	m.hitsTotal.WithLabelValues("site").Add(float64(sites))
	m.hitsTotal.WithLabelValues("extra").Add(float64(extras))
}

// SetToolAvailable 记录健康检查结果
func (m *Metrics) SetToolAvailable(ok bool) {
	m.toolOK.Store(ok)
	if ok {
		m.toolAvailable.Set(1)
	} else {
		m.toolAvailable.Set(0)
	}
}

// ToolAvailable 最近一次健康检查是否找到 holehe
func (m *Metrics) ToolAvailable() bool {
	return m.toolOK.Load()
}
