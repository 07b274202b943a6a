// Package metrics 聚合编队运行指标并暴露 Prometheus 采集端点。
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 队列标签取值
const (
	QueueReconnect    = "reconnect"
	QueueConfirmation = "confirmation"
)

// FleetMetrics 编队指标集合，挂在独立的 Registry 上
type FleetMetrics struct {
	registry *prometheus.Registry

	botsOnline    prometheus.Gauge
	botsTotal     prometheus.Gauge
	queueDepth    *prometheus.GaugeVec
	connects      *prometheus.CounterVec
	confirmations *prometheus.CounterVec
	httpRequests  *prometheus.CounterVec
}

// New 创建指标集合并完成注册
func New() *FleetMetrics {
	m := &FleetMetrics{
		registry: prometheus.NewRegistry(),
		botsOnline: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "fleet",
			Name:      "bots_online",
			Help:      "Number of bots with a live platform connection.",
		}),
		botsTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "fleet",
			Name:      "bots_total",
			Help:      "Number of enabled bots in the fleet.",
		}),
		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "fleet",
			Name:      "pending_queue_depth",
			Help:      "Depth of the pending work queues.",
		}, []string{"queue"}),
		connects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fleet",
			Name:      "connect_attempts_total",
			Help:      "Login attempts by result.",
		}, []string{"result"}),
		confirmations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fleet",
			Name:      "confirmations_total",
			Help:      "Confirmation accept attempts by result.",
		}, []string{"result"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fleet",
			Name:      "http_requests_total",
			Help:      "Control API requests by method and status code.",
		}, []string{"method", "status"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.botsOnline,
		m.botsTotal,
		m.queueDepth,
		m.connects,
		m.confirmations,
		m.httpRequests,
	)
	return m
}

// Registry 返回底层 Registry
func (m *FleetMetrics) Registry() *prometheus.Registry { return m.registry }

// Handler 返回采集端点的 HTTP 处理器
func (m *FleetMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// SetFleetSize 更新编队规模
func (m *FleetMetrics) SetFleetSize(online, total int) {
	m.botsOnline.Set(float64(online))
	m.botsTotal.Set(float64(total))
}

// SetQueueDepth 更新队列深度
func (m *FleetMetrics) SetQueueDepth(queue string, depth int) {
	m.queueDepth.WithLabelValues(queue).Set(float64(depth))
}

// ObserveConnect 记录一次登录尝试
func (m *FleetMetrics) ObserveConnect(err error) {
	m.connects.WithLabelValues(resultLabel(err)).Inc()
}

// ObserveConfirmation 记录一次确认批准尝试
func (m *FleetMetrics) ObserveConfirmation(err error) {
	m.confirmations.WithLabelValues(resultLabel(err)).Inc()
}

// ObserveRequest 记录一次控制接口请求
func (m *FleetMetrics) ObserveRequest(method string, status int) {
	m.httpRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
