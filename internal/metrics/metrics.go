package metrics

import (
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"echo-server/pkg/log"
)

// Metrics 回显循环的运行统计
// nil *Metrics 是合法的空实现，所有方法都不做任何事。
type Metrics struct {
	registry *prometheus.Registry

	accepted     prometheus.Counter
	acceptErrors prometheus.Counter
	hangups      prometheus.Counter
	dropped      prometheus.Counter
	bytes        prometheus.Counter
	fatal        *prometheus.CounterVec
	active       prometheus.Gauge
	maxFD        prometheus.Gauge
}

// New 创建并注册指标，node 作为固定标签
func New(node string) *Metrics {
	labels := prometheus.Labels{"node": node}
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		accepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "echo_accepted_total",
			Help:        "Connections accepted on the listening socket",
			ConstLabels: labels,
		}),
		acceptErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "echo_accept_errors_total",
			Help:        "Failed accept attempts",
			ConstLabels: labels,
		}),
		hangups: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "echo_hangups_total",
			Help:        "Connections closed after an orderly end-of-stream",
			ConstLabels: labels,
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "echo_dropped_total",
			Help:        "Connections dropped by the error policy",
			ConstLabels: labels,
		}),
		bytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "echo_bytes_total",
			Help:        "Bytes echoed back to clients",
			ConstLabels: labels,
		}),
		fatal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "echo_fatal_total",
			Help:        "Fatal loop terminations by reason",
			ConstLabels: labels,
		}, []string{"reason"}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "echo_active_connections",
			Help:        "Client connections currently in the connection set",
			ConstLabels: labels,
		}),
		maxFD: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "echo_max_descriptor",
			Help:        "Highest descriptor value tracked by the loop",
			ConstLabels: labels,
		}),
	}

	m.registry.MustRegister(m.accepted, m.acceptErrors, m.hangups, m.dropped,
		m.bytes, m.fatal, m.active, m.maxFD)
	return m
}

// Registry 返回私有注册表
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Accepted 记录一次成功的 accept
func (m *Metrics) Accepted() {
	if m == nil {
		return
	}
	m.accepted.Inc()
	m.active.Inc()
}

// AcceptFailed 记录一次失败的 accept
func (m *Metrics) AcceptFailed() {
	if m == nil {
		return
	}
	m.acceptErrors.Inc()
}

// HungUp 记录一次对端正常关闭
func (m *Metrics) HungUp() {
	if m == nil {
		return
	}
	m.hangups.Inc()
	m.active.Dec()
}

// Dropped 记录一次由策略主动丢弃的连接
func (m *Metrics) Dropped() {
	if m == nil {
		return
	}
	m.dropped.Inc()
	m.active.Dec()
}

// Echoed 记录回显字节数
func (m *Metrics) Echoed(n int) {
	if m == nil {
		return
	}
	m.bytes.Add(float64(n))
}

// Fatal 记录一次致命退出
func (m *Metrics) Fatal(reason string) {
	if m == nil {
		return
	}
	m.fatal.WithLabelValues(reason).Inc()
}

// MaxDescriptor 更新描述符高水位
func (m *Metrics) MaxDescriptor(fd int) {
	if m == nil {
		return
	}
	m.maxFD.Set(float64(fd))
}

// Serve 在 addr 上暴露 /metrics，返回实际监听地址
// HTTP 服务运行在独立的 goroutine 中，只读取指标，不接触回显循环的套接字。
func (m *Metrics) Serve(addr string) (net.Addr, error) {
	if m == nil {
		return nil, errors.New("metrics disabled")
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %v", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux}

	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Errorf("Metrics server stopped: %v", err)
		}
	}()

	log.Infof("Metrics available at http://%s/metrics", ln.Addr())
	return ln.Addr(), nil
}
