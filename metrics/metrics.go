// Package metrics wires RequestEngine's perf counters (spec.md §4.6: "bytes
// sent/received, thread state, queue rates") into Prometheus, the metrics
// library carried from the rest of the example pack.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Collector implements reqengine.Recorder against a dedicated Prometheus
// registry, labeled by host so per-endpoint dashboards/alerts are possible
// without the caller doing any label plumbing itself.
type Collector struct {
	bytesSent     *prometheus.CounterVec
	bytesReceived *prometheus.CounterVec
	retries       *prometheus.CounterVec
	failures      *prometheus.CounterVec
}

// NewCollector registers this client's metrics on reg and returns a
// Collector ready to pass as an Engine's Recorder.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		bytesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ecs_client",
			Name:      "bytes_sent_total",
			Help:      "Bytes sent to ECS, by host.",
		}, []string{"host"}),
		bytesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ecs_client",
			Name:      "bytes_received_total",
			Help:      "Bytes received from ECS, by host.",
		}, []string{"host"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ecs_client",
			Name:      "request_retries_total",
			Help:      "Request retry/failover cycles, by host.",
		}, []string{"host"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ecs_client",
			Name:      "request_failures_total",
			Help:      "Requests that exhausted retries or failed terminally, by host.",
		}, []string{"host"}),
	}
	reg.MustRegister(c.bytesSent, c.bytesReceived, c.retries, c.failures)
	return c
}

func (c *Collector) BytesSent(host string, n int64)     { c.bytesSent.WithLabelValues(host).Add(float64(n)) }
func (c *Collector) BytesReceived(host string, n int64) { c.bytesReceived.WithLabelValues(host).Add(float64(n)) }
func (c *Collector) RequestRetried(host string)         { c.retries.WithLabelValues(host).Inc() }
func (c *Collector) RequestFailed(host string)          { c.failures.WithLabelValues(host).Inc() }
