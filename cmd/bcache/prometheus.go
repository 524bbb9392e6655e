package main

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/bcache"
)

// PrometheusCollector exports cache metrics to Prometheus.
type PrometheusCollector struct {
	reads    *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	recycles prometheus.Counter
	steals   *prometheus.CounterVec
	faults   *prometheus.CounterVec
}

var _ bcache.MetricsCollector = (*PrometheusCollector)(nil)

// NewPrometheusCollector creates the collector and registers it with reg.
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	p := &PrometheusCollector{
		reads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bcache_reads_total",
			Help: "Block reads by result",
		}, []string{"result"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bcache_operation_latency_seconds",
			Help:    "Latency of cache operations",
			Buckets: prometheus.DefBuckets,
		}, []string{"op", "status"}),
		recycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bcache_recycles_total",
			Help: "Buffers reassigned to a new block",
		}),
		steals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bcache_steals_total",
			Help: "Buffers moved between shards, by destination shard",
		}, []string{"shard"}),
		faults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bcache_faults_total",
			Help: "Unrecoverable cache faults",
		}, []string{"op"}),
	}

	reg.MustRegister(p.reads, p.latency, p.recycles, p.steals, p.faults)
	return p
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordRead implements bcache.MetricsCollector.
func (p *PrometheusCollector) RecordRead(hit bool, d time.Duration, err error) {
	result := "miss"
	switch {
	case err != nil:
		result = "error"
	case hit:
		result = "hit"
	}
	p.reads.WithLabelValues(result).Inc()
	p.latency.WithLabelValues("read", status(err)).Observe(d.Seconds())
}

// RecordWrite implements bcache.MetricsCollector.
func (p *PrometheusCollector) RecordWrite(d time.Duration, err error) {
	p.latency.WithLabelValues("write", status(err)).Observe(d.Seconds())
}

// RecordRecycle implements bcache.MetricsCollector.
func (p *PrometheusCollector) RecordRecycle() {
	p.recycles.Inc()
}

// RecordSteal implements bcache.MetricsCollector.
func (p *PrometheusCollector) RecordSteal(_, dst int) {
	p.steals.WithLabelValues(strconv.Itoa(dst)).Inc()
}

// RecordFault implements bcache.MetricsCollector.
func (p *PrometheusCollector) RecordFault(op string) {
	p.faults.WithLabelValues(op).Inc()
}

// teeCollector fans metrics out to several collectors.
type teeCollector []bcache.MetricsCollector

func (t teeCollector) RecordRead(hit bool, d time.Duration, err error) {
	for _, c := range t {
		c.RecordRead(hit, d, err)
	}
}

func (t teeCollector) RecordWrite(d time.Duration, err error) {
	for _, c := range t {
		c.RecordWrite(d, err)
	}
}

func (t teeCollector) RecordRecycle() {
	for _, c := range t {
		c.RecordRecycle()
	}
}

func (t teeCollector) RecordSteal(donor, dst int) {
	for _, c := range t {
		c.RecordSteal(donor, dst)
	}
}

func (t teeCollector) RecordFault(op string) {
	for _, c := range t {
		c.RecordFault(op)
	}
}
