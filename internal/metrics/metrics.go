// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package metrics exposes bus and unit state as Prometheus metrics.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Thermoquad/vallostat/pkg/ihc"
	"github.com/Thermoquad/vallostat/pkg/vallox"
)

const namespace = "vallostat"

// NewRegistry creates a registry with the Go and process collectors
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler returns the HTTP handler serving reg
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// BusMetrics holds the daemon's metrics
type BusMetrics struct {
	Frames   *prometheus.CounterVec // labels: result
	Polls    *prometheus.CounterVec // labels: result=reply|timeout
	Sets     *prometheus.CounterVec // labels: variable
	Commands *prometheus.CounterVec // labels: result=ok|error|rate_limited

	Temperature *prometheus.GaugeVec // labels: sensor
	FanSpeed    prometheus.Gauge
	Humidity    prometheus.Gauge
	Flags       *prometheus.GaugeVec // labels: flag

	IHCStatus  prometheus.Gauge
	IHCOutputs *prometheus.GaugeVec // labels: module, port

	last vallox.Statistics
}

// NewBusMetrics registers and returns the bus metrics
func NewBusMetrics(reg prometheus.Registerer) *BusMetrics {
	m := &BusMetrics{
		Frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_total",
			Help:      "Frames seen on the bus by decode result.",
		}, []string{"result"}),
		Polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "polls_total",
			Help:      "Variable polls by outcome.",
		}, []string{"result"}),
		Sets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sets_total",
			Help:      "Variable writes by variable.",
		}, []string{"variable"}),
		Commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "MQTT commands by result.",
		}, []string{"result"}),
		Temperature: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "temperature_celsius",
			Help:      "Unit temperatures.",
		}, []string{"sensor"}),
		FanSpeed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "fan_speed",
			Help:      "Current fan speed step (1-8).",
		}),
		Humidity: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "humidity_percent",
			Help:      "Relative humidity.",
		}),
		Flags: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "flag",
			Help:      "Status flags (1 = set).",
		}, []string{"flag"}),
		IHCStatus: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ihc_status",
			Help:      "IHC link status (1 = replying, -1 = stale).",
		}),
		IHCOutputs: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ihc_output",
			Help:      "IHC output states.",
		}, []string{"module", "port"}),
	}
	reg.MustRegister(m.Frames, m.Polls, m.Sets, m.Commands,
		m.Temperature, m.FanSpeed, m.Humidity, m.Flags, m.IHCStatus, m.IHCOutputs)
	return m
}

// ObserveStatistics adds the counter deltas since the previous call.
// A reset of s is treated as starting over from zero.
func (m *BusMetrics) ObserveStatistics(s *vallox.Statistics) {
	if s.TotalFrames < m.last.TotalFrames {
		m.last = vallox.Statistics{}
	}

	add := func(vec *prometheus.CounterVec, label string, cur, prev uint64) {
		if cur > prev {
			vec.WithLabelValues(label).Add(float64(cur - prev))
		}
	}
	add(m.Frames, "valid", s.ValidFrames, m.last.ValidFrames)
	add(m.Frames, "checksum", s.ChecksumErrors, m.last.ChecksumErrors)
	add(m.Frames, "address", s.AddressRejects, m.last.AddressRejects)
	add(m.Frames, "decode", s.DecodeErrors, m.last.DecodeErrors)
	add(m.Frames, "unknown_variable", s.UnknownVariables, m.last.UnknownVariables)
	add(m.Frames, "anomalous", s.AnomalousValues, m.last.AnomalousValues)
	add(m.Polls, "reply", s.PollReplies, m.last.PollReplies)
	add(m.Polls, "timeout", s.PollTimeouts, m.last.PollTimeouts)

	m.last = *s
}

// ObserveState sets the gauges from a snapshot. Unknown values are left alone.
func (m *BusMetrics) ObserveState(s vallox.State) {
	temps := map[string]*int{
		"outside":  s.TempOutside,
		"inside":   s.TempInside,
		"exhaust":  s.TempExhaust,
		"incoming": s.TempIncoming,
	}
	for sensor, v := range temps {
		if v != nil {
			m.Temperature.WithLabelValues(sensor).Set(float64(*v))
		}
	}
	if s.FanSpeed != nil {
		m.FanSpeed.Set(float64(*s.FanSpeed))
	}
	if s.Rh != nil {
		m.Humidity.Set(float64(*s.Rh))
	}

	flags := map[string]*bool{
		"on":             s.On,
		"rh_mode":        s.RhMode,
		"heating_mode":   s.HeatingMode,
		"summer_mode":    s.SummerMode,
		"filter":         s.Filter,
		"heating":        s.Heating,
		"fault":          s.Fault,
		"service_needed": s.ServiceNeeded,
	}
	for name, v := range flags {
		if v == nil {
			continue
		}
		val := 0.0
		if *v {
			val = 1
		}
		m.Flags.WithLabelValues(name).Set(val)
	}
}

// ObserveIHC records the IHC link status and the given points
func (m *BusMetrics) ObserveIHC(status int, ios []*ihc.IO) {
	m.IHCStatus.Set(float64(status))
	for _, io := range ios {
		val := 0.0
		if io.State() {
			val = 1
		}
		m.IHCOutputs.WithLabelValues(strconv.Itoa(io.Module()), strconv.Itoa(io.Port())).Set(val)
	}
}
