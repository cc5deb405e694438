// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package influx

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/Thermoquad/vallostat/pkg/ihc"
	"github.com/Thermoquad/vallostat/pkg/vallox"
)

// Measurement names
const (
	MeasurementUnit = "vallox"
	MeasurementIHC  = "ihc_io"
)

// StatePoint builds the unit measurement from a snapshot. Unknown values
// are omitted; nil is returned when nothing is known yet.
func StatePoint(device string, s vallox.State, ts time.Time) *write.Point {
	fields := make(map[string]interface{})

	ints := map[string]*int{
		"temp_outside":    s.TempOutside,
		"temp_inside":     s.TempInside,
		"temp_exhaust":    s.TempExhaust,
		"temp_incoming":   s.TempIncoming,
		"fan_speed":       s.FanSpeed,
		"rh":              s.Rh,
		"heating_target":  s.HeatingTarget,
		"service_counter": s.ServiceCounter,
	}
	for k, v := range ints {
		if v != nil {
			fields[k] = *v
		}
	}

	bools := map[string]*bool{
		"on":      s.On,
		"heating": s.Heating,
		"filter":  s.Filter,
		"fault":   s.Fault,
	}
	for k, v := range bools {
		if v != nil {
			fields[k] = *v
		}
	}

	if len(fields) == 0 {
		return nil
	}
	return write.NewPoint(MeasurementUnit, map[string]string{"device": device}, fields, ts)
}

// IOPoint builds a point for one IHC input or output
func IOPoint(io *ihc.IO, ts time.Time) *write.Point {
	kind := "input"
	if io.IsOutput() {
		kind = "output"
	}
	return write.NewPoint(
		MeasurementIHC,
		map[string]string{
			"name":   io.Name(),
			"module": strconv.Itoa(io.Module()),
			"port":   strconv.Itoa(io.Port()),
			"kind":   kind,
		},
		map[string]interface{}{"state": io.State()},
		ts,
	)
}

// WriteState queues the unit state. Non-blocking; batched.
func (c *Client) WriteState(s vallox.State) {
	if !c.IsConnected() {
		return
	}
	if p := StatePoint(c.cfg.Device, s, time.Now()); p != nil {
		c.writeAPI.WritePoint(p)
	}
}

// WriteIOs queues the state of the given IHC points
func (c *Client) WriteIOs(ios []*ihc.IO) {
	if !c.IsConnected() {
		return
	}
	now := time.Now()
	for _, io := range ios {
		c.writeAPI.WritePoint(IOPoint(io, now))
	}
}
