// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vallox

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"
	"gopkg.in/yaml.v3"
)

// State is a point-in-time copy of the cache. Unknown values are nil.
type State struct {
	Updated time.Time `json:"updated" yaml:"updated" cbor:"1,keyasint"`

	On            *bool `json:"on,omitempty" yaml:"on,omitempty" cbor:"2,keyasint,omitempty"`
	RhMode        *bool `json:"rh_mode,omitempty" yaml:"rh_mode,omitempty" cbor:"3,keyasint,omitempty"`
	HeatingMode   *bool `json:"heating_mode,omitempty" yaml:"heating_mode,omitempty" cbor:"4,keyasint,omitempty"`
	SummerMode    *bool `json:"summer_mode,omitempty" yaml:"summer_mode,omitempty" cbor:"5,keyasint,omitempty"`
	Filter        *bool `json:"filter,omitempty" yaml:"filter,omitempty" cbor:"6,keyasint,omitempty"`
	Heating       *bool `json:"heating,omitempty" yaml:"heating,omitempty" cbor:"7,keyasint,omitempty"`
	Fault         *bool `json:"fault,omitempty" yaml:"fault,omitempty" cbor:"8,keyasint,omitempty"`
	ServiceNeeded *bool `json:"service_needed,omitempty" yaml:"service_needed,omitempty" cbor:"9,keyasint,omitempty"`

	FanSpeed        *int `json:"fan_speed,omitempty" yaml:"fan_speed,omitempty" cbor:"10,keyasint,omitempty"`
	DefaultFanSpeed *int `json:"default_fan_speed,omitempty" yaml:"default_fan_speed,omitempty" cbor:"11,keyasint,omitempty"`
	Rh              *int `json:"rh,omitempty" yaml:"rh,omitempty" cbor:"12,keyasint,omitempty"`
	ServicePeriod   *int `json:"service_period,omitempty" yaml:"service_period,omitempty" cbor:"13,keyasint,omitempty"`
	ServiceCounter  *int `json:"service_counter,omitempty" yaml:"service_counter,omitempty" cbor:"14,keyasint,omitempty"`
	HeatingTarget   *int `json:"heating_target,omitempty" yaml:"heating_target,omitempty" cbor:"15,keyasint,omitempty"`
	TempOutside     *int `json:"temp_outside,omitempty" yaml:"temp_outside,omitempty" cbor:"16,keyasint,omitempty"`
	TempInside      *int `json:"temp_inside,omitempty" yaml:"temp_inside,omitempty" cbor:"17,keyasint,omitempty"`
	TempExhaust     *int `json:"temp_exhaust,omitempty" yaml:"temp_exhaust,omitempty" cbor:"18,keyasint,omitempty"`
	TempIncoming    *int `json:"temp_incoming,omitempty" yaml:"temp_incoming,omitempty" cbor:"19,keyasint,omitempty"`
}

// Snapshot copies the cache into a State
func (c *Cache) Snapshot() State {
	b := func(f Field) *bool {
		if !c.IsSet(f) {
			return nil
		}
		v := c.flag(f)
		return &v
	}
	i := func(f Field) *int {
		if !c.IsSet(f) {
			return nil
		}
		v := c.values[f]
		return &v
	}

	return State{
		Updated:         c.updated,
		On:              b(FieldOn),
		RhMode:          b(FieldRhMode),
		HeatingMode:     b(FieldHeatingMode),
		SummerMode:      b(FieldSummerMode),
		Filter:          b(FieldFilter),
		Heating:         b(FieldHeating),
		Fault:           b(FieldFault),
		ServiceNeeded:   b(FieldService),
		FanSpeed:        i(FieldFanSpeed),
		DefaultFanSpeed: i(FieldDefaultFanSpeed),
		Rh:              i(FieldRh),
		ServicePeriod:   i(FieldServicePeriod),
		ServiceCounter:  i(FieldServiceCounter),
		HeatingTarget:   i(FieldHeatingTarget),
		TempOutside:     i(FieldTempOutside),
		TempInside:      i(FieldTempInside),
		TempExhaust:     i(FieldTempExhaust),
		TempIncoming:    i(FieldTempIncoming),
	}
}

// Supported State encodings
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatCBOR = "cbor"
)

// EncodeState serializes a state as json, yaml or cbor
func EncodeState(s State, format string) ([]byte, error) {
	switch strings.ToLower(format) {
	case FormatJSON:
		return json.MarshalIndent(s, "", "  ")
	case FormatYAML:
		return yaml.Marshal(s)
	case FormatCBOR:
		return cbor.Marshal(s)
	default:
		return nil, fmt.Errorf("unsupported state format %q", format)
	}
}

// DecodeState parses a state produced by EncodeState
func DecodeState(data []byte, format string) (State, error) {
	var s State
	var err error
	switch strings.ToLower(format) {
	case FormatJSON:
		err = json.Unmarshal(data, &s)
	case FormatYAML:
		err = yaml.Unmarshal(data, &s)
	case FormatCBOR:
		err = cbor.Unmarshal(data, &s)
	default:
		err = fmt.Errorf("unsupported state format %q", format)
	}
	return s, err
}

// FormatState renders the cache as an aligned text table
func FormatState(c *Cache) string {
	var sb strings.Builder
	updated := "never"
	if !c.Updated().IsZero() {
		updated = c.Updated().Format("2006-01-02 15:04:05")
	}
	fmt.Fprintf(&sb, "%-18s %s\n", "updated", updated)
	for _, f := range Fields() {
		fmt.Fprintf(&sb, "%-18s %s\n", f.String(), FormatField(f, c.Get(f)))
	}
	return sb.String()
}
