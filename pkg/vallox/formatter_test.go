// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vallox

import (
	"strings"
	"testing"
	"time"
)

func TestFormatFrame(t *testing.T) {
	ts := time.Date(2025, 1, 1, 8, 30, 15, 250_000_000, time.UTC)

	tests := []struct {
		name     string
		frame    Frame
		contains []string
	}{
		{"poll", NewPollFrame(VarFanSpeed), []string{"[08:30:15.250]", "PANEL_1 -> MAINBOARD_1", "POLL FAN_SPEED (0x29)"}},
		{"fan speed", broadcast(VarFanSpeed, 0x07), []string{"MAINBOARD_1 -> PANELS", "FAN_SPEED (0x29) = 0x07", "speed=3"}},
		{"temperature", broadcast(VarTempInside, 0xA0), []string{"T_INSIDE", "temp=20°C"}},
		{"status", broadcast(VarStatus, StatusPower|StatusRh), []string{"STATUS", "[POWER|RH]"}},
		{"summer", broadcast(VarIO08, IO08SummerMode), []string{"IO_08", "summer_mode=true"}},
		{"bad rh", broadcast(VarRh, 10), []string{"rh=n/a"}},
		{"unknown", NewFrame(0x22, 0x12, 0x71, 0x01), []string{"0x22 -> 0x12", "UNKNOWN (0x71)"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := FormatFrame(tt.frame, ts)
			for _, want := range tt.contains {
				if !strings.Contains(out, want) {
					t.Errorf("Expected %q in %q", want, out)
				}
			}
		})
	}
}

func TestFormatHex(t *testing.T) {
	if got := FormatHex(NewPollFrame(VarFanSpeed)); got != "01 21 11 00 29 5C" {
		t.Errorf("Unexpected hex %q", got)
	}
}

func TestParseVariable(t *testing.T) {
	tests := []struct {
		in      string
		id      byte
		wantErr bool
	}{
		{"FAN_SPEED", VarFanSpeed, false},
		{"fan_speed", VarFanSpeed, false},
		{" t_outside ", VarTempOutside, false},
		{"0x4c", VarRh, false},
		{"0xA3", VarStatus, false},
		{"bogus", 0, true},
		{"0x1FF", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			id, err := ParseVariable(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseVariable(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && id != tt.id {
				t.Errorf("ParseVariable(%q) = 0x%02X, expected 0x%02X", tt.in, id, tt.id)
			}
		})
	}
}

func TestFormatVariable_AllKnownHaveNames(t *testing.T) {
	for _, id := range KnownVariables {
		if FormatVariable(id) == "UNKNOWN" {
			t.Errorf("Variable 0x%02X has no name", id)
		}
	}
}

func TestFormatStatus(t *testing.T) {
	if got := FormatStatus(0); got != "[]" {
		t.Errorf("Expected [], got %s", got)
	}
	if got := FormatStatus(0xFF); got != "[POWER|CO2|RH|HEATING_MODE|FILTER|HEATING|FAULT|SERVICE]" {
		t.Errorf("Unexpected flags %s", got)
	}
}

func TestFormatField(t *testing.T) {
	tests := []struct {
		field    Field
		v        int
		expected string
	}{
		{FieldOn, NotSet, "n/a"},
		{FieldOn, 1, "yes"},
		{FieldFault, 0, "no"},
		{FieldRh, 45, "45%"},
		{FieldTempInside, -3, "-3°C"},
		{FieldServicePeriod, 12, "12 months"},
		{FieldFanSpeed, 5, "5"},
	}

	for _, tt := range tests {
		if got := FormatField(tt.field, tt.v); got != tt.expected {
			t.Errorf("FormatField(%s, %d) = %q, expected %q", tt.field, tt.v, got, tt.expected)
		}
	}
}
