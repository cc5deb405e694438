// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vallox

import "testing"

// ============================================================
// Fan Speed Tests
// ============================================================

func TestFanSpeed_RoundTrip(t *testing.T) {
	for speed := MinFanSpeed; speed <= MaxFanSpeed; speed++ {
		hex := FanSpeed2Hex(speed)
		if got := Hex2FanSpeed(hex); got != speed {
			t.Errorf("Speed %d: encoded 0x%02X decoded as %d", speed, hex, got)
		}
	}
}

func TestFanSpeed_Encoding(t *testing.T) {
	tests := []struct {
		speed int
		hex   byte
	}{
		{1, 0x01}, {2, 0x03}, {3, 0x07}, {4, 0x0F},
		{5, 0x1F}, {6, 0x3F}, {7, 0x7F}, {8, 0xFF},
		{0, 0x01}, {9, 0x01}, {-3, 0x01},
	}

	for _, tt := range tests {
		if got := FanSpeed2Hex(tt.speed); got != tt.hex {
			t.Errorf("FanSpeed2Hex(%d) = 0x%02X, expected 0x%02X", tt.speed, got, tt.hex)
		}
	}
}

func TestHex2FanSpeed_NotInTable(t *testing.T) {
	for _, hex := range []byte{0x00, 0x02, 0x05, 0x80, 0xFE} {
		if got := Hex2FanSpeed(hex); got != NotSet {
			t.Errorf("Hex2FanSpeed(0x%02X) = %d, expected NotSet", hex, got)
		}
	}
}

// ============================================================
// NTC Tests
// ============================================================

func TestNtc2Cel_Bounds(t *testing.T) {
	if got := Ntc2Cel(0x00); got != -74 {
		t.Errorf("Ntc2Cel(0x00) = %d, expected -74", got)
	}
	if got := Ntc2Cel(0xFF); got != 100 {
		t.Errorf("Ntc2Cel(0xFF) = %d, expected 100", got)
	}
	if got := Ntc2Cel(0x64); got != 0 {
		t.Errorf("Ntc2Cel(0x64) = %d, expected 0", got)
	}
}

func TestNtc2Cel_Monotonic(t *testing.T) {
	prev := Ntc2Cel(0)
	for i := 1; i < 256; i++ {
		cur := Ntc2Cel(byte(i))
		if cur < prev {
			t.Fatalf("NTC table decreases at 0x%02X: %d < %d", i, cur, prev)
		}
		prev = cur
	}
}

func TestCel2Ntc(t *testing.T) {
	tests := []struct {
		name string
		cel  int
		ntc  byte
	}{
		{"minimum", -74, 0x00},
		{"first zero", 0, 0x64},
		{"first hundred", 100, 0xF7},
		{"missing value", 101, 0x83},
		{"below table", -80, 0x83},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Cel2Ntc(tt.cel); got != tt.ntc {
				t.Errorf("Cel2Ntc(%d) = 0x%02X, expected 0x%02X", tt.cel, got, tt.ntc)
			}
		})
	}
}

func TestCel2Ntc_InverseOfNtc2Cel(t *testing.T) {
	for i := 0; i < 256; i++ {
		cel := Ntc2Cel(byte(i))
		if got := Ntc2Cel(Cel2Ntc(cel)); got != cel {
			t.Errorf("Ntc2Cel(Cel2Ntc(%d)) = %d", cel, got)
		}
	}
}

// ============================================================
// Humidity Tests
// ============================================================

func TestHex2Rh(t *testing.T) {
	tests := []struct {
		hex byte
		rh  int
	}{
		{0, NotSet},
		{50, NotSet},
		{51, 0},
		{153, 50},
		{255, 100},
	}

	for _, tt := range tests {
		if got := Hex2Rh(tt.hex); got != tt.rh {
			t.Errorf("Hex2Rh(%d) = %d, expected %d", tt.hex, got, tt.rh)
		}
	}
}

func TestHex2Rh_Range(t *testing.T) {
	for hex := rhOffset; hex < 256; hex++ {
		rh := Hex2Rh(byte(hex))
		if rh < 0 || rh > 100 {
			t.Fatalf("Hex2Rh(%d) = %d, outside 0..100", hex, rh)
		}
	}
}

// ============================================================
// Heating Target Tests
// ============================================================

func TestHex2HtCel(t *testing.T) {
	for _, tt := range heatingTargets {
		if got := Hex2HtCel(tt.hex); got != tt.cel {
			t.Errorf("Hex2HtCel(0x%02X) = %d, expected %d", tt.hex, got, tt.cel)
		}
	}
	if got := Hex2HtCel(0x02); got != NotSet {
		t.Errorf("Hex2HtCel(0x02) = %d, expected NotSet", got)
	}
}

func TestHtCel2Hex(t *testing.T) {
	tests := []struct {
		cel int
		hex byte
	}{
		{10, 0x01},
		{12, 0x01},
		{13, 0x03},
		{14, 0x03},
		{15, 0x07},
		{17, 0x07},
		{18, 0x0F},
		{20, 0x1F},
		{22, 0x1F},
		{23, 0x3F},
		{25, 0x7F},
		{26, 0x7F},
		{27, 0xFF},
		{28, 0x01},
		{5, 0x01},
	}

	for _, tt := range tests {
		if got := HtCel2Hex(tt.cel); got != tt.hex {
			t.Errorf("HtCel2Hex(%d) = 0x%02X, expected 0x%02X", tt.cel, got, tt.hex)
		}
	}
}
