// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vallox

import (
	"strings"
	"testing"
)

func seededCache() *Cache {
	clock := newFakeClock()
	c := NewCache()
	c.now = clock.now
	c.Apply(VarStatus, StatusPower|StatusFilter)
	c.Apply(VarFanSpeed, 0x07)
	c.Apply(VarTempInside, 0xA0)
	c.Apply(VarTempOutside, 0x00)
	return c
}

func TestSnapshot_NilWhenNotSet(t *testing.T) {
	s := seededCache().Snapshot()

	if s.On == nil || !*s.On {
		t.Error("On should be true")
	}
	if s.RhMode == nil || *s.RhMode {
		t.Error("RhMode should be false (status was received)")
	}
	if s.SummerMode != nil {
		t.Error("SummerMode should be nil, IO08 was never received")
	}
	if s.FanSpeed == nil || *s.FanSpeed != 3 {
		t.Error("FanSpeed should be 3")
	}
	if s.TempOutside == nil || *s.TempOutside != -74 {
		t.Error("TempOutside should be -74")
	}
	if s.Rh != nil {
		t.Error("Rh should be nil")
	}
}

func TestSnapshot_IsACopy(t *testing.T) {
	c := seededCache()
	s := c.Snapshot()
	c.Apply(VarFanSpeed, 0xFF)
	if *s.FanSpeed != 3 {
		t.Error("Snapshot should not follow later cache changes")
	}
}

func TestEncodeState_RoundTrip(t *testing.T) {
	want := seededCache().Snapshot()

	for _, format := range []string{FormatJSON, FormatYAML, FormatCBOR} {
		t.Run(format, func(t *testing.T) {
			data, err := EncodeState(want, format)
			if err != nil {
				t.Fatalf("Encode failed: %v", err)
			}
			got, err := DecodeState(data, format)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}

			if !got.Updated.Equal(want.Updated) {
				t.Errorf("Updated: %v != %v", got.Updated, want.Updated)
			}
			if got.On == nil || *got.On != *want.On {
				t.Error("On mismatch")
			}
			if got.FanSpeed == nil || *got.FanSpeed != *want.FanSpeed {
				t.Error("FanSpeed mismatch")
			}
			if got.TempInside == nil || *got.TempInside != *want.TempInside {
				t.Error("TempInside mismatch")
			}
			if got.Rh != nil || got.SummerMode != nil {
				t.Error("Unset fields should stay nil")
			}
		})
	}
}

func TestEncodeState_JSONFieldNames(t *testing.T) {
	data, err := EncodeState(seededCache().Snapshot(), "JSON")
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	for _, want := range []string{`"on": true`, `"fan_speed": 3`, `"temp_inside": 20`} {
		if !strings.Contains(string(data), want) {
			t.Errorf("Expected %s in %s", want, data)
		}
	}
	if strings.Contains(string(data), "summer_mode") {
		t.Error("Unset fields should be omitted")
	}
}

func TestEncodeState_UnknownFormat(t *testing.T) {
	if _, err := EncodeState(State{}, "xml"); err == nil {
		t.Error("Expected error for unknown format")
	}
	if _, err := DecodeState(nil, "xml"); err == nil {
		t.Error("Expected error for unknown format")
	}
}

func TestFormatState(t *testing.T) {
	out := FormatState(seededCache())
	for _, want := range []string{"updated", "on                 yes", "fan_speed          3", "rh                 n/a"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in:\n%s", want, out)
		}
	}

	if !strings.Contains(FormatState(NewCache()), "never") {
		t.Error("Fresh cache should report never updated")
	}
}
