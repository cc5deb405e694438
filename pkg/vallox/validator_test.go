// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vallox

import "testing"

func TestValidateFrame(t *testing.T) {
	tests := []struct {
		name     string
		frame    Frame
		anomaly  AnomalyType
		expected int
	}{
		{"valid fan speed", broadcast(VarFanSpeed, 0x07), 0, 0},
		{"invalid fan speed", broadcast(VarFanSpeed, 0x05), AnomalyInvalidFanSpeed, 1},
		{"invalid default fan speed", broadcast(VarDefaultFanSpeed, 0x00), AnomalyInvalidFanSpeed, 1},
		{"valid rh", broadcast(VarRh, 51), 0, 0},
		{"invalid rh", broadcast(VarRh, 50), AnomalyInvalidRh, 1},
		{"valid heating target", broadcast(VarHeatingTarget, 0x3F), 0, 0},
		{"invalid heating target", broadcast(VarHeatingTarget, 0x10), AnomalyInvalidHeatingTarget, 1},
		{"status with co2", broadcast(VarStatus, StatusPower|StatusCO2), AnomalyUnsupportedFlag, 1},
		{"status without co2", broadcast(VarStatus, 0xFD), 0, 0},
		{"unknown variable", broadcast(0x71, 0x00), AnomalyUnknownVariable, 1},
		{"temperature", broadcast(VarTempExhaust, 0x00), 0, 0},
		{"poll is skipped", NewPollFrame(0x71), 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := ValidateFrame(tt.frame)
			if len(errs) != tt.expected {
				t.Fatalf("Expected %d errors, got %d: %v", tt.expected, len(errs), errs)
			}
			if tt.expected > 0 && errs[0].Type != tt.anomaly {
				t.Errorf("Expected anomaly %d, got %d", tt.anomaly, errs[0].Type)
			}
			if tt.expected > 0 && errs[0].Error() == "" {
				t.Error("Validation error should have a message")
			}
		})
	}
}

func TestValidateState_ServiceOverdue(t *testing.T) {
	c := NewCache()
	if len(ValidateState(c)) != 0 {
		t.Error("Empty cache should validate")
	}

	c.Set(FieldServicePeriod, 6)
	c.Set(FieldServiceCounter, 6)
	if len(ValidateState(c)) != 0 {
		t.Error("Counter equal to period should validate")
	}

	c.Set(FieldServiceCounter, 7)
	errs := ValidateState(c)
	if len(errs) != 1 || errs[0].Type != AnomalyServiceOverdue {
		t.Errorf("Expected service overdue, got %v", errs)
	}
}
