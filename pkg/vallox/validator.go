// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vallox

import "fmt"

// AnomalyType represents different types of frame anomalies
type AnomalyType int

const (
	AnomalyUnknownVariable AnomalyType = iota
	AnomalyInvalidFanSpeed
	AnomalyInvalidRh
	AnomalyInvalidHeatingTarget
	AnomalyUnsupportedFlag
	AnomalyServiceOverdue
)

// ValidationError represents a frame or state validation failure
type ValidationError struct {
	Type    AnomalyType
	Message string
	Details map[string]interface{}
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	return v.Message
}

// ValidateFrame checks a frame's value against the variable's encoding.
// Poll requests are not validated. Returns an empty slice if the frame is valid.
func ValidateFrame(f Frame) []ValidationError {
	errors := []ValidationError{}

	if f.IsPoll() {
		return errors
	}

	switch f.Variable {
	case VarFanSpeed, VarDefaultFanSpeed:
		if Hex2FanSpeed(f.Value) == NotSet {
			errors = append(errors, ValidationError{
				Type:    AnomalyInvalidFanSpeed,
				Message: fmt.Sprintf("Invalid %s value=0x%02X (not a fan speed code)", FormatVariable(f.Variable), f.Value),
				Details: map[string]interface{}{"variable": f.Variable, "value": f.Value},
			})
		}

	case VarRh:
		if Hex2Rh(f.Value) == NotSet {
			errors = append(errors, ValidationError{
				Type:    AnomalyInvalidRh,
				Message: fmt.Sprintf("Invalid RH raw=%d (min %d)", f.Value, rhOffset),
				Details: map[string]interface{}{"value": f.Value, "min": rhOffset},
			})
		}

	case VarHeatingTarget:
		if Hex2HtCel(f.Value) == NotSet {
			errors = append(errors, ValidationError{
				Type:    AnomalyInvalidHeatingTarget,
				Message: fmt.Sprintf("Invalid heating target value=0x%02X", f.Value),
				Details: map[string]interface{}{"value": f.Value},
			})
		}

	case VarStatus:
		if f.Value&StatusCO2 != 0 {
			errors = append(errors, ValidationError{
				Type:    AnomalyUnsupportedFlag,
				Message: fmt.Sprintf("Status 0x%02X has CO2 mode set (not supported)", f.Value),
				Details: map[string]interface{}{"value": f.Value, "flag": StatusCO2},
			})
		}

	default:
		if !IsKnownVariable(f.Variable) {
			errors = append(errors, ValidationError{
				Type:    AnomalyUnknownVariable,
				Message: fmt.Sprintf("Unknown variable 0x%02X", f.Variable),
				Details: map[string]interface{}{"variable": f.Variable, "value": f.Value},
			})
		}
	}

	return errors
}

// ValidateState checks cross-field consistency of the cached state
func ValidateState(c *Cache) []ValidationError {
	errors := []ValidationError{}

	period, counter := c.ServicePeriod(), c.ServiceCounter()
	if period != NotSet && counter != NotSet && counter > period {
		errors = append(errors, ValidationError{
			Type:    AnomalyServiceOverdue,
			Message: fmt.Sprintf("Service counter %d exceeds service period %d", counter, period),
			Details: map[string]interface{}{"counter": counter, "period": period},
		})
	}

	return errors
}
