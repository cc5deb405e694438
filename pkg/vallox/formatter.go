// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vallox

import (
	"fmt"
	"strings"
	"time"
)

// FormatFrame formats a frame into a human-readable line
func FormatFrame(f Frame, timestamp time.Time) string {
	ts := timestamp.Format("15:04:05.000")
	route := fmt.Sprintf("%s -> %s", FormatAddress(f.Sender), FormatAddress(f.Receiver))

	if f.IsPoll() {
		return fmt.Sprintf("[%s] %-24s POLL %s (0x%02X)\n", ts, route, FormatVariable(f.Value), f.Value)
	}

	return fmt.Sprintf("[%s] %-24s %s (0x%02X) = 0x%02X%s\n",
		ts, route, FormatVariable(f.Variable), f.Variable, f.Value, FormatValue(f.Variable, f.Value))
}

// FormatHex formats raw frame bytes
func FormatHex(f Frame) string {
	b := f.Bytes()
	parts := make([]string, len(b))
	for i, v := range b {
		parts[i] = fmt.Sprintf("%02X", v)
	}
	return strings.Join(parts, " ")
}

// FormatAddress returns the human-readable name for a bus address
func FormatAddress(addr byte) string {
	switch addr {
	case AddressMainboards:
		return "MAINBOARDS"
	case AddressMainboard1:
		return "MAINBOARD_1"
	case AddressPanels:
		return "PANELS"
	case AddressPanel1:
		return "PANEL_1"
	default:
		return fmt.Sprintf("0x%02X", addr)
	}
}

// FormatVariable returns the human-readable name for a variable id
func FormatVariable(id byte) string {
	switch id {
	case VarIO08:
		return "IO_08"
	case VarFanSpeed:
		return "FAN_SPEED"
	case VarRh:
		return "RH"
	case VarTempOutside:
		return "T_OUTSIDE"
	case VarTempInside:
		return "T_INSIDE"
	case VarTempIncoming:
		return "T_INCOMING"
	case VarTempExhaust:
		return "T_EXHAUST"
	case VarStatus:
		return "STATUS"
	case VarHeatingTarget:
		return "HEATING_TARGET"
	case VarServicePeriod:
		return "SERVICE_PERIOD"
	case VarDefaultFanSpeed:
		return "DEFAULT_FAN_SPEED"
	case VarServiceCounter:
		return "SERVICE_COUNTER"
	default:
		return "UNKNOWN"
	}
}

// ParseVariable resolves a variable by name (case-insensitive) or hex id such as "0x29"
func ParseVariable(s string) (byte, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	for id := 0; id < 256; id++ {
		if IsKnownVariable(byte(id)) && FormatVariable(byte(id)) == name {
			return byte(id), nil
		}
	}

	var id int
	if _, err := fmt.Sscanf(strings.ToLower(name), "0x%x", &id); err == nil && id >= 0 && id <= 0xFF {
		return byte(id), nil
	}
	return 0, fmt.Errorf("unknown variable %q", s)
}

// FormatValue returns the decoded value of a variable, prefixed for appending to a frame line
func FormatValue(id, value byte) string {
	switch id {
	case VarStatus:
		return " " + FormatStatus(value)
	case VarIO08:
		return fmt.Sprintf(" summer_mode=%t", value&IO08SummerMode != 0)
	case VarFanSpeed, VarDefaultFanSpeed:
		return " speed=" + formatInt(Hex2FanSpeed(value), "")
	case VarRh:
		return " rh=" + formatInt(Hex2Rh(value), "%")
	case VarTempOutside, VarTempInside, VarTempIncoming, VarTempExhaust:
		return " temp=" + formatInt(Ntc2Cel(value), "°C")
	case VarHeatingTarget:
		return " target=" + formatInt(Hex2HtCel(value), "°C")
	case VarServicePeriod, VarServiceCounter:
		return fmt.Sprintf(" months=%d", value)
	default:
		return ""
	}
}

// FormatStatus lists the flags set in a status byte
func FormatStatus(status byte) string {
	flags := []struct {
		mask byte
		name string
	}{
		{StatusPower, "POWER"},
		{StatusCO2, "CO2"},
		{StatusRh, "RH"},
		{StatusHeatingMode, "HEATING_MODE"},
		{StatusFilter, "FILTER"},
		{StatusHeating, "HEATING"},
		{StatusFault, "FAULT"},
		{StatusService, "SERVICE"},
	}

	set := []string{}
	for _, fl := range flags {
		if status&fl.mask != 0 {
			set = append(set, fl.name)
		}
	}
	return "[" + strings.Join(set, "|") + "]"
}

// FormatField formats a cached field value with its unit
func FormatField(field Field, v int) string {
	if v == NotSet {
		return "n/a"
	}
	if field.IsFlag() {
		if v == 1 {
			return "yes"
		}
		return "no"
	}
	switch field {
	case FieldRh:
		return fmt.Sprintf("%d%%", v)
	case FieldHeatingTarget, FieldTempOutside, FieldTempInside, FieldTempExhaust, FieldTempIncoming:
		return fmt.Sprintf("%d°C", v)
	case FieldServicePeriod, FieldServiceCounter:
		return fmt.Sprintf("%d months", v)
	}
	return fmt.Sprintf("%d", v)
}

func formatInt(v int, unit string) string {
	if v == NotSet {
		return "n/a"
	}
	return fmt.Sprintf("%d%s", v, unit)
}
