// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ihc

import (
	"fmt"
	"strings"
)

// FormatPacket formats a packet into a human-readable line
func FormatPacket(p *Packet) string {
	timestamp := p.timestamp.Format("15:04:05.000")
	result := fmt.Sprintf("[%s] %s (0x%02X) -> %s len=%d", timestamp, FormatType(p.dataType), p.dataType, FormatID(p.id), len(p.data))
	if len(p.data) > 0 {
		result += " data=" + formatBytes(p.data)
	}
	if p.dataType == CmdOutpState {
		result += " " + FormatOutputs(p.data)
	}
	return result + "\n"
}

// FormatID returns the human-readable name for a node id
func FormatID(id byte) string {
	switch id {
	case IDDisplay:
		return "DISPLAY"
	case IDModem:
		return "MODEM"
	case IDIHC:
		return "IHC"
	case IDAC:
		return "AC"
	case IDPC:
		return "PC"
	case IDPC2:
		return "PC2"
	default:
		return "UNKNOWN"
	}
}

// FormatType returns the human-readable name for a command
func FormatType(t byte) string {
	switch t {
	case ACK:
		return "ACK"
	case CmdDataReady:
		return "DATA_READY"
	case CmdSetOutput:
		return "SET_OUTPUT"
	case CmdGetOutputs:
		return "GET_OUTPUTS"
	case CmdOutpState:
		return "OUTP_STATE"
	case CmdGetInputs:
		return "GET_INPUTS"
	case CmdInpState:
		return "INP_STATE"
	case CmdActInput:
		return "ACT_INPUT"
	default:
		return fmt.Sprintf("UNKNOWN_0x%02X", t)
	}
}

// FormatOutputs lists the active outputs of an OUTP_STATE payload as module.port
func FormatOutputs(data []byte) string {
	on := []string{}
	for mi, b := range data {
		for pi := 0; pi < MaxPorts; pi++ {
			if b&(1<<pi) != 0 {
				on = append(on, fmt.Sprintf("%d.%d", mi+1, pi+1))
			}
		}
	}
	return "on=[" + strings.Join(on, " ") + "]"
}

func formatBytes(b []byte) string {
	parts := make([]string, len(b))
	for i, v := range b {
		parts[i] = fmt.Sprintf("%02X", v)
	}
	return strings.Join(parts, " ")
}
