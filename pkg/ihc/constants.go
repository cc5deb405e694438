// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package ihc implements the RS-485 link to an IHC home automation controller.
//
// The IHC controller is the bus master. It offers the bus to the PC node with
// DATA_READY; the PC answers with at most one packet per offer. This package
// decodes the framing, runs the DATA_READY handshake and tracks the state of
// the controller's output modules.
package ihc

import "time"

// Framing bytes
const (
	SOH = 0x01
	STX = 0x02
	ACK = 0x06
	ETB = 0x17
)

// Packet size limits
const (
	MaxPacketSize = 21 // STX + id + type + 16 data + ETB + crc
	MaxDataSize   = 16
)

// Commands
const (
	CmdDataReady  = 0x30
	CmdSetOutput  = 0x7A
	CmdGetOutputs = 0x82
	CmdOutpState  = 0x83
	CmdGetInputs  = 0x86
	CmdInpState   = 0x87
	CmdActInput   = 0x88
)

// Node ids
const (
	IDDisplay = 0x09
	IDModem   = 0x0A
	IDIHC     = 0x12
	IDAC      = 0x1B
	IDPC      = 0x1C
	IDPC2     = 0x1D
)

// Module layout
const (
	MaxModules = 16
	MaxPorts   = 8
)

// DefaultBaudRate is the IHC RS-485 line speed
const DefaultBaudRate = 19200

// Controller timing
const (
	DefaultPollInterval = 10 * time.Second
	DefaultReplyTimeout = 5 * time.Second
	DefaultStaleAfter   = 20 * time.Second
	MaxQueueSize        = 10
	idleInterval        = time.Millisecond
)
