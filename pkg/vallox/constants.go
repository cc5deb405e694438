// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package vallox implements the Vallox Digit SE RS-485 bus protocol.
//
// The bus is half-duplex master/slave: every message is a fixed 6-byte frame
// carrying one variable. This package provides frame encoding/decoding,
// a resynchronizing stream reader, a change-tracking state cache, and a
// driver that polls the mainboard and passively decodes broadcast traffic.
package vallox

import "time"

// Frame layout
const (
	FrameLength = 6
	Domain      = 0x01
	PollByte    = 0x00
)

// NotSet marks a cache value that has never been read from the bus
const NotSet = -999

// Bus addresses
const (
	AddressMainboards = 0x10 // All mainboards
	AddressMainboard1 = 0x11
	AddressPanels     = 0x20 // All panels
	AddressPanel1     = 0x21
)

// Variable identifiers
const (
	VarIO08            = 0x08
	VarFanSpeed        = 0x29
	VarRh              = 0x4C
	VarTempOutside     = 0x58
	VarTempInside      = 0x5A
	VarTempIncoming    = 0x5B
	VarTempExhaust     = 0x5C
	VarStatus          = 0xA3
	VarHeatingTarget   = 0xA4
	VarServicePeriod   = 0xA6
	VarDefaultFanSpeed = 0xA9
	VarServiceCounter  = 0xAB
)

// Status flags of VarStatus
const (
	StatusPower       = 0x01 // read/write
	StatusCO2         = 0x02 // read/write
	StatusRh          = 0x04 // read/write
	StatusHeatingMode = 0x08 // read/write
	StatusFilter      = 0x10
	StatusHeating     = 0x20
	StatusFault       = 0x40
	StatusService     = 0x80
)

// IO08SummerMode is the summer mode bit of VarIO08
const IO08SummerMode = 0x02

// Setter limits
const (
	MinFanSpeed      = 1
	MaxFanSpeed      = 8
	MinHeatingTarget = 10
	MaxHeatingTarget = 27
	MaxServiceMonths = 255
)

// Driver timing defaults
const (
	DefaultPollTimeout     = 50 * time.Millisecond
	DefaultPollRetries     = 3
	DefaultPollBackoff     = 10 * time.Millisecond
	DefaultRefreshInterval = 60 * time.Second
	drainInterval          = time.Millisecond
)

// KnownVariables lists every variable the driver polls during Init, in poll order
var KnownVariables = []byte{
	VarStatus,
	VarIO08,
	VarFanSpeed,
	VarDefaultFanSpeed,
	VarRh,
	VarServicePeriod,
	VarServiceCounter,
	VarHeatingTarget,
	VarTempOutside,
	VarTempInside,
	VarTempExhaust,
	VarTempIncoming,
}

// volatileVariables change without being broadcast and are re-polled periodically
var volatileVariables = []byte{
	VarIO08,
	VarServiceCounter,
}
