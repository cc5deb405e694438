// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ihc

import (
	"fmt"
	"time"
)

// Decoder states
const (
	stateIdle = iota
	stateID
	stateType
	stateData
	stateCRC
)

// Decoder implements the IHC packet decoder state machine.
//
// The framing has no byte stuffing, so STX only starts a packet while idle.
// Inside a packet every byte up to ETB is data.
type Decoder struct {
	state  int
	packet *Packet
	sum    byte
}

// NewDecoder creates a new decoder
func NewDecoder() *Decoder {
	return &Decoder{state: stateIdle}
}

// Reset returns the decoder to idle
func (d *Decoder) Reset() {
	d.state = stateIdle
	d.packet = nil
	d.sum = 0
}

// DecodeByte processes a single byte through the decoder state machine.
// Returns a completed packet, or nil if the packet is incomplete.
// Returns an error on checksum mismatch or data overflow.
func (d *Decoder) DecodeByte(b byte) (*Packet, error) {
	switch d.state {
	case stateIdle:
		if b == STX {
			d.packet = &Packet{}
			d.sum = b
			d.state = stateID
		}
		return nil, nil

	case stateID:
		d.packet.id = b
		d.sum += b
		d.state = stateType
		return nil, nil

	case stateType:
		d.packet.dataType = b
		d.sum += b
		d.state = stateData
		return nil, nil

	case stateData:
		d.sum += b
		if b == ETB {
			d.state = stateCRC
			return nil, nil
		}
		if len(d.packet.data) >= MaxDataSize {
			d.Reset()
			return nil, fmt.Errorf("data overflow: packet exceeds %d data bytes", MaxDataSize)
		}
		d.packet.data = append(d.packet.data, b)
		return nil, nil

	case stateCRC:
		packet, sum := d.packet, d.sum
		d.Reset()
		if b != sum {
			return nil, fmt.Errorf("CRC mismatch: expected 0x%02X, got 0x%02X", sum, b)
		}
		packet.crc = b
		packet.timestamp = time.Now()
		return packet, nil

	default:
		d.Reset()
		return nil, fmt.Errorf("invalid state: %d", d.state)
	}
}
