// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ihc

import (
	"fmt"
	"time"
)

// Packet is one IHC frame: STX id type data... ETB crc
type Packet struct {
	id        byte
	dataType  byte
	data      []byte
	crc       byte
	timestamp time.Time
}

// NewPacket builds a packet and computes its checksum
func NewPacket(id, dataType byte, data []byte) (*Packet, error) {
	if len(data) > MaxDataSize {
		return nil, fmt.Errorf("data too long: %d bytes (max %d)", len(data), MaxDataSize)
	}
	p := &Packet{
		id:        id,
		dataType:  dataType,
		data:      append([]byte(nil), data...),
		timestamp: time.Now(),
	}
	b := p.frame()
	p.crc = Checksum(b)
	return p, nil
}

// Checksum returns the 8-bit sum of b
func Checksum(b []byte) byte {
	var sum byte
	for _, v := range b {
		sum += v
	}
	return sum
}

// frame returns the packet bytes up to and including ETB
func (p *Packet) frame() []byte {
	b := make([]byte, 0, MaxPacketSize)
	b = append(b, STX, p.id, p.dataType)
	b = append(b, p.data...)
	return append(b, ETB)
}

// Bytes returns the wire encoding of the packet
func (p *Packet) Bytes() []byte {
	return append(p.frame(), p.crc)
}

// ID returns the node id the packet is addressed to
func (p *Packet) ID() byte {
	return p.id
}

// Type returns the packet's command
func (p *Packet) Type() byte {
	return p.dataType
}

// Data returns the packet payload
func (p *Packet) Data() []byte {
	return p.data
}

// CRC returns the packet checksum
func (p *Packet) CRC() byte {
	return p.crc
}

// Timestamp returns when the packet was built or received
func (p *Packet) Timestamp() time.Time {
	return p.timestamp
}
