// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vallox

import (
	"errors"
	"fmt"
)

// Frame decode errors
var (
	ErrShortFrame = errors.New("short frame")
	ErrBadDomain  = errors.New("bad domain byte")
	ErrChecksum   = errors.New("checksum mismatch")
	ErrAddress    = errors.New("unrecognized address pair")
)

// Frame is a single 6-byte bus message
type Frame struct {
	Domain   byte
	Sender   byte
	Receiver byte
	Variable byte
	Value    byte
	Checksum byte
}

// NewFrame builds a frame with the protocol domain byte and a computed checksum
func NewFrame(sender, receiver, variable, value byte) Frame {
	f := Frame{
		Domain:   Domain,
		Sender:   sender,
		Receiver: receiver,
		Variable: variable,
		Value:    value,
	}
	b := f.Bytes()
	f.Checksum = Checksum(b[:FrameLength-1])
	return f
}

// NewPollFrame builds a poll request for a variable addressed to mainboard 1
func NewPollFrame(variable byte) Frame {
	return NewFrame(AddressPanel1, AddressMainboard1, PollByte, variable)
}

// DecodeFrame parses and verifies the first FrameLength bytes of b
func DecodeFrame(b []byte) (Frame, error) {
	if len(b) < FrameLength {
		return Frame{}, fmt.Errorf("%w: %d bytes", ErrShortFrame, len(b))
	}
	f := Frame{
		Domain:   b[0],
		Sender:   b[1],
		Receiver: b[2],
		Variable: b[3],
		Value:    b[4],
		Checksum: b[5],
	}
	if f.Domain != Domain {
		return f, fmt.Errorf("%w: 0x%02X", ErrBadDomain, f.Domain)
	}
	if !f.Verify() {
		return f, fmt.Errorf("%w: expected 0x%02X, got 0x%02X", ErrChecksum, Checksum(b[:FrameLength-1]), f.Checksum)
	}
	return f, nil
}

// Checksum returns the 8-bit sum of b
func Checksum(b []byte) byte {
	var sum byte
	for _, v := range b {
		sum += v
	}
	return sum
}

// Bytes returns the wire representation of the frame
func (f Frame) Bytes() [FrameLength]byte {
	return [FrameLength]byte{f.Domain, f.Sender, f.Receiver, f.Variable, f.Value, f.Checksum}
}

// Verify reports whether the checksum byte matches the frame contents
func (f Frame) Verify() bool {
	b := f.Bytes()
	return Checksum(b[:FrameLength-1]) == f.Checksum
}

// IsPoll reports whether the frame is a poll request. The requested variable is carried in Value.
func (f Frame) IsPoll() bool {
	return f.Variable == PollByte
}

// Accepted reports whether the frame's address pair is one the driver processes
func (f Frame) Accepted() bool {
	return Accepted(f.Sender, f.Receiver)
}

// Accepted reports whether a sender/receiver pair is recognized.
// Frames from mainboard 1 or panel 1 to any single or broadcast mainboard/panel address pass.
func Accepted(sender, receiver byte) bool {
	if sender != AddressMainboard1 && sender != AddressPanel1 {
		return false
	}
	switch receiver {
	case AddressPanels, AddressPanel1, AddressMainboard1, AddressMainboards:
		return true
	}
	return false
}
