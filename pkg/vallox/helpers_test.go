// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vallox

import (
	"errors"
	"io"
	"time"
)

// ============================================================
// Test Doubles
// ============================================================

// fakePort is an in-memory Port. onWrite lets a test answer polls.
type fakePort struct {
	in       []byte
	written  [][]byte
	writeErr error
	onWrite  func(p *fakePort, b []byte)
}

func (p *fakePort) Available() int {
	return len(p.in)
}

func (p *fakePort) ReadByte() (byte, error) {
	if len(p.in) == 0 {
		return 0, io.EOF
	}
	b := p.in[0]
	p.in = p.in[1:]
	return b, nil
}

func (p *fakePort) Write(b []byte) (int, error) {
	if p.writeErr != nil {
		return 0, p.writeErr
	}
	cp := append([]byte(nil), b...)
	p.written = append(p.written, cp)
	if p.onWrite != nil {
		p.onWrite(p, cp)
	}
	return len(b), nil
}

// feed appends frames to the receive buffer
func (p *fakePort) feed(frames ...Frame) {
	for _, f := range frames {
		b := f.Bytes()
		p.in = append(p.in, b[:]...)
	}
}

// writtenFrames decodes everything written so far
func (p *fakePort) writtenFrames() []Frame {
	frames := make([]Frame, 0, len(p.written))
	for _, w := range p.written {
		f, err := DecodeFrame(w)
		if err != nil {
			panic(err)
		}
		frames = append(frames, f)
	}
	return frames
}

// polls returns the variables requested by written poll frames
func (p *fakePort) polls() []byte {
	vars := []byte{}
	for _, f := range p.writtenFrames() {
		if f.IsPoll() {
			vars = append(vars, f.Value)
		}
	}
	return vars
}

// mainboard answers every poll from a fixed variable table
func mainboard(values map[byte]byte) func(p *fakePort, b []byte) {
	return func(p *fakePort, b []byte) {
		f, err := DecodeFrame(b)
		if err != nil || !f.IsPoll() {
			return
		}
		if v, ok := values[f.Value]; ok {
			p.feed(reply(f.Value, v))
		}
	}
}

// reply builds a mainboard 1 answer to panel 1
func reply(variable, value byte) Frame {
	return NewFrame(AddressMainboard1, AddressPanel1, variable, value)
}

// broadcast builds a mainboard 1 broadcast to all panels
func broadcast(variable, value byte) Frame {
	return NewFrame(AddressMainboard1, AddressPanels, variable, value)
}

// fakeClock advances only when sleep is called
type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) now() time.Time {
	return c.t
}

func (c *fakeClock) sleep(d time.Duration) {
	c.t = c.t.Add(d)
}

func (c *fakeClock) advance(d time.Duration) {
	c.t = c.t.Add(d)
}

// newTestDriver creates a driver on a fake port and clock
func newTestDriver(port *fakePort, opts ...Option) (*Driver, *fakeClock) {
	clock := newFakeClock()
	all := append([]Option{WithClock(clock.now, clock.sleep)}, opts...)
	return NewDriver(port, all...), clock
}

var errWrite = errors.New("write failed")
