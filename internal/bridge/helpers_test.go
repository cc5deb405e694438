// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bridge

import (
	"io"
	"sync"
	"time"

	"github.com/Thermoquad/vallostat/internal/mqtt"
	"github.com/Thermoquad/vallostat/pkg/ihc"
	"github.com/Thermoquad/vallostat/pkg/vallox"
)

// unitPort plays mainboard 1: it answers polls from values and applies
// writes addressed to the mainboards
type unitPort struct {
	mu      sync.Mutex
	in      []byte
	values  map[byte]byte
	written []vallox.Frame
}

func newUnitPort(values map[byte]byte) *unitPort {
	return &unitPort{values: values}
}

func (p *unitPort) Available() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.in)
}

func (p *unitPort) ReadByte() (byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.in) == 0 {
		return 0, io.EOF
	}
	b := p.in[0]
	p.in = p.in[1:]
	return b, nil
}

func (p *unitPort) Write(b []byte) (int, error) {
	f, err := vallox.DecodeFrame(b)
	if err != nil {
		panic(err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.written = append(p.written, f)
	switch {
	case f.IsPoll():
		if v, ok := p.values[f.Value]; ok {
			r := vallox.NewFrame(vallox.AddressMainboard1, vallox.AddressPanel1, f.Value, v).Bytes()
			p.in = append(p.in, r[:]...)
		}
	case f.Receiver == vallox.AddressMainboards:
		p.values[f.Variable] = f.Value
	}
	return len(b), nil
}

func (p *unitPort) value(variable byte) byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.values[variable]
}

// fullUnit answers every known variable
func fullUnit() map[byte]byte {
	return map[byte]byte{
		vallox.VarStatus:          vallox.StatusPower | vallox.StatusRh,
		vallox.VarIO08:            0x00,
		vallox.VarFanSpeed:        vallox.FanSpeed2Hex(3),
		vallox.VarDefaultFanSpeed: vallox.FanSpeed2Hex(2),
		vallox.VarRh:              0x80,
		vallox.VarServicePeriod:   12,
		vallox.VarServiceCounter:  4,
		vallox.VarHeatingTarget:   vallox.HtCel2Hex(18),
		vallox.VarTempOutside:     vallox.Cel2Ntc(-2),
		vallox.VarTempInside:      vallox.Cel2Ntc(21),
		vallox.VarTempExhaust:     vallox.Cel2Ntc(19),
		vallox.VarTempIncoming:    vallox.Cel2Ntc(17),
	}
}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)}
}

func (c *testClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) sleep(d time.Duration) { c.advance(d) }

func (c *testClock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type publishedMsg struct {
	topic    string
	payload  string
	retained bool
}

// fakePublisher records publishes and keeps subscribed handlers
type fakePublisher struct {
	mu        sync.Mutex
	published []publishedMsg
	handlers  map[string]mqtt.MessageHandler
	err       error
	block     chan struct{} // Publish waits until closed when set
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{handlers: make(map[string]mqtt.MessageHandler)}
}

func (f *fakePublisher) Publish(topic string, payload []byte, _ byte, retained bool) error {
	f.mu.Lock()
	block := f.block
	f.mu.Unlock()
	if block != nil {
		<-block
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, publishedMsg{topic, string(payload), retained})
	return f.err
}

func (f *fakePublisher) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[topic] = handler
	return nil
}

func (f *fakePublisher) on(topic string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, m := range f.published {
		if m.topic == topic {
			out = append(out, m.payload)
		}
	}
	return out
}

func (f *fakePublisher) deliver(filter, topic, payload string) error {
	f.mu.Lock()
	h := f.handlers[filter]
	f.mu.Unlock()
	return h(topic, []byte(payload))
}

type stateRecorder struct {
	states []vallox.State
}

func (r *stateRecorder) WriteState(s vallox.State) {
	r.states = append(r.states, s)
}

type ioRecorder struct {
	ios []*ihc.IO
}

func (r *ioRecorder) WriteIOs(ios []*ihc.IO) {
	r.ios = append(r.ios, ios...)
}
