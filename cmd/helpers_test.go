// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"io"

	"github.com/Thermoquad/vallostat/pkg/vallox"
)

// fakeBus is an in-memory busPort
type fakeBus struct {
	data    []byte
	written []byte
	done    chan struct{}
	err     error
}

func newFakeBus(chunks ...[]byte) *fakeBus {
	b := &fakeBus{done: make(chan struct{})}
	for _, c := range chunks {
		b.data = append(b.data, c...)
	}
	return b
}

func (b *fakeBus) Available() int { return len(b.data) }

func (b *fakeBus) ReadByte() (byte, error) {
	if len(b.data) == 0 {
		return 0, io.EOF
	}
	v := b.data[0]
	b.data = b.data[1:]
	return v, nil
}

func (b *fakeBus) Write(p []byte) (int, error) {
	b.written = append(b.written, p...)
	return len(p), nil
}

func (b *fakeBus) Done() <-chan struct{} { return b.done }
func (b *fakeBus) Err() error            { return b.err }

// closeWith marks the bus closed with err
func (b *fakeBus) closeWith(err error) {
	b.err = err
	close(b.done)
}

func wire(f vallox.Frame) []byte {
	b := f.Bytes()
	return b[:]
}

// broadcast is a mainboard broadcast of one variable
func broadcast(variable, value byte) []byte {
	return wire(vallox.NewFrame(vallox.AddressMainboard1, vallox.AddressPanels, variable, value))
}
