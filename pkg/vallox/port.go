// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vallox

import (
	"io"
	"sync"
)

// Port is the byte transport the driver talks to.
// Available reports how many bytes can be read without blocking.
// Frames are written with a single Write call.
type Port interface {
	Available() int
	io.ByteReader
	io.Writer
}

// maxStreamBuffer bounds unread bytes held by a StreamPort; the oldest bytes are dropped first
const maxStreamBuffer = 4096

// StreamPort adapts a blocking stream (serial port, websocket bridge) to Port.
// A background goroutine copies incoming bytes into a buffer that the driver drains.
type StreamPort struct {
	rw      io.ReadWriteCloser
	mu      sync.Mutex
	buf     []byte
	dropped uint64
	err     error
	done    chan struct{}
}

// NewStreamPort starts reading from rw
func NewStreamPort(rw io.ReadWriteCloser) *StreamPort {
	p := &StreamPort{
		rw:   rw,
		buf:  make([]byte, 0, 256),
		done: make(chan struct{}),
	}
	go p.readLoop()
	return p
}

func (p *StreamPort) readLoop() {
	defer close(p.done)
	chunk := make([]byte, 128)
	for {
		n, err := p.rw.Read(chunk)

		p.mu.Lock()
		if n > 0 {
			p.buf = append(p.buf, chunk[:n]...)
			if over := len(p.buf) - maxStreamBuffer; over > 0 {
				p.buf = append(p.buf[:0], p.buf[over:]...)
				p.dropped += uint64(over)
			}
		}
		if err != nil {
			p.err = err
			p.mu.Unlock()
			return
		}
		p.mu.Unlock()
	}
}

// Available returns the number of buffered bytes
func (p *StreamPort) Available() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.buf)
}

// ReadByte returns the next buffered byte, or io.EOF when the buffer is empty
func (p *StreamPort) ReadByte() (byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.buf) == 0 {
		if p.err != nil {
			return 0, p.err
		}
		return 0, io.EOF
	}
	b := p.buf[0]
	p.buf = p.buf[1:]
	return b, nil
}

// Write sends bytes to the underlying stream
func (p *StreamPort) Write(b []byte) (int, error) {
	return p.rw.Write(b)
}

// Close closes the underlying stream, which stops the reader goroutine
func (p *StreamPort) Close() error {
	return p.rw.Close()
}

// Done is closed when the reader goroutine exits
func (p *StreamPort) Done() <-chan struct{} {
	return p.done
}

// Err returns the error that stopped the reader goroutine, if any
func (p *StreamPort) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Dropped returns the number of bytes discarded because the buffer was full
func (p *StreamPort) Dropped() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dropped
}
