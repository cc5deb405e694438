// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ihc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Controller errors
var (
	ErrQueueFull    = errors.New("send queue full")
	ErrReplyTimeout = errors.New("no OUTP_STATE reply")
)

// Port is the byte transport to the IHC bus
type Port interface {
	Available() int
	ReadByte() (byte, error)
	Write(b []byte) (int, error)
}

// Stats counts controller traffic
type Stats struct {
	Packets       uint64
	DecodeErrors  uint64
	DataReady     uint64
	Sent          uint64
	Polls         uint64
	Replies       uint64
	ReplyTimeouts uint64
}

// Controller runs the PC side of the IHC DATA_READY handshake.
// Like the Vallox driver it is owned by a single goroutine.
type Controller struct {
	port    Port
	decoder *Decoder
	logger  *zap.Logger
	queue   []*Packet
	stats   Stats

	pollInterval time.Duration
	replyTimeout time.Duration
	staleAfter   time.Duration
	lastPolled   time.Time
	lastReply    time.Time

	now      func() time.Time
	sleep    func(time.Duration)
	onPacket func(*Packet)
}

// ControllerOption configures a Controller
type ControllerOption func(*Controller)

// WithLogger sets the controller logger
func WithLogger(logger *zap.Logger) ControllerOption {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithPollInterval sets how often GET_OUTPUTS is sent
func WithPollInterval(d time.Duration) ControllerOption {
	return func(c *Controller) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// WithReplyTimeout sets how long to wait for OUTP_STATE
func WithReplyTimeout(d time.Duration) ControllerOption {
	return func(c *Controller) {
		if d > 0 {
			c.replyTimeout = d
		}
	}
}

// WithClock replaces the time source and sleep function
func WithClock(now func() time.Time, sleep func(time.Duration)) ControllerOption {
	return func(c *Controller) {
		c.now = now
		c.sleep = sleep
	}
}

// WithPacketHandler registers a callback for every decoded packet
func WithPacketHandler(fn func(*Packet)) ControllerOption {
	return func(c *Controller) {
		c.onPacket = fn
	}
}

// NewController creates a controller on port
func NewController(port Port, opts ...ControllerOption) *Controller {
	c := &Controller{
		port:         port,
		decoder:      NewDecoder(),
		logger:       zap.NewNop(),
		pollInterval: DefaultPollInterval,
		replyTimeout: DefaultReplyTimeout,
		staleAfter:   DefaultStaleAfter,
		now:          time.Now,
		sleep:        time.Sleep,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.lastPolled = c.now()
	c.lastReply = c.lastPolled
	return c
}

// Queue schedules a packet for the next DATA_READY
func (c *Controller) Queue(p *Packet) error {
	if len(c.queue) >= MaxQueueSize {
		return ErrQueueFull
	}
	c.queue = append(c.queue, p)
	return nil
}

// Pending returns the number of queued packets
func (c *Controller) Pending() int {
	return len(c.queue)
}

// Status returns 1 while OUTP_STATE replies are arriving and -1 once none
// has been seen for 20 seconds
func (c *Controller) Status() int {
	if c.now().Sub(c.lastReply) > c.staleAfter {
		return -1
	}
	return 1
}

// Stats returns a copy of the traffic counters
func (c *Controller) Stats() Stats {
	return c.stats
}

// Loop processes buffered bytes. When the controller offers the bus it
// sends the next queued packet, or polls the outputs if the poll interval
// has elapsed. A poll blocks until the OUTP_STATE reply, which is returned.
func (c *Controller) Loop(ctx context.Context) (*Packet, error) {
	for c.port.Available() > 0 {
		p, err := c.next()
		if err != nil {
			return nil, err
		}
		if p == nil || p.ID() != IDPC {
			continue
		}

		switch p.Type() {
		case ACK:
			continue
		case CmdDataReady:
			c.stats.DataReady++
			return c.dataReady(ctx)
		}
	}
	return nil, nil
}

func (c *Controller) dataReady(ctx context.Context) (*Packet, error) {
	if len(c.queue) > 0 {
		p := c.queue[0]
		c.queue = c.queue[1:]
		return nil, c.write(p)
	}

	if c.now().Sub(c.lastPolled) < c.pollInterval {
		return nil, nil
	}
	c.lastPolled = c.now()

	poll, _ := NewPacket(IDIHC, CmdGetOutputs, nil)
	if err := c.write(poll); err != nil {
		return nil, err
	}
	c.stats.Polls++
	return c.readReply(ctx)
}

func (c *Controller) readReply(ctx context.Context) (*Packet, error) {
	for c.now().Sub(c.lastPolled) <= c.replyTimeout {
		if c.port.Available() == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			c.sleep(idleInterval)
			continue
		}

		p, err := c.next()
		if err != nil {
			return nil, err
		}
		if p != nil && p.ID() == IDPC && p.Type() == CmdOutpState {
			c.stats.Replies++
			c.lastReply = c.now()
			return p, nil
		}
	}

	c.stats.ReplyTimeouts++
	c.logger.Warn("outputs poll unanswered", zap.Duration("timeout", c.replyTimeout))
	return nil, ErrReplyTimeout
}

// next feeds one byte to the decoder
func (c *Controller) next() (*Packet, error) {
	b, err := c.port.ReadByte()
	if err != nil {
		return nil, err
	}
	p, err := c.decoder.DecodeByte(b)
	if err != nil {
		c.stats.DecodeErrors++
		c.logger.Debug("decode error", zap.Error(err))
		return nil, nil
	}
	if p == nil {
		return nil, nil
	}
	c.stats.Packets++
	if ce := c.logger.Check(zap.DebugLevel, "rx"); ce != nil {
		ce.Write(zap.String("id", FormatID(p.ID())), zap.String("type", FormatType(p.Type())))
	}
	if c.onPacket != nil {
		c.onPacket(p)
	}
	return p, nil
}

func (c *Controller) write(p *Packet) error {
	if _, err := c.port.Write(p.Bytes()); err != nil {
		return fmt.Errorf("write %s: %w", FormatType(p.Type()), err)
	}
	c.stats.Sent++
	if ce := c.logger.Check(zap.DebugLevel, "tx"); ce != nil {
		ce.Write(zap.String("id", FormatID(p.ID())), zap.String("type", FormatType(p.Type())))
	}
	return nil
}
