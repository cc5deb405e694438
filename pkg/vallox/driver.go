// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vallox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Driver errors
var (
	ErrPollTimeout = errors.New("poll timeout")
	ErrOutOfRange  = errors.New("value out of range")
)

// DriverState is the driver lifecycle state
type DriverState int

const (
	StateUninitialized DriverState = iota
	StateInitializing
	StateReady
)

func (s DriverState) String() string {
	switch s {
	case StateUninitialized:
		return "UNINITIALIZED"
	case StateInitializing:
		return "INITIALIZING"
	case StateReady:
		return "READY"
	default:
		return "UNKNOWN"
	}
}

// Driver talks to a Vallox unit on the bus as panel 1.
//
// The driver owns its Port and Cache and is not safe for concurrent use:
// Loop, the poll functions and the setters must all be called from the
// same goroutine, since a poll and its reply share the half-duplex bus.
type Driver struct {
	port   Port
	reader *Reader
	cache  *Cache
	stats  *Statistics
	logger *zap.Logger

	state           DriverState
	pollTimeout     time.Duration
	pollRetries     int
	pollBackoff     time.Duration
	refreshInterval time.Duration
	lastRefresh     time.Time

	now     func() time.Time
	sleep   func(time.Duration)
	onFrame func(Frame)
	onWrite func(Frame)
}

// Option configures a Driver
type Option func(*Driver)

// WithLogger sets the logger used for bus tracing
func WithLogger(logger *zap.Logger) Option {
	return func(d *Driver) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithPollTimeout sets how long each poll attempt waits for a reply
func WithPollTimeout(timeout time.Duration) Option {
	return func(d *Driver) {
		if timeout > 0 {
			d.pollTimeout = timeout
		}
	}
}

// WithPollRetries sets the number of poll attempts before ErrPollTimeout
func WithPollRetries(retries int) Option {
	return func(d *Driver) {
		if retries > 0 {
			d.pollRetries = retries
		}
	}
}

// WithRefreshInterval sets how often Loop re-polls variables the unit does not broadcast.
// Zero disables the refresh.
func WithRefreshInterval(interval time.Duration) Option {
	return func(d *Driver) {
		d.refreshInterval = interval
	}
}

// WithStatistics shares a statistics tracker with the driver
func WithStatistics(stats *Statistics) Option {
	return func(d *Driver) {
		if stats != nil {
			d.stats = stats
		}
	}
}

// WithClock replaces the time source and sleep function
func WithClock(now func() time.Time, sleep func(time.Duration)) Option {
	return func(d *Driver) {
		d.now = now
		d.sleep = sleep
	}
}

// WithFrameHandler registers a callback for every accepted frame
func WithFrameHandler(fn func(Frame)) Option {
	return func(d *Driver) {
		d.onFrame = fn
	}
}

// WithWriteHandler registers a callback for every transmitted frame
func WithWriteHandler(fn func(Frame)) Option {
	return func(d *Driver) {
		d.onWrite = fn
	}
}

// NewDriver creates a driver on port
func NewDriver(port Port, opts ...Option) *Driver {
	d := &Driver{
		port:            port,
		cache:           NewCache(),
		stats:           NewStatistics(),
		logger:          zap.NewNop(),
		pollTimeout:     DefaultPollTimeout,
		pollRetries:     DefaultPollRetries,
		pollBackoff:     DefaultPollBackoff,
		refreshInterval: DefaultRefreshInterval,
		now:             time.Now,
		sleep:           time.Sleep,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.cache.now = d.now
	d.reader = NewReader(port, d.stats)
	return d
}

// State returns the lifecycle state
func (d *Driver) State() DriverState {
	return d.state
}

// Cache returns the driver's state cache
func (d *Driver) Cache() *Cache {
	return d.cache
}

// Statistics returns the driver's statistics tracker
func (d *Driver) Statistics() *Statistics {
	return d.stats
}

// Init polls every known variable to seed the cache.
// Variables that do not answer are left NotSet and reported in the returned error;
// the driver is Ready either way unless ctx is cancelled.
func (d *Driver) Init(ctx context.Context) error {
	d.state = StateInitializing
	d.logger.Info("initializing", zap.Int("variables", len(KnownVariables)))

	var errs []error
	for _, id := range KnownVariables {
		if _, err := d.PollVariable(ctx, id); err != nil {
			if ctx.Err() != nil {
				d.state = StateUninitialized
				return err
			}
			errs = append(errs, err)
		}
	}

	d.lastRefresh = d.now()
	d.state = StateReady
	d.logger.Info("ready", zap.Int("unanswered", len(errs)))
	return errors.Join(errs...)
}

// Loop decodes every buffered frame into the cache without blocking.
// Once Ready it also re-polls summer mode and the service counter every refresh interval.
func (d *Driver) Loop(ctx context.Context) error {
	if err := d.drain(); err != nil {
		return err
	}

	if d.state != StateReady || d.refreshInterval <= 0 {
		return nil
	}
	if d.now().Sub(d.lastRefresh) < d.refreshInterval {
		return nil
	}
	d.lastRefresh = d.now()

	var errs []error
	for _, id := range volatileVariables {
		if _, err := d.PollVariable(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// drain processes buffered frames until the reader runs dry
func (d *Driver) drain() error {
	for {
		f, ok, err := d.reader.Next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		d.handle(f)
	}
}

// handle applies a received frame to the cache
func (d *Driver) handle(f Frame) {
	if ce := d.logger.Check(zap.DebugLevel, "rx"); ce != nil {
		ce.Write(zap.String("frame", FormatHex(f)), zap.String("variable", FormatVariable(f.Variable)))
	}

	if !f.IsPoll() && d.cache.Apply(f.Variable, f.Value) {
		d.logger.Debug("state changed",
			zap.String("variable", FormatVariable(f.Variable)),
			zap.Uint8("value", f.Value),
		)
	}

	if d.onFrame != nil {
		d.onFrame(f)
	}
}

// isReplyTo reports whether f answers a poll for variable
func isReplyTo(f Frame, variable byte) bool {
	return f.Sender == AddressMainboard1 && f.Receiver == AddressPanel1 && f.Variable == variable
}

// PollVariable asks mainboard 1 for a variable and waits for the reply.
//
// Each attempt sends one poll frame and drains the bus for the poll timeout.
// Unrelated frames seen while waiting are decoded into the cache. After the
// configured number of attempts it gives up with ErrPollTimeout.
func (d *Driver) PollVariable(ctx context.Context, variable byte) (byte, error) {
	for attempt := 0; attempt < d.pollRetries; attempt++ {
		if attempt > 0 {
			if err := d.wait(ctx, d.pollBackoff); err != nil {
				return 0, err
			}
		}

		if err := d.writeFrame(NewPollFrame(variable)); err != nil {
			return 0, err
		}
		d.stats.PollsSent++

		deadline := d.now().Add(d.pollTimeout)
		for {
			f, ok, err := d.reader.Next()
			if err != nil {
				return 0, err
			}
			if ok {
				d.handle(f)
				if isReplyTo(f, variable) {
					d.stats.PollReplies++
					return f.Value, nil
				}
				continue
			}
			if !d.now().Before(deadline) {
				break
			}
			if err := d.wait(ctx, drainInterval); err != nil {
				return 0, err
			}
		}

		d.logger.Debug("poll attempt timed out",
			zap.String("variable", FormatVariable(variable)),
			zap.Int("attempt", attempt+1),
		)
	}

	d.stats.PollTimeouts++
	return 0, fmt.Errorf("%w: %s (0x%02X) after %d attempts", ErrPollTimeout, FormatVariable(variable), variable, d.pollRetries)
}

// PollField polls the variable behind a field and returns the decoded value
func (d *Driver) PollField(ctx context.Context, field Field) (int, error) {
	id, ok := VariableOf(field)
	if !ok {
		return NotSet, fmt.Errorf("no variable for field %s", field)
	}
	v, err := d.PollVariable(ctx, id)
	if err != nil {
		return NotSet, err
	}
	return DecodeField(field, v), nil
}

// SetVariable writes a variable to all mainboards and then all panels.
// There is no acknowledgement on the bus.
func (d *Driver) SetVariable(variable, value byte) error {
	if err := d.writeFrame(NewFrame(AddressPanel1, AddressMainboards, variable, value)); err != nil {
		return err
	}
	if err := d.writeFrame(NewFrame(AddressMainboard1, AddressPanels, variable, value)); err != nil {
		return err
	}
	d.stats.SetsSent++
	d.logger.Info("variable set",
		zap.String("variable", FormatVariable(variable)),
		zap.Uint8("value", value),
	)
	return nil
}

func (d *Driver) writeFrame(f Frame) error {
	b := f.Bytes()
	if _, err := d.port.Write(b[:]); err != nil {
		return fmt.Errorf("write %s: %w", FormatVariable(f.Variable), err)
	}
	if ce := d.logger.Check(zap.DebugLevel, "tx"); ce != nil {
		ce.Write(zap.String("frame", FormatHex(f)))
	}
	if d.onWrite != nil {
		d.onWrite(f)
	}
	return nil
}

func (d *Driver) wait(ctx context.Context, dur time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.sleep(dur)
	return nil
}
