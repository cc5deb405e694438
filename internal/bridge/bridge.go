// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package bridge connects a Vallox driver (and optionally an IHC controller)
// to MQTT, Prometheus and InfluxDB.
//
// A single goroutine owns the driver. MQTT handlers only queue commands,
// so the half-duplex bus is never driven from two places at once.
package bridge

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Thermoquad/vallostat/internal/metrics"
	"github.com/Thermoquad/vallostat/internal/mqtt"
	"github.com/Thermoquad/vallostat/pkg/vallox"
)

const (
	commandQueueSize = 16
	idleInterval     = 5 * time.Millisecond

	resultOK = "ok"
)

// Errors reported on the result topic
var (
	ErrRateLimited = errors.New("rate limited")
	ErrQueueFull   = errors.New("command queue full")
)

// Publisher is the part of the MQTT client the bridge uses
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// StateWriter receives every published state
type StateWriter interface {
	WriteState(s vallox.State)
}

// Command is one setting change received from MQTT
type Command struct {
	Setting string
	Value   string
}

// rejection is a command refused before it reached the driver
type rejection struct {
	setting string
	err     error
}

// Bridge publishes the unit state and executes MQTT commands
type Bridge struct {
	driver  *vallox.Driver
	pub     Publisher
	topics  mqtt.Topics
	qos     byte
	format  string
	logger  *zap.Logger
	metrics *metrics.BusMetrics
	writer  StateWriter
	limiter *rate.Limiter

	publishInterval time.Duration
	lastUpdated     time.Time
	lastPublish     time.Time
	republish       atomic.Bool

	commands chan Command
	rejected chan rejection
	now      func() time.Time
}

// Option configures a Bridge
type Option func(*Bridge)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(b *Bridge) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithMetrics records bus and state metrics
func WithMetrics(m *metrics.BusMetrics) Option {
	return func(b *Bridge) { b.metrics = m }
}

// WithStateWriter forwards each published state, e.g. to InfluxDB
func WithStateWriter(w StateWriter) Option {
	return func(b *Bridge) { b.writer = w }
}

// WithPayloadFormat selects json or cbor state payloads
func WithPayloadFormat(format string) Option {
	return func(b *Bridge) {
		if format != "" {
			b.format = format
		}
	}
}

// WithPublishInterval republishes an unchanged state this often
func WithPublishInterval(d time.Duration) Option {
	return func(b *Bridge) { b.publishInterval = d }
}

// WithCommandRate limits commands to r per second with the given burst
func WithCommandRate(r float64, burst int) Option {
	return func(b *Bridge) {
		if r > 0 {
			b.limiter = rate.NewLimiter(rate.Limit(r), max(burst, 1))
		}
	}
}

// WithQoS sets the QoS for publishes and subscriptions
func WithQoS(qos byte) Option {
	return func(b *Bridge) { b.qos = qos }
}

// WithClock replaces the time source
func WithClock(now func() time.Time) Option {
	return func(b *Bridge) { b.now = now }
}

// New creates a bridge for driver publishing below topics
func New(driver *vallox.Driver, pub Publisher, topics mqtt.Topics, opts ...Option) *Bridge {
	b := &Bridge{
		driver:          driver,
		pub:             pub,
		topics:          topics,
		qos:             1,
		format:          vallox.FormatJSON,
		logger:          zap.NewNop(),
		limiter:         rate.NewLimiter(rate.Inf, 0),
		publishInterval: 5 * time.Minute,
		commands:        make(chan Command, commandQueueSize),
		rejected:        make(chan rejection, commandQueueSize),
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers the command handler with the broker
func (b *Bridge) Subscribe() error {
	return b.pub.Subscribe(b.topics.AllCommands(), b.qos, b.handleMessage)
}

// handleMessage runs on the MQTT client's goroutine
func (b *Bridge) handleMessage(topic string, payload []byte) error {
	setting, ok := b.topics.ParseCommand(topic)
	if !ok {
		return nil
	}
	return b.Enqueue(Command{Setting: setting, Value: string(payload)})
}

// Enqueue hands a command to the driver goroutine. It never blocks: it runs
// on the MQTT router goroutine, which must not wait on publish tokens.
// Rejections are published on the result topic by the driver goroutine.
func (b *Bridge) Enqueue(cmd Command) error {
	var err error
	if !b.limiter.Allow() {
		err = ErrRateLimited
		b.countCommand("rate_limited")
	} else {
		select {
		case b.commands <- cmd:
			return nil
		default:
			err = ErrQueueFull
			b.countCommand("dropped")
		}
	}
	select {
	case b.rejected <- rejection{setting: cmd.Setting, err: err}:
	default:
		b.logger.Warn("result queue full, dropping rejection", zap.String("setting", cmd.Setting), zap.Error(err))
	}
	return err
}

// Run initializes the driver and serves until ctx is cancelled
func (b *Bridge) Run(ctx context.Context) error {
	if err := b.driver.Init(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b.logger.Warn("some variables did not answer", zap.Error(err))
	}
	b.publishState(true)

	ticker := time.NewTicker(idleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case cmd := <-b.commands:
			b.execute(ctx, cmd)
		case <-ticker.C:
			if err := b.Step(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				b.logger.Warn("bus error", zap.Error(err))
			}
		}
	}
}

// Step runs one driver loop pass and publishes the state if due
func (b *Bridge) Step(ctx context.Context) error {
	err := b.driver.Loop(ctx)
	if b.metrics != nil {
		b.metrics.ObserveStatistics(b.driver.Statistics())
	}
	b.publishRejections()
	b.publishState(false)
	return err
}

// publishRejections reports commands Enqueue refused
func (b *Bridge) publishRejections() {
	for {
		select {
		case r := <-b.rejected:
			b.publishResult(r.setting, r.err)
		default:
			return
		}
	}
}

// Pending returns the number of queued commands
func (b *Bridge) Pending() int {
	return len(b.commands)
}

// ExecutePending runs every queued command
func (b *Bridge) ExecutePending(ctx context.Context) {
	for {
		select {
		case cmd := <-b.commands:
			b.execute(ctx, cmd)
		default:
			return
		}
	}
}

func (b *Bridge) execute(ctx context.Context, cmd Command) {
	err := Execute(ctx, b.driver, cmd.Setting, cmd.Value)
	if err != nil {
		b.logger.Warn("command failed",
			zap.String("setting", cmd.Setting),
			zap.String("value", cmd.Value),
			zap.Error(err),
		)
		b.countCommand("error")
	} else {
		b.logger.Info("command executed",
			zap.String("setting", cmd.Setting),
			zap.String("value", cmd.Value),
		)
		b.countCommand("ok")
		if b.metrics != nil {
			b.metrics.Sets.WithLabelValues(cmd.Setting).Inc()
		}
	}
	b.publishResult(cmd.Setting, err)
	b.publishState(false)
}

func (b *Bridge) countCommand(result string) {
	if b.metrics != nil {
		b.metrics.Commands.WithLabelValues(result).Inc()
	}
}

func (b *Bridge) publishResult(setting string, err error) {
	payload := resultOK
	if err != nil {
		payload = err.Error()
	}
	if perr := b.pub.Publish(b.topics.CommandResult(setting), []byte(payload), b.qos, false); perr != nil {
		b.logger.Warn("publish result failed", zap.Error(perr))
	}
}

// Republish makes the next loop pass publish the state again.
// Safe to call from any goroutine, e.g. on broker reconnect.
func (b *Bridge) Republish() {
	b.republish.Store(true)
}

// publishState publishes when the cache changed, when the interval elapsed,
// or when forced. A failed publish is not retried until the next trigger.
func (b *Bridge) publishState(force bool) {
	cache := b.driver.Cache()
	now := b.now()
	if b.republish.Swap(false) {
		force = true
	}

	changed := cache.Updated().After(b.lastUpdated)
	due := b.publishInterval > 0 && now.Sub(b.lastPublish) >= b.publishInterval
	if !force && !changed && !due {
		return
	}

	state := cache.Snapshot()
	payload, err := vallox.EncodeState(state, b.format)
	if err != nil {
		b.logger.Error("encode state", zap.Error(err))
		return
	}
	b.lastUpdated = cache.Updated()
	b.lastPublish = now
	if err := b.pub.Publish(b.topics.State(), payload, b.qos, true); err != nil {
		b.logger.Warn("publish state failed", zap.Error(err))
	}

	if b.metrics != nil {
		b.metrics.ObserveState(state)
	}
	if b.writer != nil {
		b.writer.WriteState(state)
	}
}
