// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bridge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Thermoquad/vallostat/internal/metrics"
	"github.com/Thermoquad/vallostat/internal/mqtt"
	"github.com/Thermoquad/vallostat/pkg/ihc"
)

// IOWriter receives changed IHC points
type IOWriter interface {
	WriteIOs(ios []*ihc.IO)
}

type ioCommand struct {
	name  string
	value string
}

// IHCBridge mirrors IHC points to MQTT and switches outputs on request
type IHCBridge struct {
	ctrl     *ihc.Controller
	registry *ihc.Registry
	pub      Publisher
	topics   mqtt.Topics
	qos      byte
	logger   *zap.Logger
	metrics  *metrics.BusMetrics
	writer   IOWriter

	commands chan ioCommand
}

// NewIHC creates an IHC bridge. metrics and writer may be nil.
func NewIHC(ctrl *ihc.Controller, registry *ihc.Registry, pub Publisher, topics mqtt.Topics,
	logger *zap.Logger, m *metrics.BusMetrics, writer IOWriter) *IHCBridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IHCBridge{
		ctrl:     ctrl,
		registry: registry,
		pub:      pub,
		topics:   topics,
		qos:      1,
		logger:   logger,
		metrics:  m,
		writer:   writer,
		commands: make(chan ioCommand, ihc.MaxQueueSize),
	}
}

// Subscribe registers the output command handler
func (b *IHCBridge) Subscribe() error {
	return b.pub.Subscribe(b.topics.AllIHCSets(), b.qos, func(topic string, payload []byte) error {
		name, ok := b.topics.ParseIHCSet(topic)
		if !ok {
			return nil
		}
		select {
		case b.commands <- ioCommand{name: name, value: string(payload)}:
			return nil
		default:
			return ErrQueueFull
		}
	})
}

// Run drives the controller until ctx is cancelled
func (b *IHCBridge) Run(ctx context.Context) error {
	ticker := time.NewTicker(idleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case cmd := <-b.commands:
			if err := b.SwitchOutput(cmd.name, cmd.value); err != nil {
				b.logger.Warn("ihc command failed", zap.String("name", cmd.name), zap.Error(err))
			}
		case <-ticker.C:
			if err := b.Step(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				b.logger.Warn("ihc bus error", zap.Error(err))
			}
		}
	}
}

// Step runs one controller pass and publishes any changed points
func (b *IHCBridge) Step(ctx context.Context) error {
	p, err := b.ctrl.Loop(ctx)
	// gauges reflect the registry after this pass's states are applied
	defer b.observe()
	if err != nil && !errors.Is(err, ihc.ErrReplyTimeout) {
		return err
	}
	if p == nil || p.Type() != ihc.CmdOutpState {
		return nil
	}

	_, changed := b.registry.UpdateStates(p.Data())
	if len(changed) == 0 {
		return nil
	}
	for _, io := range changed {
		if perr := b.pub.Publish(b.topics.IHCState(io.Name()), []byte(onOff(io.State())), b.qos, true); perr != nil {
			b.logger.Warn("publish ihc state failed", zap.Error(perr))
		}
	}
	if b.writer != nil {
		b.writer.WriteIOs(changed)
	}
	return nil
}

func (b *IHCBridge) observe() {
	if b.metrics != nil {
		b.metrics.ObserveIHC(b.ctrl.Status(), b.registry.IOs())
	}
}

// SwitchOutput queues a SET_OUTPUT for the named point
func (b *IHCBridge) SwitchOutput(name, value string) error {
	io := b.registry.FindByName(name)
	if io == nil {
		return fmt.Errorf("unknown ihc point %q", name)
	}
	if !io.IsOutput() {
		return fmt.Errorf("ihc point %q is an input", name)
	}
	on, err := ParseBool(value)
	if err != nil {
		return err
	}
	p, err := ihc.ChangeOutput(io.Module(), io.Port(), on)
	if err != nil {
		return err
	}
	return b.ctrl.Queue(p)
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}
