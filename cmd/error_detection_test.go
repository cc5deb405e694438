// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/vallostat/pkg/vallox"
)

func TestDropErrors(t *testing.T) {
	before := vallox.NewStatistics()
	after := before.Clone()
	assert.Empty(t, dropErrors(before, after))

	after.ChecksumErrors = 2
	after.AddressRejects = 1
	errs := dropErrors(before, after)
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0], "checksum mismatch (2 frame(s) dropped)")
	assert.Contains(t, errs[1], "unrecognized address pair (1 frame(s) dropped)")
}

func TestWatchBus(t *testing.T) {
	corrupt := broadcast(vallox.VarFanSpeed, 0x0F)
	corrupt[vallox.FrameLength-1]++

	bus := newFakeBus(
		[]byte{0x7F},
		broadcast(vallox.VarFanSpeed, 0x07),
		corrupt,
		broadcast(vallox.VarFanSpeed, 0x0F),
	)

	var events []busEvent
	done := make(chan struct{})
	close(done)
	err := watchBus(bus, done, func(ev busEvent) { events = append(events, ev) })
	require.NoError(t, err)
	require.Len(t, events, 2)

	first := events[0]
	assert.True(t, first.synced)
	assert.Equal(t, uint64(1), first.skipped)
	assert.Empty(t, first.errs)
	require.NotNil(t, first.frame)
	assert.Equal(t, byte(0x07), first.frame.Value)
	assert.Empty(t, first.validation)

	second := events[1]
	assert.False(t, second.synced)
	assert.Equal(t, []string{"checksum mismatch (1 frame(s) dropped)"}, second.errs)
	require.NotNil(t, second.frame)
	assert.Equal(t, byte(0x0F), second.frame.Value)
	require.NotNil(t, second.stats)
	assert.Equal(t, uint64(1), second.stats.ChecksumErrors)
	assert.Equal(t, uint64(2), second.stats.ValidFrames)
}

func TestWatchBus_DropsBeforeSyncAreSilent(t *testing.T) {
	corrupt := broadcast(vallox.VarFanSpeed, 0x07)
	corrupt[vallox.FrameLength-1]++

	bus := newFakeBus(corrupt, broadcast(vallox.VarFanSpeed, 0x07))

	var events []busEvent
	done := make(chan struct{})
	close(done)
	require.NoError(t, watchBus(bus, done, func(ev busEvent) { events = append(events, ev) }))

	require.Len(t, events, 1)
	assert.True(t, events[0].synced)
	assert.Empty(t, events[0].errs)
}

func TestWatchBus_ReturnsPortError(t *testing.T) {
	bus := newFakeBus()
	bus.closeWith(ErrConnectionClosed)

	err := watchBus(bus, make(chan struct{}), func(busEvent) { t.Fatal("unexpected event") })
	assert.ErrorIs(t, err, ErrConnectionClosed)
}
