// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vallox

import (
	"context"
	"errors"
	"testing"
	"time"
)

// fullUnit answers every known variable
var fullUnit = map[byte]byte{
	VarStatus:          StatusPower | StatusHeatingMode,
	VarIO08:            IO08SummerMode,
	VarFanSpeed:        0x07,
	VarDefaultFanSpeed: 0x03,
	VarRh:              153,
	VarServicePeriod:   12,
	VarServiceCounter:  3,
	VarHeatingTarget:   0x1F,
	VarTempOutside:     0x64,
	VarTempInside:      0xA0,
	VarTempExhaust:     0x96,
	VarTempIncoming:    0x8C,
}

// ============================================================
// Poll Tests
// ============================================================

func TestPollVariable_Reply(t *testing.T) {
	port := &fakePort{onWrite: mainboard(map[byte]byte{VarFanSpeed: 0x07})}
	d, _ := newTestDriver(port)

	v, err := d.PollVariable(context.Background(), VarFanSpeed)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if v != 0x07 {
		t.Errorf("Expected 0x07, got 0x%02X", v)
	}

	if len(port.written) != 1 {
		t.Fatalf("Expected exactly one frame written, got %d", len(port.written))
	}
	want := NewPollFrame(VarFanSpeed).Bytes()
	if string(port.written[0]) != string(want[:]) {
		t.Errorf("Expected poll % X, got % X", want, port.written[0])
	}
	if d.FanSpeed() != 3 {
		t.Errorf("Reply should be applied to the cache, fan speed = %d", d.FanSpeed())
	}
	if d.Statistics().PollReplies != 1 {
		t.Errorf("Expected 1 poll reply, got %d", d.Statistics().PollReplies)
	}
}

func TestPollField_Decodes(t *testing.T) {
	port := &fakePort{onWrite: mainboard(map[byte]byte{VarFanSpeed: 0x07})}
	d, _ := newTestDriver(port)

	speed, err := d.PollField(context.Background(), FieldFanSpeed)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if speed != 3 {
		t.Errorf("Expected fan speed 3, got %d", speed)
	}
}

func TestPollVariable_AppliesPassiveFrames(t *testing.T) {
	port := &fakePort{}
	port.onWrite = func(p *fakePort, b []byte) {
		p.feed(broadcast(VarTempInside, 0xA0), reply(VarRh, 153), reply(VarFanSpeed, 0x0F))
	}
	d, _ := newTestDriver(port)

	v, err := d.PollVariable(context.Background(), VarFanSpeed)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if v != 0x0F {
		t.Errorf("Expected 0x0F, got 0x%02X", v)
	}
	if d.InsideTemp() != 20 {
		t.Errorf("Broadcast should be applied, inside temp = %d", d.InsideTemp())
	}
	if d.Rh() != 50 {
		t.Errorf("Reply for another variable should be applied, rh = %d", d.Rh())
	}
}

func TestPollVariable_IgnoresOtherReceivers(t *testing.T) {
	port := &fakePort{}
	port.onWrite = func(p *fakePort, b []byte) {
		// a broadcast of the polled variable is not the reply
		p.feed(broadcast(VarFanSpeed, 0x01))
	}
	d, _ := newTestDriver(port, WithPollRetries(1))

	if _, err := d.PollVariable(context.Background(), VarFanSpeed); !errors.Is(err, ErrPollTimeout) {
		t.Fatalf("Expected ErrPollTimeout, got %v", err)
	}
	if d.FanSpeed() != 1 {
		t.Errorf("Broadcast should still update the cache, fan speed = %d", d.FanSpeed())
	}
}

func TestPollVariable_TimeoutRetries(t *testing.T) {
	port := &fakePort{}
	d, clock := newTestDriver(port, WithPollRetries(3), WithPollTimeout(50*time.Millisecond))
	start := clock.now()

	_, err := d.PollVariable(context.Background(), VarStatus)
	if !errors.Is(err, ErrPollTimeout) {
		t.Fatalf("Expected ErrPollTimeout, got %v", err)
	}

	if len(port.written) != 3 {
		t.Errorf("Expected 3 poll frames, got %d", len(port.written))
	}
	for _, v := range port.polls() {
		if v != VarStatus {
			t.Errorf("Unexpected poll for 0x%02X", v)
		}
	}
	if elapsed := clock.now().Sub(start); elapsed < 150*time.Millisecond {
		t.Errorf("Expected at least 150ms of waiting, got %v", elapsed)
	}

	stats := d.Statistics()
	if stats.PollsSent != 3 || stats.PollTimeouts != 1 || stats.PollReplies != 0 {
		t.Errorf("Unexpected poll counters: sent=%d timeouts=%d replies=%d",
			stats.PollsSent, stats.PollTimeouts, stats.PollReplies)
	}
}

func TestPollVariable_LateReplyOnRetry(t *testing.T) {
	port := &fakePort{}
	port.onWrite = func(p *fakePort, b []byte) {
		if len(p.written) == 2 {
			p.feed(reply(VarServiceCounter, 5))
		}
	}
	d, _ := newTestDriver(port)

	v, err := d.PollVariable(context.Background(), VarServiceCounter)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if v != 5 || len(port.written) != 2 {
		t.Errorf("Expected value 5 after 2 polls, got %d after %d", v, len(port.written))
	}
}

func TestPollVariable_ContextCancelled(t *testing.T) {
	port := &fakePort{}
	d, _ := newTestDriver(port)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := d.PollVariable(ctx, VarFanSpeed); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestPollVariable_WriteError(t *testing.T) {
	port := &fakePort{writeErr: errWrite}
	d, _ := newTestDriver(port)

	if _, err := d.PollVariable(context.Background(), VarFanSpeed); !errors.Is(err, errWrite) {
		t.Errorf("Expected write error, got %v", err)
	}
}

// ============================================================
// Init / Loop Tests
// ============================================================

func TestInit_SeedsCache(t *testing.T) {
	port := &fakePort{onWrite: mainboard(fullUnit)}
	d, _ := newTestDriver(port)

	if d.State() != StateUninitialized {
		t.Fatalf("Expected UNINITIALIZED, got %s", d.State())
	}
	if err := d.Init(context.Background()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if d.State() != StateReady {
		t.Errorf("Expected READY, got %s", d.State())
	}

	if len(port.polls()) != len(KnownVariables) {
		t.Errorf("Expected %d polls, got %d", len(KnownVariables), len(port.polls()))
	}

	checks := []struct {
		name string
		got  int
		want int
	}{
		{"fan speed", d.FanSpeed(), 3},
		{"default fan speed", d.DefaultFanSpeed(), 2},
		{"rh", d.Rh(), 50},
		{"service period", d.ServicePeriod(), 12},
		{"service counter", d.ServiceCounter(), 3},
		{"heating target", d.HeatingTarget(), 20},
		{"outside", d.OutsideTemp(), 0},
		{"inside", d.InsideTemp(), 20},
		{"exhaust", d.ExhaustTemp(), 16},
		{"incoming", d.IncomingTemp(), 13},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %d, expected %d", c.name, c.got, c.want)
		}
	}

	if !d.IsOn() || !d.IsHeatingMode() || !d.IsSummerMode() {
		t.Error("Expected on, heating mode and summer mode")
	}
	if d.IsRhMode() || d.IsFault() || d.IsFilter() || d.IsHeating() || d.IsServiceNeeded() {
		t.Error("Unexpected status flag set")
	}
	if d.Updated().IsZero() {
		t.Error("Updated should be set after init")
	}
}

func TestInit_PartialAnswers(t *testing.T) {
	partial := map[byte]byte{VarStatus: StatusPower, VarFanSpeed: 0x01}
	port := &fakePort{onWrite: mainboard(partial)}
	d, _ := newTestDriver(port, WithPollRetries(1))

	err := d.Init(context.Background())
	if !errors.Is(err, ErrPollTimeout) {
		t.Fatalf("Expected joined ErrPollTimeout, got %v", err)
	}
	if d.State() != StateReady {
		t.Errorf("Driver should be READY even with missing variables, got %s", d.State())
	}
	if d.FanSpeed() != 1 || !d.IsOn() {
		t.Error("Answered variables should be cached")
	}
	if d.Cache().IsSet(FieldRh) {
		t.Error("Unanswered variable should stay NotSet")
	}
}

func TestInit_Cancelled(t *testing.T) {
	port := &fakePort{}
	d, _ := newTestDriver(port)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := d.Init(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if d.State() != StateUninitialized {
		t.Errorf("Expected UNINITIALIZED after cancel, got %s", d.State())
	}
}

func TestLoop_DrainsFrames(t *testing.T) {
	port := &fakePort{}
	port.feed(broadcast(VarTempOutside, 0x64), broadcast(VarFanSpeed, 0xFF))

	var seen []Frame
	d, _ := newTestDriver(port, WithFrameHandler(func(f Frame) { seen = append(seen, f) }))

	if err := d.Loop(context.Background()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if d.OutsideTemp() != 0 || d.FanSpeed() != 8 {
		t.Errorf("Loop should apply frames: outside=%d fan=%d", d.OutsideTemp(), d.FanSpeed())
	}
	if len(seen) != 2 {
		t.Errorf("Frame handler saw %d frames, expected 2", len(seen))
	}
	if len(port.written) != 0 {
		t.Error("Loop should not poll before the driver is ready")
	}
}

func TestLoop_StatusBroadcast(t *testing.T) {
	port := &fakePort{}
	d, clock := newTestDriver(port)

	port.feed(broadcast(VarStatus, StatusPower|StatusHeating))
	if err := d.Loop(context.Background()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !d.IsOn() || !d.IsHeating() {
		t.Errorf("STATUS broadcast not applied: on=%v heating=%v", d.IsOn(), d.IsHeating())
	}
	if d.IsRhMode() || d.IsHeatingMode() {
		t.Error("Unset STATUS bits should decode as off")
	}
	first := d.Updated()
	if first.IsZero() {
		t.Fatal("Updated should be set after a STATUS change")
	}

	// identical broadcast later leaves the change time alone
	clock.advance(time.Minute)
	port.feed(broadcast(VarStatus, StatusPower|StatusHeating))
	if err := d.Loop(context.Background()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !d.Updated().Equal(first) {
		t.Errorf("Repeated STATUS changed Updated: %v -> %v", first, d.Updated())
	}

	clock.advance(time.Minute)
	port.feed(broadcast(VarStatus, StatusHeating))
	if err := d.Loop(context.Background()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if d.IsOn() {
		t.Error("Power bit cleared but IsOn still true")
	}
	if !d.Updated().After(first) {
		t.Error("Updated should advance when STATUS changes")
	}
}

func TestLoop_RefreshesVolatileVariables(t *testing.T) {
	port := &fakePort{onWrite: mainboard(fullUnit)}
	d, clock := newTestDriver(port)

	if err := d.Init(context.Background()); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	port.written = nil

	if err := d.Loop(context.Background()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(port.written) != 0 {
		t.Fatalf("Loop polled before the refresh interval: % X", port.polls())
	}

	clock.advance(DefaultRefreshInterval)
	if err := d.Loop(context.Background()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	polls := port.polls()
	if len(polls) != 2 || polls[0] != VarIO08 || polls[1] != VarServiceCounter {
		t.Errorf("Expected IO08 and SERVICE_COUNTER refresh, got % X", polls)
	}
}

func TestLoop_RefreshDisabled(t *testing.T) {
	port := &fakePort{onWrite: mainboard(fullUnit)}
	d, clock := newTestDriver(port, WithRefreshInterval(0))
	if err := d.Init(context.Background()); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	port.written = nil

	clock.advance(time.Hour)
	if err := d.Loop(context.Background()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(port.written) != 0 {
		t.Error("Refresh should be disabled")
	}
}

// ============================================================
// Set Tests
// ============================================================

func TestSetVariable_WritesBothFrames(t *testing.T) {
	port := &fakePort{}
	var sent []Frame
	d, _ := newTestDriver(port, WithWriteHandler(func(f Frame) { sent = append(sent, f) }))

	if err := d.SetVariable(VarFanSpeed, 0x0F); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	frames := port.writtenFrames()
	if len(frames) != 2 {
		t.Fatalf("Expected 2 frames, got %d", len(frames))
	}
	want := []Frame{
		NewFrame(AddressPanel1, AddressMainboards, VarFanSpeed, 0x0F),
		NewFrame(AddressMainboard1, AddressPanels, VarFanSpeed, 0x0F),
	}
	for i := range want {
		if frames[i] != want[i] {
			t.Errorf("Frame %d: expected %s, got %s", i, FormatHex(want[i]), FormatHex(frames[i]))
		}
	}
	if len(sent) != 2 {
		t.Errorf("Write handler saw %d frames, expected 2", len(sent))
	}
	if d.Statistics().SetsSent != 1 {
		t.Errorf("Expected 1 set, got %d", d.Statistics().SetsSent)
	}
}

func TestSetVariable_WriteError(t *testing.T) {
	d, _ := newTestDriver(&fakePort{writeErr: errWrite})
	if err := d.SetVariable(VarFanSpeed, 0x01); !errors.Is(err, errWrite) {
		t.Errorf("Expected write error, got %v", err)
	}
}

func TestDriverState_String(t *testing.T) {
	tests := map[DriverState]string{
		StateUninitialized: "UNINITIALIZED",
		StateInitializing:  "INITIALIZING",
		StateReady:         "READY",
		DriverState(42):    "UNKNOWN",
	}
	for s, want := range tests {
		if s.String() != want {
			t.Errorf("Expected %s, got %s", want, s.String())
		}
	}
}
