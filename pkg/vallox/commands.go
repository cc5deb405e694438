// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vallox

import (
	"context"
	"fmt"
	"time"
)

func rangeError(name string, v, min, max int) error {
	return fmt.Errorf("%w: %s %d (valid %d..%d)", ErrOutOfRange, name, v, min, max)
}

// SetFanSpeed sets the current fan speed (1..8)
func (d *Driver) SetFanSpeed(speed int) error {
	if speed < MinFanSpeed || speed > MaxFanSpeed {
		return rangeError("fan speed", speed, MinFanSpeed, MaxFanSpeed)
	}
	if err := d.SetVariable(VarFanSpeed, FanSpeed2Hex(speed)); err != nil {
		return err
	}
	d.cache.Set(FieldFanSpeed, speed)
	return nil
}

// SetDefaultFanSpeed sets the fan speed the unit returns to (1..8)
func (d *Driver) SetDefaultFanSpeed(speed int) error {
	if speed < MinFanSpeed || speed > MaxFanSpeed {
		return rangeError("default fan speed", speed, MinFanSpeed, MaxFanSpeed)
	}
	if err := d.SetVariable(VarDefaultFanSpeed, FanSpeed2Hex(speed)); err != nil {
		return err
	}
	d.cache.Set(FieldDefaultFanSpeed, speed)
	return nil
}

// SetOn switches the unit on
func (d *Driver) SetOn(ctx context.Context) error {
	return d.setStatusFlag(ctx, StatusPower, FieldOn, true)
}

// SetOff switches the unit off
func (d *Driver) SetOff(ctx context.Context) error {
	return d.setStatusFlag(ctx, StatusPower, FieldOn, false)
}

// SetRhMode enables or disables humidity-controlled ventilation
func (d *Driver) SetRhMode(ctx context.Context, on bool) error {
	return d.setStatusFlag(ctx, StatusRh, FieldRhMode, on)
}

// SetHeatingMode enables or disables the post-heater
func (d *Driver) SetHeatingMode(ctx context.Context, on bool) error {
	return d.setStatusFlag(ctx, StatusHeatingMode, FieldHeatingMode, on)
}

// setStatusFlag reads the current status byte so the other writable flags are preserved
func (d *Driver) setStatusFlag(ctx context.Context, mask byte, field Field, on bool) error {
	status, err := d.PollVariable(ctx, VarStatus)
	if err != nil {
		return fmt.Errorf("read status: %w", err)
	}
	if on {
		status |= mask
	} else {
		status &^= mask
	}
	if err := d.SetVariable(VarStatus, status); err != nil {
		return err
	}
	d.cache.SetFlag(field, on)
	return nil
}

// SetServicePeriod sets the service interval in months (0..255)
func (d *Driver) SetServicePeriod(months int) error {
	if months < 0 || months > MaxServiceMonths {
		return rangeError("service period", months, 0, MaxServiceMonths)
	}
	if err := d.SetVariable(VarServicePeriod, byte(months)); err != nil {
		return err
	}
	d.cache.Set(FieldServicePeriod, months)
	return nil
}

// SetServiceCounter sets the service counter in months (0..255)
func (d *Driver) SetServiceCounter(months int) error {
	if months < 0 || months > MaxServiceMonths {
		return rangeError("service counter", months, 0, MaxServiceMonths)
	}
	if err := d.SetVariable(VarServiceCounter, byte(months)); err != nil {
		return err
	}
	d.cache.Set(FieldServiceCounter, months)
	return nil
}

// SetHeatingTarget sets the post-heater target (10..27 °C).
// The unit supports eight steps; the cache records the step actually sent.
func (d *Driver) SetHeatingTarget(cel int) error {
	if cel < MinHeatingTarget || cel > MaxHeatingTarget {
		return rangeError("heating target", cel, MinHeatingTarget, MaxHeatingTarget)
	}
	hex := HtCel2Hex(cel)
	if err := d.SetVariable(VarHeatingTarget, hex); err != nil {
		return err
	}
	d.cache.Set(FieldHeatingTarget, Hex2HtCel(hex))
	return nil
}

// Getters read from the cache

func (d *Driver) Updated() time.Time { return d.cache.Updated() }
func (d *Driver) IsOn() bool { return d.cache.IsOn() }
func (d *Driver) IsRhMode() bool { return d.cache.IsRhMode() }
func (d *Driver) IsHeatingMode() bool { return d.cache.IsHeatingMode() }
func (d *Driver) IsSummerMode() bool { return d.cache.IsSummerMode() }
func (d *Driver) IsFilter() bool { return d.cache.IsFilter() }
func (d *Driver) IsHeating() bool { return d.cache.IsHeating() }
func (d *Driver) IsFault() bool { return d.cache.IsFault() }
func (d *Driver) IsServiceNeeded() bool { return d.cache.IsServiceNeeded() }
func (d *Driver) FanSpeed() int { return d.cache.FanSpeed() }
func (d *Driver) DefaultFanSpeed() int { return d.cache.DefaultFanSpeed() }
func (d *Driver) Rh() int { return d.cache.Rh() }
func (d *Driver) ServicePeriod() int { return d.cache.ServicePeriod() }
func (d *Driver) ServiceCounter() int { return d.cache.ServiceCounter() }
func (d *Driver) HeatingTarget() int { return d.cache.HeatingTarget() }
func (d *Driver) InsideTemp() int { return d.cache.InsideTemp() }
func (d *Driver) OutsideTemp() int { return d.cache.OutsideTemp() }
func (d *Driver) IncomingTemp() int { return d.cache.IncomingTemp() }
func (d *Driver) ExhaustTemp() int { return d.cache.ExhaustTemp() }
