// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bridge

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/Thermoquad/vallostat/pkg/vallox"
)

// ErrUnknownSetting is returned for a setting name Execute does not know
var ErrUnknownSetting = errors.New("unknown setting")

type setter func(ctx context.Context, d *vallox.Driver, value string) error

func intSetter(fn func(d *vallox.Driver, v int) error) setter {
	return func(_ context.Context, d *vallox.Driver, value string) error {
		v, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("invalid number %q", value)
		}
		return fn(d, v)
	}
}

func boolSetter(fn func(d *vallox.Driver, ctx context.Context, on bool) error) setter {
	return func(ctx context.Context, d *vallox.Driver, value string) error {
		on, err := ParseBool(value)
		if err != nil {
			return err
		}
		return fn(d, ctx, on)
	}
}

var setters = map[string]setter{
	"power": boolSetter(func(d *vallox.Driver, ctx context.Context, on bool) error {
		if on {
			return d.SetOn(ctx)
		}
		return d.SetOff(ctx)
	}),
	"fan_speed":         intSetter((*vallox.Driver).SetFanSpeed),
	"default_fan_speed": intSetter((*vallox.Driver).SetDefaultFanSpeed),
	"rh_mode":           boolSetter((*vallox.Driver).SetRhMode),
	"heating_mode":      boolSetter((*vallox.Driver).SetHeatingMode),
	"service_period":    intSetter((*vallox.Driver).SetServicePeriod),
	"service_counter":   intSetter((*vallox.Driver).SetServiceCounter),
	"heating_target":    intSetter((*vallox.Driver).SetHeatingTarget),
}

// Settings returns the names accepted by Execute, sorted
func Settings() []string {
	names := make([]string, 0, len(setters))
	for name := range setters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Execute applies one textual setting to the unit, e.g. ("fan_speed", "4")
// or ("power", "off"). It must run on the goroutine that owns d.
func Execute(ctx context.Context, d *vallox.Driver, setting, value string) error {
	fn, ok := setters[strings.ToLower(setting)]
	if !ok {
		return fmt.Errorf("%w %q (valid: %s)", ErrUnknownSetting, setting, strings.Join(Settings(), ", "))
	}
	return fn(ctx, d, value)
}

// ParseBool accepts on/off, true/false, 1/0 and yes/no
func ParseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "on", "true", "1", "yes":
		return true, nil
	case "off", "false", "0", "no":
		return false, nil
	default:
		return false, fmt.Errorf("invalid switch value %q (use on or off)", s)
	}
}
