// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/Thermoquad/vallostat/internal/bridge"
	"github.com/Thermoquad/vallostat/pkg/vallox"
)

// idleInterval is how long commands sleep when the bus has nothing buffered
const idleInterval = 5 * time.Millisecond

var errWaitTimeout = errors.New("timeout")

// busPort is a bus port whose reader can stop, such as a StreamPort
type busPort interface {
	vallox.Port
	Done() <-chan struct{}
	Err() error
}

// waitFrame returns the next accepted frame, giving up after timeout or when the port closes
func waitFrame(port busPort, reader *vallox.Reader, timeout time.Duration) (vallox.Frame, error) {
	deadline := time.After(timeout)
	for {
		f, ok, err := reader.Next()
		if err != nil {
			return vallox.Frame{}, err
		}
		if ok {
			return f, nil
		}

		select {
		case <-deadline:
			return vallox.Frame{}, errWaitTimeout
		case <-port.Done():
			if err := port.Err(); err != nil {
				return vallox.Frame{}, err
			}
			return vallox.Frame{}, ErrConnectionClosed
		case <-time.After(idleInterval):
		}
	}
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// outputSpec is a parsed "module:port=on|off" argument
type outputSpec struct {
	module int
	port   int
	on     bool
}

func parseOutputSpec(s string) (outputSpec, error) {
	point, state, ok := strings.Cut(s, "=")
	if !ok {
		return outputSpec{}, fmt.Errorf("invalid output %q (want module:port=on|off)", s)
	}
	mod, port, ok := strings.Cut(point, ":")
	if !ok {
		return outputSpec{}, fmt.Errorf("invalid output %q (want module:port=on|off)", s)
	}

	var spec outputSpec
	var err error
	if spec.module, err = strconv.Atoi(strings.TrimSpace(mod)); err != nil {
		return outputSpec{}, fmt.Errorf("invalid module %q", mod)
	}
	if spec.port, err = strconv.Atoi(strings.TrimSpace(port)); err != nil {
		return outputSpec{}, fmt.Errorf("invalid port %q", port)
	}
	if spec.on, err = bridge.ParseBool(state); err != nil {
		return outputSpec{}, err
	}
	return spec, nil
}

// parseVariables resolves variable names or hex ids. An empty list means every known variable.
func parseVariables(args []string) ([]byte, error) {
	if len(args) == 0 {
		return vallox.KnownVariables, nil
	}
	ids := make([]byte, 0, len(args))
	for _, arg := range args {
		id, err := vallox.ParseVariable(arg)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// pollVariables polls every id once and reports the ones that answered
func pollVariables(ctx context.Context, d *vallox.Driver, ids []byte, fn func(id, value byte, err error)) int {
	answered := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		v, err := d.PollVariable(ctx, id)
		if err == nil {
			answered++
		}
		fn(id, v, err)
	}
	return answered
}
