// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ihc

import (
	"fmt"
	"sort"
	"time"
)

// IOConfig names one controller point
type IOConfig struct {
	Name   string `mapstructure:"name" yaml:"name"`
	Module int    `mapstructure:"module" yaml:"module"`
	Port   int    `mapstructure:"port" yaml:"port"`
	Input  bool   `mapstructure:"input" yaml:"input"`
}

// IO is a named output (or input) point on an IHC module
type IO struct {
	name     string
	module   int
	port     int
	isOutput bool
	state    bool
	changeID int64
	now      func() time.Time
}

func (io *IO) Name() string { return io.name }
func (io *IO) Module() int { return io.module }
func (io *IO) Port() int { return io.port }
func (io *IO) IsOutput() bool { return io.isOutput }
func (io *IO) State() bool { return io.state }
func (io *IO) ChangeID() int64 { return io.changeID }

// SetState records a state. It returns true if the point had never been set
// or the state differs. A zero changeID is replaced by the current time in ms.
func (io *IO) SetState(state bool, changeID int64) bool {
	if io.changeID != 0 && io.state == state {
		return false
	}
	io.state = state
	if changeID == 0 {
		changeID = io.now().UnixMilli()
	}
	io.changeID = changeID
	return true
}

// Registry holds the configured points
type Registry struct {
	ios []*IO
	now func() time.Time
}

// NewRegistry validates the configuration and builds a registry
func NewRegistry(configs []IOConfig) (*Registry, error) {
	r := &Registry{now: time.Now}
	seen := map[[2]int]string{}
	for _, c := range configs {
		if err := validatePoint(c.Module, c.Port); err != nil {
			return nil, fmt.Errorf("io %q: %w", c.Name, err)
		}
		key := [2]int{c.Module, c.Port}
		if other, ok := seen[key]; ok {
			return nil, fmt.Errorf("io %q: module %d port %d already used by %q", c.Name, c.Module, c.Port, other)
		}
		seen[key] = c.Name
		r.ios = append(r.ios, &IO{
			name:     c.Name,
			module:   c.Module,
			port:     c.Port,
			isOutput: !c.Input,
			now:      r.clock,
		})
	}
	sort.Slice(r.ios, func(i, j int) bool {
		if r.ios[i].module != r.ios[j].module {
			return r.ios[i].module < r.ios[j].module
		}
		return r.ios[i].port < r.ios[j].port
	})
	return r, nil
}

func (r *Registry) clock() time.Time {
	return r.now()
}

func validatePoint(module, port int) error {
	if module < 1 || module > MaxModules {
		return fmt.Errorf("module %d out of range 1..%d", module, MaxModules)
	}
	if port < 1 || port > MaxPorts {
		return fmt.Errorf("port %d out of range 1..%d", port, MaxPorts)
	}
	return nil
}

// IOs returns every point ordered by module and port
func (r *Registry) IOs() []*IO {
	return r.ios
}

// Find returns the point at module/port, or nil
func (r *Registry) Find(module, port int) *IO {
	for _, io := range r.ios {
		if io.module == module && io.port == port {
			return io
		}
	}
	return nil
}

// FindByName returns the point with the given name, or nil
func (r *Registry) FindByName(name string) *IO {
	for _, io := range r.ios {
		if io.name == name {
			return io
		}
	}
	return nil
}

// UpdateStates applies an OUTP_STATE payload: byte i is module i+1 and bit p
// is port p+1. It returns the change id used (0 if nothing changed) and the
// points that changed.
func (r *Registry) UpdateStates(data []byte) (int64, []*IO) {
	changeID := r.now().UnixMilli()
	var changed []*IO
	for mi, b := range data {
		for pi := 0; pi < MaxPorts; pi++ {
			io := r.Find(mi+1, pi+1)
			if io == nil {
				continue
			}
			if io.SetState(b&(1<<pi) != 0, changeID) {
				changed = append(changed, io)
			}
		}
	}
	if len(changed) == 0 {
		return 0, nil
	}
	return changeID, changed
}

// ChangeOutput builds the SET_OUTPUT packet that switches one output
func ChangeOutput(module, port int, state bool) (*Packet, error) {
	if err := validatePoint(module, port); err != nil {
		return nil, err
	}
	var v byte
	if state {
		v = 0x01
	}
	return NewPacket(IDIHC, CmdSetOutput, []byte{byte((module-1)*10 + port), v})
}
