// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mqtt

import (
	"fmt"
	"strings"
)

// DefaultTopicPrefix is used when no prefix is configured
const DefaultTopicPrefix = "vallostat"

const resultSuffix = "/result"

// Topics builds the daemon's topics below a prefix.
//
//	topics := mqtt.NewTopics("home/ventilation")
//	topics.Command("fan_speed")
//	// Returns: "home/ventilation/command/fan_speed"
type Topics struct {
	prefix string
}

// NewTopics creates a topic builder; surrounding slashes are trimmed
func NewTopics(prefix string) Topics {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{prefix: prefix}
}

// Prefix returns the normalized prefix
func (t Topics) Prefix() string {
	return t.prefix
}

// =============================================================================
// Unit Topics
// =============================================================================

// Status returns the online/offline topic.
//
// Example: vallostat/status
func (t Topics) Status() string {
	return t.prefix + "/status"
}

// State returns the retained unit state topic.
//
// Example: vallostat/state
func (t Topics) State() string {
	return t.prefix + "/state"
}

// Command returns the command topic for a setting.
//
// Example: vallostat/command/fan_speed
func (t Topics) Command(setting string) string {
	return fmt.Sprintf("%s/command/%s", t.prefix, setting)
}

// CommandResult returns the topic the outcome of a command is published on.
//
// Example: vallostat/command/fan_speed/result
func (t Topics) CommandResult(setting string) string {
	return t.Command(setting) + resultSuffix
}

// AllCommands matches every command topic.
//
// Pattern: vallostat/command/+
func (t Topics) AllCommands() string {
	return t.prefix + "/command/+"
}

// ParseCommand extracts the setting from a command topic
func (t Topics) ParseCommand(topic string) (string, bool) {
	return t.parse(topic, "/command/", "")
}

// =============================================================================
// IHC Topics
// =============================================================================

// IHCState returns the retained state topic for a named IHC point.
//
// Example: vallostat/ihc/porch
func (t Topics) IHCState(name string) string {
	return fmt.Sprintf("%s/ihc/%s", t.prefix, name)
}

// IHCSet returns the command topic for a named IHC output.
//
// Example: vallostat/ihc/porch/set
func (t Topics) IHCSet(name string) string {
	return t.IHCState(name) + "/set"
}

// AllIHCSets matches every IHC output command topic.
//
// Pattern: vallostat/ihc/+/set
func (t Topics) AllIHCSets() string {
	return t.prefix + "/ihc/+/set"
}

// ParseIHCSet extracts the point name from an IHC command topic
func (t Topics) ParseIHCSet(topic string) (string, bool) {
	return t.parse(topic, "/ihc/", "/set")
}

func (t Topics) parse(topic, infix, suffix string) (string, bool) {
	rest, ok := strings.CutPrefix(topic, t.prefix+infix)
	if !ok {
		return "", false
	}
	if suffix != "" {
		if rest, ok = strings.CutSuffix(rest, suffix); !ok {
			return "", false
		}
	}
	if rest == "" || strings.Contains(rest, "/") {
		return "", false
	}
	return rest, true
}
