// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/vallostat/pkg/vallox"
)

func statusCache() *vallox.Cache {
	c := vallox.NewCache()
	c.Apply(vallox.VarFanSpeed, 0x07)
	c.Apply(vallox.VarStatus, vallox.StatusPower)
	return c
}

func TestWriteStatus_Text(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeStatus(&buf, statusCache(), vallox.FormatText))

	out := buf.String()
	assert.Contains(t, out, "fan_speed")
	assert.Contains(t, out, "updated")
	assert.NotContains(t, out, "never")
}

func TestWriteStatus_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeStatus(&buf, statusCache(), vallox.FormatJSON))
	require.True(t, bytes.HasSuffix(buf.Bytes(), []byte("\n")))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, float64(3), decoded["fan_speed"])
	assert.Equal(t, true, decoded["on"])
	assert.NotContains(t, decoded, "rh")
}

func TestWriteStatus_CBOR(t *testing.T) {
	c := statusCache()
	var buf bytes.Buffer
	require.NoError(t, writeStatus(&buf, c, vallox.FormatCBOR))

	state, err := vallox.DecodeState(buf.Bytes(), vallox.FormatCBOR)
	require.NoError(t, err)
	require.NotNil(t, state.FanSpeed)
	assert.Equal(t, 3, *state.FanSpeed)
}

func TestWriteStatus_UnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, writeStatus(&buf, statusCache(), "xml"))
}
