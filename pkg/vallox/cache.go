// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vallox

import "time"

// Field identifies one logical value held by the Cache
type Field int

const (
	FieldOn Field = iota
	FieldRhMode
	FieldHeatingMode
	FieldSummerMode
	FieldFilter
	FieldHeating
	FieldFault
	FieldService
	FieldFanSpeed
	FieldDefaultFanSpeed
	FieldRh
	FieldServicePeriod
	FieldServiceCounter
	FieldHeatingTarget
	FieldTempOutside
	FieldTempInside
	FieldTempExhaust
	FieldTempIncoming
	fieldCount
)

var fieldNames = [fieldCount]string{
	FieldOn:              "on",
	FieldRhMode:          "rh_mode",
	FieldHeatingMode:     "heating_mode",
	FieldSummerMode:      "summer_mode",
	FieldFilter:          "filter",
	FieldHeating:         "heating",
	FieldFault:           "fault",
	FieldService:         "service_needed",
	FieldFanSpeed:        "fan_speed",
	FieldDefaultFanSpeed: "default_fan_speed",
	FieldRh:              "rh",
	FieldServicePeriod:   "service_period",
	FieldServiceCounter:  "service_counter",
	FieldHeatingTarget:   "heating_target",
	FieldTempOutside:     "temp_outside",
	FieldTempInside:      "temp_inside",
	FieldTempExhaust:     "temp_exhaust",
	FieldTempIncoming:    "temp_incoming",
}

// String returns the snake_case name of the field
func (f Field) String() string {
	if f < 0 || f >= fieldCount {
		return "unknown"
	}
	return fieldNames[f]
}

// IsFlag reports whether the field holds a boolean
func (f Field) IsFlag() bool {
	return f <= FieldService
}

// Fields returns every cache field in declaration order
func Fields() []Field {
	fields := make([]Field, fieldCount)
	for i := range fields {
		fields[i] = Field(i)
	}
	return fields
}

// slot binds a decoder to the cache field it fills
type slot struct {
	field  Field
	decode func(byte) int
}

func flag(mask byte) func(byte) int {
	return func(v byte) int {
		if v&mask != 0 {
			return 1
		}
		return 0
	}
}

func raw(v byte) int {
	return int(v)
}

// dispatch maps a variable id to the fields it updates.
// VarStatus fans out into seven independent flags.
var dispatch = map[byte][]slot{
	VarStatus: {
		{FieldOn, flag(StatusPower)},
		{FieldRhMode, flag(StatusRh)},
		{FieldHeatingMode, flag(StatusHeatingMode)},
		{FieldFilter, flag(StatusFilter)},
		{FieldHeating, flag(StatusHeating)},
		{FieldFault, flag(StatusFault)},
		{FieldService, flag(StatusService)},
	},
	VarIO08:            {{FieldSummerMode, flag(IO08SummerMode)}},
	VarFanSpeed:        {{FieldFanSpeed, Hex2FanSpeed}},
	VarDefaultFanSpeed: {{FieldDefaultFanSpeed, Hex2FanSpeed}},
	VarRh:              {{FieldRh, Hex2Rh}},
	VarServicePeriod:   {{FieldServicePeriod, raw}},
	VarServiceCounter:  {{FieldServiceCounter, raw}},
	VarHeatingTarget:   {{FieldHeatingTarget, Hex2HtCel}},
	VarTempOutside:     {{FieldTempOutside, Ntc2Cel}},
	VarTempInside:      {{FieldTempInside, Ntc2Cel}},
	VarTempExhaust:     {{FieldTempExhaust, Ntc2Cel}},
	VarTempIncoming:    {{FieldTempIncoming, Ntc2Cel}},
}

// IsKnownVariable reports whether the cache decodes the variable
func IsKnownVariable(id byte) bool {
	_, ok := dispatch[id]
	return ok
}

// VariableOf returns the variable that carries a field
func VariableOf(field Field) (byte, bool) {
	for id, slots := range dispatch {
		for _, s := range slots {
			if s.field == field {
				return id, true
			}
		}
	}
	return 0, false
}

// DecodeField decodes a raw value for a field
func DecodeField(field Field, value byte) int {
	for _, slots := range dispatch {
		for _, s := range slots {
			if s.field == field {
				return s.decode(value)
			}
		}
	}
	return NotSet
}

// Cache holds the last known device state.
//
// Flags are stored as 0/1 and every field starts as NotSet. The updated
// timestamp moves only when a stored value actually changes.
// A Cache is not safe for concurrent use.
type Cache struct {
	values  [fieldCount]int
	updated time.Time
	now     func() time.Time
}

// NewCache creates a cache with every field NotSet
func NewCache() *Cache {
	c := &Cache{now: time.Now}
	for i := range c.values {
		c.values[i] = NotSet
	}
	return c
}

// Apply decodes a variable into its fields. It returns true if any field changed.
// Unknown variables are ignored.
func (c *Cache) Apply(id, value byte) bool {
	changed := false
	for _, s := range dispatch[id] {
		if c.Set(s.field, s.decode(value)) {
			changed = true
		}
	}
	return changed
}

// Set stores a decoded value. It returns true if the value differed.
func (c *Cache) Set(field Field, v int) bool {
	if field < 0 || field >= fieldCount {
		return false
	}
	if c.values[field] == v {
		return false
	}
	c.values[field] = v
	c.updated = c.now()
	return true
}

// SetFlag stores a boolean field
func (c *Cache) SetFlag(field Field, on bool) bool {
	return c.Set(field, boolToInt(on))
}

// Get returns a field's value, or NotSet
func (c *Cache) Get(field Field) int {
	if field < 0 || field >= fieldCount {
		return NotSet
	}
	return c.values[field]
}

// IsSet reports whether a field has been read or written
func (c *Cache) IsSet(field Field) bool {
	return c.Get(field) != NotSet
}

// Updated returns the time of the last change (zero if nothing was ever set)
func (c *Cache) Updated() time.Time {
	return c.updated
}

func (c *Cache) flag(field Field) bool {
	return c.values[field] == 1
}

func (c *Cache) IsOn() bool { return c.flag(FieldOn) }
func (c *Cache) IsRhMode() bool { return c.flag(FieldRhMode) }
func (c *Cache) IsHeatingMode() bool { return c.flag(FieldHeatingMode) }
func (c *Cache) IsSummerMode() bool { return c.flag(FieldSummerMode) }
func (c *Cache) IsFilter() bool { return c.flag(FieldFilter) }
func (c *Cache) IsHeating() bool { return c.flag(FieldHeating) }
func (c *Cache) IsFault() bool { return c.flag(FieldFault) }
func (c *Cache) IsServiceNeeded() bool { return c.flag(FieldService) }

func (c *Cache) FanSpeed() int { return c.values[FieldFanSpeed] }
func (c *Cache) DefaultFanSpeed() int { return c.values[FieldDefaultFanSpeed] }
func (c *Cache) Rh() int { return c.values[FieldRh] }
func (c *Cache) ServicePeriod() int { return c.values[FieldServicePeriod] }
func (c *Cache) ServiceCounter() int { return c.values[FieldServiceCounter] }
func (c *Cache) HeatingTarget() int { return c.values[FieldHeatingTarget] }
func (c *Cache) InsideTemp() int { return c.values[FieldTempInside] }
func (c *Cache) OutsideTemp() int { return c.values[FieldTempOutside] }
func (c *Cache) IncomingTemp() int { return c.values[FieldTempIncoming] }
func (c *Cache) ExhaustTemp() int { return c.values[FieldTempExhaust] }

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
