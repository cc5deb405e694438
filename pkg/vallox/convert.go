// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vallox

// fanSpeeds maps fan speed 1..8 (index+1) to its thermometer-coded bus value
var fanSpeeds = [MaxFanSpeed]byte{0x01, 0x03, 0x07, 0x0F, 0x1F, 0x3F, 0x7F, 0xFF}

// ntcTemps maps a raw NTC reading to degrees Celsius
var ntcTemps = [256]int8{
	-74, -70, -66, -62, -59, -56, -54, -52, -50, -48, // 0x00 - 0x09
	-47, -46, -44, -43, -42, -41, -40, -39, -38, -37, // 0x0a - 0x13
	-36, -35, -34, -33, -33, -32, -31, -30, -30, -29, // 0x14 - 0x1d
	-28, -28, -27, -27, -26, -25, -25, -24, -24, -23, // 0x1e - 0x27
	-23, -22, -22, -21, -21, -20, -20, -19, -19, -19, // 0x28 - 0x31
	-18, -18, -17, -17, -16, -16, -16, -15, -15, -14, // 0x32 - 0x3b
	-14, -14, -13, -13, -12, -12, -12, -11, -11, -11, // 0x3c - 0x45
	-10, -10, -9, -9, -9, -8, -8, -8, -7, -7, // 0x46 - 0x4f
	-7, -6, -6, -6, -5, -5, -5, -4, -4, -4, // 0x50 - 0x59
	-3, -3, -3, -2, -2, -2, -1, -1, -1, -1, // 0x5a - 0x63
	0, 0, 0, 1, 1, 1, 2, 2, 2, 3, // 0x64 - 0x6d
	3, 3, 4, 4, 4, 5, 5, 5, 5, 6, // 0x6e - 0x77
	6, 6, 7, 7, 7, 8, 8, 8, 9, 9, // 0x78 - 0x81
	9, 10, 10, 10, 11, 11, 11, 12, 12, 12, // 0x82 - 0x8b
	13, 13, 13, 14, 14, 14, 15, 15, 15, 16, // 0x8c - 0x95
	16, 16, 17, 17, 18, 18, 18, 19, 19, 19, // 0x96 - 0x9f
	20, 20, 21, 21, 21, 22, 22, 22, 23, 23, // 0xa0 - 0xa9
	24, 24, 24, 25, 25, 26, 26, 27, 27, 27, // 0xaa - 0xb3
	28, 28, 29, 29, 30, 30, 31, 31, 32, 32, // 0xb4 - 0xbd
	33, 33, 34, 34, 35, 35, 36, 36, 37, 37, // 0xbe - 0xc7
	38, 38, 39, 40, 40, 41, 41, 42, 43, 43, // 0xc8 - 0xd1
	44, 45, 45, 46, 47, 48, 48, 49, 50, 51, // 0xd2 - 0xdb
	52, 53, 53, 54, 55, 56, 57, 59, 60, 61, // 0xdc - 0xe5
	62, 63, 65, 66, 68, 69, 71, 73, 75, 77, // 0xe6 - 0xef
	79, 81, 82, 86, 90, 93, 97, 100, 100, 100, // 0xf0 - 0xf9
	100, 100, 100, 100, 100, 100, // 0xfa - 0xff
}

// heatingTargets maps the heating target bus value to degrees Celsius
var heatingTargets = []struct {
	hex byte
	cel int
}{
	{0x01, 10},
	{0x03, 13},
	{0x07, 15},
	{0x0F, 18},
	{0x1F, 20},
	{0x3F, 23},
	{0x7F, 25},
	{0xFF, 27},
}

// rhOffset is the raw humidity value that corresponds to 0 %
const rhOffset = 51

// FanSpeed2Hex encodes fan speed 1..8. Out-of-range speeds encode as speed 1.
func FanSpeed2Hex(speed int) byte {
	if speed >= MinFanSpeed && speed <= MaxFanSpeed {
		return fanSpeeds[speed-1]
	}
	return fanSpeeds[0]
}

// Hex2FanSpeed decodes a fan speed, returning NotSet for values outside the table
func Hex2FanSpeed(hex byte) int {
	for i, v := range fanSpeeds {
		if v == hex {
			return i + 1
		}
	}
	return NotSet
}

// Ntc2Cel converts a raw NTC reading to degrees Celsius
func Ntc2Cel(ntc byte) int {
	return int(ntcTemps[ntc])
}

// Cel2Ntc returns the first raw reading that maps to cel, or 0x83 (10 °C) if none does
func Cel2Ntc(cel int) byte {
	for i, v := range ntcTemps {
		if int(v) == cel {
			return byte(i)
		}
	}
	return 0x83
}

// Hex2Rh converts a raw humidity reading to percent, or NotSet below the sensor offset.
// The scale is 2.04 raw steps per percent.
func Hex2Rh(hex byte) int {
	if hex < rhOffset {
		return NotSet
	}
	return (int(hex) - rhOffset) * 100 / 204
}

// Hex2HtCel decodes a heating target, returning NotSet for values outside the table
func Hex2HtCel(hex byte) int {
	for _, t := range heatingTargets {
		if t.hex == hex {
			return t.cel
		}
	}
	return NotSet
}

// HtCel2Hex encodes a heating target, rounding down to the nearest supported step.
// Values above the highest step encode as the lowest step.
func HtCel2Hex(cel int) byte {
	if cel > MaxHeatingTarget {
		return heatingTargets[0].hex
	}
	hex := heatingTargets[0].hex
	for _, t := range heatingTargets {
		if cel >= t.cel {
			hex = t.hex
		}
	}
	return hex
}
