// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vallox

import (
	"math/rand"
	"os"
	"strconv"
	"testing"
	"time"
)

// getFuzzRounds returns the number of fuzz rounds from FUZZ_ROUNDS env var, default 1000
func getFuzzRounds() int {
	if envRounds := os.Getenv("FUZZ_ROUNDS"); envRounds != "" {
		if rounds, err := strconv.Atoi(envRounds); err == nil && rounds > 0 {
			return rounds
		}
	}
	return 1000
}

// getFuzzSeed returns the seed from FUZZ_SEED env var, or generates one from current time
func getFuzzSeed() int64 {
	if envSeed := os.Getenv("FUZZ_SEED"); envSeed != "" {
		if seed, err := strconv.ParseInt(envSeed, 10, 64); err == nil {
			return seed
		}
	}
	return time.Now().UnixNano()
}

// newFuzzRng creates a new random number generator and logs the seed for reproducibility
func newFuzzRng(t *testing.T) *rand.Rand {
	seed := getFuzzSeed()
	t.Logf("Seed: %d (reproduce with FUZZ_SEED=%d)", seed, seed)
	return rand.New(rand.NewSource(seed))
}

// randomAcceptedFrame builds a frame that passes the address filter
func randomAcceptedFrame(rng *rand.Rand) Frame {
	senders := []byte{AddressMainboard1, AddressPanel1}
	receivers := []byte{AddressMainboards, AddressMainboard1, AddressPanels, AddressPanel1}
	return NewFrame(
		senders[rng.Intn(len(senders))],
		receivers[rng.Intn(len(receivers))],
		byte(rng.Intn(256)),
		byte(rng.Intn(256)),
	)
}

// ============================================================
// Reader Fuzz Tests
// ============================================================

func TestFuzz_RandomBytes(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)
	t.Logf("Running %d fuzz rounds", rounds)

	for i := 0; i < rounds; i++ {
		length := rng.Intn(200)
		data := make([]byte, length)
		rng.Read(data)

		port := &fakePort{in: data}
		stats := NewStatistics()
		r := NewReader(port, stats)

		for {
			f, ok, err := r.Next()
			if err != nil {
				t.Fatalf("Round %d: unexpected error: %v", i, err)
			}
			if !ok {
				break
			}
			if !f.Verify() || !f.Accepted() {
				t.Fatalf("Round %d: reader returned invalid frame %s", i, FormatHex(f))
			}
		}

		if port.Available() >= FrameLength {
			t.Fatalf("Round %d: reader left %d bytes unread", i, port.Available())
		}
	}
}

func TestFuzz_ValidFramesWithNoise(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)
	t.Logf("Running %d fuzz rounds", rounds)

	for i := 0; i < rounds; i++ {
		port := &fakePort{}
		expected := []Frame{}
		n := 1 + rng.Intn(10)
		for j := 0; j < n; j++ {
			// noise never contains the domain byte, so it is always skipped
			for k := rng.Intn(4); k > 0; k-- {
				b := byte(rng.Intn(256))
				if b == Domain {
					b = 0x00
				}
				port.in = append(port.in, b)
			}
			f := randomAcceptedFrame(rng)
			port.feed(f)
			expected = append(expected, f)
		}

		r := NewReader(port, nil)
		for j, want := range expected {
			got, ok, err := r.Next()
			if err != nil || !ok {
				t.Fatalf("Round %d frame %d: expected frame, got ok=%v err=%v", i, j, ok, err)
			}
			if got != want {
				t.Fatalf("Round %d frame %d: expected %s, got %s", i, j, FormatHex(want), FormatHex(got))
			}
		}
	}
}

func TestFuzz_CorruptedFrames(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)
	t.Logf("Running %d fuzz rounds", rounds)

	for i := 0; i < rounds; i++ {
		f := randomAcceptedFrame(rng)
		b := f.Bytes()
		pos := 1 + rng.Intn(FrameLength-1)
		b[pos] ^= byte(1 + rng.Intn(255))

		stats := NewStatistics()
		r := NewReader(&fakePort{in: b[:]}, stats)
		got, ok, err := r.Next()
		if err != nil {
			t.Fatalf("Round %d: unexpected error: %v", i, err)
		}
		if ok {
			t.Fatalf("Round %d: corrupted frame %s accepted as %s", i, FormatHex(f), FormatHex(got))
		}
		if stats.ChecksumErrors != 1 {
			t.Fatalf("Round %d: expected 1 checksum error, got %d", i, stats.ChecksumErrors)
		}
	}
}

// ============================================================
// Conversion Fuzz Tests
// ============================================================

func TestFuzz_CacheApplyNeverPanics(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)

	c := NewCache()
	for i := 0; i < rounds; i++ {
		c.Apply(byte(rng.Intn(256)), byte(rng.Intn(256)))
	}

	for _, f := range Fields() {
		v := c.Get(f)
		if f.IsFlag() && v != NotSet && v != 0 && v != 1 {
			t.Errorf("Flag %s holds %d", f, v)
		}
	}
}
