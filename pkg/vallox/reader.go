// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vallox

import "fmt"

// Reader extracts frames from a Port.
//
// Bytes before a domain byte are discarded (resync). Once a domain byte is
// seen the next five bytes are consumed unconditionally, so a byte lost
// mid-frame corrupts that frame only. Frames that fail the checksum or the
// address filter are dropped and counted.
type Reader struct {
	port  Port
	stats *Statistics
	buf   [FrameLength]byte
}

// NewReader creates a reader. stats may be nil.
func NewReader(port Port, stats *Statistics) *Reader {
	return &Reader{port: port, stats: stats}
}

// Statistics returns the reader's statistics tracker (may be nil)
func (r *Reader) Statistics() *Statistics {
	return r.stats
}

// Next returns the next accepted frame.
// ok is false when fewer than FrameLength bytes are buffered; Next never blocks.
func (r *Reader) Next() (Frame, bool, error) {
	for r.port.Available() >= FrameLength {
		b, err := r.port.ReadByte()
		if err != nil {
			return Frame{}, false, err
		}
		if b != Domain {
			if r.stats != nil {
				r.stats.ResyncBytes++
			}
			continue
		}

		r.buf[0] = b
		for i := 1; i < FrameLength; i++ {
			if r.buf[i], err = r.port.ReadByte(); err != nil {
				return Frame{}, false, err
			}
		}

		f, err := DecodeFrame(r.buf[:])
		if err != nil {
			r.record(nil, err)
			continue
		}
		if !f.Accepted() {
			r.record(&f, fmt.Errorf("%w: 0x%02X -> 0x%02X", ErrAddress, f.Sender, f.Receiver))
			continue
		}

		r.record(&f, nil)
		return f, true, nil
	}
	return Frame{}, false, nil
}

func (r *Reader) record(f *Frame, err error) {
	if r.stats == nil {
		return
	}
	if err != nil {
		r.stats.Update(f, err, nil)
		return
	}
	r.stats.Update(f, nil, ValidateFrame(*f))
}
