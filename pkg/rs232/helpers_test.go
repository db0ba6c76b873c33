// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rs232

import (
	"bytes"
	"fmt"
)

// configPayload builds a configuration payload of n bytes with the status byte set
func configPayload(n int, status byte) []byte {
	p := bytes.Repeat([]byte{'1'}, n)
	if n > configStatusOffset {
		p[configStatusOffset] = status
	}
	return p
}

// buildConfigFrame builds a DC2 frame with the given payload and terminator
func buildConfigFrame(model, version string, payload []byte, end byte) []byte {
	out := []byte{DC2}
	out = append(out, model...)
	out = append(out, version...)
	out = append(out, fmt.Sprintf("%02X", len(payload))...)
	out = append(out, payload...)
	out = append(out, '5', 'A', end)
	return out
}

// buildReport builds an STX report frame
func buildReport(code, data string, end byte) []byte {
	out := []byte{STX, '0', '0'}
	out = append(out, code...)
	out = append(out, data...)
	out = append(out, end)
	return out
}

// drain decodes frames until the decoder stops making progress
func drain(d *Decoder) ([]Frame, []error) {
	var frames []Frame
	var errs []error
	for {
		f, err := d.Next()
		if err != nil {
			errs = append(errs, err)
			if err == ErrNoData || isInsufficient(err) {
				return frames, errs
			}
			continue
		}
		frames = append(frames, f)
	}
}
