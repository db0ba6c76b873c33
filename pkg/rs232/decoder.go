// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rs232

import (
	"fmt"
	"strconv"
	"time"
)

// Decoder pulls frames out of a Buffer one at a time.
//
// Bytes are consumed only when a frame is fully resolved, or when a corrupt
// configuration frame forces a single-byte resynchronization.
type Decoder struct {
	buf *Buffer
}

// NewDecoder creates a decoder reading from buf
func NewDecoder(buf *Buffer) *Decoder {
	return &Decoder{buf: buf}
}

// Buffer returns the buffer the decoder reads from
func (d *Decoder) Buffer() *Buffer {
	return d.buf
}

// Next decodes one frame.
//
// Returns ErrNoData when the buffer is empty and ErrInsufficientData when a frame
// has started but is not complete; nothing is consumed in either case.
// ErrMalformedTerminator and ErrMalformedLength mean a configuration frame was
// rejected and its tag byte dropped. A report with a bad terminator is returned
// with Valid=false and a nil error, since its length is fixed.
func (d *Decoder) Next() (Frame, error) {
	tag, err := d.buf.Read(1)
	if err != nil {
		return nil, ErrNoData
	}

	switch tag[0] {
	case DC2:
		return d.readConfig()
	case STX:
		return d.readReport()
	case Null:
		// Receiver is off and the read timed out
		d.buf.Flush()
		return Powersave{}, nil
	default:
		d.buf.Flush()
		return Unexpected{Byte: tag[0]}, nil
	}
}

func (d *Decoder) readConfig() (Frame, error) {
	defer d.buf.Flush()

	head, err := d.buf.Read(configHeaderSize)
	if err != nil {
		d.buf.Reset()
		return nil, err
	}
	lenField := head[configModelSize+configVersionSize:]
	configLen, err := strconv.ParseUint(string(lenField), 16, 16)
	if err != nil {
		d.resync()
		return nil, fmt.Errorf("%w: %q", ErrMalformedLength, lenField)
	}

	body, err := d.buf.Read(int(configLen) + configTrailerSize)
	if err != nil {
		d.buf.Reset()
		return nil, err
	}
	if end := body[len(body)-1]; end != ETX {
		d.resync()
		return nil, fmt.Errorf("%w: got 0x%02X", ErrMalformedTerminator, end)
	}

	payload := make([]byte, configLen)
	copy(payload, body[:configLen])
	state, cannotWake := ReadinessFromConfig(payload)

	return &ConfigFrame{
		Model:      string(head[:configModelSize]),
		Version:    string(head[configModelSize : configModelSize+configVersionSize]),
		Payload:    payload,
		Checksum:   string(body[configLen : configLen+2]),
		Readiness:  state,
		CannotWake: cannotWake,
		Timestamp:  time.Now(),
	}, nil
}

func (d *Decoder) readReport() (Frame, error) {
	defer d.buf.Flush()

	body, err := d.buf.Read(reportBodySize)
	if err != nil {
		d.buf.Reset()
		return nil, err
	}

	return &Report{
		Category:  string(body[0:1]),
		Guard:     string(body[1:2]),
		Code:      string(body[2:4]),
		Data:      string(body[4:6]),
		Valid:     body[6] == ETX,
		Timestamp: time.Now(),
	}, nil
}

// resync drops the frame's tag byte so decoding restarts on the byte after it
func (d *Decoder) resync() {
	d.buf.Reset()
	_, _ = d.buf.Read(1)
}
