// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rs232

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDecoder(data []byte) *Decoder {
	buf := NewBuffer()
	buf.Append(data)
	return NewDecoder(buf)
}

func TestDecoder_Empty(t *testing.T) {
	d := newTestDecoder(nil)
	f, err := d.Next()
	assert.Nil(t, f)
	assert.ErrorIs(t, err, ErrNoData)
}

func TestDecoder_ConfigFrame(t *testing.T) {
	payload := configPayload(10, '0')
	d := newTestDecoder(buildConfigFrame("R0161", "K", payload, ETX))

	f, err := d.Next()
	require.NoError(t, err)
	cfg, ok := f.(*ConfigFrame)
	require.True(t, ok, "expected *ConfigFrame, got %T", f)

	assert.Equal(t, "R0161", cfg.Model)
	assert.Equal(t, "K", cfg.Version)
	assert.Equal(t, payload, cfg.Payload)
	assert.Equal(t, "5A", cfg.Checksum)
	assert.Equal(t, ReadinessReady, cfg.Readiness)
	assert.False(t, cfg.CannotWake)
	assert.Equal(t, 0, d.Buffer().Len(), "frame bytes must be consumed")
}

func TestReadinessFromConfig(t *testing.T) {
	tests := []struct {
		name       string
		payload    []byte
		expected   Readiness
		cannotWake bool
	}{
		{"ready", configPayload(10, '0'), ReadinessReady, false},
		{"busy", configPayload(10, '1'), ReadinessBusy, false},
		{"standby", configPayload(10, '2'), ReadinessStandby, false},
		{"other status byte", configPayload(10, '7'), ReadinessUnknown, false},
		{"payload too short", configPayload(7, '0'), ReadinessUnknown, false},
		{"empty payload", nil, ReadinessUnknown, false},
		{"wake flag set", withByte(configPayload(150, '0'), configWakeOffset, '1'), ReadinessReady, false},
		{"cannot wake overrides ready", withByte(configPayload(150, '0'), configWakeOffset, '0'), ReadinessError, true},
		{"cannot wake overrides standby", withByte(configPayload(150, '2'), configWakeOffset, '0'), ReadinessError, true},
		{"exactly 144 bytes ignores wake flag", configPayload(144, '2'), ReadinessStandby, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state, cannotWake := ReadinessFromConfig(tt.payload)
			assert.Equal(t, tt.expected, state)
			assert.Equal(t, tt.cannotWake, cannotWake)
		})
	}
}

func withByte(p []byte, i int, b byte) []byte {
	p[i] = b
	return p
}

func TestDecoder_ConfigCannotWake(t *testing.T) {
	payload := withByte(configPayload(150, '0'), configWakeOffset, '0')
	d := newTestDecoder(buildConfigFrame("R0161", "K", payload, ETX))

	f, err := d.Next()
	require.NoError(t, err)
	cfg := f.(*ConfigFrame)
	assert.Equal(t, ReadinessError, cfg.Readiness)
	assert.True(t, cfg.CannotWake)
}

func TestDecoder_PartialConfigIsRetried(t *testing.T) {
	frame := buildConfigFrame("R0161", "K", configPayload(12, '2'), ETX)
	buf := NewBuffer()
	d := NewDecoder(buf)

	// Header only
	buf.Append(frame[:5])
	_, err := d.Next()
	assert.ErrorIs(t, err, ErrInsufficientData)
	assert.Equal(t, 5, buf.Len(), "nothing may be discarded mid-frame")
	assert.Equal(t, 5, buf.Avail(), "cursor must be rewound")

	// Header and part of payload
	buf.Append(frame[5:15])
	_, err = d.Next()
	assert.ErrorIs(t, err, ErrInsufficientData)
	assert.Equal(t, 15, buf.Len())

	buf.Append(frame[15:])
	f, err := d.Next()
	require.NoError(t, err)
	assert.Equal(t, ReadinessStandby, f.(*ConfigFrame).Readiness)
	assert.Equal(t, 0, buf.Len())
}

func TestDecoder_ConfigBadTerminatorResyncs(t *testing.T) {
	corrupt := buildConfigFrame("R0161", "K", configPayload(10, '0'), 'X')
	report := buildReport("26", "01", ETX)
	data := append(append([]byte{}, corrupt...), report...)
	d := newTestDecoder(data)

	f, err := d.Next()
	assert.Nil(t, f)
	assert.ErrorIs(t, err, ErrMalformedTerminator)
	assert.Equal(t, len(data)-1, d.Buffer().Len(), "exactly the tag byte is dropped")
	assert.Equal(t, byte('R'), d.Buffer().Bytes()[0])

	frames, errs := drain(d)
	require.NotEmpty(t, frames)
	unexpected := 0
	for _, f := range frames[:len(frames)-1] {
		if assert.IsType(t, Unexpected{}, f) {
			unexpected++
		}
	}
	assert.Equal(t, len(corrupt)-1, unexpected, "remaining corrupt bytes are skipped one at a time")

	last, ok := frames[len(frames)-1].(*Report)
	require.True(t, ok)
	assert.Equal(t, "26", last.Code)
	assert.Equal(t, "01", last.Data)
	assert.True(t, last.Valid)
	assert.ErrorIs(t, errs[len(errs)-1], ErrNoData)
}

func TestDecoder_ConfigMalformedLength(t *testing.T) {
	frame := buildConfigFrame("R0161", "K", configPayload(10, '0'), ETX)
	frame[7], frame[8] = 'Z', 'Z'
	d := newTestDecoder(frame)

	_, err := d.Next()
	assert.ErrorIs(t, err, ErrMalformedLength)
	assert.Equal(t, len(frame)-1, d.Buffer().Len())
}

func TestDecoder_Report(t *testing.T) {
	d := newTestDecoder(buildReport("26", "A1", ETX))

	f, err := d.Next()
	require.NoError(t, err)
	r, ok := f.(*Report)
	require.True(t, ok)
	assert.Equal(t, "0", r.Category)
	assert.Equal(t, "0", r.Guard)
	assert.Equal(t, "26", r.Code)
	assert.Equal(t, "A1", r.Data)
	assert.True(t, r.Valid)
	assert.Equal(t, 0, d.Buffer().Len())
}

func TestDecoder_ReportBadTerminatorKeepsFrame(t *testing.T) {
	data := append(buildReport("26", "A1", 'Q'), buildReport("20", "00", ETX)...)
	d := newTestDecoder(data)

	f, err := d.Next()
	require.NoError(t, err)
	r := f.(*Report)
	assert.False(t, r.Valid)
	assert.Equal(t, "26", r.Code)
	assert.Equal(t, 8, d.Buffer().Len(), "fixed length consumed even when invalid")

	f, err = d.Next()
	require.NoError(t, err)
	assert.Equal(t, "20", f.(*Report).Code)
	assert.True(t, f.(*Report).Valid)
}

func TestDecoder_PartialReport(t *testing.T) {
	frame := buildReport("26", "A1", ETX)
	buf := NewBuffer()
	d := NewDecoder(buf)

	buf.Append(frame[:4])
	_, err := d.Next()
	assert.True(t, errors.Is(err, ErrInsufficientData))
	assert.Equal(t, 4, buf.Avail())

	buf.Append(frame[4:])
	f, err := d.Next()
	require.NoError(t, err)
	assert.Equal(t, "A1", f.(*Report).Data)
}

func TestDecoder_PowersaveAndUnexpected(t *testing.T) {
	d := newTestDecoder([]byte{Null, 0x7F})

	f, err := d.Next()
	require.NoError(t, err)
	assert.Equal(t, KindPowersave, f.Kind())
	assert.Equal(t, 1, d.Buffer().Len())

	f, err = d.Next()
	require.NoError(t, err)
	assert.Equal(t, Unexpected{Byte: 0x7F}, f)
	assert.Equal(t, 0, d.Buffer().Len())

	_, err = d.Next()
	assert.ErrorIs(t, err, ErrNoData)
}

func TestDecoder_BackToBackFrames(t *testing.T) {
	var data []byte
	data = append(data, buildConfigFrame("R0161", "K", configPayload(9, '0'), ETX)...)
	data = append(data, buildReport("20", "01", ETX)...)
	data = append(data, buildReport("20", "02", ETX)...)
	data = append(data, Null)

	frames, errs := drain(newTestDecoder(data))
	require.Len(t, frames, 4)
	assert.Equal(t, KindConfig, frames[0].Kind())
	assert.Equal(t, "01", frames[1].(*Report).Data)
	assert.Equal(t, "02", frames[2].(*Report).Data)
	assert.Equal(t, KindPowersave, frames[3].Kind())
	assert.Equal(t, []error{ErrNoData}, errs)
}
