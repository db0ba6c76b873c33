// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rs232

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeCommand(t *testing.T) {
	tests := []struct {
		name     string
		payload  string
		expected []byte
		kind     CommandKind
	}{
		{
			name:     "operation command",
			payload:  "A1D",
			expected: []byte{STX, '0', '7', 'A', '1', 'D', ETX},
			kind:     CommandOperation,
		},
		{
			name:     "system command",
			payload:  "0001",
			expected: []byte{STX, '2', '0', '0', '0', '1', ETX},
			kind:     CommandSystem,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EncodeCommand([]byte(tt.payload))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)

			kind, err := ClassifyCommand([]byte(tt.payload))
			require.NoError(t, err)
			assert.Equal(t, tt.kind, kind)
		})
	}
}

func TestEncodeCommand_UnknownShape(t *testing.T) {
	for _, payload := range []string{"", "A", "AB", "ABCDE", "0123456789"} {
		got, err := EncodeCommand([]byte(payload))
		assert.ErrorIs(t, err, ErrUnknownCommandShape, "payload %q", payload)
		assert.Nil(t, got)
	}
}

func TestInitSequence(t *testing.T) {
	assert.Equal(t, []byte{0x11, '0', '0', '0', 0x03}, InitSequence())
}

func TestCommandKindString(t *testing.T) {
	assert.Equal(t, "operation", CommandOperation.String())
	assert.Equal(t, "system", CommandSystem.String())
}
