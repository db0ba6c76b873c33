// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rs232

import "errors"

var (
	// ErrNoData means the buffer held no byte to start a frame with
	ErrNoData = errors.New("no data")

	// ErrInsufficientData means a frame is only partially buffered.
	// The cursor has been rewound; retry after more bytes arrive.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrMalformedTerminator means a configuration frame did not end in ETX.
	// The decoder has dropped the DC2 tag byte and will resynchronize on the next byte.
	ErrMalformedTerminator = errors.New("malformed terminator")

	// ErrMalformedLength means a configuration frame length was not hexadecimal.
	// Handled like ErrMalformedTerminator.
	ErrMalformedLength = errors.New("malformed length")

	// ErrUnknownCommandShape means a command payload is neither 3 nor 4 bytes
	ErrUnknownCommandShape = errors.New("unknown command shape")
)
