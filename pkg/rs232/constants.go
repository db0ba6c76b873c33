// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package rs232 implements the framed RS-232C control protocol spoken by AV receivers.
//
// The channel carries no length prefix or escaping. Frames are recognized by a leading
// control byte and closed by ETX. This package provides a resumable byte buffer, a
// decoder that turns buffered bytes into frames one at a time, command encoding, and
// human-readable formatting of decoded frames.
package rs232

// Control bytes
const (
	STX  = 0x02 // report frame / outbound command
	ETX  = 0x03 // frame terminator
	DC1  = 0x11 // init request
	DC2  = 0x12 // configuration frame
	Null = 0x00 // powersave sentinel
)

// Configuration frame layout (bytes following the DC2 tag)
const (
	configModelSize   = 5
	configVersionSize = 1
	configHeaderSize  = configModelSize + configVersionSize + 2 // + lenHi, lenLo
	configTrailerSize = 3                                       // checksumHi, checksumLo, ETX
)

// Report frame layout (bytes following the STX tag)
const (
	reportBodySize = 7 // category, guard, code[2], data[2], ETX
)

// Offsets into the configuration payload
const (
	configStatusOffset = 7   // '0' ready, '1' busy, '2' standby
	configWakeOffset   = 144 // '0' means the receiver cannot be woken over RS-232
)

// Outbound command payload sizes
const (
	OperationPayloadSize = 3
	SystemPayloadSize    = 4
)
