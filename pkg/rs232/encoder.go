// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rs232

import "fmt"

// CommandKind is the outbound command class, chosen by payload length
type CommandKind int

// Command kinds
const (
	CommandOperation CommandKind = iota // 3-byte payload
	CommandSystem                       // 4-byte payload
)

// String returns the command kind name
func (k CommandKind) String() string {
	switch k {
	case CommandOperation:
		return "operation"
	case CommandSystem:
		return "system"
	default:
		return "unknown"
	}
}

// ClassifyCommand returns the command kind for a payload
func ClassifyCommand(payload []byte) (CommandKind, error) {
	switch len(payload) {
	case OperationPayloadSize:
		return CommandOperation, nil
	case SystemPayloadSize:
		return CommandSystem, nil
	default:
		return 0, fmt.Errorf("%w: %d bytes (%q)", ErrUnknownCommandShape, len(payload), payload)
	}
}

// EncodeCommand frames a command payload for transmission.
//
//	operation: STX '0' '7' payload[3] ETX
//	system:    STX '2' payload[4] ETX
func EncodeCommand(payload []byte) ([]byte, error) {
	kind, err := ClassifyCommand(payload)
	if err != nil {
		return nil, err
	}

	frame := make([]byte, 0, len(payload)+4)
	frame = append(frame, STX)
	switch kind {
	case CommandOperation:
		frame = append(frame, '0', '7')
	case CommandSystem:
		frame = append(frame, '2')
	}
	frame = append(frame, payload...)
	frame = append(frame, ETX)
	return frame, nil
}

// InitSequence returns the request that makes the receiver send its configuration frame
func InitSequence() []byte {
	return []byte{DC1, '0', '0', '0', ETX}
}
