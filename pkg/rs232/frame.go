// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rs232

import "time"

// Kind identifies the variant of a decoded frame
type Kind int

// Frame kinds
const (
	KindConfig Kind = iota
	KindReport
	KindPowersave
	KindUnexpected
)

// String returns the frame kind name
func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "CONFIG"
	case KindReport:
		return "REPORT"
	case KindPowersave:
		return "POWERSAVE"
	case KindUnexpected:
		return "UNEXPECTED"
	default:
		return "UNKNOWN"
	}
}

// Frame is one decoded unit from the channel: *ConfigFrame, *Report, Powersave or Unexpected
type Frame interface {
	Kind() Kind
}

// Readiness is the receiver state announced by a configuration frame
type Readiness int

// Readiness values
const (
	ReadinessUnknown Readiness = iota
	ReadinessReady
	ReadinessBusy
	ReadinessStandby
	ReadinessError
)

// String returns the lowercase state name used in status output
func (r Readiness) String() string {
	switch r {
	case ReadinessReady:
		return "ready"
	case ReadinessBusy:
		return "busy"
	case ReadinessStandby:
		return "standby"
	case ReadinessError:
		return "error"
	default:
		return "unknown"
	}
}

// Accepting returns true for the states in which the receiver takes commands
func (r Readiness) Accepting() bool {
	return r == ReadinessReady || r == ReadinessStandby
}

// ConfigFrame is the receiver's answer to the init sequence
type ConfigFrame struct {
	Model      string
	Version    string
	Payload    []byte
	Checksum   string
	Readiness  Readiness
	CannotWake bool // payload flags that RS-232 cannot power the receiver on
	Timestamp  time.Time
}

// Kind implements Frame
func (*ConfigFrame) Kind() Kind { return KindConfig }

// Report is a status report sent by the receiver, keyed by its two-character code.
// JSON names follow the REST API of the gateway.
type Report struct {
	Category  string    `json:"type"`
	Guard     string    `json:"guard"`
	Code      string    `json:"command"`
	Data      string    `json:"data"`
	Valid     bool      `json:"valid"`
	Timestamp time.Time `json:"-"`
}

// Kind implements Frame
func (*Report) Kind() Kind { return KindReport }

// Powersave is the lone null byte a sleeping receiver returns on timeout
type Powersave struct{}

// Kind implements Frame
func (Powersave) Kind() Kind { return KindPowersave }

// Unexpected is a byte that starts no known frame
type Unexpected struct {
	Byte byte
}

// Kind implements Frame
func (Unexpected) Kind() Kind { return KindUnexpected }

// ReadinessFromConfig derives the receiver state from a configuration payload.
// cannotWake is set when the payload is long enough to carry the wake flag and the
// flag is '0'; the state is then forced to ReadinessError.
func ReadinessFromConfig(payload []byte) (state Readiness, cannotWake bool) {
	state = ReadinessUnknown
	if len(payload) > configStatusOffset {
		switch payload[configStatusOffset] {
		case '0':
			state = ReadinessReady
		case '1':
			state = ReadinessBusy
		case '2':
			state = ReadinessStandby
		}
	}
	if len(payload) > configWakeOffset && payload[configWakeOffset] == '0' {
		return ReadinessError, true
	}
	return state, false
}
