// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package controller

import (
	"bytes"
	"fmt"
	"sync"
	"time"

	"github.com/Thermoquad/rxbridge/pkg/rs232"
)

// fakePort replays scripted reads and records writes
type fakePort struct {
	mu      sync.Mutex
	reads   [][]byte
	writes  [][]byte
	readErr error
	delay   time.Duration // pause on an empty read, for Run-driven tests

	// reply, when set, is queued for reading after each write
	reply func(frame []byte) []byte
}

func (f *fakePort) Read(p []byte) (int, error) {
	f.mu.Lock()
	if len(f.reads) == 0 {
		err, delay := f.readErr, f.delay
		f.mu.Unlock()
		if err == nil && delay > 0 {
			time.Sleep(delay)
		}
		return 0, err
	}
	defer f.mu.Unlock()
	n := copy(p, f.reads[0])
	if n < len(f.reads[0]) {
		f.reads[0] = f.reads[0][n:]
	} else {
		f.reads = f.reads[1:]
	}
	return n, nil
}

func (f *fakePort) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w := make([]byte, len(p))
	copy(w, p)
	f.writes = append(f.writes, w)
	if f.reply != nil {
		if r := f.reply(w); r != nil {
			f.reads = append(f.reads, r)
		}
	}
	return len(p), nil
}

func (f *fakePort) feed(chunks ...[]byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads = append(f.reads, chunks...)
}

func (f *fakePort) written() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.writes))
	copy(out, f.writes)
	return out
}

func (f *fakePort) clearWrites() {
	f.mu.Lock()
	f.writes = nil
	f.mu.Unlock()
}

// configFrame builds a configuration frame with the given status byte
func configFrame(status byte) []byte {
	payload := bytes.Repeat([]byte{'1'}, 16)
	payload[7] = status
	out := []byte{rs232.DC2}
	out = append(out, "R0178"...)
	out = append(out, '3')
	out = append(out, fmt.Sprintf("%02X", len(payload))...)
	out = append(out, payload...)
	out = append(out, '5', 'A', rs232.ETX)
	return out
}

func report(code, data string) []byte {
	out := []byte{rs232.STX, '0', '0'}
	out = append(out, code...)
	out = append(out, data...)
	return append(out, rs232.ETX)
}

// newReady returns a controller that has already seen a ready configuration
func newReady(opts Options) (*Controller, *fakePort) {
	port := &fakePort{}
	if opts.InitBackoff == 0 {
		opts.InitBackoff = -1
	}
	c := New(port, opts)
	port.feed(configFrame('0'))
	if err := c.Cycle(); err != nil {
		panic(err)
	}
	port.clearWrites()
	return c, port
}

func isDone(p *PendingCommand) bool {
	select {
	case <-p.Done():
		return true
	default:
		return false
	}
}
