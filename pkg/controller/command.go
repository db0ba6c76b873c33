// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package controller

import (
	"context"
	"sync"
	"time"

	"github.com/Thermoquad/rxbridge/pkg/rs232"
	"github.com/google/uuid"
)

// PendingCommand is a queued outbound command and, when Code is set, the
// listener that waits for the report answering it.
type PendingCommand struct {
	ID      string
	Payload []byte
	Code    string // correlation code; empty for fire-and-forget
	Queued  time.Time

	once   sync.Once
	done   chan struct{}
	result *rs232.Report
	err    error
}

func newPendingCommand(payload []byte, code string) *PendingCommand {
	p := make([]byte, len(payload))
	copy(p, payload)
	return &PendingCommand{
		ID:      uuid.NewString(),
		Payload: p,
		Code:    code,
		Queued:  time.Now(),
		done:    make(chan struct{}),
	}
}

// complete fires the completion signal. Only the first call has any effect.
func (p *PendingCommand) complete(r *rs232.Report, err error) {
	p.once.Do(func() {
		p.result = r
		p.err = err
		close(p.done)
	})
}

// Done is closed once the command has a result
func (p *PendingCommand) Done() <-chan struct{} {
	return p.done
}

// Result returns the matched report and error. Valid only after Done is closed.
// A nil report with a nil error means the listener was released without a match.
func (p *PendingCommand) Result() (*rs232.Report, error) {
	<-p.done
	return p.result, p.err
}

// Wait blocks until the command completes or ctx ends. Ending ctx only stops
// this wait; the listener stays registered.
func (p *PendingCommand) Wait(ctx context.Context) (*rs232.Report, error) {
	select {
	case <-p.done:
		return p.result, p.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// commandQueue is an unbounded multi-producer queue drained by the poll loop
type commandQueue struct {
	mu     sync.Mutex
	items  []*PendingCommand
	closed bool
}

// push appends a command. Returns false once the queue has been closed.
func (q *commandQueue) push(p *PendingCommand) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.items = append(q.items, p)
	return true
}

func (q *commandQueue) pop() *PendingCommand {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil
	}
	p := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return p
}

func (q *commandQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// close refuses further pushes and returns what was still queued
func (q *commandQueue) close() []*PendingCommand {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	items := q.items
	q.items = nil
	return items
}
