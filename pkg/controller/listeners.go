// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package controller

import (
	"sync"

	"github.com/Thermoquad/rxbridge/pkg/rs232"
)

// listenerRegistry holds the in-flight commands waiting for a report, oldest first
type listenerRegistry struct {
	mu     sync.Mutex
	active []*PendingCommand
}

func (l *listenerRegistry) add(p *PendingCommand) {
	l.mu.Lock()
	l.active = append(l.active, p)
	l.mu.Unlock()
}

// match removes and returns the oldest listener waiting for r's code, or nil
func (l *listenerRegistry) match(r *rs232.Report) *PendingCommand {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, p := range l.active {
		if p.Code == r.Code {
			l.active = append(l.active[:i], l.active[i+1:]...)
			return p
		}
	}
	return nil
}

// remove drops p if it is still registered
func (l *listenerRegistry) remove(p *PendingCommand) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, x := range l.active {
		if x == p {
			l.active = append(l.active[:i], l.active[i+1:]...)
			return
		}
	}
}

// takeAll empties the registry and returns what it held
func (l *listenerRegistry) takeAll() []*PendingCommand {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := l.active
	l.active = nil
	return out
}

func (l *listenerRegistry) pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.active)
}

// codes returns the correlation codes still awaited, for logging
func (l *listenerRegistry) codes() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.active))
	for i, p := range l.active {
		out[i] = p.Code
	}
	return out
}
