// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package controller bridges synchronous callers to a half-duplex receiver.
//
// A single poll loop goroutine owns the port. Callers enqueue commands from
// any goroutine and, when a correlation code is given, block until the
// matching report arrives or the loop gives up on the device.
package controller

import (
	"context"
	"sync"
	"time"

	"github.com/Thermoquad/rxbridge/pkg/rs232"
	"go.uber.org/zap"
)

const (
	// DefaultIdleCycles is how many consecutive empty reads are tolerated
	// while listeners wait before they are all released
	DefaultIdleCycles = 20

	// DefaultInitBackoff is the pause before resending the init sequence
	DefaultInitBackoff = 200 * time.Millisecond

	readChunk = 256
)

// LoopState describes what the poll loop is doing
type LoopState int

const (
	StateAwaitingFirstContact LoopState = iota
	StateIdle
	StateDispatching
	StateErrorRecovery
	StateStopped
)

func (s LoopState) String() string {
	switch s {
	case StateAwaitingFirstContact:
		return "awaiting-first-contact"
	case StateIdle:
		return "idle"
	case StateDispatching:
		return "dispatching"
	case StateErrorRecovery:
		return "error-recovery"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Options configures a Controller
type Options struct {
	Logger      *zap.Logger
	Observers   []Observer
	PortName    string        // shown in Status
	IdleCycles  int           // 0 means DefaultIdleCycles
	InitBackoff time.Duration // negative disables the pause

	// OnTerminate is called once when the poll loop stops on a transport fault
	OnTerminate func(error)
}

// Status is a snapshot of the session, safe to read from any goroutine
type Status struct {
	Model     string
	Version   string
	Port      string
	Readiness rs232.Readiness
	Ready     bool
	Powersave bool
	State     LoopState
	Pending   int
	Queued    int
	Reports   int
	Updated   time.Time
}

// Controller owns the session with one receiver
type Controller struct {
	port Port
	log  *zap.Logger
	obs  Observer
	opts Options

	// poll loop only
	buf       *rs232.Buffer
	decoder   *rs232.Decoder
	chunk     []byte
	ready     bool
	powersave bool
	parseHint bool
	idleCount int
	readiness rs232.Readiness
	config    *rs232.ConfigFrame

	reports   *ReportStore
	listeners listenerRegistry
	queue     commandQueue

	statusMu sync.RWMutex
	status   Status

	stopOnce sync.Once
	stopped  chan struct{}
}

// New creates a controller on port. Call Run to start the poll loop.
func New(port Port, opts Options) *Controller {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.IdleCycles <= 0 {
		opts.IdleCycles = DefaultIdleCycles
	}
	if opts.InitBackoff == 0 {
		opts.InitBackoff = DefaultInitBackoff
	}

	var obs Observer = NopObserver{}
	if len(opts.Observers) > 0 {
		obs = observers(opts.Observers)
	}

	buf := rs232.NewBuffer()
	c := &Controller{
		port:    port,
		log:     opts.Logger,
		obs:     obs,
		opts:    opts,
		buf:     buf,
		decoder: rs232.NewDecoder(buf),
		chunk:   make([]byte, readChunk),
		reports: NewReportStore(),
		stopped: make(chan struct{}),
	}
	c.status = Status{Port: opts.PortName, State: StateAwaitingFirstContact}
	return c
}

// Enqueue queues payload for transmission and returns immediately. When code is
// non-empty the returned command completes with the first report carrying that
// code after the command is sent.
func (c *Controller) Enqueue(payload []byte, code string) *PendingCommand {
	cmd := newPendingCommand(payload, code)
	if !c.queue.push(cmd) {
		cmd.complete(nil, ErrStopped)
		return cmd
	}
	c.log.Debug("command queued",
		zap.String("id", cmd.ID),
		zap.ByteString("payload", cmd.Payload),
		zap.String("code", code))
	return cmd
}

// Issue sends payload and, when code is non-empty, waits for the matching
// report. A nil report with a nil error means the device never answered and the
// listener was released. Cancelling ctx ends the wait only.
func (c *Controller) Issue(ctx context.Context, payload []byte, code string) (*rs232.Report, error) {
	cmd := c.Enqueue(payload, code)
	if code == "" {
		select {
		case <-cmd.Done():
			return cmd.Result()
		default:
			return nil, nil
		}
	}
	return cmd.Wait(ctx)
}

// Result returns the latest report stored for code
func (c *Controller) Result(code string) (*rs232.Report, bool) {
	return c.reports.Get(code)
}

// Results returns every stored report ordered by code
func (c *Controller) Results() []*rs232.Report {
	return c.reports.All()
}

// ClearResult forgets the stored report for code
func (c *Controller) ClearResult(code string) bool {
	return c.reports.Clear(code)
}

// Status returns the latest published session snapshot
func (c *Controller) Status() Status {
	c.statusMu.RLock()
	defer c.statusMu.RUnlock()
	return c.status
}

// Ready reports whether communication with the receiver has been established
func (c *Controller) Ready() bool {
	return c.Status().Ready
}

// QueueLen returns the number of commands not yet transmitted
func (c *Controller) QueueLen() int {
	return c.queue.len()
}

// Stopped is closed when the poll loop has exited
func (c *Controller) Stopped() <-chan struct{} {
	return c.stopped
}

func (c *Controller) publish() {
	s := Status{
		Port:      c.opts.PortName,
		Readiness: c.readiness,
		Ready:     c.ready,
		Powersave: c.powersave,
		State:     c.loopState(),
		Pending:   c.listeners.pending(),
		Queued:    c.queue.len(),
		Reports:   c.reports.Len(),
		Updated:   time.Now(),
	}
	if c.config != nil {
		s.Model = c.config.Model
		s.Version = c.config.Version
	}

	c.statusMu.Lock()
	c.status = s
	c.statusMu.Unlock()
}

func (c *Controller) loopState() LoopState {
	switch {
	case !c.ready:
		return StateAwaitingFirstContact
	case c.listeners.pending() == 0:
		return StateIdle
	case c.idleCount > 0:
		return StateErrorRecovery
	default:
		return StateDispatching
	}
}
