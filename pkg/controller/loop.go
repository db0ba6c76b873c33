// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package controller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Thermoquad/rxbridge/pkg/rs232"
	"go.uber.org/zap"
)

// Run sends the init sequence and polls the port until ctx ends or the
// transport fails. On return every queued and in-flight command is completed
// with ErrStopped or the transport error.
func (c *Controller) Run(ctx context.Context) error {
	c.buf.Flush()
	c.log.Info("poll loop starting", zap.String("port", c.opts.PortName))

	err := c.sendInit()
	for err == nil {
		select {
		case <-ctx.Done():
			c.log.Info("poll loop stopping")
			c.stop(ErrStopped)
			return ctx.Err()
		default:
		}
		err = c.Cycle()
	}

	c.log.Error("transport fault, poll loop terminated", zap.Error(err))
	c.stop(err)
	if c.opts.OnTerminate != nil {
		c.opts.OnTerminate(err)
	}
	return err
}

// Cycle runs one poll loop iteration: a single timed read, then either parsing
// of what arrived or idle-time work. Run calls it in a loop; it is exported for
// callers that drive the loop themselves.
func (c *Controller) Cycle() error {
	defer c.publish()

	n, err := c.port.Read(c.chunk)
	if n > 0 {
		c.buf.Append(c.chunk[:n])
		c.parseAll()
	}
	if err != nil {
		return fmt.Errorf("%w: read: %v", ErrTransportFault, err)
	}
	if n > 0 {
		return nil
	}
	return c.idle()
}

// parseAll decodes every complete frame in the buffer
func (c *Controller) parseAll() {
	for {
		f, err := c.decoder.Next()
		if err != nil {
			if errors.Is(err, rs232.ErrNoData) {
				return
			}
			c.parseHint = true
			c.obs.DecodeFailed(err)
			if errors.Is(err, rs232.ErrInsufficientData) {
				return
			}
			// the bad tag byte was dropped, keep going
			c.log.Warn("dropped corrupt frame", zap.Error(err))
			continue
		}

		c.parseHint = false
		c.obs.FrameDecoded(f)
		c.apply(f)
	}
}

func (c *Controller) apply(f rs232.Frame) {
	switch v := f.(type) {
	case *rs232.ConfigFrame:
		c.config = v
		c.readiness = v.Readiness
		if v.CannotWake {
			c.log.Warn("receiver cannot be powered on over RS-232")
		}
		if !c.ready && v.Readiness.Accepting() {
			c.ready = true
			c.log.Info("communication established",
				zap.String("model", v.Model),
				zap.String("version", v.Version),
				zap.Stringer("readiness", v.Readiness))
		} else {
			c.log.Debug("configuration received", zap.Stringer("readiness", v.Readiness))
		}

	case *rs232.Report:
		c.reports.Put(v)
		if !v.Valid {
			c.log.Debug("report with bad terminator", zap.String("code", v.Code))
		}
		if p := c.listeners.match(v); p != nil {
			c.log.Debug("listener matched",
				zap.String("id", p.ID),
				zap.String("code", v.Code),
				zap.String("data", v.Data),
				zap.Duration("latency", time.Since(p.Queued)))
			c.obs.ListenerMatched(p, v)
			p.complete(v, nil)
		}

	case rs232.Powersave:
		if !c.powersave {
			c.log.Info("receiver entered powersave")
		}
		c.powersave = true
		if n := c.listeners.pending(); n > 0 {
			c.log.Warn("powersave while listeners wait", zap.Strings("codes", c.listeners.codes()))
		}

	case rs232.Unexpected:
		c.log.Debug("unexpected byte", zap.Uint8("byte", v.Byte))
	}
}

// idle handles a read that returned nothing
func (c *Controller) idle() error {
	switch {
	case !c.ready && !c.parseHint:
		if c.powersave {
			// the first init only woke the receiver
			c.powersave = false
		} else if c.opts.InitBackoff > 0 {
			time.Sleep(c.opts.InitBackoff)
		}
		return c.sendInit()

	case !c.ready:
		return nil

	case c.listeners.pending() == 0:
		return c.dispatch()

	default:
		c.idleCount++
		if c.idleCount >= c.opts.IdleCycles {
			c.releaseListeners()
		}
		return nil
	}
}

// dispatch transmits the next queued command, if any
func (c *Controller) dispatch() error {
	cmd := c.queue.pop()
	if cmd == nil {
		return nil
	}

	frame, err := rs232.EncodeCommand(cmd.Payload)
	if err != nil {
		c.log.Error("dropping command", zap.String("id", cmd.ID), zap.Error(err))
		c.obs.CommandRejected(cmd, err)
		cmd.complete(nil, err)
		return nil
	}

	// registered before the write so a fast reply still finds it
	if cmd.Code != "" {
		c.listeners.add(cmd)
	}

	copies := 1
	if c.powersave {
		copies = 2
	}
	for i := 0; i < copies; i++ {
		if _, err := c.port.Write(frame); err != nil {
			c.listeners.remove(cmd)
			err = fmt.Errorf("%w: write: %v", ErrTransportFault, err)
			cmd.complete(nil, err)
			return err
		}
	}

	c.idleCount = 0
	c.obs.CommandSent(cmd, copies)
	c.log.Debug("command sent",
		zap.String("id", cmd.ID),
		zap.String("frame", rs232.FormatBytes(frame)),
		zap.Int("copies", copies))

	if cmd.Code == "" {
		cmd.complete(nil, nil)
	}
	return nil
}

func (c *Controller) sendInit() error {
	if _, err := c.port.Write(rs232.InitSequence()); err != nil {
		return fmt.Errorf("%w: write init: %v", ErrTransportFault, err)
	}
	c.obs.InitSent()
	c.log.Debug("init sequence sent")
	return nil
}

// releaseListeners gives up on every in-flight command
func (c *Controller) releaseListeners() {
	released := c.listeners.takeAll()
	c.idleCount = 0
	if len(released) == 0 {
		return
	}

	codes := make([]string, len(released))
	for i, p := range released {
		codes[i] = p.Code
		p.complete(nil, nil)
	}
	c.obs.ListenersReleased(len(released))
	c.log.Warn("no reply from receiver, releasing listeners", zap.Strings("codes", codes))
}

// stop completes everything outstanding with err and marks the loop stopped
func (c *Controller) stop(err error) {
	c.stopOnce.Do(func() {
		for _, p := range c.queue.close() {
			p.complete(nil, err)
		}
		for _, p := range c.listeners.takeAll() {
			p.complete(nil, err)
		}
		c.publish()
		c.statusMu.Lock()
		c.status.State = StateStopped
		c.statusMu.Unlock()
		close(c.stopped)
	})
}
