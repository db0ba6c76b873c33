// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package controller

import (
	"io"

	"github.com/Thermoquad/rxbridge/pkg/rs232"
)

// Port is the duplex channel to the receiver.
//
// Read must give up after a short timeout and report it as (0, nil). Any error
// returned by Read or Write is treated as a transport fault.
type Port interface {
	io.Reader
	io.Writer
}

// Observer receives poll loop events. All methods are called from the poll loop
// goroutine and must not block.
type Observer interface {
	FrameDecoded(f rs232.Frame)
	DecodeFailed(err error)
	InitSent()
	CommandSent(cmd *PendingCommand, copies int)
	CommandRejected(cmd *PendingCommand, err error)
	ListenerMatched(cmd *PendingCommand, r *rs232.Report)
	ListenersReleased(n int)
}

// NopObserver implements Observer with no-ops. Embed it to implement a subset.
type NopObserver struct{}

func (NopObserver) FrameDecoded(rs232.Frame)                       {}
func (NopObserver) DecodeFailed(error)                             {}
func (NopObserver) InitSent()                                      {}
func (NopObserver) CommandSent(*PendingCommand, int)               {}
func (NopObserver) CommandRejected(*PendingCommand, error)         {}
func (NopObserver) ListenerMatched(*PendingCommand, *rs232.Report) {}
func (NopObserver) ListenersReleased(int)                          {}

// observers fans events out to several observers
type observers []Observer

func (o observers) FrameDecoded(f rs232.Frame) {
	for _, x := range o {
		x.FrameDecoded(f)
	}
}

func (o observers) DecodeFailed(err error) {
	for _, x := range o {
		x.DecodeFailed(err)
	}
}

func (o observers) InitSent() {
	for _, x := range o {
		x.InitSent()
	}
}

func (o observers) CommandSent(cmd *PendingCommand, copies int) {
	for _, x := range o {
		x.CommandSent(cmd, copies)
	}
}

func (o observers) CommandRejected(cmd *PendingCommand, err error) {
	for _, x := range o {
		x.CommandRejected(cmd, err)
	}
}

func (o observers) ListenerMatched(cmd *PendingCommand, r *rs232.Report) {
	for _, x := range o {
		x.ListenerMatched(cmd, r)
	}
}

func (o observers) ListenersReleased(n int) {
	for _, x := range o {
		x.ListenersReleased(n)
	}
}
