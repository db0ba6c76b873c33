// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package controller

import "errors"

var (
	// ErrTransportFault wraps a read or write failure on the port. The poll loop stops.
	ErrTransportFault = errors.New("transport fault")

	// ErrStopped is delivered to commands still queued or in flight when the poll loop stops
	ErrStopped = errors.New("controller stopped")
)
