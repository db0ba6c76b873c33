// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// rxbridge - RS-232 gateway for AV receivers
//
// Bridges the framed RS-232C protocol of AV receivers to a REST API and
// provides tools for probing and decoding the serial link.

package main

import (
	"os"

	"github.com/Thermoquad/rxbridge/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
