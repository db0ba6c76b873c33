// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rs232

import (
	"errors"
	"fmt"
	"time"
)

// Statistics tracks decoded frame counts and error rates
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	TotalFrames      uint64
	ConfigFrames     uint64
	Reports          uint64
	InvalidReports   uint64
	PowersaveMarkers uint64
	UnexpectedBytes  uint64
	MalformedConfigs uint64

	// Rates (calculated)
	FrameRate float64 // frames/sec
	ErrorRate float64 // errors/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// Update records one decoder result. ErrNoData and ErrInsufficientData are not counted.
func (s *Statistics) Update(f Frame, err error) {
	if err != nil {
		if errors.Is(err, ErrMalformedTerminator) || errors.Is(err, ErrMalformedLength) {
			s.TotalFrames++
			s.MalformedConfigs++
			s.LastUpdateTime = time.Now()
		}
		return
	}

	s.TotalFrames++
	switch v := f.(type) {
	case *ConfigFrame:
		s.ConfigFrames++
	case *Report:
		s.Reports++
		if !v.Valid {
			s.InvalidReports++
		}
	case Powersave:
		s.PowersaveMarkers++
	case Unexpected:
		s.UnexpectedBytes++
	}
	s.LastUpdateTime = time.Now()
}

// Errors returns the number of frames that were corrupt or unexpected
func (s *Statistics) Errors() uint64 {
	return s.InvalidReports + s.UnexpectedBytes + s.MalformedConfigs
}

// CalculateRates calculates frame and error rates
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.FrameRate = float64(s.TotalFrames) / elapsed
		s.ErrorRate = float64(s.Errors()) / elapsed
	}
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()

	var errorPercent float64
	if s.TotalFrames > 0 {
		errorPercent = float64(s.Errors()) * 100.0 / float64(s.TotalFrames)
	}

	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Total Frames:    %8d\n", s.TotalFrames)
	result += fmt.Sprintf("Config Frames:   %8d\n", s.ConfigFrames)
	result += fmt.Sprintf("Reports:         %8d\n", s.Reports)
	if s.PowersaveMarkers > 0 {
		result += fmt.Sprintf("Powersave:       %8d\n", s.PowersaveMarkers)
	}
	if s.Errors() > 0 {
		result += fmt.Sprintf("Errors:          %8d (%.1f%%)\n", s.Errors(), errorPercent)
		if s.InvalidReports > 0 {
			result += fmt.Sprintf("  Bad Terminator:   %5d\n", s.InvalidReports)
		}
		if s.MalformedConfigs > 0 {
			result += fmt.Sprintf("  Corrupt Config:   %5d\n", s.MalformedConfigs)
		}
		if s.UnexpectedBytes > 0 {
			result += fmt.Sprintf("  Unexpected Bytes: %5d\n", s.UnexpectedBytes)
		}
	}

	result += fmt.Sprintf("Frame Rate:      %8.1f frames/sec\n", s.FrameRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	*s = *NewStatistics()
}
