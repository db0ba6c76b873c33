// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package controller

import (
	"sort"
	"sync"

	"github.com/Thermoquad/rxbridge/pkg/rs232"
)

// ReportStore keeps the latest report per code. Only the newest value matters,
// so a new report replaces the old one whether or not it is valid.
type ReportStore struct {
	mu      sync.RWMutex
	reports map[string]*rs232.Report
}

// NewReportStore creates an empty store
func NewReportStore() *ReportStore {
	return &ReportStore{reports: make(map[string]*rs232.Report)}
}

// Put stores r under its code
func (s *ReportStore) Put(r *rs232.Report) {
	s.mu.Lock()
	s.reports[r.Code] = r
	s.mu.Unlock()
}

// Get returns the latest report for code
func (s *ReportStore) Get(code string) (*rs232.Report, bool) {
	s.mu.RLock()
	r, ok := s.reports[code]
	s.mu.RUnlock()
	return r, ok
}

// All returns every stored report ordered by code
func (s *ReportStore) All() []*rs232.Report {
	s.mu.RLock()
	out := make([]*rs232.Report, 0, len(s.reports))
	for _, r := range s.reports {
		out = append(out, r)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// Clear removes the report for code. Returns false if there was none.
func (s *ReportStore) Clear(code string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reports[code]; !ok {
		return false
	}
	delete(s.reports, code)
	return true
}

// Len returns the number of stored codes
func (s *ReportStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.reports)
}
