// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rs232

import "fmt"

// Buffer accumulates channel bytes behind a read cursor.
//
// A failed Read never moves the cursor. Reset rewinds the cursor so a partially
// received frame can be read again once more bytes arrive; Flush drops everything
// before the cursor.
type Buffer struct {
	data []byte
	pos  int
}

// NewBuffer creates an empty buffer
func NewBuffer() *Buffer {
	return &Buffer{data: make([]byte, 0, 256)}
}

// Append adds bytes to the end of the buffer
func (b *Buffer) Append(p []byte) {
	b.data = append(b.data, p...)
}

// Read returns the next n bytes after the cursor and advances it.
// Returns ErrInsufficientData without consuming anything if fewer than n bytes remain.
func (b *Buffer) Read(n int) ([]byte, error) {
	if n > b.Avail() {
		return nil, fmt.Errorf("%w: wanted %d had %d", ErrInsufficientData, n, b.Avail())
	}
	out := b.data[b.pos : b.pos+n : b.pos+n]
	b.pos += n
	return out, nil
}

// Reset rewinds the cursor to the start of the buffer
func (b *Buffer) Reset() {
	b.pos = 0
}

// Flush discards the bytes before the cursor
func (b *Buffer) Flush() {
	b.data = b.data[b.pos:]
	b.pos = 0
}

// Avail returns the number of unread bytes after the cursor
func (b *Buffer) Avail() int {
	return len(b.data) - b.pos
}

// Len returns the number of bytes held, read or not
func (b *Buffer) Len() int {
	return len(b.data)
}

// Bytes returns the unread bytes without consuming them
func (b *Buffer) Bytes() []byte {
	return b.data[b.pos:]
}
