/*
 * MIT License
 *
 * Copyright (c) 2024 Dr.NP
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package buffer implements the per-socket byte queues used on both sides of
// a connection. A Buffer is a byte sequence with a read cursor: producers
// append at the tail, consumers peek then consume at the head. Appends never
// fail (the backing storage grows), and the content survives partial kernel
// I/O: bytes appended during a read stay queued until the framing layer
// consumes them.
//
// Buffers are owned by exactly one socket and are not safe for concurrent
// use; callers serialize every access to one buffer.
package buffer

// DumpFunc receives a copy-safe view of buffer traffic for debugging.
// The tag identifies the direction ("ingress" / "egress"), id is the
// connection identifier (its fd). Implementations must not retain nor
// mutate p.
type DumpFunc func(tag string, id int, p []byte)

type Buffer interface {
	// Append queues p at the tail of the buffer and returns the new
	// pending length. Append never fails.
	Append(p []byte) int

	// Peek returns a view of at most n pending bytes without moving the
	// read cursor. The returned slice is valid until the next Append or
	// Consume. Fewer than n bytes may be returned.
	Peek(n int) []byte

	// Bytes returns a view of all pending bytes, like Peek(Pending()).
	Bytes() []byte

	// Consume advances the read cursor by n bytes. Consuming more than
	// Pending returns ErrorBufferConsume.
	Consume(n int) error

	// Pending returns the number of queued, unconsumed bytes.
	Pending() int

	// Reset drops all pending bytes and rewinds the cursor.
	Reset()
}

// New returns an empty Buffer with a default initial capacity.
func New() Buffer {
	return NewSize(defaultCapacity)
}

// NewSize returns an empty Buffer with the given initial capacity.
func NewSize(capacity int) Buffer {
	if capacity < minCapacity {
		capacity = minCapacity
	}

	return &buf{
		b: make([]byte, 0, capacity),
		o: 0,
	}
}
