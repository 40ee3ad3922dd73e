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

// Package poller wraps the kernel readiness multiplexer used by each
// worker event loop, plus the process-wide fd→owner registry that routes
// a ready descriptor back to the object owning it.
//
// Readiness is edge-triggered: owners must drain until would-block after
// each event. One Poller belongs to one worker goroutine; only RunOnce may
// sleep, and only up to the given timeout.
package poller

// Interest selects the readiness directions armed for a descriptor.
type Interest uint8

const (
	InterestRead Interest = 1 << iota
	InterestWrite
)

// OwnerKind tags the object type registered behind an fd.
type OwnerKind uint8

const (
	OwnerNone OwnerKind = iota
	OwnerListener
	OwnerConnection
	OwnerConnector
	OwnerTimer
	OwnerControl
)

func (k OwnerKind) String() string {
	switch k {
	case OwnerListener:
		return "listener"
	case OwnerConnection:
		return "connection"
	case OwnerConnector:
		return "connector"
	case OwnerTimer:
		return "timer"
	case OwnerControl:
		return "control"
	}

	return "none"
}

// Event is one readiness report for a registered descriptor.
type Event struct {
	Fd       int
	Readable bool
	Writable bool
	Hangup   bool
	Error    bool
}

type Poller interface {
	// Register arms edge-triggered readiness for fd.
	Register(fd int, i Interest) error

	// Modify rearms fd with a new interest set.
	Modify(fd int, i Interest) error

	// Unregister removes fd from the readiness set.
	Unregister(fd int) error

	// RunOnce blocks up to timeout milliseconds or until readiness and
	// returns the batch of events. The returned slice is reused by the
	// next call.
	RunOnce(timeoutMs int) ([]Event, error)

	// Close releases the kernel multiplexer.
	Close() error
}

// Registry is the process-global fd→owner table. Each slot is owned by at
// most one worker at a time; ownership moves only during accept handoff.
type Registry interface {
	// Set binds fd to an owner. Binding an fd already bound to a living
	// owner of another kind returns ErrorRegistryBusy.
	Set(fd int, kind OwnerKind, ref any) error

	// Get returns the owner tag and reference bound to fd, or OwnerNone.
	Get(fd int) (OwnerKind, any)

	// Clear unbinds fd.
	Clear(fd int)

	// Walk visits every bound fd until fct returns false.
	Walk(fct func(fd int, kind OwnerKind, ref any) bool)

	// Len returns the number of bound descriptors.
	Len() int
}
