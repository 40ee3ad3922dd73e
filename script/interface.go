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

// Package script declares the contract between the core and the embedded
// scripting runtime. The runtime itself lives outside the core: the core
// only creates one Runner per worker, one Stack per connection on that
// worker's Runner, and calls named functions with marshalled values.
//
// Stacks are created and released exclusively from the owning worker's
// event-loop goroutine; the host never needs cross-stack locking for
// ordinary workloads.
package script

// Runner is the opaque per-worker script runtime handle.
type Runner any

// Stack is the opaque per-connection execution context. It is created by
// the host on connect and released exactly once after on_close.
type Stack any

// Host is the embedded scripting runtime as seen from the core.
type Host interface {
	// Load loads (or reloads from scratch) the script program on the
	// process level, before any worker runs.
	Load() error

	// Reload re-reads the script program while workers keep running.
	Reload() error

	// Exit tears the script program down at process shutdown.
	Exit() error

	// LoadModule registers an external module with the host before the
	// first Load.
	LoadModule(name string) error

	// NewRunner builds the per-worker runtime; called once per worker
	// from that worker's goroutine.
	NewRunner() (Runner, error)

	// SubLoad / SubReload / SubExit mirror Load/Reload/Exit on one
	// worker's runtime.
	SubLoad(r Runner) error
	SubReload(r Runner) error
	SubExit(r Runner) error

	// NewStack allocates a per-connection execution context on the
	// given worker runtime.
	NewStack(r Runner) (Stack, error)

	// ReleaseStack frees a per-connection context. Safe to call with a
	// stack already released.
	ReleaseStack(s Stack)

	// Call invokes the named script function on the given stack with
	// marshalled arguments. A nil stack calls on the process program.
	Call(s Stack, fn string, args ...Value) error
}

// HookNames carries the script function names bound to each process
// hook, as configured by the operator.
type HookNames struct {
	Load      string
	Reload    string
	Exit      string
	SubLoad   string
	SubReload string
	SubExit   string
}

// HookConfigurable is implemented by hosts that let the configuration
// pick the hook function names; the core applies it before first Load.
type HookConfigurable interface {
	SetHookNames(h HookNames)
}

// Identifiable is implemented by hosts whose program is selected by the
// configured script identifier.
type Identifiable interface {
	SetIdentifier(id string)
}
