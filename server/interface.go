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

// Package server is the connection-lifecycle and message-dispatch core.
// It multiplexes every configured listener across a fixed pool of worker
// event loops, reassembles framed messages per connection, and binds each
// connection to a scripted execution context for its lifetime.
//
// One worker runs exactly one event loop; a connection is owned by
// exactly one worker, handed off once at accept time, and every callback
// on it is serialized on that worker. Handlers run to completion: a slow
// handler blocks only the connections owned by its worker.
package server

import (
	"context"

	liblog "github.com/nabbar/golib/logger"

	sckcfg "github.com/drnp/bsp/config"
	sckscr "github.com/drnp/bsp/script"
)

// Engine is the running server core.
type Engine interface {
	// Start brings the core up in dependency order: the script program
	// first, then the workers and their event loops, then the listeners.
	// It returns once every worker loop is live and every listener is
	// registered; the engine then runs until Shutdown or ctx cancel. The
	// outbound control channel is opened separately by AddConnector.
	Start(ctx context.Context) error

	// Shutdown stops accepting, fires on_close for every living
	// connection, drains outbound buffers up to the configured drain
	// deadline and stops every worker. Shutdown blocks until the last
	// worker exits and is idempotent.
	Shutdown() error

	IsRunning() bool

	// Done closes once every worker has exited.
	Done() <-chan struct{}

	// Controller exposes the admin surface. Reload, log reopen and the
	// status hook run on the main worker, never inside a connection
	// callback; Shutdown stops the engine from its own goroutine.
	Controller() Controller

	// SetHooks installs the externally-owned admin callback slots
	// (reload, reopen logs, dump status, exit). Call before Start.
	SetHooks(h Hooks)

	// Status snapshots the process counters.
	Status() Status

	// OpenConnections returns the number of living connections.
	OpenConnections() int64

	// Send frames tag+payload for the given connection id and queues it
	// on the outbound buffer, honoring the high-water policy.
	Send(id int, tag uint32, payload []byte) error

	// SendValue encodes a document value through the codec, then Send.
	SendValue(id int, tag uint32, v sckscr.Value) error

	// SendRaw queues bytes without framing (stream-mode peers).
	SendRaw(id int, p []byte) error

	// CloseConn requests an orderly close. Called from inside a handler
	// the effect is deferred until the handler returns.
	CloseConn(id int) error

	// AddConnector dials a packet-mode stream endpoint (the manager
	// control socket) and binds the given Go handler to it. The path is
	// a local socket path or host:port.
	AddConnector(name string, handler ConnHandler) error

	// RegisterHandler overrides the script slots of the named listener
	// with a Go handler (the manager daemon serves its own control
	// listeners this way). Call before Start.
	RegisterHandler(name string, handler ConnHandler)
}

// ConnHandler is the Go-side callback set for outbound channels managed
// by the core itself (the manager link); scripted listeners use the
// script function slots from the configuration instead.
type ConnHandler interface {
	OnConnect(id int)
	OnFrame(id int, tag uint32, payload []byte)
	OnClose(id int)
}

// New assembles a stopped engine from a validated configuration, the
// script host and a logger provider. The host may be nil when every
// listener uses Go handlers only (the manager daemon does this).
func New(cfg *sckcfg.Config, hst sckscr.Host, log liblog.FuncLog) (Engine, error) {
	if cfg == nil {
		return nil, ErrorParamEmpty.Error(nil)
	}

	return newEngine(cfg, hst, log)
}
