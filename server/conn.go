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

package server

import (
	"sync"
	"sync/atomic"

	sckfrm "github.com/drnp/bsp/framing"
	sckplr "github.com/drnp/bsp/poller"
	scksck "github.com/drnp/bsp/socket"
	sckscr "github.com/drnp/bsp/script"
)

// closeReason qualifies why a connection ends, mapping onto the error
// taxonomy reported to on_error.
type closeReason uint8

const (
	reasonPeer closeReason = iota
	reasonProtocol
	reasonReaper
	reasonShutdown
	reasonHandler
	reasonError
)

func (r closeReason) String() string {
	switch r {
	case reasonProtocol:
		return "protocol"
	case reasonReaper:
		return "heartbeat"
	case reasonShutdown:
		return "shutdown"
	case reasonHandler:
		return "handler"
	case reasonError:
		return "io"
	}

	return "peer"
}

// conn binds one connected socket to its framing state, owning worker and
// script stack. The id is the socket fd at creation time and stays valid
// as the connection identifier for its whole life.
type conn struct {
	id  int
	sck scksck.Socket
	lsn *listener
	hnd ConnHandler
	wrk *worker
	dec sckfrm.Decoder
	stk sckscr.Stack

	mu             sync.Mutex // serializes outbound appends
	clsReq         atomic.Bool
	drain          atomic.Bool
	dead           atomic.Bool
	wArm           atomic.Bool
	pendingConnect atomic.Bool
	why            closeReason // close reason once draining
}

func (c *conn) engine() *engine {
	return c.wrk.eng
}

func (c *conn) maxPacket() int {
	if c.lsn != nil {
		return int(c.lsn.cfg.MaxPacketLength.Int64())
	}

	return connectorMaxPacket
}

func (c *conn) mode() sckfrm.Mode {
	return c.dec.Mode()
}

func (c *conn) alive() bool {
	return !c.dead.Load() && !c.drain.Load()
}

// append queues outbound bytes under the high-water policy and arms write
// interest. Safe from any goroutine; order of appends is preserved.
func (c *conn) append(p []byte, frames int64) error {
	if c.dead.Load() || c.drain.Load() {
		return ErrorConnClosed.Error(nil)
	}

	e := c.engine()

	c.mu.Lock()

	wbu := c.sck.WriteBuffer()
	if int64(wbu.Pending()+len(p)) > e.highWater {
		c.mu.Unlock()

		e.cnt.overflow.Add(1)

		if c.lsn != nil && c.lsn.cfg.CloseOnOverflow {
			_ = e.CloseConn(c.id)
		}

		return ErrorConnOverflow.Error(nil)
	}

	wbu.Append(p)
	c.mu.Unlock()

	e.cnt.bytesOut.Add(int64(len(p)))
	e.cnt.framesOut.Add(frames)

	c.armWrite()

	return nil
}

// armWrite rearms readiness with write interest. epoll_ctl is safe from
// foreign goroutines, so senders outside the owning worker use it too.
func (c *conn) armWrite() {
	if c.wArm.Swap(true) {
		return
	}

	i := sckplr.InterestWrite
	if !c.drain.Load() {
		i |= sckplr.InterestRead
	}

	_ = c.wrk.plr.Modify(c.id, i)
}

// disarmWrite drops back to read-only interest once drained. Runs only on
// the owning worker.
func (c *conn) disarmWrite() {
	if !c.wArm.Swap(false) {
		return
	}

	if !c.drain.Load() && !c.dead.Load() {
		_ = c.wrk.plr.Modify(c.id, sckplr.InterestRead)
	}
}

// requestClose marks a deferred close and schedules it on the owning
// worker. Inside a handler the close happens after the handler returns.
func (c *conn) requestClose(r closeReason) {
	if c.clsReq.Swap(true) {
		return
	}

	c.wrk.post(func() {
		c.wrk.closeConn(c, r)
	})
}

// startDrain stops reading and lets the outbound buffer flush before the
// final close. With nothing pending the close is immediate.
func (c *conn) startDrain(r closeReason) {
	if c.drain.Swap(true) {
		return
	}

	c.why = r
	c.sck.SetState(scksck.StateDraining)

	c.mu.Lock()
	empty := c.sck.WriteBuffer().Pending() < 1
	c.mu.Unlock()

	if empty {
		c.wrk.closeConn(c, r)
		return
	}

	_ = c.wrk.plr.Modify(c.id, sckplr.InterestWrite)
	c.wArm.Store(true)
}
