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
	"time"

	loglvl "github.com/nabbar/golib/logger/level"

	sckfrm "github.com/drnp/bsp/framing"
	sckscr "github.com/drnp/bsp/script"
	scksck "github.com/drnp/bsp/socket"

	"golang.org/x/sys/unix"
)

type frameT = sckfrm.Frame

// bindStack allocates the per-connection script context on the owning
// worker's runtime.
func (w *worker) bindStack(c *conn) {
	e := w.eng

	if e.hst == nil || c.lsn == nil || c.hnd != nil {
		return
	}

	stk, err := e.hst.NewStack(w.run)
	if err != nil {
		e.log(loglvl.ErrorLevel, "script stack allocation failed", c.id, err)
		return
	}

	c.stk = stk
}

func (w *worker) releaseStack(c *conn) {
	if c.stk == nil || w.eng.hst == nil {
		return
	}

	w.eng.hst.ReleaseStack(c.stk)
	c.stk = nil
}

// call invokes one script function, containing every handler failure:
// errors and panics are counted and logged with the connection id and the
// function name, and the connection stays alive.
func (w *worker) call(stk sckscr.Stack, id int, fn string, args ...sckscr.Value) {
	e := w.eng

	if len(fn) < 1 || e.hst == nil {
		return
	}

	defer func() {
		if rec := recover(); rec != nil {
			e.cnt.handleErr.Add(1)
			e.log(loglvl.ErrorLevel, "script handler panicked", id, nil, "fn", fn, "panic", rec)
		}
	}()

	if err := e.hst.Call(stk, fn, args...); err != nil {
		e.cnt.handleErr.Add(1)
		e.log(loglvl.ErrorLevel, "script handler failed", id, err, "fn", fn)
	}
}

// guard shields Go-side connector handlers the same way.
func (w *worker) guard(id int, fct func()) {
	defer func() {
		if rec := recover(); rec != nil {
			w.eng.cnt.handleErr.Add(1)
			w.eng.log(loglvl.ErrorLevel, "channel handler panicked", id, nil, "panic", rec)
		}
	}()

	fct()
}

func (w *worker) fireConnect(c *conn) {
	if c.hnd != nil {
		w.guard(c.id, func() {
			c.hnd.OnConnect(c.id)
		})
		return
	}

	if c.lsn != nil {
		w.call(c.stk, c.id, c.lsn.cfg.OnConnect, sckscr.Int(int64(c.id)))
	}
}

func (w *worker) fireClose(c *conn) {
	if c.hnd != nil {
		w.guard(c.id, func() {
			c.hnd.OnClose(c.id)
		})
		return
	}

	if c.lsn != nil {
		w.call(c.stk, c.id, c.lsn.cfg.OnClose, sckscr.Int(int64(c.id)))
	}
}

func (w *worker) fireError(c *conn, r closeReason) {
	if c.hnd != nil {
		return
	}

	if c.lsn != nil {
		w.call(c.stk, c.id, c.lsn.cfg.OnError, sckscr.Int(int64(c.id)), sckscr.String(r.String()))
	}
}

// dispatchFrame routes one decoded message into the bound handler. In
// packet mode an object payload goes through the document codec; a codec
// failure is a protocol violation for the connection.
func (w *worker) dispatchFrame(c *conn, f frameT) {
	e := w.eng

	if c.hnd != nil {
		w.guard(c.id, func() {
			c.hnd.OnFrame(c.id, f.Tag, f.Payload)
		})
		return
	}

	if c.lsn == nil {
		return
	}

	cfg := c.lsn.cfg

	switch c.mode() {
	case sckfrm.ModeStream:
		w.call(c.stk, c.id, cfg.OnData, sckscr.Int(int64(c.id)), sckscr.Bytes(f.Payload))

	case sckfrm.ModePacket:
		if cfg.ObjectPayload && e.cdc != nil {
			v, err := e.cdc.Decode(f.Payload)
			if err != nil {
				e.cnt.protoErr.Add(1)
				w.fireError(c, reasonProtocol)
				c.startDrain(reasonProtocol)
				return
			}

			if f.Tag == 0 {
				w.call(c.stk, c.id, cfg.OnData, sckscr.Int(int64(c.id)), v)
			} else {
				w.call(c.stk, c.id, cfg.OnData, sckscr.Int(int64(c.id)), sckscr.Int(int64(f.Tag)), v)
			}

			return
		}

		if f.Tag == 0 {
			w.call(c.stk, c.id, cfg.OnData, sckscr.Int(int64(c.id)), sckscr.Bytes(f.Payload))
		} else {
			w.call(c.stk, c.id, cfg.OnData, sckscr.Int(int64(c.id)), sckscr.Int(int64(f.Tag)), sckscr.Bytes(f.Payload))
		}
	}
}

// dgramPeer is the per-peer pseudo connection synthesized for datagram
// listeners: a stable id and script stack without a dedicated fd.
type dgramPeer struct {
	id   int
	lsn  *listener
	sa   unix.Sockaddr
	key  string
	stk  sckscr.Stack
	last time.Time
}

// dispatchDatagram runs on the main worker for every inbound datagram.
func (w *worker) dispatchDatagram(l *listener, p []byte, from unix.Sockaddr) {
	e := w.eng
	key := scksck.FormatSockaddr(from)

	d := l.peers[key]
	if d == nil {
		d = &dgramPeer{
			id:  e.nextPseudo(),
			lsn: l,
			sa:  from,
			key: key,
		}

		if e.hst != nil {
			if stk, err := e.hst.NewStack(w.run); err == nil {
				d.stk = stk
			}
		}

		l.peers[key] = d
		e.pse.Store(d.id, d)
		e.cnt.accepted.Add(1)
		e.cnt.active.Add(1)

		w.call(d.stk, d.id, l.cfg.OnConnect, sckscr.Int(int64(d.id)))
	}

	d.last = time.Now()
	e.cnt.framesIn.Add(1)

	w.call(d.stk, d.id, l.cfg.OnData, sckscr.Int(int64(d.id)), sckscr.Bytes(p), sckscr.String(key))
}

// closePeer retires one pseudo connection, firing on_close then releasing
// its stack.
func (w *worker) closePeer(d *dgramPeer, r closeReason) {
	e := w.eng

	if _, ok := d.lsn.peers[d.key]; !ok {
		return
	}

	w.call(d.stk, d.id, d.lsn.cfg.OnClose, sckscr.Int(int64(d.id)))

	if d.stk != nil && e.hst != nil {
		e.hst.ReleaseStack(d.stk)
		d.stk = nil
	}

	delete(d.lsn.peers, d.key)
	e.pse.Delete(d.id)
	e.cnt.active.Add(-1)

	if r == reasonReaper {
		e.cnt.reaped.Add(1)
	}
}

// closePeers retires every pseudo connection at teardown.
func (w *worker) closePeers() {
	for _, l := range w.eng.lsn {
		for _, d := range l.peers {
			w.closePeer(d, reasonShutdown)
		}
	}
}
