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
	"encoding/binary"
	"errors"
	"time"

	loglvl "github.com/nabbar/golib/logger/level"

	sckplr "github.com/drnp/bsp/poller"
	scksck "github.com/drnp/bsp/socket"
	sckscr "github.com/drnp/bsp/script"

	"golang.org/x/sys/unix"
)

const (
	handoffDepth = 1024
	adminDepth   = 1024
)

// errStopDecode aborts a frame drain after a deferred close request; it
// is not a protocol failure.
var errStopDecode = errors.New("stop decode")

// worker hosts one event loop. Every connection it owns is served only
// from this goroutine; the handoff and admin queues are the only inbound
// paths from other threads, both woken through an eventfd registered in
// the worker's own poller.
type worker struct {
	id   int
	eng  *engine
	plr  sckplr.Poller
	wake int
	inq  chan *conn
	adm  chan func()
	run  sckscr.Runner
	cns  map[int]*conn
	tck  uint64
	lst  time.Time
	rdy  chan error
	done chan struct{}
}

func newWorker(e *engine, id int) (*worker, error) {
	p, err := sckplr.New()
	if err != nil {
		return nil, ErrorWorkerStart.Error(err)
	}

	wfd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		_ = p.Close()
		return nil, ErrorWorkerStart.Error(err)
	}

	w := &worker{
		id:   id,
		eng:  e,
		plr:  p,
		wake: wfd,
		inq:  make(chan *conn, handoffDepth),
		adm:  make(chan func(), adminDepth),
		cns:  make(map[int]*conn),
		rdy:  make(chan error, 1),
		done: make(chan struct{}),
	}

	if err = e.reg.Set(wfd, sckplr.OwnerControl, w); err != nil {
		_ = p.Close()
		_ = unix.Close(wfd)
		return nil, ErrorWorkerStart.Error(err)
	}

	if err = p.Register(wfd, sckplr.InterestRead); err != nil {
		e.reg.Clear(wfd)
		_ = p.Close()
		_ = unix.Close(wfd)
		return nil, ErrorWorkerStart.Error(err)
	}

	return w, nil
}

func (w *worker) isMain() bool {
	return w.id == 0
}

// release frees the loop resources of a worker whose goroutine never ran
// or already returned.
func (w *worker) release() {
	w.eng.reg.Clear(w.wake)
	_ = w.plr.Close()
	_ = unix.Close(w.wake)
}

// wakeUp nudges the sleeping loop from any goroutine.
func (w *worker) wakeUp() {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], 1)
	_, _ = unix.Write(w.wake, b[:])
}

// post schedules fct on the worker goroutine, after the current readiness
// batch. Never blocks the caller.
func (w *worker) post(fct func()) {
	select {
	case w.adm <- fct:
	default:
		go func() {
			w.adm <- fct
		}()
	}

	w.wakeUp()
}

// handoff transfers a freshly accepted connection to this worker. The
// connection registers with the local event loop before any readiness is
// seen, so on_connect strictly precedes any on_data.
func (w *worker) handoff(c *conn) {
	c.wrk = w

	select {
	case w.inq <- c:
	default:
		go func() {
			w.inq <- c
		}()
	}

	w.wakeUp()
}

// loop is the worker body: block for readiness up to the tick stride,
// serve the batch, then fire the timer when due.
func (w *worker) loop() {
	defer close(w.done)

	e := w.eng

	if e.hst != nil {
		r, err := e.hst.NewRunner()
		if err != nil {
			w.release()
			w.rdy <- ErrorScriptLoad.Error(err)
			return
		}

		w.run = r

		if err = e.hst.SubLoad(w.run); err != nil {
			w.release()
			w.rdy <- ErrorScriptLoad.Error(err)
			return
		}
	}

	w.rdy <- nil
	w.lst = time.Now()

	for {
		tmo := e.tickMs - int(time.Since(w.lst).Milliseconds())
		if tmo < 0 {
			tmo = 0
		}

		evt, err := w.plr.RunOnce(tmo)
		if err != nil {
			e.log(loglvl.ErrorLevel, "worker poll failed", w.id, err)
		}

		for i := range evt {
			w.handle(evt[i])
		}

		if e.stopping() {
			w.teardown()
			return
		}

		if time.Since(w.lst).Milliseconds() >= int64(e.tickMs) {
			w.lst = time.Now()
			w.tck++
			w.onTick(w.tck)
		}
	}
}

// handle routes one readiness event through the fd→owner registry.
func (w *worker) handle(ev sckplr.Event) {
	kind, ref := w.eng.reg.Get(ev.Fd)

	switch kind {
	case sckplr.OwnerControl:
		if ref == w {
			w.drainQueues()
		}

	case sckplr.OwnerListener:
		l, ok := ref.(*listener)
		if ok && ev.Readable {
			l.onReadable(w)
		}

	case sckplr.OwnerConnection, sckplr.OwnerConnector:
		c, ok := ref.(*conn)
		if !ok || c.wrk != w {
			return
		}

		if c.pendingConnect.Load() {
			if ev.Writable || ev.Error {
				w.finishConnect(c)
			}
			return
		}

		if ev.Writable {
			w.connWritable(c)
		}

		if ev.Readable && !c.dead.Load() {
			w.connReadable(c)
		}
	}
}

// drainQueues consumes the eventfd then adopts pending handoffs and runs
// pending admin actions.
func (w *worker) drainQueues() {
	var b [8]byte

	for {
		if _, err := unix.Read(w.wake, b[:]); err != nil {
			break
		}
	}

	for {
		select {
		case c := <-w.inq:
			w.adopt(c)
		case fct := <-w.adm:
			fct()
		default:
			return
		}
	}
}

// adopt finishes the accept handoff on the owning worker: bind the script
// stack, fire on_connect, then arm readiness.
func (w *worker) adopt(c *conn) {
	e := w.eng

	w.cns[c.id] = c

	if err := e.reg.Set(c.id, sckplr.OwnerConnection, c); err != nil {
		e.log(loglvl.ErrorLevel, "registry bind failed for connection", c.id, err)
		w.dropAdopted(c)
		return
	}

	w.bindStack(c)
	w.fireConnect(c)

	if c.clsReq.Load() || c.dead.Load() {
		if !c.dead.Load() {
			w.closeConn(c, reasonHandler)
		}
		return
	}

	if err := w.plr.Register(c.id, sckplr.InterestRead); err != nil {
		e.log(loglvl.ErrorLevel, "poller bind failed for connection", c.id, err)
		w.closeConn(c, reasonError)
		return
	}

	// a reply queued by on_connect predates the registration: arm write
	// interest now that the fd is in the loop
	c.mu.Lock()
	pnd := c.sck.WriteBuffer().Pending()
	c.mu.Unlock()

	if pnd > 0 {
		c.wArm.Store(true)
		_ = w.plr.Modify(c.id, sckplr.InterestRead|sckplr.InterestWrite)
	} else {
		c.wArm.Store(false)
	}
}

func (w *worker) dropAdopted(c *conn) {
	delete(w.cns, c.id)

	if c.lsn != nil {
		c.lsn.release()
	}

	w.eng.cnt.active.Add(-1)
	_ = c.sck.Close()
}

// adoptConnector registers a dialed socket, arming write interest while
// the non-blocking connect settles.
func (w *worker) adoptConnector(c *conn) {
	e := w.eng

	w.cns[c.id] = c

	if err := e.reg.Set(c.id, sckplr.OwnerConnector, c); err != nil {
		e.log(loglvl.ErrorLevel, "registry bind failed for connector", c.id, err)
		w.dropAdopted(c)
		return
	}

	if !c.pendingConnect.Load() {
		w.fireConnect(c)
		if err := w.plr.Register(c.id, sckplr.InterestRead); err != nil {
			w.closeConn(c, reasonError)
		}
		return
	}

	if err := w.plr.Register(c.id, sckplr.InterestWrite); err != nil {
		e.log(loglvl.ErrorLevel, "poller bind failed for connector", c.id, err)
		w.closeConn(c, reasonError)
	}
}

// finishConnect settles a pending outbound connect on write readiness.
func (w *worker) finishConnect(c *conn) {
	if st := c.sck.FinishConnect(); st != scksck.IOOk {
		w.eng.log(loglvl.ErrorLevel, "outbound connect failed", c.id, c.sck.LastError())
		w.closeConn(c, reasonError)
		return
	}

	c.pendingConnect.Store(false)

	if err := w.plr.Modify(c.id, sckplr.InterestRead); err != nil {
		w.closeConn(c, reasonError)
		return
	}

	w.fireConnect(c)
}

// connReadable drains the socket until would-block, decoding and
// dispatching after every successful read.
func (w *worker) connReadable(c *conn) {
	e := w.eng

	for c.alive() {
		n, st := c.sck.ReadIntoBuffer()

		switch st {
		case scksck.IOOk:
			e.cnt.bytesIn.Add(int64(n))

			if err := w.decodeDispatch(c); err != nil {
				e.cnt.protoErr.Add(1)
				w.fireError(c, reasonProtocol)
				c.startDrain(reasonProtocol)
				return
			}

			if c.clsReq.Load() || c.dead.Load() || c.drain.Load() {
				return
			}

		case scksck.IOWouldBlock:
			return

		case scksck.IOEOF:
			w.closeConn(c, reasonPeer)
			return

		case scksck.IOFatal:
			e.log(loglvl.ErrorLevel, "read failed on connection", c.id, c.sck.LastError())
			w.closeConn(c, reasonError)
			return
		}
	}
}

// decodeDispatch drains complete frames out of the read buffer. The
// returned error, when not nil, is a protocol violation.
func (w *worker) decodeDispatch(c *conn) error {
	err := c.dec.Decode(c.sck.ReadBuffer(), func(f frameT) error {
		w.eng.cnt.framesIn.Add(1)
		w.dispatchFrame(c, f)

		if c.clsReq.Load() || c.dead.Load() || c.drain.Load() {
			return errStopDecode
		}

		return nil
	})

	if err == nil || errors.Is(err, errStopDecode) {
		return nil
	}

	return err
}

// connWritable flushes the outbound buffer, finishing a drain-close once
// everything is on the wire.
func (w *worker) connWritable(c *conn) {
	if c.dead.Load() {
		return
	}

	c.mu.Lock()
	_, st := c.sck.WriteFromBuffer()
	pnd := c.sck.WriteBuffer().Pending()
	c.mu.Unlock()

	switch st {
	case scksck.IOOk:
		if pnd > 0 {
			return
		}

		if c.drain.Load() {
			w.closeConn(c, c.why)
			return
		}

		c.disarmWrite()

	case scksck.IOWouldBlock:
		// stay armed, the kernel will report writable again

	case scksck.IOEOF:
		w.closeConn(c, reasonPeer)

	case scksck.IOFatal:
		w.eng.log(loglvl.ErrorLevel, "write failed on connection", c.id, c.sck.LastError())
		w.closeConn(c, reasonError)
	}
}

// closeConn is the single exit path of a connection: on_close fires
// exactly once, before the fd is released; the script stack dies with it.
func (w *worker) closeConn(c *conn, r closeReason) {
	if c.dead.Swap(true) {
		return
	}

	e := w.eng

	w.fireClose(c)
	w.releaseStack(c)

	_ = w.plr.Unregister(c.id)
	e.reg.Clear(c.id)
	delete(w.cns, c.id)

	if c.lsn != nil {
		c.lsn.release()
	}

	e.cnt.active.Add(-1)

	if r == reasonReaper {
		e.cnt.reaped.Add(1)
	}

	_ = c.sck.Close()
}

// onTick drives the periodic duties of this worker.
func (w *worker) onTick(t uint64) {
	w.reap(t)
}

// teardown closes every owned connection, draining outbound buffers up to
// the engine drain deadline, then releases the loop resources.
func (w *worker) teardown() {
	e := w.eng

	dl := time.Now().Add(e.drainDeadline)

	for _, c := range w.cns {
		for c.sck.WriteBuffer().Pending() > 0 && time.Now().Before(dl) {
			c.mu.Lock()
			_, st := c.sck.WriteFromBuffer()
			c.mu.Unlock()

			if st == scksck.IOWouldBlock {
				time.Sleep(time.Millisecond)
				continue
			}

			break
		}
	}

	for _, c := range w.cns {
		w.closeConn(c, reasonShutdown)
	}

	if w.isMain() {
		for _, l := range e.lsn {
			_ = w.plr.Unregister(l.sck.Fd())
			e.reg.Clear(l.sck.Fd())
			_ = l.sck.Close()
		}

		w.closePeers()
	}

	if e.hst != nil && w.run != nil {
		if err := e.hst.SubExit(w.run); err != nil {
			e.log(loglvl.ErrorLevel, "script sub exit failed", w.id, err)
		}
	}

	e.reg.Clear(w.wake)
	_ = w.plr.Close()
	_ = unix.Close(w.wake)
}
