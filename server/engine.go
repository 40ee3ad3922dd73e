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
	"context"
	"sync/atomic"
	"time"

	hscvrs "github.com/hashicorp/go-uuid"

	libatm "github.com/nabbar/golib/atomic"
	liblog "github.com/nabbar/golib/logger"
	loglvl "github.com/nabbar/golib/logger/level"

	sckbuf "github.com/drnp/bsp/buffer"
	sckcdc "github.com/drnp/bsp/codec"
	sckcfg "github.com/drnp/bsp/config"
	sckfrm "github.com/drnp/bsp/framing"
	sckplr "github.com/drnp/bsp/poller"
	sckscr "github.com/drnp/bsp/script"
)

// pseudoBase keeps datagram pseudo connection ids clear of any kernel fd.
const pseudoBase = 1 << 30

type engine struct {
	cfg *sckcfg.Config
	hst sckscr.Host
	fl  liblog.FuncLog
	hks Hooks

	reg sckplr.Registry
	wks []*worker
	lsn []*listener
	cdc sckcdc.Codec
	cnt counters

	hnd map[string]ConnHandler
	pse libatm.MapTyped[int, *dgramPeer]
	run libatm.Value[bool]
	stp atomic.Bool
	dne chan struct{}
	rrb atomic.Uint64
	psc atomic.Int64

	uid           string
	tickMs        int
	drainDeadline time.Duration
	highWater     int64
	dump          sckbuf.DumpFunc
	dumpIn        bool
	dumpOut       bool

	cnl context.CancelFunc
}

func newEngine(cfg *sckcfg.Config, hst sckscr.Host, log liblog.FuncLog) (*engine, error) {
	uid, err := hscvrs.GenerateUUID()
	if err != nil {
		return nil, ErrorParamEmpty.Error(err)
	}

	e := &engine{
		cfg:           cfg,
		hst:           hst,
		fl:            log,
		reg:           sckplr.NewRegistry(4096),
		hnd:           make(map[string]ConnHandler),
		cdc:           sckcdc.New(),
		pse:           libatm.NewMapTyped[int, *dgramPeer](),
		run:           libatm.NewValue[bool](),
		dne:           make(chan struct{}),
		uid:           uid,
		tickMs:        int(cfg.Core.TickInterval.Time().Milliseconds()),
		drainDeadline: cfg.Core.DrainDeadline.Time(),
		highWater:     cfg.Core.WriteHighWater.Int64(),
		dumpIn:        cfg.Core.DebugHexInput,
		dumpOut:       cfg.Core.DebugHexOutput,
	}

	if e.tickMs < 1 {
		e.tickMs = 1000
	}

	e.run.Store(false)

	if e.dumpIn || e.dumpOut {
		base := sckbuf.NewHexDump(log)

		e.dump = func(tag string, id int, p []byte) {
			if tag == sckbuf.TagIngress && !e.dumpIn {
				return
			}

			if tag == sckbuf.TagEgress && !e.dumpOut {
				return
			}

			base(tag, id, p)
		}
	}

	return e, nil
}

func (e *engine) logger() liblog.Logger {
	if e.fl == nil {
		return nil
	}

	return e.fl()
}

// log writes one structured entry; ref is whatever identifies the
// subject (connection id, worker id, listener name).
func (e *engine) log(lvl loglvl.Level, msg string, ref any, err error, kv ...any) {
	l := e.logger()
	if l == nil {
		return
	}

	ent := l.Entry(lvl, msg)

	if ref != nil {
		ent.FieldAdd("ref", ref)
	}

	for i := 0; i+1 < len(kv); i += 2 {
		if k, ok := kv[i].(string); ok {
			ent.FieldAdd(k, kv[i+1])
		}
	}

	ent.ErrorAdd(true, err)
	ent.Log()
}

func (e *engine) main() *worker {
	return e.wks[0]
}

// pick selects the owning worker for a fresh connection: round-robin
// across the non-main workers, or the main worker when it is alone.
func (e *engine) pick() *worker {
	if len(e.wks) == 1 {
		return e.wks[0]
	}

	n := uint64(len(e.wks) - 1)

	return e.wks[1+e.rrb.Add(1)%n]
}

func (e *engine) nextPseudo() int {
	return pseudoBase + int(e.psc.Add(1))
}

func (e *engine) stopping() bool {
	return e.stp.Load()
}

func (e *engine) IsRunning() bool {
	return e.run.Load()
}

func (e *engine) Done() <-chan struct{} {
	return e.dne
}

func (e *engine) Controller() Controller {
	return &ctl{e: e}
}

// SetHooks installs the externally-owned admin callback slots. Must be
// called before Start.
func (e *engine) SetHooks(h Hooks) {
	e.hks = h
}

// RegisterHandler binds a Go handler to the named listener before Start.
func (e *engine) RegisterHandler(name string, h ConnHandler) {
	e.hnd[name] = h
}

func (e *engine) Status() Status {
	s := e.cnt.snapshot()
	s.Instance = e.uid
	s.AppID = e.cfg.Core.AppID
	s.Workers = len(e.wks)

	return s
}

func (e *engine) OpenConnections() int64 {
	return e.cnt.active.Load()
}

// Start brings the core up in dependency order: the script program, the
// worker loops (each builds its poller, runtime and queues), then the
// listeners on the main worker.
func (e *engine) Start(ctx context.Context) error {
	if e.IsRunning() {
		return ErrorEngineRunning.Error(nil)
	}

	if e.hst != nil {
		if idf, ok := e.hst.(sckscr.Identifiable); ok && len(e.cfg.Core.ScriptIdentifier) > 0 {
			idf.SetIdentifier(e.cfg.Core.ScriptIdentifier)
		}

		if hc, ok := e.hst.(sckscr.HookConfigurable); ok {
			hc.SetHookNames(sckscr.HookNames{
				Load:      e.cfg.Core.OnLoad,
				Reload:    e.cfg.Core.OnReload,
				Exit:      e.cfg.Core.OnExit,
				SubLoad:   e.cfg.Core.OnSubLoad,
				SubReload: e.cfg.Core.OnSubReload,
				SubExit:   e.cfg.Core.OnSubExit,
			})
		}

		for i := range e.cfg.Modules {
			if err := e.hst.LoadModule(e.cfg.Modules[i].Name); err != nil {
				return ErrorScriptLoad.Error(err)
			}
		}

		if err := e.hst.Load(); err != nil {
			return ErrorScriptLoad.Error(err)
		}
	}

	for i := 0; i < e.cfg.Core.Workers; i++ {
		w, err := newWorker(e, i)
		if err != nil {
			// no loop goroutine runs yet, release directly
			for _, p := range e.wks {
				p.release()
			}

			e.wks = nil

			return err
		}

		e.wks = append(e.wks, w)
	}

	for _, w := range e.wks {
		go w.loop()
	}

	for _, w := range e.wks {
		if err := <-w.rdy; err != nil {
			e.failStart()
			return err
		}
	}

	for i := range e.cfg.Servers {
		lst, err := newListeners(e, &e.cfg.Servers[i])
		if err != nil {
			e.failStart()
			return err
		}

		e.lsn = append(e.lsn, lst...)
	}

	m := e.main()

	for _, l := range e.lsn {
		l := l
		fd := l.sck.Fd()

		bnd := make(chan error, 1)

		m.post(func() {
			if err := e.reg.Set(fd, sckplr.OwnerListener, l); err != nil {
				bnd <- err
				return
			}

			bnd <- m.plr.Register(fd, sckplr.InterestRead)
		})

		if err := <-bnd; err != nil {
			e.failStart()
			return ErrorListenerStart.Error(err)
		}

		e.log(loglvl.InfoLevel, "listener ready", l.cfg.Name, nil, "endpoint", l.sck.LocalAddr(), "mode", l.cfg.Mode().String())
	}

	e.run.Store(true)

	if ctx != nil {
		c, cnl := context.WithCancel(ctx)
		e.cnl = cnl

		go func() {
			select {
			case <-c.Done():
				_ = e.Shutdown()
			case <-e.dne:
			}
		}()
	}

	e.log(loglvl.InfoLevel, "server core started", nil, nil, "instance", e.uid, "workers", len(e.wks))

	return nil
}

// failStart tears down whatever Start already brought up.
func (e *engine) failStart() {
	e.stp.Store(true)

	for _, w := range e.wks {
		w.wakeUp()
	}

	for _, w := range e.wks {
		<-w.done
	}

	for _, l := range e.lsn {
		_ = l.sck.Close()
	}

	e.wks, e.lsn = nil, nil
	e.stp.Store(false)
}

// Shutdown performs the graceful stop: every worker closes its
// connections (on_close fires for each), drains outbound buffers up to
// the drain deadline and exits; the script program exits last.
func (e *engine) Shutdown() error {
	if !e.IsRunning() {
		return ErrorEngineStopped.Error(nil)
	}

	if e.stp.Swap(true) {
		<-e.dne
		return nil
	}

	e.log(loglvl.InfoLevel, "server core stopping", nil, nil)

	if e.cnl != nil {
		e.cnl()
	}

	for _, w := range e.wks {
		w.wakeUp()
	}

	for _, w := range e.wks {
		<-w.done
	}

	if e.hst != nil {
		if err := e.hst.Exit(); err != nil {
			e.log(loglvl.ErrorLevel, "script exit failed", nil, err)
		}
	}

	if e.hks.OnExit != nil {
		e.hks.OnExit()
	}

	e.run.Store(false)
	close(e.dne)

	e.log(loglvl.InfoLevel, "server core stopped", nil, nil)

	return nil
}

// findConn resolves a connection id to either a socket-backed connection
// or a datagram pseudo connection.
func (e *engine) findConn(id int) (*conn, *dgramPeer) {
	if k, ref := e.reg.Get(id); k == sckplr.OwnerConnection || k == sckplr.OwnerConnector {
		if c, ok := ref.(*conn); ok {
			return c, nil
		}
	}

	if d, ok := e.pse.Load(id); ok {
		return nil, d
	}

	return nil, nil
}

func (e *engine) Send(id int, tag uint32, payload []byte) error {
	c, d := e.findConn(id)

	switch {
	case c != nil:
		if c.mode() == sckfrm.ModeStream {
			return ErrorSendPayload.Error(nil)
		}

		p := sckfrm.Encode(tag, payload)

		if m := c.maxPacket(); m > 0 && len(p) > m {
			return ErrorSendPayload.Error(nil)
		}

		return c.append(p, 1)

	case d != nil:
		p := sckfrm.Encode(tag, payload)
		e.cnt.bytesOut.Add(int64(len(p)))
		e.cnt.framesOut.Add(1)

		return d.lsn.sendDatagram(p, d.sa)
	}

	return ErrorConnUnknown.Error(nil)
}

func (e *engine) SendValue(id int, tag uint32, v sckscr.Value) error {
	p, err := e.cdc.Encode(v)
	if err != nil {
		return ErrorSendPayload.Error(err)
	}

	return e.Send(id, tag, p)
}

func (e *engine) SendRaw(id int, p []byte) error {
	c, d := e.findConn(id)

	switch {
	case c != nil:
		return c.append(p, 0)

	case d != nil:
		e.cnt.bytesOut.Add(int64(len(p)))

		return d.lsn.sendDatagram(p, d.sa)
	}

	return ErrorConnUnknown.Error(nil)
}

func (e *engine) CloseConn(id int) error {
	c, d := e.findConn(id)

	switch {
	case c != nil:
		c.requestClose(reasonHandler)
		return nil

	case d != nil:
		e.main().post(func() {
			e.main().closePeer(d, reasonHandler)
		})
		return nil
	}

	return ErrorConnUnknown.Error(nil)
}
