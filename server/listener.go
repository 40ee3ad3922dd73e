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
	"sync/atomic"

	loglvl "github.com/nabbar/golib/logger/level"

	sckcfg "github.com/drnp/bsp/config"
	sckfrm "github.com/drnp/bsp/framing"
	scksck "github.com/drnp/bsp/socket"

	"golang.org/x/sys/unix"
)

// listener owns one bound socket plus its admission policy and handler
// slots. A single address spec may expand into several listeners (one per
// family); each keeps its own accept socket but shares the config.
type listener struct {
	eng   *engine
	cfg   *sckcfg.Server
	sck   scksck.Socket
	cur   atomic.Int64
	peers map[string]*dgramPeer // datagram pseudo connections, main worker only
}

// newListeners opens every socket behind one server config entry.
func newListeners(e *engine, cfg *sckcfg.Server) ([]*listener, error) {
	scks, err := scksck.NewListeners(cfg.Protocol(), cfg.Addr, cfg.Port, cfg.Backlog)
	if err != nil {
		return nil, ErrorListenerStart.Error(err)
	}

	var res []*listener

	for _, s := range scks {
		if e.dumpIn || e.dumpOut {
			s.SetDump(e.dump)
		}

		res = append(res, &listener{
			eng:   e,
			cfg:   cfg,
			sck:   s,
			peers: make(map[string]*dgramPeer),
		})
	}

	return res, nil
}

// onReadable runs on the main worker: streams accept until would-block,
// datagram sockets read and dispatch per datagram.
func (l *listener) onReadable(w *worker) {
	if l.cfg.Mode() == sckfrm.ModeDatagram {
		l.readDatagrams(w)
		return
	}

	for {
		s, st := l.sck.Accept()

		switch st {
		case scksck.IOWouldBlock:
			return
		case scksck.IOOk:
			l.admit(s)
		default:
			l.eng.log(loglvl.ErrorLevel, "accept failed on listener", l.cfg.Name, l.sck.LastError())
			return
		}
	}
}

// admit applies the client cap then hands the socket to a worker. Above
// the cap the fd closes at once and no callback fires.
func (l *listener) admit(s scksck.Socket) {
	e := l.eng

	if l.cur.Load() >= int64(l.cfg.MaxClients) {
		_ = s.Close()
		e.cnt.refused.Add(1)
		return
	}

	if e.dumpIn || e.dumpOut {
		s.SetDump(e.dump)
	}

	w := e.pick()

	c := &conn{
		id:  s.Fd(),
		sck: s,
		lsn: l,
		hnd: e.hnd[l.cfg.Name],
		wrk: w,
		dec: sckfrm.NewDecoder(l.cfg.Mode(), int(l.cfg.MaxPacketLength.Int64())),
	}

	l.cur.Add(1)
	e.cnt.accepted.Add(1)
	e.cnt.active.Add(1)

	w.handoff(c)
}

// readDatagrams drains one readiness burst, synthesizing one pseudo
// connection per peer so scripted handlers keep a stable id and stack.
func (l *listener) readDatagrams(w *worker) {
	for {
		p, frm, st := l.sck.ReadDatagram()

		switch st {
		case scksck.IOWouldBlock:
			return
		case scksck.IOOk:
			l.eng.cnt.bytesIn.Add(int64(len(p)))
			w.dispatchDatagram(l, p, frm)
		default:
			l.eng.log(loglvl.ErrorLevel, "datagram read failed on listener", l.cfg.Name, l.sck.LastError())
			return
		}
	}
}

// release drops one admitted client from the count.
func (l *listener) release() {
	l.cur.Add(-1)
}

// sendDatagram answers one pseudo connection peer.
func (l *listener) sendDatagram(p []byte, to unix.Sockaddr) error {
	if st := l.sck.WriteDatagram(p, to); st == scksck.IOFatal {
		return ErrorConnClosed.Error(l.sck.LastError())
	}

	return nil
}
