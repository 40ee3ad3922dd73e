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
 */

// helper_test.go provides shared test utilities: a recording script host,
// configuration builders, free port management and packet-mode client
// helpers used across the suite.
package server_test

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	libdur "github.com/nabbar/golib/duration"
	libsiz "github.com/nabbar/golib/size"

	sckcfg "github.com/drnp/bsp/config"
	sckfrm "github.com/drnp/bsp/framing"
	sckscr "github.com/drnp/bsp/script"
	scksrv "github.com/drnp/bsp/server"

	. "github.com/onsi/gomega"
)

// event is one recorded host callback.
type event struct {
	fn   string
	id   int
	tag  int64
	data []byte
	args int
}

// recHost is a recording script host whose handler behavior is selected
// by the configured function name.
type recHost struct {
	mu  sync.Mutex
	evt []event
	eng scksrv.Engine

	loads     atomic.Int32
	reloads   atomic.Int32
	exits     atomic.Int32
	subLoad   atomic.Int32
	subReload atomic.Int32
	subExit   atomic.Int32
	modules   atomic.Int32
	stacks    atomic.Int32
	released  atomic.Int32
}

type testRunner struct{ id int }
type testStack struct{ alive bool }

func newHost() *recHost {
	return &recHost{}
}

func (h *recHost) Load() error   { h.loads.Add(1); return nil }
func (h *recHost) Reload() error { h.reloads.Add(1); return nil }
func (h *recHost) Exit() error   { h.exits.Add(1); return nil }

func (h *recHost) LoadModule(name string) error { h.modules.Add(1); return nil }

func (h *recHost) NewRunner() (sckscr.Runner, error) { return &testRunner{}, nil }

func (h *recHost) SubLoad(r sckscr.Runner) error   { h.subLoad.Add(1); return nil }
func (h *recHost) SubReload(r sckscr.Runner) error { h.subReload.Add(1); return nil }
func (h *recHost) SubExit(r sckscr.Runner) error   { h.subExit.Add(1); return nil }

func (h *recHost) NewStack(r sckscr.Runner) (sckscr.Stack, error) {
	h.stacks.Add(1)
	return &testStack{alive: true}, nil
}

func (h *recHost) ReleaseStack(s sckscr.Stack) {
	if t, ok := s.(*testStack); ok && t.alive {
		t.alive = false
		h.released.Add(1)
	}
}

func (h *recHost) record(ev event) {
	h.mu.Lock()
	h.evt = append(h.evt, ev)
	h.mu.Unlock()
}

// Call implements the scripted handlers used by the suite:
//
//	echo_*   — write the inbound frame back as-is
//	fail_*   — return an error (handler-failure containment)
//	panic_*  — panic (handler-failure containment)
//	close_*  — ask for the connection close from inside the handler
//	slow_*   — hold the worker for 50ms before echoing
//	rec_*    — record only
func (h *recHost) Call(s sckscr.Stack, fn string, args ...sckscr.Value) error {
	ev := event{fn: fn, args: len(args)}

	if len(args) > 0 {
		ev.id = int(args[0].Int())
	}

	switch len(args) {
	case 2:
		ev.data = args[1].Bytes()
	case 3:
		if args[1].Kind() == sckscr.KindInt {
			// packet form: id, tag, payload
			ev.tag = args[1].Int()
			ev.data = args[2].Bytes()
		} else {
			// datagram form: id, payload, peer
			ev.data = args[1].Bytes()
		}
	}

	h.record(ev)

	switch {
	case fn == "fail_data":
		return fmt.Errorf("scripted failure")

	case fn == "panic_data":
		panic("scripted panic")

	case fn == "close_data":
		_ = h.eng.CloseConn(ev.id)

	case fn == "slow_data":
		time.Sleep(50 * time.Millisecond)
		fallthrough

	case fn == "echo_data":
		if len(args) == 3 && args[1].Kind() == sckscr.KindInt {
			return h.eng.Send(ev.id, uint32(ev.tag), ev.data)
		}

		return h.eng.SendRaw(ev.id, ev.data)
	}

	return nil
}

// events returns a copy of the recorded callbacks, optionally filtered.
func (h *recHost) events(fn string) []event {
	h.mu.Lock()
	defer h.mu.Unlock()

	var res []event
	for _, ev := range h.evt {
		if len(fn) < 1 || ev.fn == fn {
			res = append(res, ev)
		}
	}

	return res
}

func (h *recHost) countEvents(fn string) int {
	return len(h.events(fn))
}

// getFreePort returns a free TCP port for testing.
func getFreePort() int {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	Expect(err).ToNot(HaveOccurred())

	defer func() {
		_ = lis.Close()
	}()

	return lis.Addr().(*net.TCPAddr).Port
}

// createConfig builds a single-listener packet-mode configuration with a
// fast tick suited to tests.
func createConfig(port int, fct func(s *sckcfg.Server)) *sckcfg.Config {
	srv := sckcfg.Server{
		Name:            "test",
		Addr:            "127.0.0.1",
		Port:            port,
		Network:         "tcp",
		Framing:         "packet",
		MaxPacketLength: libsiz.SizeKilo,
		OnConnect:       "rec_connect",
		OnData:          "echo_data",
		OnClose:         "rec_close",
		OnError:         "rec_error",
	}

	if fct != nil {
		fct(&srv)
	}

	cfg := &sckcfg.Config{
		Core: sckcfg.Core{
			Workers:      2,
			TickInterval: libdur.ParseDuration(20 * time.Millisecond),
			Manager:      sckcfg.Manager{Independent: true},
		},
		Servers: []sckcfg.Server{srv},
	}

	cfg.SetDefaults()
	Expect(cfg.Validate()).To(BeNil())

	return cfg
}

// startEngine builds and starts an engine over the given config.
func startEngine(cfg *sckcfg.Config, hst *recHost) scksrv.Engine {
	eng, err := scksrv.New(cfg, hst, nil)
	Expect(err).ToNot(HaveOccurred())

	if hst != nil {
		hst.eng = eng
	}

	Expect(eng.Start(globalCtx)).ToNot(HaveOccurred())

	return eng
}

// dialTest opens a plain client to the test listener.
func dialTest(port int) net.Conn {
	var (
		clt net.Conn
		err error
	)

	Eventually(func() error {
		clt, err = net.DialTimeout("tcp", fmt.Sprintf("127.0.0.1:%d", port), time.Second)
		return err
	}, 2*time.Second, 20*time.Millisecond).Should(Succeed())

	return clt
}

// writeFrame sends one packet-mode frame on a client connection.
func writeFrame(clt net.Conn, tag uint32, payload []byte) {
	_, err := clt.Write(sckfrm.Encode(tag, payload))
	Expect(err).ToNot(HaveOccurred())
}

// readFrame reads one packet-mode frame, failing on timeout.
func readFrame(clt net.Conn, timeout time.Duration) (uint32, []byte) {
	Expect(clt.SetReadDeadline(time.Now().Add(timeout))).ToNot(HaveOccurred())

	hdr := make([]byte, sckfrm.HeaderSize)
	_, err := io.ReadFull(clt, hdr)
	Expect(err).ToNot(HaveOccurred())

	lng := binary.BigEndian.Uint32(hdr[0:4])
	tag := binary.BigEndian.Uint32(hdr[4:8])
	Expect(lng).To(BeNumerically(">=", sckfrm.HeaderSize))

	bdy := make([]byte, lng-sckfrm.HeaderSize)
	_, err = io.ReadFull(clt, bdy)
	Expect(err).ToNot(HaveOccurred())

	return tag, bdy
}

// waitClosed expects the peer to close the connection; read timeouts keep
// waiting, only EOF or reset count as closed.
func waitClosed(clt net.Conn, timeout time.Duration) {
	one := make([]byte, 1)

	Eventually(func() bool {
		_ = clt.SetReadDeadline(time.Now().Add(50 * time.Millisecond))

		if _, err := clt.Read(one); err == nil {
			return false
		} else if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return false
		}

		return true
	}, timeout, 10*time.Millisecond).Should(BeTrue())
}
