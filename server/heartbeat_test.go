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

// heartbeat_test.go validates the idle reaper: connections outliving the
// listener TTL close with on_close fired; active ones survive. The reaper
// spreads checks across ticks, so assertions allow a full stride cycle.
package server_test

import (
	"time"

	libdur "github.com/nabbar/golib/duration"

	sckcfg "github.com/drnp/bsp/config"
	scksrv "github.com/drnp/bsp/server"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Engine Heartbeat Reaper", func() {
	var (
		eng scksrv.Engine
		hst *recHost
		prt int
	)

	BeforeEach(func() {
		prt = getFreePort()
		hst = newHost()
		eng = startEngine(createConfig(prt, func(s *sckcfg.Server) {
			s.HeartbeatTTL = libdur.ParseDuration(150 * time.Millisecond)
		}), hst)
	})

	AfterEach(func() {
		if eng.IsRunning() {
			Expect(eng.Shutdown()).ToNot(HaveOccurred())
		}
	})

	It("should reap an idle connection and fire on_close", func() {
		clt := dialTest(prt)
		defer func() {
			_ = clt.Close()
		}()

		writeFrame(clt, 1, []byte("once"))
		_, _ = readFrame(clt, 2*time.Second)

		// one full stride cycle at the 20ms test tick is 1.2s
		Eventually(func() int {
			return hst.countEvents("rec_close")
		}, 5*time.Second, 20*time.Millisecond).Should(Equal(1))

		Expect(eng.Status().Reaped).To(Equal(int64(1)))

		waitClosed(clt, 2*time.Second)
	})

	It("should not reap a connection that keeps talking", func() {
		clt := dialTest(prt)
		defer func() {
			_ = clt.Close()
		}()

		for i := 0; i < 20; i++ {
			writeFrame(clt, 1, []byte("beat"))
			_, _ = readFrame(clt, 2*time.Second)
			time.Sleep(50 * time.Millisecond)
		}

		Expect(hst.countEvents("rec_close")).To(Equal(0))
		Expect(eng.OpenConnections()).To(Equal(int64(1)))
	})

	It("should never reap when the TTL is zero", func() {
		zp := getFreePort()
		zh := newHost()

		zen := startEngine(createConfig(zp, nil), zh)
		defer func() {
			_ = zen.Shutdown()
		}()

		clt := dialTest(zp)
		defer func() {
			_ = clt.Close()
		}()

		Consistently(func() int {
			return zh.countEvents("rec_close")
		}, 2*time.Second, 100*time.Millisecond).Should(Equal(0))
	})
})
