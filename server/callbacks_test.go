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

// callbacks_test.go validates the dispatch contract: callback ordering,
// exactly-once close, stack lifetime and handler failure containment.
package server_test

import (
	"time"

	sckcfg "github.com/drnp/bsp/config"
	scksrv "github.com/drnp/bsp/server"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Engine Dispatch Contract", func() {
	var (
		eng scksrv.Engine
		hst *recHost
		prt int
	)

	AfterEach(func() {
		if eng != nil && eng.IsRunning() {
			Expect(eng.Shutdown()).ToNot(HaveOccurred())
		}
	})

	Context("close semantics", func() {
		BeforeEach(func() {
			prt = getFreePort()
			hst = newHost()
			eng = startEngine(createConfig(prt, nil), hst)
		})

		It("should fire on_close exactly once and release the stack", func() {
			clt := dialTest(prt)

			Eventually(func() int32 {
				return hst.stacks.Load()
			}, time.Second, 10*time.Millisecond).Should(Equal(int32(1)))

			_ = clt.Close()

			Eventually(func() int {
				return hst.countEvents("rec_close")
			}, 2*time.Second, 10*time.Millisecond).Should(Equal(1))

			Eventually(func() int32 {
				return hst.released.Load()
			}, time.Second, 10*time.Millisecond).Should(Equal(int32(1)))

			// settle: close is never fired twice
			Consistently(func() int {
				return hst.countEvents("rec_close")
			}, 200*time.Millisecond, 20*time.Millisecond).Should(Equal(1))
		})

		It("should defer a handler-requested close until after the handler", func() {
			cfg := createConfig(prt, func(s *sckcfg.Server) {
				s.OnData = "close_data"
			})

			Expect(eng.Shutdown()).ToNot(HaveOccurred())
			eng = startEngine(cfg, hst)

			clt := dialTest(prt)
			defer func() {
				_ = clt.Close()
			}()

			writeFrame(clt, 1, []byte("bye"))

			waitClosed(clt, 2*time.Second)

			Eventually(func() int {
				return hst.countEvents("rec_close")
			}, 2*time.Second, 10*time.Millisecond).Should(Equal(1))

			Expect(hst.countEvents("close_data")).To(Equal(1))
		})
	})

	Context("handler failure containment", func() {
		It("should keep the connection alive after a failing handler", func() {
			prt = getFreePort()
			hst = newHost()
			eng = startEngine(createConfig(prt, func(s *sckcfg.Server) {
				s.OnData = "fail_data"
			}), hst)

			clt := dialTest(prt)
			defer func() {
				_ = clt.Close()
			}()

			writeFrame(clt, 1, []byte("boom"))
			writeFrame(clt, 1, []byte("again"))

			Eventually(func() int {
				return hst.countEvents("fail_data")
			}, 2*time.Second, 10*time.Millisecond).Should(Equal(2))

			Expect(eng.OpenConnections()).To(Equal(int64(1)))
			Expect(eng.Status().HandlerFails).To(Equal(int64(2)))
			Expect(hst.countEvents("rec_close")).To(Equal(0))
		})

		It("should keep the connection alive after a panicking handler", func() {
			prt = getFreePort()
			hst = newHost()
			eng = startEngine(createConfig(prt, func(s *sckcfg.Server) {
				s.OnData = "panic_data"
			}), hst)

			clt := dialTest(prt)
			defer func() {
				_ = clt.Close()
			}()

			writeFrame(clt, 1, []byte("boom"))

			Eventually(func() int64 {
				return eng.Status().HandlerFails
			}, 2*time.Second, 10*time.Millisecond).Should(Equal(int64(1)))

			Expect(eng.OpenConnections()).To(Equal(int64(1)))
		})
	})

	Context("per connection ordering", func() {
		It("should deliver frames of one connection in arrival order", func() {
			prt = getFreePort()
			hst = newHost()
			eng = startEngine(createConfig(prt, nil), hst)

			clt := dialTest(prt)
			defer func() {
				_ = clt.Close()
			}()

			for i := byte(0); i < 20; i++ {
				writeFrame(clt, 5, []byte{i})
			}

			Eventually(func() int {
				return hst.countEvents("echo_data")
			}, 2*time.Second, 10*time.Millisecond).Should(Equal(20))

			evt := hst.events("echo_data")
			for i := 0; i < 20; i++ {
				Expect(evt[i].data).To(Equal([]byte{byte(i)}))
			}
		})
	})
})
