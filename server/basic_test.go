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

// basic_test.go validates core lifecycle and the single-frame echo path.
package server_test

import (
	"time"

	scksrv "github.com/drnp/bsp/server"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Engine Basic Operations", func() {
	var (
		eng scksrv.Engine
		hst *recHost
		prt int
	)

	BeforeEach(func() {
		prt = getFreePort()
		hst = newHost()
		eng = startEngine(createConfig(prt, nil), hst)
	})

	AfterEach(func() {
		if eng.IsRunning() {
			Expect(eng.Shutdown()).ToNot(HaveOccurred())
		}
	})

	Context("lifecycle", func() {
		It("should report running after start and stopped after shutdown", func() {
			Expect(eng.IsRunning()).To(BeTrue())

			Expect(eng.Shutdown()).ToNot(HaveOccurred())
			Expect(eng.IsRunning()).To(BeFalse())

			Eventually(eng.Done(), time.Second).Should(BeClosed())
		})

		It("should refuse a second start while running", func() {
			Expect(eng.Start(globalCtx)).To(HaveOccurred())
		})

		It("should load the script program once and each worker runtime once", func() {
			Expect(hst.loads.Load()).To(Equal(int32(1)))
			Expect(hst.subLoad.Load()).To(Equal(int32(2)))
		})
	})

	Context("single frame echo", func() {
		It("should echo one frame byte for byte", func() {
			clt := dialTest(prt)
			defer func() {
				_ = clt.Close()
			}()

			writeFrame(clt, 1, []byte("Hi!"))

			tag, bdy := readFrame(clt, 2*time.Second)
			Expect(tag).To(Equal(uint32(1)))
			Expect(bdy).To(Equal([]byte("Hi!")))
		})

		It("should fire on_connect before on_data", func() {
			clt := dialTest(prt)
			defer func() {
				_ = clt.Close()
			}()

			writeFrame(clt, 1, []byte("x"))

			Eventually(func() int {
				return hst.countEvents("echo_data")
			}, 2*time.Second, 10*time.Millisecond).Should(Equal(1))

			evt := hst.events("")
			var con, dat int
			for i, ev := range evt {
				switch ev.fn {
				case "rec_connect":
					con = i
				case "echo_data":
					dat = i
				}
			}

			Expect(con).To(BeNumerically("<", dat))
			Expect(hst.countEvents("rec_connect")).To(Equal(1))
		})

		It("should count the connection open then closed", func() {
			clt := dialTest(prt)

			Eventually(eng.OpenConnections, time.Second, 10*time.Millisecond).Should(Equal(int64(1)))

			_ = clt.Close()

			Eventually(eng.OpenConnections, 2*time.Second, 10*time.Millisecond).Should(Equal(int64(0)))
		})
	})

	Context("zero length payload", func() {
		It("should dispatch and echo an empty frame", func() {
			clt := dialTest(prt)
			defer func() {
				_ = clt.Close()
			}()

			writeFrame(clt, 7, nil)

			tag, bdy := readFrame(clt, 2*time.Second)
			Expect(tag).To(Equal(uint32(7)))
			Expect(bdy).To(BeEmpty())
		})
	})
})
