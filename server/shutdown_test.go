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

// shutdown_test.go validates the graceful stop: every living connection
// gets on_close, no handler is interrupted mid-execution, worker runtimes
// exit in order.
package server_test

import (
	"sync"
	"time"

	sckcfg "github.com/drnp/bsp/config"
	scksrv "github.com/drnp/bsp/server"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Engine Graceful Shutdown", func() {
	var (
		eng scksrv.Engine
		hst *recHost
		prt int
	)

	It("should fire on_close for every living connection", func() {
		prt = getFreePort()
		hst = newHost()
		eng = startEngine(createConfig(prt, nil), hst)

		const n = 20

		var (
			wg  sync.WaitGroup
			mu  sync.Mutex
			cls []func() error
		)

		for i := 0; i < n; i++ {
			wg.Add(1)

			go func() {
				defer wg.Done()

				clt := dialTest(prt)

				mu.Lock()
				cls = append(cls, clt.Close)
				mu.Unlock()
			}()
		}

		wg.Wait()

		Eventually(func() int {
			return hst.countEvents("rec_connect")
		}, 3*time.Second, 10*time.Millisecond).Should(Equal(n))

		Expect(eng.Shutdown()).ToNot(HaveOccurred())

		Expect(hst.countEvents("rec_close")).To(Equal(n))
		Expect(eng.OpenConnections()).To(Equal(int64(0)))
		Expect(hst.released.Load()).To(Equal(hst.stacks.Load()))

		for _, c := range cls {
			_ = c()
		}
	})

	It("should not interrupt a running handler", func() {
		prt = getFreePort()
		hst = newHost()
		eng = startEngine(createConfig(prt, func(s *sckcfg.Server) {
			s.OnData = "slow_data"
		}), hst)

		clt := dialTest(prt)
		defer func() {
			_ = clt.Close()
		}()

		writeFrame(clt, 1, []byte("take your time"))

		Eventually(func() int {
			return hst.countEvents("slow_data")
		}, 2*time.Second, 5*time.Millisecond).Should(Equal(1))

		Expect(eng.Shutdown()).ToNot(HaveOccurred())

		// the slow handler's echo still made it out before the close
		_, bdy := readFrame(clt, 2*time.Second)
		Expect(bdy).To(Equal([]byte("take your time")))
	})

	It("should tear worker runtimes down exactly once each", func() {
		prt = getFreePort()
		hst = newHost()
		eng = startEngine(createConfig(prt, nil), hst)

		Expect(eng.Shutdown()).ToNot(HaveOccurred())

		Expect(hst.subExit.Load()).To(Equal(int32(2)))
		Expect(hst.exits.Load()).To(Equal(int32(1)))

		// second shutdown is a no-op error, not a crash
		Expect(eng.Shutdown()).To(HaveOccurred())
	})
})
