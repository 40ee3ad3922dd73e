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

// control_test.go validates the admin surface: script reload fan-out,
// status dump, hook slots and counters.
package server_test

import (
	"sync/atomic"
	"time"

	scksrv "github.com/drnp/bsp/server"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Engine Admin Surface", func() {
	var (
		eng scksrv.Engine
		hst *recHost
		prt int
	)

	BeforeEach(func() {
		prt = getFreePort()
		hst = newHost()
	})

	AfterEach(func() {
		if eng != nil && eng.IsRunning() {
			Expect(eng.Shutdown()).ToNot(HaveOccurred())
		}
	})

	It("should reload the program then every worker runtime", func() {
		eng = startEngine(createConfig(prt, nil), hst)

		Expect(eng.Controller().ReloadScript()).ToNot(HaveOccurred())

		Expect(hst.reloads.Load()).To(Equal(int32(1)))

		Eventually(func() int32 {
			return hst.subReload.Load()
		}, 2*time.Second, 10*time.Millisecond).Should(Equal(int32(2)))
	})

	It("should run the registered hooks", func() {
		var (
			rld atomic.Int32
			rop atomic.Int32
			dmp atomic.Int32
			ext atomic.Int32
		)

		cfg := createConfig(prt, nil)

		e, err := scksrv.New(cfg, hst, nil)
		Expect(err).ToNot(HaveOccurred())
		hst.eng = e

		e.SetHooks(scksrv.Hooks{
			OnReload:     func() error { rld.Add(1); return nil },
			OnReopenLogs: func() error { rop.Add(1); return nil },
			OnDumpStatus: func(s scksrv.Status) { dmp.Add(1) },
			OnExit:       func() { ext.Add(1) },
		})

		Expect(e.Start(globalCtx)).ToNot(HaveOccurred())
		eng = e

		Expect(e.Controller().ReloadScript()).ToNot(HaveOccurred())
		Expect(e.Controller().ReopenLogs()).ToNot(HaveOccurred())
		_ = e.Controller().DumpStatus()

		Expect(rld.Load()).To(Equal(int32(1)))
		Expect(rop.Load()).To(Equal(int32(1)))
		Expect(dmp.Load()).To(Equal(int32(1)))

		Expect(e.Shutdown()).ToNot(HaveOccurred())
		Expect(ext.Load()).To(Equal(int32(1)))
	})

	It("should snapshot traffic counters in the status dump", func() {
		eng = startEngine(createConfig(prt, nil), hst)

		clt := dialTest(prt)
		defer func() {
			_ = clt.Close()
		}()

		writeFrame(clt, 1, []byte("count me"))
		_, _ = readFrame(clt, 2*time.Second)

		s := eng.Controller().DumpStatus()

		Expect(s.Accepted).To(Equal(int64(1)))
		Expect(s.Active).To(Equal(int64(1)))
		Expect(s.FramesIn).To(Equal(int64(1)))
		Expect(s.FramesOut).To(Equal(int64(1)))
		Expect(s.BytesIn).To(BeNumerically(">", int64(0)))
		Expect(s.BytesOut).To(BeNumerically(">", int64(0)))
		Expect(s.Instance).ToNot(BeEmpty())
		Expect(s.Workers).To(Equal(2))
	})

	It("should stop the engine through the controller", func() {
		eng = startEngine(createConfig(prt, nil), hst)

		eng.Controller().Shutdown()

		Eventually(eng.Done(), 5*time.Second).Should(BeClosed())
		Expect(eng.IsRunning()).To(BeFalse())
	})

	It("should refuse to send on an unknown connection id", func() {
		eng = startEngine(createConfig(prt, nil), hst)

		Expect(eng.Send(424242, 1, []byte("void"))).To(HaveOccurred())
		Expect(eng.CloseConn(424242)).To(HaveOccurred())
	})
})
