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

// manager_test.go runs both ends of the control channel over a real local
// socket: worker registration, command push and deregistration.
package manager_test

import (
	"path/filepath"
	"time"

	libdur "github.com/nabbar/golib/duration"

	sckcfg "github.com/drnp/bsp/config"
	sckmgr "github.com/drnp/bsp/manager"
	scksrv "github.com/drnp/bsp/server"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func newWorkerEngine() scksrv.Engine {
	cfg := &sckcfg.Config{
		Core: sckcfg.Core{
			AppID:        7,
			Workers:      1,
			TickInterval: libdur.ParseDuration(20 * time.Millisecond),
			Manager:      sckcfg.Manager{Independent: true},
		},
	}

	cfg.SetDefaults()
	Expect(cfg.Validate()).To(BeNil())

	eng, err := scksrv.New(cfg, nil, nil)
	Expect(err).ToNot(HaveOccurred())
	Expect(eng.Start(globalCtx)).ToNot(HaveOccurred())

	return eng
}

var _ = Describe("Manager Control Channel", func() {
	var (
		mgr sckmgr.Manager
		eng scksrv.Engine
		pth string
	)

	BeforeEach(func() {
		pth = filepath.Join(GinkgoT().TempDir(), "bsp-manager.sock")

		var err error
		mgr, err = sckmgr.New(sckmgr.Config{Path: pth}, nil)
		Expect(err).ToNot(HaveOccurred())
		Expect(mgr.Start(globalCtx)).ToNot(HaveOccurred())

		eng = newWorkerEngine()
	})

	AfterEach(func() {
		if eng != nil && eng.IsRunning() {
			_ = eng.Shutdown()
		}

		if mgr.IsRunning() {
			Expect(mgr.Shutdown()).ToNot(HaveOccurred())
		}
	})

	It("should register a worker over the control socket", func() {
		Expect(eng.AddConnector(pth, sckmgr.NewChannel(eng, nil, 7))).ToNot(HaveOccurred())

		Eventually(func() int {
			return len(mgr.Workers())
		}, 3*time.Second, 20*time.Millisecond).Should(Equal(1))

		wks := mgr.Workers()
		Expect(wks[0].App).To(Equal(7))
		Expect(wks[0].Instance).ToNot(BeEmpty())
		Expect(wks[0].Pid).To(BeNumerically(">", 0))
	})

	It("should push a shutdown command the worker obeys", func() {
		Expect(eng.AddConnector(pth, sckmgr.NewChannel(eng, nil, 7))).ToNot(HaveOccurred())

		Eventually(func() int {
			return len(mgr.Workers())
		}, 3*time.Second, 20*time.Millisecond).Should(Equal(1))

		Expect(mgr.Broadcast(sckmgr.OpShutdown)).ToNot(HaveOccurred())

		Eventually(eng.Done(), 5*time.Second).Should(BeClosed())
		Expect(eng.IsRunning()).To(BeFalse())
	})

	It("should forget a worker whose channel dies", func() {
		Expect(eng.AddConnector(pth, sckmgr.NewChannel(eng, nil, 7))).ToNot(HaveOccurred())

		Eventually(func() int {
			return len(mgr.Workers())
		}, 3*time.Second, 20*time.Millisecond).Should(Equal(1))

		Expect(eng.Shutdown()).ToNot(HaveOccurred())

		Eventually(func() int {
			return len(mgr.Workers())
		}, 3*time.Second, 20*time.Millisecond).Should(Equal(0))
	})
})
