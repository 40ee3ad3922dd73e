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

// datagram_test.go validates datagram listeners: one message per
// datagram, per-peer pseudo connections with a stable id and stack.
package server_test

import (
	"fmt"
	"net"
	"time"

	scksrv "github.com/drnp/bsp/server"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Engine Datagram Listener", func() {
	var (
		eng scksrv.Engine
		hst *recHost
		prt int
	)

	BeforeEach(func() {
		prt = getFreePort()
		hst = newHost()

		cfg := createConfig(prt, nil)
		cfg.Servers[0].Network = "udp"
		cfg.Servers[0].Framing = "datagram"

		eng = startEngine(cfg, hst)
	})

	AfterEach(func() {
		if eng.IsRunning() {
			Expect(eng.Shutdown()).ToNot(HaveOccurred())
		}
	})

	It("should echo one message per datagram", func() {
		clt, err := net.Dial("udp", fmt.Sprintf("127.0.0.1:%d", prt))
		Expect(err).ToNot(HaveOccurred())
		defer func() {
			_ = clt.Close()
		}()

		// the listener may still be binding when the first datagram
		// leaves, datagrams carry no handshake to wait on
		Eventually(func() bool {
			_, er := clt.Write([]byte("marco"))
			if er != nil {
				return false
			}

			buf := make([]byte, 64)
			_ = clt.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
			n, er := clt.Read(buf)

			return er == nil && string(buf[:n]) == "marco"
		}, 5*time.Second, 50*time.Millisecond).Should(BeTrue())
	})

	It("should keep one pseudo connection per peer", func() {
		clt, err := net.Dial("udp", fmt.Sprintf("127.0.0.1:%d", prt))
		Expect(err).ToNot(HaveOccurred())
		defer func() {
			_ = clt.Close()
		}()

		for i := 0; i < 3; i++ {
			_, err = clt.Write([]byte("tick"))
			Expect(err).ToNot(HaveOccurred())
		}

		Eventually(func() int {
			return hst.countEvents("echo_data")
		}, 3*time.Second, 20*time.Millisecond).Should(BeNumerically(">=", 3))

		// on_connect fired once for the peer, every message shares its id
		Expect(hst.countEvents("rec_connect")).To(Equal(1))

		evt := hst.events("echo_data")
		for _, ev := range evt {
			Expect(ev.id).To(Equal(hst.events("rec_connect")[0].id))
		}
	})
})
