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

// framing_test.go validates wire-level behavior against the packet
// framing contract: split arrivals, coalesced frames and the max length
// boundary.
package server_test

import (
	"bytes"
	"time"

	sckfrm "github.com/drnp/bsp/framing"
	scksrv "github.com/drnp/bsp/server"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Engine Packet Framing", func() {
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

	Context("coalesced frames", func() {
		It("should fire one callback per frame, in order", func() {
			clt := dialTest(prt)
			defer func() {
				_ = clt.Close()
			}()

			two := append(sckfrm.Encode(2, []byte("AB")), sckfrm.Encode(2, []byte("CD"))...)
			_, err := clt.Write(two)
			Expect(err).ToNot(HaveOccurred())

			tag, bdy := readFrame(clt, 2*time.Second)
			Expect(tag).To(Equal(uint32(2)))
			Expect(bdy).To(Equal([]byte("AB")))

			tag, bdy = readFrame(clt, 2*time.Second)
			Expect(tag).To(Equal(uint32(2)))
			Expect(bdy).To(Equal([]byte("CD")))

			evt := hst.events("echo_data")
			Expect(evt).To(HaveLen(2))
			Expect(evt[0].data).To(Equal([]byte("AB")))
			Expect(evt[1].data).To(Equal([]byte("CD")))
		})
	})

	Context("split frames", func() {
		It("should decode one byte per segment identically to one write", func() {
			clt := dialTest(prt)
			defer func() {
				_ = clt.Close()
			}()

			whole := sckfrm.Encode(9, []byte("fragmented"))

			for i := range whole {
				_, err := clt.Write(whole[i : i+1])
				Expect(err).ToNot(HaveOccurred())
				time.Sleep(time.Millisecond)
			}

			tag, bdy := readFrame(clt, 2*time.Second)
			Expect(tag).To(Equal(uint32(9)))
			Expect(bdy).To(Equal([]byte("fragmented")))
			Expect(hst.countEvents("echo_data")).To(Equal(1))
		})
	})

	Context("max packet boundary", func() {
		It("should accept a frame exactly at the limit", func() {
			clt := dialTest(prt)
			defer func() {
				_ = clt.Close()
			}()

			pay := bytes.Repeat([]byte{'x'}, 1024-sckfrm.HeaderSize)
			writeFrame(clt, 3, pay)

			_, bdy := readFrame(clt, 2*time.Second)
			Expect(bdy).To(HaveLen(len(pay)))
		})

		It("should close the connection on an oversize header with no on_data", func() {
			clt := dialTest(prt)
			defer func() {
				_ = clt.Close()
			}()

			// header announcing 0x1001 bytes against a 1024 limit
			_, err := clt.Write([]byte{0x00, 0x00, 0x10, 0x01, 0x00, 0x00, 0x00, 0x01})
			Expect(err).ToNot(HaveOccurred())

			waitClosed(clt, 2*time.Second)

			Expect(hst.countEvents("echo_data")).To(Equal(0))

			Eventually(func() int {
				return hst.countEvents("rec_error")
			}, 2*time.Second, 10*time.Millisecond).Should(Equal(1))

			Eventually(func() int {
				return hst.countEvents("rec_close")
			}, 2*time.Second, 10*time.Millisecond).Should(Equal(1))

			Expect(hst.events("rec_error")[0].data).To(Equal([]byte("protocol")))
			Expect(eng.Status().ProtoErrors).To(BeNumerically(">=", int64(1)))
		})
	})

	Context("stream mode", func() {
		It("should deliver raw reads and echo them unframed", func() {
			sp := getFreePort()
			sh := newHost()

			// dedicated stream listener
			cfg := createConfig(sp, nil)
			cfg.Servers[0].Framing = "stream"

			sen := startEngine(cfg, sh)
			defer func() {
				_ = sen.Shutdown()
			}()

			clt := dialTest(sp)
			defer func() {
				_ = clt.Close()
			}()

			_, err := clt.Write([]byte("no framing here"))
			Expect(err).ToNot(HaveOccurred())

			rep := make([]byte, 15)
			Expect(clt.SetReadDeadline(time.Now().Add(2 * time.Second))).ToNot(HaveOccurred())

			n := 0
			for n < len(rep) {
				r, er := clt.Read(rep[n:])
				Expect(er).ToNot(HaveOccurred())
				n += r
			}

			Expect(rep).To(Equal([]byte("no framing here")))
		})
	})
})
