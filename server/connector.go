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
	"strconv"
	"strings"

	libptc "github.com/nabbar/golib/network/protocol"

	sckfrm "github.com/drnp/bsp/framing"
	scksck "github.com/drnp/bsp/socket"
)

// connectorMaxPacket bounds one control-channel frame.
const connectorMaxPacket = 1 << 20

// AddConnector dials the given endpoint (an absolute local socket path or
// a host:port pair) with packet framing and binds the Go handler to the
// resulting channel. The channel lives on the main worker.
func (e *engine) AddConnector(endpoint string, h ConnHandler) error {
	if len(endpoint) < 1 || h == nil {
		return ErrorParamEmpty.Error(nil)
	}

	if !e.IsRunning() {
		return ErrorEngineStopped.Error(nil)
	}

	var (
		prt  = libptc.NetworkUnix
		host = endpoint
		port int
	)

	if !strings.HasPrefix(endpoint, "/") {
		i := strings.LastIndex(endpoint, ":")
		if i < 0 {
			return ErrorConnectorStart.Error(nil)
		}

		p, err := strconv.Atoi(endpoint[i+1:])
		if err != nil {
			return ErrorConnectorStart.Error(err)
		}

		prt, host, port = libptc.NetworkTCP, endpoint[:i], p
	}

	s, pnd, err := scksck.Dial(prt, host, port)
	if err != nil {
		return ErrorConnectorStart.Error(err)
	}

	w := e.main()

	c := &conn{
		id:  s.Fd(),
		sck: s,
		hnd: h,
		wrk: w,
		dec: sckfrm.NewDecoder(sckfrm.ModePacket, connectorMaxPacket),
	}

	c.pendingConnect.Store(pnd)
	e.cnt.active.Add(1)

	w.post(func() {
		w.adoptConnector(c)
	})

	return nil
}
