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

import "time"

// heartbeatStride spreads heartbeat checks across ticks: each connection
// is examined once per stride, selected by fd modulo the stride, so one
// tick never scans the whole table.
const heartbeatStride = 60

// reap closes every owned connection that outlived its listener's
// heartbeat TTL. Runs between callbacks only, never inside one.
func (w *worker) reap(t uint64) {
	now := time.Now()
	slot := int(t % heartbeatStride)

	for fd, c := range w.cns {
		if fd%heartbeatStride != slot {
			continue
		}

		if c.lsn == nil || c.dead.Load() {
			continue
		}

		ttl := c.lsn.cfg.HeartbeatTTL.Time()
		if ttl <= 0 {
			continue
		}

		if now.Sub(c.sck.LastActivity()) > ttl {
			w.closeConn(c, reasonReaper)
		}
	}

	if !w.isMain() {
		return
	}

	for _, l := range w.eng.lsn {
		ttl := l.cfg.HeartbeatTTL.Time()
		if ttl <= 0 || len(l.peers) < 1 {
			continue
		}

		var idle []*dgramPeer

		for _, d := range l.peers {
			if d.id%heartbeatStride != slot {
				continue
			}

			if now.Sub(d.last) > ttl {
				idle = append(idle, d)
			}
		}

		for _, d := range idle {
			w.closePeer(d, reasonReaper)
		}
	}
}
