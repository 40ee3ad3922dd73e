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

package buffer

import (
	enchex "github.com/nabbar/golib/encoding/hexa"
	liblog "github.com/nabbar/golib/logger"
	loglvl "github.com/nabbar/golib/logger/level"
)

const (
	// TagIngress marks traffic appended to a read buffer.
	TagIngress = "ingress"
	// TagEgress marks traffic about to be written from a write buffer.
	TagEgress = "egress"

	// dumpMaxBytes bounds the hex payload of one dump entry.
	dumpMaxBytes = 512
)

// NewHexDump returns a DumpFunc that hex-encodes traffic and writes one
// debug entry per chunk to the given logger. Payloads longer than
// dumpMaxBytes are truncated in the entry; the full length is kept in the
// fields. A nil logger function yields a no-op dump.
func NewHexDump(fct liblog.FuncLog) DumpFunc {
	if fct == nil {
		return func(string, int, []byte) {}
	}

	cdr := enchex.New()

	return func(tag string, id int, p []byte) {
		l := fct()
		if l == nil {
			return
		}

		d := p
		if len(d) > dumpMaxBytes {
			d = d[:dumpMaxBytes]
		}

		ent := l.Entry(loglvl.DebugLevel, "socket traffic")
		ent.FieldAdd("dir", tag)
		ent.FieldAdd("conn", id)
		ent.FieldAdd("len", len(p))
		ent.FieldAdd("hex", string(cdr.Encode(d)))
		ent.Log()
	}
}
