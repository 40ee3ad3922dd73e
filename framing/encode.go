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

package framing

import (
	"encoding/binary"

	sckbuf "github.com/drnp/bsp/buffer"
)

// Encode renders one packet-mode frame as a standalone byte slice.
func Encode(tag uint32, payload []byte) []byte {
	p := make([]byte, HeaderSize+len(payload))

	binary.BigEndian.PutUint32(p[0:4], uint32(HeaderSize+len(payload)))
	binary.BigEndian.PutUint32(p[4:8], tag)
	copy(p[HeaderSize:], payload)

	return p
}

// EncodeTo appends one packet-mode frame to a write buffer, enforcing the
// listener's maximum packet length when maxPacket is positive.
func EncodeTo(buf sckbuf.Buffer, tag uint32, payload []byte, maxPacket int) error {
	if maxPacket > 0 && HeaderSize+len(payload) > maxPacket {
		return ErrorFrameLength.Error(nil)
	}

	buf.Append(Encode(tag, payload))

	return nil
}
