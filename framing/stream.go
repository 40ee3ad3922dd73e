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

import sckbuf "github.com/drnp/bsp/buffer"

// stm flushes every pending slice to the handler as-is, keeping no state
// between reads.
type stm struct{}

func (o *stm) Mode() Mode {
	return ModeStream
}

func (o *stm) Decode(buf sckbuf.Buffer, fct func(f Frame) error) error {
	n := buf.Pending()
	if n < 1 {
		return nil
	}

	p := make([]byte, n)
	copy(p, buf.Bytes())
	_ = buf.Consume(n)

	return fct(Frame{Payload: p})
}

// dgm delivers one message per datagram; the caller feeds exactly one
// datagram into the buffer per Decode call.
type dgm struct{}

func (o *dgm) Mode() Mode {
	return ModeDatagram
}

func (o *dgm) Decode(buf sckbuf.Buffer, fct func(f Frame) error) error {
	n := buf.Pending()

	p := make([]byte, n)
	copy(p, buf.Bytes())
	_ = buf.Consume(n)

	return fct(Frame{Payload: p})
}
