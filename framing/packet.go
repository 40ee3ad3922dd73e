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

type pktState uint8

const (
	waitHeader pktState = iota
	waitBody
)

// pkt reassembles length-prefixed frames. Body bytes are consumed as they
// arrive so the read buffer never retains a partial frame beyond the
// header; the assembly slice is bounded by the max packet length.
type pkt struct {
	max int
	stt pktState
	tag uint32
	rem int
	bdy []byte
}

func (o *pkt) Mode() Mode {
	return ModePacket
}

func (o *pkt) Decode(buf sckbuf.Buffer, fct func(f Frame) error) error {
	for {
		switch o.stt {
		case waitHeader:
			if buf.Pending() < HeaderSize {
				return nil
			}

			hdr := buf.Peek(HeaderSize)
			lng := int(binary.BigEndian.Uint32(hdr[0:4]))
			tag := binary.BigEndian.Uint32(hdr[4:8])

			if lng < HeaderSize || (o.max > 0 && lng > o.max) {
				return ErrorFrameLength.Error(nil)
			}

			_ = buf.Consume(HeaderSize)

			o.tag = tag
			o.rem = lng - HeaderSize
			o.bdy = make([]byte, 0, o.rem)
			o.stt = waitBody

		case waitBody:
			if o.rem > 0 {
				avl := buf.Pending()
				if avl > o.rem {
					avl = o.rem
				}

				if avl > 0 {
					o.bdy = append(o.bdy, buf.Peek(avl)...)
					_ = buf.Consume(avl)
					o.rem -= avl
				}
			}

			if o.rem > 0 {
				// frame still split across reads
				return nil
			}

			f := Frame{
				Tag:     o.tag,
				Payload: o.bdy,
			}

			o.stt = waitHeader
			o.bdy = nil

			if err := fct(f); err != nil {
				return err
			}
		}
	}
}
