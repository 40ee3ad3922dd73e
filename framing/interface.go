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

// Package framing reassembles application messages out of a byte stream
// and splits outbound messages back into wire bytes.
//
// Packet mode is the length-prefixed binary frame:
//
//	4-byte total length (u32, big endian, header included)
//	4-byte command tag  (u32, big endian, 0 = object payload, no command)
//	payload             (length - 8 bytes)
//
// Stream mode flushes every read to the handler as-is; datagram mode
// yields one message per datagram and keeps no state between reads.
package framing

import (
	"strings"

	sckbuf "github.com/drnp/bsp/buffer"
)

// HeaderSize is the fixed packet-mode header length on the wire.
const HeaderSize = 8

// Mode selects how a connection's byte flow maps onto messages.
type Mode uint8

const (
	ModePacket Mode = iota
	ModeStream
	ModeDatagram
)

func (m Mode) String() string {
	switch m {
	case ModePacket:
		return "packet"
	case ModeStream:
		return "stream"
	case ModeDatagram:
		return "datagram"
	}

	return "unknown"
}

// ParseMode maps a config string onto a Mode, defaulting to packet.
func ParseMode(s string) Mode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "stream", "raw":
		return ModeStream
	case "datagram", "dgram":
		return ModeDatagram
	}

	return ModePacket
}

// Frame is one complete decoded inbound message.
type Frame struct {
	Tag     uint32
	Payload []byte
}

// Decoder is the per-connection framing state. One frame is delivered per
// callback, in arrival order; no more than one frame is consumed without a
// callback firing in between.
type Decoder interface {
	Mode() Mode

	// Decode drains every complete frame currently pending in the read
	// buffer, firing fct once per frame. A callback error stops the
	// drain and is returned as-is; a malformed header returns a
	// protocol error and the caller must fail the connection.
	Decode(buf sckbuf.Buffer, fct func(f Frame) error) error
}

// NewDecoder builds the framing state for one connection. The maximum
// packet length only binds in packet mode.
func NewDecoder(m Mode, maxPacket int) Decoder {
	switch m {
	case ModeStream:
		return &stm{}
	case ModeDatagram:
		return &dgm{}
	}

	return &pkt{
		max: maxPacket,
	}
}
