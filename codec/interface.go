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

// Package codec bridges packet payloads and the script value schema. The
// core never interprets payload bytes itself: listeners configured with an
// object payload hand the bytes to a Codec and dispatch the decoded value.
//
// The concrete document format is CBOR; the manager↔worker control
// channel uses the same coder for its command bodies.
package codec

import (
	sckscr "github.com/drnp/bsp/script"
)

type Codec interface {
	// Encode renders a script value as a document payload.
	Encode(v sckscr.Value) ([]byte, error)

	// Decode parses a document payload into a script value.
	Decode(p []byte) (sckscr.Value, error)
}

// New returns the CBOR-backed document codec.
func New() Codec {
	return newCbor()
}
