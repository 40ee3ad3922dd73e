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

package codec

import (
	"reflect"

	"github.com/fxamacker/cbor/v2"

	sckscr "github.com/drnp/bsp/script"
)

type cbr struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

func newCbor() Codec {
	e, _ := cbor.EncOptions{
		Sort: cbor.SortCanonical,
	}.EncMode()

	d, _ := cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()

	return &cbr{
		enc: e,
		dec: d,
	}
}

func (o *cbr) Encode(v sckscr.Value) ([]byte, error) {
	p, err := o.enc.Marshal(v.Native())
	if err != nil {
		return nil, ErrorCodecEncode.Error(err)
	}

	return p, nil
}

func (o *cbr) Decode(p []byte) (sckscr.Value, error) {
	var i any

	if err := o.dec.Unmarshal(p, &i); err != nil {
		return sckscr.None(), ErrorCodecDecode.Error(err)
	}

	return sckscr.FromNative(i), nil
}
