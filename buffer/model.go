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

const (
	minCapacity     = 64
	defaultCapacity = 4096

	// compactThreshold triggers a head compaction when the consumed
	// prefix reaches this many bytes and the next append would otherwise
	// outgrow the backing storage.
	compactThreshold = 16384
)

type buf struct {
	b []byte // backing storage, b[o:] is pending
	o int    // read cursor
}

func (o *buf) Append(p []byte) int {
	if len(p) > 0 {
		o.compact(len(p))
		o.b = append(o.b, p...)
	}

	return o.Pending()
}

func (o *buf) Peek(n int) []byte {
	if n < 0 {
		return nil
	}

	if p := o.Pending(); n > p {
		n = p
	}

	return o.b[o.o : o.o+n]
}

func (o *buf) Bytes() []byte {
	return o.b[o.o:]
}

func (o *buf) Consume(n int) error {
	if n < 0 || n > o.Pending() {
		return ErrorBufferConsume.Error(nil)
	}

	o.o += n

	if o.o == len(o.b) {
		o.b = o.b[:0]
		o.o = 0
	}

	return nil
}

func (o *buf) Pending() int {
	return len(o.b) - o.o
}

func (o *buf) Reset() {
	o.b = o.b[:0]
	o.o = 0
}

// compact shifts the pending tail to the front when the dead prefix has
// reached compactThreshold and appending n bytes would exceed the capacity.
func (o *buf) compact(n int) {
	if o.o < compactThreshold {
		return
	}

	if len(o.b)+n <= cap(o.b) {
		return
	}

	p := o.Pending()
	copy(o.b, o.b[o.o:])
	o.b = o.b[:p]
	o.o = 0
}
