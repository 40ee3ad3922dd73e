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

package poller

import "sync"

type slot struct {
	kind OwnerKind
	ref  any
}

type reg struct {
	m sync.RWMutex
	s []slot
	n int
}

// NewRegistry returns an empty fd→owner table sized for hint descriptors;
// the table grows on demand.
func NewRegistry(hint int) Registry {
	if hint < 64 {
		hint = 64
	}

	return &reg{
		s: make([]slot, hint),
	}
}

func (o *reg) Set(fd int, kind OwnerKind, ref any) error {
	if fd < 0 || kind == OwnerNone {
		return ErrorRegistryParams.Error(nil)
	}

	o.m.Lock()
	defer o.m.Unlock()

	if fd >= len(o.s) {
		g := make([]slot, fd*2)
		copy(g, o.s)
		o.s = g
	}

	if o.s[fd].kind != OwnerNone && o.s[fd].kind != kind {
		return ErrorRegistryBusy.Error(nil)
	}

	if o.s[fd].kind == OwnerNone {
		o.n++
	}

	o.s[fd] = slot{kind: kind, ref: ref}

	return nil
}

func (o *reg) Get(fd int) (OwnerKind, any) {
	o.m.RLock()
	defer o.m.RUnlock()

	if fd < 0 || fd >= len(o.s) {
		return OwnerNone, nil
	}

	return o.s[fd].kind, o.s[fd].ref
}

func (o *reg) Clear(fd int) {
	o.m.Lock()
	defer o.m.Unlock()

	if fd < 0 || fd >= len(o.s) {
		return
	}

	if o.s[fd].kind != OwnerNone {
		o.n--
	}

	o.s[fd] = slot{}
}

func (o *reg) Walk(fct func(fd int, kind OwnerKind, ref any) bool) {
	o.m.RLock()
	defer o.m.RUnlock()

	for fd := range o.s {
		if o.s[fd].kind == OwnerNone {
			continue
		}

		if !fct(fd, o.s[fd].kind, o.s[fd].ref) {
			return
		}
	}
}

func (o *reg) Len() int {
	o.m.RLock()
	defer o.m.RUnlock()

	return o.n
}
