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

import "sync/atomic"

// counters aggregates the process-wide status surface. All fields prefer
// atomic add over locks.
type counters struct {
	accepted  atomic.Int64
	active    atomic.Int64
	refused   atomic.Int64
	reaped    atomic.Int64
	framesIn  atomic.Int64
	framesOut atomic.Int64
	bytesIn   atomic.Int64
	bytesOut  atomic.Int64
	protoErr  atomic.Int64
	handleErr atomic.Int64
	overflow  atomic.Int64
}

// Status is one consistent-enough snapshot of the counters.
type Status struct {
	Instance     string `json:"instance"`
	AppID        int    `json:"app_id"`
	Workers      int    `json:"workers"`
	Accepted     int64  `json:"accepted"`
	Active       int64  `json:"active"`
	Refused      int64  `json:"refused"`
	Reaped       int64  `json:"reaped"`
	FramesIn     int64  `json:"frames_in"`
	FramesOut    int64  `json:"frames_out"`
	BytesIn      int64  `json:"bytes_in"`
	BytesOut     int64  `json:"bytes_out"`
	ProtoErrors  int64  `json:"proto_errors"`
	HandlerFails int64  `json:"handler_fails"`
	Overflows    int64  `json:"overflows"`
}

func (o *counters) snapshot() Status {
	return Status{
		Accepted:     o.accepted.Load(),
		Active:       o.active.Load(),
		Refused:      o.refused.Load(),
		Reaped:       o.reaped.Load(),
		FramesIn:     o.framesIn.Load(),
		FramesOut:    o.framesOut.Load(),
		BytesIn:      o.bytesIn.Load(),
		BytesOut:     o.bytesOut.Load(),
		ProtoErrors:  o.protoErr.Load(),
		HandlerFails: o.handleErr.Load(),
		Overflows:    o.overflow.Load(),
	}
}
