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

import (
	loglvl "github.com/nabbar/golib/logger/level"
)

// Controller is the process-wide admin surface. The core has no signal
// awareness: whatever maps OS signals or control-socket commands onto
// these methods lives outside. ReloadScript, ReopenLogs and the
// OnDumpStatus hook run on the main worker, outside any connection
// callback, with no event-loop reentrancy. Shutdown runs the stop on a
// separate goroutine, and OnExit fires there after every worker has
// exited.
type Controller interface {
	// ReloadScript re-reads the script program, then refreshes each
	// worker runtime on its own thread.
	ReloadScript() error

	// ReopenLogs fires the registered log-reopen hook (the logger owner
	// re-applies its file options there).
	ReopenLogs() error

	// DumpStatus logs and returns a counters snapshot.
	DumpStatus() Status

	// Shutdown triggers a graceful stop without waiting for it.
	Shutdown()
}

// Hooks are the externally-supplied callback slots behind the admin
// surface. Absent slots are skipped.
type Hooks struct {
	OnReload     func() error
	OnReopenLogs func() error
	OnDumpStatus func(s Status)
	OnExit       func()
}

type ctl struct {
	e *engine
}

// onMain runs fct on the main worker and waits for completion, keeping
// admin actions out of connection callbacks.
func (o *ctl) onMain(fct func() error) error {
	if !o.e.IsRunning() {
		return ErrorEngineStopped.Error(nil)
	}

	res := make(chan error, 1)

	o.e.main().post(func() {
		res <- fct()
	})

	return <-res
}

func (o *ctl) ReloadScript() error {
	e := o.e

	err := o.onMain(func() error {
		if e.hks.OnReload != nil {
			if er := e.hks.OnReload(); er != nil {
				return er
			}
		}

		if e.hst == nil {
			return nil
		}

		return e.hst.Reload()
	})

	if err != nil {
		return ErrorScriptLoad.Error(err)
	}

	if e.hst != nil {
		for _, w := range e.wks {
			w := w
			w.post(func() {
				if w.run == nil {
					return
				}

				if er := e.hst.SubReload(w.run); er != nil {
					e.log(loglvl.ErrorLevel, "script sub reload failed", w.id, er)
				}
			})
		}
	}

	e.log(loglvl.InfoLevel, "script program reloaded", nil, nil)

	return nil
}

func (o *ctl) ReopenLogs() error {
	e := o.e

	return o.onMain(func() error {
		if e.hks.OnReopenLogs == nil {
			return nil
		}

		return e.hks.OnReopenLogs()
	})
}

func (o *ctl) DumpStatus() Status {
	e := o.e
	s := e.Status()

	if l := e.logger(); l != nil {
		ent := l.Entry(loglvl.InfoLevel, "status dump")
		ent.FieldAdd("instance", s.Instance)
		ent.FieldAdd("active", s.Active)
		ent.FieldAdd("accepted", s.Accepted)
		ent.FieldAdd("refused", s.Refused)
		ent.FieldAdd("reaped", s.Reaped)
		ent.FieldAdd("frames_in", s.FramesIn)
		ent.FieldAdd("frames_out", s.FramesOut)
		ent.FieldAdd("bytes_in", s.BytesIn)
		ent.FieldAdd("bytes_out", s.BytesOut)
		ent.FieldAdd("proto_errors", s.ProtoErrors)
		ent.FieldAdd("handler_fails", s.HandlerFails)
		ent.Log()
	}

	if e.hks.OnDumpStatus != nil {
		_ = o.onMain(func() error {
			e.hks.OnDumpStatus(s)
			return nil
		})
	}

	return s
}

func (o *ctl) Shutdown() {
	go func() {
		_ = o.e.Shutdown()
	}()
}
