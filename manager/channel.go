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

package manager

import (
	"os"

	loglvl "github.com/nabbar/golib/logger/level"
	liblog "github.com/nabbar/golib/logger"

	sckcdc "github.com/drnp/bsp/codec"
	sckscr "github.com/drnp/bsp/script"
	scksrv "github.com/drnp/bsp/server"
)

// channel is the worker-side end of the control link: it announces the
// worker on connect and routes pushed commands into the controller.
type channel struct {
	eng scksrv.Engine
	fl  liblog.FuncLog
	cdc sckcdc.Codec
	app int
}

// NewChannel builds the worker-side handler for the manager link; pass it
// to Engine.AddConnector with the manager socket path.
func NewChannel(eng scksrv.Engine, log liblog.FuncLog, app int) scksrv.ConnHandler {
	return &channel{
		eng: eng,
		fl:  log,
		cdc: sckcdc.New(),
		app: app,
	}
}

func (o *channel) log(lvl loglvl.Level, msg string, kv ...any) {
	if o.fl == nil {
		return
	}

	l := o.fl()
	if l == nil {
		return
	}

	ent := l.Entry(lvl, msg)

	for i := 0; i+1 < len(kv); i += 2 {
		if k, ok := kv[i].(string); ok {
			ent.FieldAdd(k, kv[i+1])
		}
	}

	ent.Log()
}

func (o *channel) OnConnect(id int) {
	p, err := EncodeRegister(o.cdc, Register{
		App:      o.app,
		Instance: o.eng.Status().Instance,
		Pid:      os.Getpid(),
	})

	if err != nil {
		o.log(loglvl.ErrorLevel, "unable to encode registration")
		return
	}

	if err = o.eng.Send(id, TagRegister, p); err != nil {
		o.log(loglvl.ErrorLevel, "unable to announce to manager")
		return
	}

	o.log(loglvl.InfoLevel, "manager channel open", "conn", id)
}

func (o *channel) OnFrame(id int, tag uint32, payload []byte) {
	switch tag {
	case TagAck:
		return

	case TagCommand:
		op, err := DecodeCommand(o.cdc, payload)
		if err != nil {
			o.log(loglvl.ErrorLevel, "invalid manager command", "conn", id)
			return
		}

		o.apply(id, op)
	}
}

// apply routes one pushed command into the controller. It runs inside a
// connection callback on the main worker: ReloadScript and ReopenLogs wait
// for that worker, so they start on their own goroutines; Shutdown returns
// at once, and status is answered inline from the counters.
func (o *channel) apply(id int, op string) {
	ctl := o.eng.Controller()

	switch op {
	case OpReload:
		go func() {
			if err := ctl.ReloadScript(); err != nil {
				o.log(loglvl.ErrorLevel, "pushed reload failed")
			}
		}()

	case OpReopenLogs:
		go func() {
			if err := ctl.ReopenLogs(); err != nil {
				o.log(loglvl.ErrorLevel, "pushed log reopen failed")
			}
		}()

	case OpStatus:
		s := o.eng.Status()

		p, err := o.cdc.Encode(sckscr.Object(map[string]sckscr.Value{
			"instance": sckscr.String(s.Instance),
			"app":      sckscr.Int(int64(s.AppID)),
			"active":   sckscr.Int(s.Active),
			"accepted": sckscr.Int(s.Accepted),
			"refused":  sckscr.Int(s.Refused),
			"reaped":   sckscr.Int(s.Reaped),
		}))

		if err == nil {
			_ = o.eng.Send(id, TagStatus, p)
		}

	case OpShutdown:
		ctl.Shutdown()

	default:
		o.log(loglvl.ErrorLevel, "unknown manager command", "op", op)
	}
}

func (o *channel) OnClose(id int) {
	o.log(loglvl.InfoLevel, "manager channel closed", "conn", id)
}
