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
	"context"
	"sync"

	loglvl "github.com/nabbar/golib/logger/level"
	liblog "github.com/nabbar/golib/logger"

	sckcdc "github.com/drnp/bsp/codec"
	sckcfg "github.com/drnp/bsp/config"
	scksrv "github.com/drnp/bsp/server"
)

const controlListener = "manager-control"
const publicListener = "manager-public"

type mgr struct {
	cfg Config
	fl  liblog.FuncLog
	eng scksrv.Engine
	cdc sckcdc.Codec

	mu  sync.RWMutex
	wkr map[int]Register // channel conn id → worker identity
}

func newManager(cfg Config, log liblog.FuncLog) (*mgr, error) {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}

	ecf := &sckcfg.Config{
		Core: sckcfg.Core{
			Workers: cfg.Workers,
			Manager: sckcfg.Manager{Independent: true},
		},
		Servers: []sckcfg.Server{
			{
				Name:    controlListener,
				Addr:    cfg.Path,
				Network: "unix",
				Framing: "packet",
			},
		},
	}

	if len(cfg.Addr) > 0 && cfg.Port > 0 {
		ecf.Servers = append(ecf.Servers, sckcfg.Server{
			Name:    publicListener,
			Addr:    cfg.Addr,
			Port:    cfg.Port,
			Network: "tcp",
			Framing: "packet",
		})
	}

	ecf.SetDefaults()

	if err := ecf.Validate(); err != nil {
		return nil, ErrorManagerParams.Error(err)
	}

	eng, err := scksrv.New(ecf, nil, log)
	if err != nil {
		return nil, ErrorManagerStart.Error(err)
	}

	o := &mgr{
		cfg: cfg,
		fl:  log,
		eng: eng,
		cdc: sckcdc.New(),
		wkr: make(map[int]Register),
	}

	eng.RegisterHandler(controlListener, o)
	eng.RegisterHandler(publicListener, o)

	return o, nil
}

func (o *mgr) log(lvl loglvl.Level, msg string, kv ...any) {
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

// OnConnect implements the channel handler: nothing to do until the
// worker announces itself.
func (o *mgr) OnConnect(id int) {}

// OnFrame routes one control frame from a worker channel.
func (o *mgr) OnFrame(id int, tag uint32, payload []byte) {
	switch tag {
	case TagRegister:
		r, err := DecodeRegister(o.cdc, payload)
		if err != nil {
			o.log(loglvl.ErrorLevel, "invalid worker registration", "conn", id)
			_ = o.eng.CloseConn(id)
			return
		}

		o.mu.Lock()
		o.wkr[id] = r
		o.mu.Unlock()

		o.log(loglvl.InfoLevel, "worker registered", "conn", id, "app", r.App, "instance", r.Instance, "pid", r.Pid)

		_ = o.eng.Send(id, TagAck, nil)

	case TagStatus:
		if v, err := o.cdc.Decode(payload); err == nil {
			o.log(loglvl.InfoLevel, "worker status",
				"conn", id,
				"instance", v.Get("instance").StringVal(),
				"active", v.Get("active").Int(),
				"accepted", v.Get("accepted").Int())
		}
	}
}

// OnClose forgets a worker when its channel dies.
func (o *mgr) OnClose(id int) {
	o.mu.Lock()

	r, ok := o.wkr[id]
	delete(o.wkr, id)

	o.mu.Unlock()

	if ok {
		o.log(loglvl.InfoLevel, "worker gone", "conn", id, "instance", r.Instance)
	}
}

func (o *mgr) Start(ctx context.Context) error {
	return o.eng.Start(ctx)
}

func (o *mgr) Shutdown() error {
	return o.eng.Shutdown()
}

func (o *mgr) IsRunning() bool {
	return o.eng.IsRunning()
}

func (o *mgr) Engine() scksrv.Engine {
	return o.eng
}

func (o *mgr) Workers() []Register {
	o.mu.RLock()
	defer o.mu.RUnlock()

	res := make([]Register, 0, len(o.wkr))
	for _, r := range o.wkr {
		res = append(res, r)
	}

	return res
}

func (o *mgr) Broadcast(op string) error {
	p, err := EncodeCommand(o.cdc, op)
	if err != nil {
		return ErrorManagerEncode.Error(err)
	}

	o.mu.RLock()
	ids := make([]int, 0, len(o.wkr))
	for id := range o.wkr {
		ids = append(ids, id)
	}
	o.mu.RUnlock()

	for _, id := range ids {
		if er := o.eng.Send(id, TagCommand, p); er != nil {
			o.log(loglvl.ErrorLevel, "command push failed", "conn", id, "op", op)
		}
	}

	return nil
}
