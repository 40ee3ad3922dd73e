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

// Package manager implements both ends of the manager↔worker control
// channel: the manager daemon tracking every registered worker over a
// local control socket, and the worker-side channel routing pushed
// commands into the engine controller.
//
// The channel speaks the standard packet framing; command and status
// bodies are codec documents.
package manager

import (
	"context"

	liblog "github.com/nabbar/golib/logger"

	scksrv "github.com/drnp/bsp/server"
)

// Manager is the coordinating daemon.
type Manager interface {
	// Start brings the control listeners up.
	Start(ctx context.Context) error

	// Shutdown stops the daemon gracefully.
	Shutdown() error

	IsRunning() bool

	// Workers snapshots the registered worker processes.
	Workers() []Register

	// Broadcast pushes one command to every registered worker.
	Broadcast(op string) error

	// Engine exposes the underlying core (status, counters).
	Engine() scksrv.Engine
}

// Config carries the manager daemon endpoints.
type Config struct {
	// Path is the local control socket workers dial.
	Path string `mapstructure:"path" json:"path" yaml:"path" toml:"path" validate:"required"`

	// Addr / Port optionally expose the same service over TCP.
	Addr string `mapstructure:"addr" json:"addr" yaml:"addr" toml:"addr"`
	Port int    `mapstructure:"port" json:"port" yaml:"port" toml:"port" validate:"gte=0,lte=65535"`

	// Workers is the event-loop count of the daemon itself.
	Workers int `mapstructure:"workers" json:"workers" yaml:"workers" toml:"workers" validate:"gte=0,lte=64"`
}

// New assembles a stopped manager daemon.
func New(cfg Config, log liblog.FuncLog) (Manager, error) {
	if len(cfg.Path) < 1 {
		return nil, ErrorManagerParams.Error(nil)
	}

	return newManager(cfg, log)
}
