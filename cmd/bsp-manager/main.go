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

// bsp-manager is the coordinating daemon: it owns the local control
// socket workers register on, and can push reload, log-rotate, status and
// shutdown commands to every registered worker.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	liblog "github.com/nabbar/golib/logger"
	logcfg "github.com/nabbar/golib/logger/config"
	loglvl "github.com/nabbar/golib/logger/level"

	sckmgr "github.com/drnp/bsp/manager"

	"github.com/spf13/cobra"
)

const (
	defaultManagerPath = "/var/run/bsp-manager.sock"
	defaultManagerPid  = "/var/run/bsp-manager.pid"
)

var (
	flgPath    string
	flgAddr    string
	flgPort    int
	flgPid     string
	flgDaemon  bool
	flgVerbose bool
)

func main() {
	cmd := &cobra.Command{
		Use:           "bsp-manager",
		Short:         "BSP manager daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&flgPath, "path", defaultManagerPath, "control socket path")
	cmd.Flags().StringVarP(&flgAddr, "addr", "a", "", "optional public listen address")
	cmd.Flags().IntVarP(&flgPort, "port", "p", 0, "optional public listen port")
	cmd.Flags().StringVar(&flgPid, "pid", defaultManagerPid, "pid file")
	cmd.Flags().BoolVarP(&flgDaemon, "daemon", "d", false, "run detached under a supervisor")
	cmd.Flags().BoolVarP(&flgVerbose, "verbose", "v", false, "record debug messages")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "bsp-manager: fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	ctx, cnl := context.WithCancel(ctx)
	defer cnl()

	log := liblog.New(func() context.Context {
		return ctx
	})

	if err := log.SetOptions(&logcfg.Options{
		Stdout: &logcfg.OptionsStd{
			DisableStandard: flgDaemon,
			DisableColor:    true,
		},
	}); err != nil {
		return err
	}

	if flgVerbose {
		log.SetLevel(loglvl.DebugLevel)
	}

	mgr, err := sckmgr.New(sckmgr.Config{
		Path: flgPath,
		Addr: flgAddr,
		Port: flgPort,
	}, func() liblog.Logger {
		return log
	})

	if err != nil {
		return err
	}

	if err = mgr.Start(ctx); err != nil {
		return err
	}

	if er := os.WriteFile(flgPid, []byte(strconv.Itoa(os.Getpid())), 0o644); er != nil {
		log.Entry(loglvl.WarnLevel, "unable to write pid file").ErrorAdd(true, er).Log()
	}

	sig := make(chan os.Signal, 4)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR2)

	for s := range sig {
		switch s {
		case syscall.SIGUSR2:
			ent := log.Entry(loglvl.InfoLevel, "registered workers")
			ent.FieldAdd("count", len(mgr.Workers()))
			ent.Log()

			_ = mgr.Broadcast(sckmgr.OpStatus)

		case syscall.SIGINT, syscall.SIGTERM:
			err = mgr.Shutdown()
			_ = os.Remove(flgPid)
			_ = log.Close()

			return err
		}
	}

	return nil
}
