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

// bsp-server is the application server worker process: it loads the
// configuration, brings the engine up, wires the manager channel and maps
// process signals onto the admin surface.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	liblog "github.com/nabbar/golib/logger"
	logcfg "github.com/nabbar/golib/logger/config"
	loglvl "github.com/nabbar/golib/logger/level"

	sckcfg "github.com/drnp/bsp/config"
	sckmgr "github.com/drnp/bsp/manager"
	sckscr "github.com/drnp/bsp/script"
	scksrv "github.com/drnp/bsp/server"

	"github.com/spf13/cobra"
)

const (
	defaultConfFile = "/etc/bsp/bsp-server.yaml"
	defaultPidFile  = "/var/run/bsp-server.pid"
)

var (
	flgConf        string
	flgPid         string
	flgAppID       int
	flgDaemon      bool
	flgVerbose     bool
	flgSilent      bool
	flgIndependent bool
)

func main() {
	cmd := &cobra.Command{
		Use:           "bsp-server",
		Short:         "BSP generic application server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context())
		},
	}

	cmd.Flags().StringVarP(&flgConf, "config", "c", defaultConfFile, "configuration file")
	cmd.Flags().StringVarP(&flgPid, "pid", "p", defaultPidFile, "pid file")
	cmd.Flags().IntVarP(&flgAppID, "app", "a", 0, "application id (overrides configuration)")
	cmd.Flags().BoolVarP(&flgDaemon, "daemon", "d", false, "run detached under a supervisor")
	cmd.Flags().BoolVarP(&flgVerbose, "verbose", "v", false, "record debug messages")
	cmd.Flags().BoolVarP(&flgSilent, "silent", "s", false, "record no debug message")
	cmd.Flags().BoolVarP(&flgIndependent, "independent", "i", false, "do not connect to the manager")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "bsp-server: fatal: %v\n", err)
		os.Exit(1)
	}
}

func logOptions(cfg *sckcfg.Config) *logcfg.Options {
	opt := &logcfg.Options{
		Stdout: &logcfg.OptionsStd{
			DisableStandard: flgDaemon,
			DisableColor:    true,
		},
	}

	if len(cfg.Core.LogDir) > 0 && !cfg.Core.DisableLog {
		opt.LogFile = logcfg.OptionsFiles{
			{
				Filepath:   filepath.Join(cfg.Core.LogDir, "bsp-server.log"),
				Create:     true,
				CreatePath: true,
				FileMode:   0o644,
				PathMode:   0o755,
			},
		}
	}

	return opt
}

func run(ctx context.Context) error {
	cfg, err := sckcfg.Load(flgConf)
	if err != nil {
		return err
	}

	if flgAppID > 0 {
		cfg.Core.AppID = flgAppID
	}

	ctx, cnl := context.WithCancel(ctx)
	defer cnl()

	log := liblog.New(func() context.Context {
		return ctx
	})

	if er := log.SetOptions(logOptions(cfg)); er != nil {
		return er
	}

	switch {
	case flgVerbose:
		log.SetLevel(loglvl.DebugLevel)
	case flgSilent:
		log.SetLevel(loglvl.ErrorLevel)
	default:
		log.SetLevel(loglvl.InfoLevel)
	}

	fct := func() liblog.Logger {
		return log
	}

	hst := sckscr.Registered()
	if hst == nil {
		log.Entry(loglvl.WarnLevel, "no scripting runtime linked, handler slots stay silent").Log()
	}

	eng, errEng := scksrv.New(cfg, hst, fct)
	if errEng != nil {
		return errEng
	}

	eng.SetHooks(scksrv.Hooks{
		OnReopenLogs: func() error {
			return log.SetOptions(logOptions(cfg))
		},
	})

	if errEng = eng.Start(ctx); errEng != nil {
		return errEng
	}

	if er := writePid(flgPid); er != nil {
		log.Entry(loglvl.WarnLevel, "unable to write pid file").ErrorAdd(true, er).Log()
	}

	if !flgIndependent && !cfg.Core.Manager.Independent && len(cfg.Core.Manager.Path) > 0 {
		ch := sckmgr.NewChannel(eng, fct, cfg.Core.AppID)

		if er := eng.AddConnector(cfg.Core.Manager.Path, ch); er != nil {
			_ = eng.Shutdown()
			return er
		}
	}

	watchSignals(eng)

	<-eng.Done()

	_ = os.Remove(flgPid)
	_ = log.Close()

	return nil
}

// watchSignals maps process signals onto the admin surface; the core
// itself has no signal awareness.
func watchSignals(eng scksrv.Engine) {
	ctl := eng.Controller()
	sig := make(chan os.Signal, 4)

	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM, syscall.SIGTSTP, syscall.SIGUSR1, syscall.SIGUSR2)

	go func() {
		for s := range sig {
			switch s {
			case syscall.SIGINT, syscall.SIGTERM:
				ctl.Shutdown()
				return
			case syscall.SIGTSTP:
				_ = ctl.ReloadScript()
			case syscall.SIGUSR1:
				_ = ctl.ReopenLogs()
			case syscall.SIGUSR2:
				_ = ctl.DumpStatus()
			}
		}
	}()
}

func writePid(path string) error {
	if len(path) < 1 {
		return nil
	}

	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}
