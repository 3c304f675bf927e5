/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// finitd wires package cfg, collab and sm into the single-threaded
// event loop described in spec §5: one loop owns ProcessGlobals, the
// ChangeSet and the StateMachine, driven by filesystem events, OS
// signals and the collaborators' drain signal.
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/coreinit/finit/cfg"
	"github.com/coreinit/finit/collab"
	"github.com/coreinit/finit/log"
	"github.com/coreinit/finit/sm"
	"github.com/coreinit/finit/version"
)

var (
	configFlag  = flag.String("config", "/etc/finit.conf", "main configuration file")
	fragdirFlag = flag.String("fragdir", "/etc/finit.d", "fragment directory (*.conf)")
	availFlag   = flag.String("available", "", "optional available/ subdirectory to watch")
	inetdFlag   = flag.Bool("inetd", false, "enable support for the inetd directive")
	logFlag     = flag.String("log", "", "log file path; empty logs to stderr-equivalent discard-safe stdout")
	versionFlag = flag.Bool("version", false, "print version and exit")
)

func main() {
	flag.Parse()
	if *versionFlag {
		version.PrintVersion(os.Stdout)
		return
	}

	lgr := newLogger(*logFlag)
	debug := cfg.DetectDebugFlag()
	if debug {
		lgr.SetLevel(log.DEBUG)
	}

	globals := cfg.NewProcessGlobals()
	globals.DebugEnabled = debug
	collaborators := collab.NewDefaultCollaborators(lgr)
	changes := cfg.NewChangeSet()
	loader := cfg.NewConfigLoader(*configFlag, *fragdirFlag, collaborators.Services, collaborators.TTYs, globals, lgr)
	loader.InetdSupport = *inetdFlag

	if err := loader.Reload(changes); err != nil {
		lgr.Fatal("initial configuration load failed", log.KVErr(err))
	}

	watcher, err := cfg.NewFSWatcher(changes, lgr)
	if err != nil {
		lgr.Warn("filesystem watcher unavailable, reload must be triggered by SIGHUP", log.KVErr(err))
	} else {
		if err := watcher.WatchMainFile(*configFlag); err != nil {
			lgr.Warn("could not arm main file watch", log.KVErr(err))
		}
		if err := watcher.WatchFragmentDir(*fragdirFlag); err != nil {
			lgr.Warn("could not arm fragment directory watch", log.KVErr(err))
		}
		if *availFlag != "" {
			if err := watcher.WatchAvailableDir(*availFlag); err != nil {
				lgr.Warn("could not arm available directory watch", log.KVErr(err))
			}
		}
		watcher.Start()
		defer watcher.Close()
	}

	machine := sm.New(globals, loader, changes, collaborators, lgr)
	machine.Step() // BOOTSTRAP -> RUNNING

	reload := make(chan os.Signal, 1)
	signal.Notify(reload, syscall.SIGHUP)
	halt := make(chan os.Signal, 1)
	signal.Notify(halt, syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTERM)

	var fsNotify <-chan struct{}
	if watcher != nil {
		fsNotify = watcher.Notify()
	}

	// collab.Supervisor's Drained channel isn't part of the cfg.ServiceTable
	// contract (only the state machine needs StepAllAt/StopCompleted), so the
	// event loop reaches for the concrete type to learn when a stop wave
	// completes and re-drives Step out of a *_WAIT state.
	var drained <-chan struct{}
	if sup, ok := collaborators.Services.(*collab.Supervisor); ok {
		drained = sup.Drained()
	}

	lgr.Info("finitd running", log.KV("runlevel", globals.Runlevel))
	for {
		select {
		case <-reload:
			machine.SetReload()
			machine.Step()
		case sig := <-halt:
			lgr.Info("received termination signal", log.KV("signal", sig.String()))
			if sig == syscall.SIGQUIT {
				globals.Halt = cfg.HaltReboot
			} else {
				globals.Halt = cfg.HaltPoweroff
			}
			machine.SetRunlevel(0)
			machine.Step()
			return
		case <-fsNotify:
			machine.Step()
		case <-drained:
			machine.Step()
		}
	}
}

func newLogger(path string) *log.Logger {
	if path == "" {
		return log.New(os.Stdout)
	}
	lgr, err := log.NewFile(path)
	if err != nil {
		return log.New(os.Stdout)
	}
	return lgr
}
