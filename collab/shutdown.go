/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package collab

import (
	"sync"

	"github.com/coreinit/finit/cfg"
	"github.com/coreinit/finit/log"
)

// Shutdown is the external adapter contract named in spec §6:
// do_shutdown is terminal for states 0/6. A real PID-1 would call
// reboot(2)/halt(8) here; that syscall boundary is out of scope (spec
// §1 Non-goals).
type Shutdown interface {
	DoShutdown(halt cfg.HaltMode)
}

// LoggingShutdown is the default Shutdown implementation: it logs the
// halt mode and records that shutdown was requested, for tests to
// assert against.
type LoggingShutdown struct {
	mtx   sync.Mutex
	lgr   *log.Logger
	calls []cfg.HaltMode
}

func NewLoggingShutdown(lgr *log.Logger) *LoggingShutdown {
	if lgr == nil {
		lgr = log.NewDiscardLogger()
	}
	return &LoggingShutdown{lgr: lgr}
}

func (s *LoggingShutdown) DoShutdown(halt cfg.HaltMode) {
	s.mtx.Lock()
	s.calls = append(s.calls, halt)
	s.mtx.Unlock()

	mode := "poweroff"
	if halt == cfg.HaltReboot {
		mode = "reboot"
	}
	s.lgr.Info("shutdown requested", log.KV("mode", mode))
}

// Calls returns every halt mode DoShutdown was invoked with, in order.
func (s *LoggingShutdown) Calls() []cfg.HaltMode {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return append([]cfg.HaltMode{}, s.calls...)
}
