/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package sm

import (
	"github.com/coreinit/finit/cfg"
	"github.com/coreinit/finit/collab"
	"github.com/coreinit/finit/log"
)

// StateMachine is the driver named in spec §4.8. It owns no resources
// of its own: Globals, Loader, Changes and the collaborators are all
// supplied by the caller (cmd/finitd's single event loop, spec §5), so
// the machine itself never blocks or spawns anything.
type StateMachine struct {
	Globals *cfg.ProcessGlobals
	Loader  *cfg.ConfigLoader
	Changes *cfg.ChangeSet
	Collab  *collab.Collaborators
	Lgr     *log.Logger

	ctx *Context
}

// New wires a StateMachine at the bootstrap-time zero context.
func New(globals *cfg.ProcessGlobals, loader *cfg.ConfigLoader, changes *cfg.ChangeSet, collaborators *collab.Collaborators, lgr *log.Logger) *StateMachine {
	if lgr == nil {
		lgr = log.NewDiscardLogger()
	}
	return &StateMachine{
		Globals: globals,
		Loader:  loader,
		Changes: changes,
		Collab:  collaborators,
		Lgr:     lgr,
		ctx:     NewContext(),
	}
}

// Context returns the machine's current working state, for tests and
// for a caller that wants to log/inspect it between steps.
func (m *StateMachine) Context() Context { return *m.ctx }

// SetRunlevel is the set_runlevel(n) external trigger (spec §4.8, §6).
// A pending level can be superseded by another call at any time while
// still RUNNING (spec §5).
func (m *StateMachine) SetRunlevel(n int) { m.ctx.Newlevel = n }

// SetReload is the set_reload() external trigger.
func (m *StateMachine) SetReload() { m.ctx.ReloadPending = true }

// InTeardown is the is_in_teardown() external trigger.
func (m *StateMachine) InTeardown() bool { return m.ctx.InTeardown }

// Step advances the machine. On any state change it re-enters to let
// cascading transitions complete within one external call (spec §4.8,
// §9's re-entrant-step design note); depth is bounded by maxStepDepth.
func (m *StateMachine) Step() {
	for depth := 0; depth < maxStepDepth; depth++ {
		before := m.ctx.State
		m.step()
		if m.ctx.State == before {
			return
		}
	}
}

func (m *StateMachine) step() {
	switch m.ctx.State {
	case Bootstrap:
		m.stepBootstrap()
	case Running:
		m.stepRunning()
	case RunlevelChange:
		m.stepRunlevelChange()
	case RunlevelWait:
		m.stepRunlevelWait()
	case ReloadChange:
		m.stepReloadChange()
	case ReloadWait:
		m.stepReloadWait()
	}
}

// stepBootstrap starts runlevel-S services, then moves to RUNNING
// (spec §4.8, runlevel S is bit 0 of the mask).
func (m *StateMachine) stepBootstrap() {
	m.Collab.Services.StepAllAt(cfg.MaskRun|cfg.MaskTask|cfg.MaskService, m.Globals.Runlevel)
	m.ctx.State = Running
}

// stepRunning implements the three-way select named in spec §4.8.
func (m *StateMachine) stepRunning() {
	switch {
	case m.ctx.Newlevel >= 0 && m.ctx.Newlevel <= 9 && m.ctx.Newlevel != m.Globals.Runlevel:
		m.ctx.State = RunlevelChange
	case m.ctx.Newlevel == m.Globals.Runlevel:
		m.ctx.Newlevel = -1
	case m.ctx.ReloadPending:
		m.ctx.ReloadPending = false
		m.ctx.State = ReloadChange
	}
}

// stepRunlevelChange is phase 1 (stop) of a runlevel transition (spec
// §4.8).
func (m *StateMachine) stepRunlevelChange() {
	g := m.Globals
	g.Prevlevel = g.Runlevel
	g.Runlevel = m.ctx.Newlevel
	m.ctx.Newlevel = -1

	entering06 := g.Runlevel == 0 || g.Runlevel == 6
	if entering06 {
		m.Collab.Hooks.RunHooks(collab.HookShutdown)
		m.Lgr.SetTerse(true)
	}

	m.Lgr.Info("entering runlevel", log.KV("level", g.Runlevel))
	if err := cfg.PersistRunlevel(g.Runlevel); err != nil {
		m.Lgr.Warn("failed to persist runlevel", log.KVErr(err))
	}
	m.Collab.TTYs.Runlevel(g.Runlevel)

	m.applyNologin(g.Prevlevel, g.Runlevel)

	if m.Changes != nil && m.Changes.Any() && m.Loader != nil {
		if err := m.Loader.Reload(m.Changes); err != nil {
			m.Lgr.Warn("conf_reload failed during runlevel change", log.KVErr(err))
		}
	}

	m.Collab.Services.RuntaskClean()
	m.ctx.InTeardown = true
	m.Collab.Services.StepAllAt(cfg.MaskAll, g.Runlevel)
	m.ctx.State = RunlevelWait
}

// stepRunlevelWait is phase 2 (wait + start) of a runlevel transition
// (spec §4.8, invariant 4: idempotent while a service is stopping).
func (m *StateMachine) stepRunlevelWait() {
	if _, stopping := m.Collab.Services.StopCompleted(); stopping {
		return
	}

	m.Collab.Hooks.RunHooks(collab.HookRunlevelChange)
	m.ctx.InTeardown = false
	m.Collab.Services.StepAllAt(cfg.MaskAll, m.Globals.Runlevel)
	m.Collab.Services.CleanDynamic(nil)

	g := m.Globals
	if g.Runlevel == 0 || g.Runlevel == 6 {
		m.Collab.Halt.DoShutdown(g.Halt)
	} else if g.Prevlevel > 0 {
		// TTYs since prevlevel == 0 are not started (bootstrap
		// exception, spec §4.8/§8 scenario S1).
		m.Collab.TTYs.Reload("")
	}
	m.ctx.State = Running
}

// stepReloadChange is phase 1 (stop after reconf) of a reload (spec
// §4.8).
func (m *StateMachine) stepReloadChange() {
	if m.Loader != nil {
		if err := m.Loader.Reload(m.Changes); err != nil {
			m.Lgr.Warn("conf_reload failed during reload", log.KVErr(err))
		}
	}
	m.Collab.Conds.Reload()
	m.ctx.InTeardown = true
	m.Collab.Services.StepAllAt(cfg.MaskService|cfg.MaskInetd, m.Globals.Runlevel)
	m.Collab.TTYs.Reload("")
	m.ctx.State = ReloadWait
}

// stepReloadWait is phase 2 (wait + start after reconf) of a reload
// (spec §4.8).
func (m *StateMachine) stepReloadWait() {
	if _, stopping := m.Collab.Services.StopCompleted(); stopping {
		return
	}

	m.ctx.InTeardown = false
	m.Collab.Services.CleanDynamic(nil)
	m.Collab.Services.StepAllAt(cfg.MaskService|cfg.MaskInetd, m.Globals.Runlevel)
	m.Collab.Hooks.RunHooks(collab.HookSvcReconf)
	// Hooks may have added conditions that let services start.
	m.Collab.Services.StepAllAt(cfg.MaskService|cfg.MaskInetd, m.Globals.Runlevel)
	m.ctx.State = Running
}

// applyNologin implements the §4.8 nologin policy: create on entering
// 1/0/6, erase on leaving them, untouched otherwise (invariant 5).
func (m *StateMachine) applyNologin(prev, cur int) {
	var err error
	switch {
	case cfg.NologinRunlevel(cur):
		err = cfg.SetNologin(true)
	case cfg.NologinRunlevel(prev):
		err = cfg.SetNologin(false)
	default:
		return
	}
	if err != nil {
		m.Lgr.Warn("failed to update nologin state", log.KVErr(err))
	}
}
