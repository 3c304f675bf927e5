/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package sm implements the state machine described in spec §4.8: the
// driver that turns runlevel and reload requests into a sequenced
// stop-then-start transition across the collaborators in package
// collab, using package cfg's ConfigLoader/ProcessGlobals/ChangeSet.
package sm

// State is one of the state machine's six states (spec §4.8).
type State int

const (
	Bootstrap State = iota
	Running
	RunlevelChange
	RunlevelWait
	ReloadChange
	ReloadWait
)

func (s State) String() string {
	switch s {
	case Bootstrap:
		return "BOOTSTRAP"
	case Running:
		return "RUNNING"
	case RunlevelChange:
		return "RUNLEVEL_CHANGE"
	case RunlevelWait:
		return "RUNLEVEL_WAIT"
	case ReloadChange:
		return "RELOAD_CHANGE"
	case ReloadWait:
		return "RELOAD_WAIT"
	}
	return "UNKNOWN"
}

// Context is the state machine's own working state, distinct from
// cfg.ProcessGlobals's runlevel/prevlevel (spec §4.8, §9 "Global
// process state"). Newlevel of -1 means "no pending runlevel request".
type Context struct {
	State         State
	Newlevel      int
	ReloadPending bool
	InTeardown    bool
}

// NewContext returns the bootstrap-time zero value named in spec §8
// scenario S1: {BOOTSTRAP, -1, false, false}.
func NewContext() *Context {
	return &Context{State: Bootstrap, Newlevel: -1}
}

// maxStepDepth bounds the re-entrant step loop (spec §9: "depth is
// bounded by the number of state transitions (≤5)").
const maxStepDepth = 5
