/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package collab

import (
	"github.com/coreinit/finit/cfg"
	"github.com/coreinit/finit/log"
)

// Collaborators bundles the five external adapter contracts the state
// machine drives (spec §6), held by interface so tests can substitute
// fakes for any of them independently.
type Collaborators struct {
	Services cfg.ServiceTable
	TTYs     cfg.TTYTable
	Conds    ConditionStore
	Hooks    Plugins
	Halt     Shutdown
}

// NewDefaultCollaborators wires the default in-memory implementations
// of all five contracts.
func NewDefaultCollaborators(lgr *log.Logger) *Collaborators {
	return &Collaborators{
		Services: NewSupervisor(),
		TTYs:     NewTTYs(),
		Conds:    NewConditions(),
		Hooks:    NewHookRegistry(),
		Halt:     NewLoggingShutdown(lgr),
	}
}
