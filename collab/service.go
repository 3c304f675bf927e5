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
)

// ServiceState models a service's lifecycle, grounded on
// manager/process.go's processManager/restarter pair with actual
// forking removed: spawning real children is out of scope (spec §1
// Non-goals). Service.Runner is the extension point a caller wiring
// real exec.Cmd lifecycle underneath would use.
type ServiceState int

const (
	StateStopped ServiceState = iota
	StateStarting
	StateRunning
	StateStopping
)

// Service is one registered service/task/run/inetd declaration.
type Service struct {
	Kind       cfg.ServiceKind
	DeclText   string
	OriginFile string
	Mask       cfg.RunlevelMask
	Command    string
	Cond       cfg.ParsedCond
	HasCond    bool
	Rlimits    cfg.Rlimits

	State   ServiceState
	Dynamic bool
	Marked  bool
	RanOnce bool // one-shot run-task flag, cleared by RuntaskClean

	// Runner, if set, is invoked to actually start the service;
	// Stopper to stop it. Both default to no-ops: this module models
	// the state machine, not process execution.
	Runner  func() error
	Stopper func() error
}

// Supervisor is the default in-memory cfg.ServiceTable implementation.
type Supervisor struct {
	mtx      sync.Mutex
	services map[string]*Service
	order    []string // preserves registration order for deterministic StepAllAt

	stopping int // count of services mid-Stopping, drives the Drained signal
	drained  chan struct{}
}

// NewSupervisor returns an empty table.
func NewSupervisor() *Supervisor {
	return &Supervisor{
		services: make(map[string]*Service),
		drained:  make(chan struct{}, 1),
	}
}

func (s *Supervisor) Register(kind cfg.ServiceKind, declText string, rlimits cfg.Rlimits, originFile string) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	key := declKey(originFile, declText)
	pd := parseDecl(declText, kind == cfg.KindService)

	if svc, ok := s.services[key]; ok {
		// re-declared: clear the sweep mark, refresh its shape.
		svc.Marked = false
		svc.Mask = pd.mask
		svc.Command = pd.command
		svc.Cond = pd.cond
		svc.HasCond = pd.hasCond
		svc.Rlimits = rlimits
		return nil
	}

	s.services[key] = &Service{
		Kind:       kind,
		DeclText:   declText,
		OriginFile: originFile,
		Mask:       pd.mask,
		Command:    pd.command,
		Cond:       pd.cond,
		HasCond:    pd.hasCond,
		Rlimits:    rlimits,
		Dynamic:    true,
		State:      StateStopped,
	}
	s.order = append(s.order, key)
	return nil
}

// MarkDynamic marks every dynamic entry as a sweep candidate (spec
// §4.5 step 1).
func (s *Supervisor) MarkDynamic() {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	for _, svc := range s.services {
		if svc.Dynamic {
			svc.Marked = true
		}
	}
}

// CleanDynamic unregisters every entry still marked after the sweep,
// invoking cb once per removed entry.
func (s *Supervisor) CleanDynamic(cb func(originFile, declText string)) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	kept := s.order[:0]
	for _, key := range s.order {
		svc, ok := s.services[key]
		if !ok {
			continue
		}
		if svc.Marked {
			delete(s.services, key)
			if cb != nil {
				cb(svc.OriginFile, svc.DeclText)
			}
			continue
		}
		kept = append(kept, key)
	}
	s.order = kept
}

// StepAllAt advances every service matching mask: starts services
// allowed at level and not yet running, stops services no longer
// allowed. level is always supplied by the caller, never cached on
// Supervisor, so a transition can never step the table against a
// runlevel it already moved past.
func (s *Supervisor) StepAllAt(mask cfg.KindMask, level int) {
	s.stepAllAt(mask, level)
}

func (s *Supervisor) stepAllAt(mask cfg.KindMask, level int) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	for _, key := range s.order {
		svc := s.services[key]
		if !mask.Includes(svc.Kind) {
			continue
		}
		allowed := svc.Mask.Allows(level)
		switch {
		case !allowed && (svc.State == StateRunning || svc.State == StateStarting):
			svc.State = StateStopping
			s.stopping++
			if svc.Stopper != nil {
				go s.runStopper(svc)
			} else {
				svc.State = StateStopped
				s.stopping--
			}
		case allowed && svc.State == StateStopped:
			if svc.Kind == cfg.KindRun && svc.RanOnce {
				continue // one-shot: do not restart until RuntaskClean
			}
			svc.State = StateStarting
			if svc.Runner != nil {
				go s.runStarter(svc)
			} else {
				svc.State = StateRunning
				if svc.Kind == cfg.KindRun {
					svc.RanOnce = true
				}
			}
		}
	}
}

func (s *Supervisor) runStarter(svc *Service) {
	err := svc.Runner()
	s.mtx.Lock()
	if err == nil {
		svc.State = StateRunning
	} else {
		svc.State = StateStopped
	}
	if svc.Kind == cfg.KindRun {
		svc.RanOnce = true
	}
	s.mtx.Unlock()
}

func (s *Supervisor) runStopper(svc *Service) {
	svc.Stopper()
	s.mtx.Lock()
	svc.State = StateStopped
	s.stopping--
	if s.stopping == 0 {
		select {
		case s.drained <- struct{}{}:
		default:
		}
	}
	s.mtx.Unlock()
}

// StopCompleted reports a service still mid-Stopping, if any.
func (s *Supervisor) StopCompleted() (string, bool) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	for _, key := range s.order {
		if s.services[key].State == StateStopping {
			return key, true
		}
	}
	return "", false
}

// RuntaskClean resets one-shot run-task flags (spec §4.8 RUNLEVEL_CHANGE).
func (s *Supervisor) RuntaskClean() {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	for _, svc := range s.services {
		if svc.Kind == cfg.KindRun {
			svc.RanOnce = false
		}
	}
}

// Lookup returns the registered Service for (kind, declText, originFile),
// if any - the hook a caller uses to attach a real Runner/Stopper after
// ConfigLoader has registered the declaration.
func (s *Supervisor) Lookup(kind cfg.ServiceKind, declText, originFile string) (*Service, bool) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	svc, ok := s.services[declKey(originFile, declText)]
	if !ok || svc.Kind != kind {
		return nil, false
	}
	return svc, true
}

// IsDaemon reports whether name (a declKey) names a daemon-kind
// (KindService) entry.
func (s *Supervisor) IsDaemon(name string) bool {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	svc, ok := s.services[name]
	return ok && svc.Kind == cfg.KindService
}

// Drained signals whenever a stop-wave completes and no service is
// mid-Stopping; cmd/finitd's event loop selects on it to re-drive
// sm.StateMachine.Step out of a *_WAIT state.
func (s *Supervisor) Drained() <-chan struct{} {
	return s.drained
}
