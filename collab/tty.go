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

// TTY is one registered tty declaration.
type TTY struct {
	DeclText   string
	OriginFile string
	Rlimits    cfg.Rlimits
	Marked     bool
}

// TTYs is the default in-memory cfg.TTYTable implementation. TTYs are
// deliberately not started during bootstrap (spec §4.8); Runlevel
// records the level a caller should use to decide that for real.
type TTYs struct {
	mtx   sync.Mutex
	ttys  map[string]*TTY
	order []string
	level int
}

func NewTTYs() *TTYs {
	return &TTYs{ttys: make(map[string]*TTY)}
}

func (t *TTYs) Register(declText string, rlimits cfg.Rlimits, originFile string) error {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	key := declKey(originFile, declText)
	if tty, ok := t.ttys[key]; ok {
		tty.Marked = false
		tty.Rlimits = rlimits
		return nil
	}
	t.ttys[key] = &TTY{DeclText: declText, OriginFile: originFile, Rlimits: rlimits}
	t.order = append(t.order, key)
	return nil
}

// Mark marks every entry as a sweep candidate.
func (t *TTYs) Mark() {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	for _, tty := range t.ttys {
		tty.Marked = true
	}
}

// Reload re-evaluates the TTY table; arg is opaque (the source's
// tty_reload accepts an optional selector, modeled here as a free-form
// string the caller may use to target a subset - unused by the
// default implementation, which removes every entry still marked after
// a just-completed registration pass).
func (t *TTYs) Reload(arg string) {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	kept := t.order[:0]
	for _, key := range t.order {
		tty, ok := t.ttys[key]
		if !ok {
			continue
		}
		if tty.Marked {
			delete(t.ttys, key)
			continue
		}
		kept = append(kept, key)
	}
	t.order = kept
}

// Runlevel records the current runlevel, per spec §6's TTYTable
// contract; the bootstrap exception ("TTYs since prevlevel == 0 are
// not started") is enforced by the state machine, not here.
func (t *TTYs) Runlevel(level int) {
	t.mtx.Lock()
	t.level = level
	t.mtx.Unlock()
}
