/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package cfg

import (
	"path/filepath"
	"sync"
)

// EventKind classifies a filesystem event handed to the ChangeSet.
type EventKind int

const (
	EventCreate EventKind = iota
	EventModify
	EventAttrib
	EventMove    // moved-in: a new name appeared
	EventDelete
	EventMoveOut // moved-out: a name disappeared
)

// ChangeSet records which fragment basenames changed since the last
// reload (spec §4.6). It is safe for concurrent use: the watcher
// delivers events from its own goroutine while the event loop reads it.
type ChangeSet struct {
	mtx  sync.Mutex
	set  map[string]struct{}
}

// NewChangeSet returns an empty set.
func NewChangeSet() *ChangeSet {
	return &ChangeSet{set: make(map[string]struct{})}
}

// Record applies one event to the set. Delete/moved-out events erase
// the entry; every other event kind inserts it idempotently.
func (c *ChangeSet) Record(name string, kind EventKind) {
	base := filepath.Base(name)
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if kind == EventDelete || kind == EventMoveOut {
		delete(c.set, base)
		return
	}
	c.set[base] = struct{}{}
}

// Has reports whether p's basename is in the set (spec §4.6 conf_changed).
func (c *ChangeSet) Has(p string) bool {
	base := filepath.Base(p)
	c.mtx.Lock()
	defer c.mtx.Unlock()
	_, ok := c.set[base]
	return ok
}

// Any reports whether the set is non-empty.
func (c *ChangeSet) Any() bool {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return len(c.set) > 0
}

// DropAll clears the set.
func (c *ChangeSet) DropAll() {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.set = make(map[string]struct{})
}

// Basenames returns a sorted-undefined snapshot of the set's contents,
// for logging/testing.
func (c *ChangeSet) Basenames() []string {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	out := make([]string, 0, len(c.set))
	for k := range c.set {
		out = append(out, k)
	}
	return out
}
