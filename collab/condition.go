/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package collab

import "sync/atomic"

// ConditionStore is the external adapter contract named in spec §6.
// The condition dependency graph's evaluation logic is out of scope
// (spec §1 Non-goals); only the single Reload entrypoint the state
// machine calls during RELOAD_CHANGE (cond_reload) is modeled.
type ConditionStore interface {
	Reload()
}

// Conditions is a trivial default ConditionStore: it just counts how
// many times a reload was requested, enough to assert against in
// tests without pretending to evaluate real condition expressions.
type Conditions struct {
	reloads int64
}

func NewConditions() *Conditions { return &Conditions{} }

func (c *Conditions) Reload() { atomic.AddInt64(&c.reloads, 1) }

// Reloads reports how many times Reload has been called.
func (c *Conditions) Reloads() int64 { return atomic.LoadInt64(&c.reloads) }
