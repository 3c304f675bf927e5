/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package collab

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coreinit/finit/cfg"
)

func TestHookRegistryOrderAndIsolation(t *testing.T) {
	h := NewHookRegistry()
	var seen []string

	h.Register(HookShutdown, func(HookPoint) { seen = append(seen, "a") })
	h.Register(HookShutdown, func(HookPoint) { seen = append(seen, "b") })
	h.Register(HookSvcReconf, func(HookPoint) { seen = append(seen, "c") })

	h.RunHooks(HookShutdown)
	require.Equal(t, []string{"a", "b"}, seen)

	h.RunHooks(HookSvcReconf)
	require.Equal(t, []string{"a", "b", "c"}, seen)
}

func TestHookPointString(t *testing.T) {
	require.Equal(t, "SHUTDOWN", HookShutdown.String())
	require.Equal(t, "RUNLEVEL_CHANGE", HookRunlevelChange.String())
	require.Equal(t, "SVC_RECONF", HookSvcReconf.String())
}

func TestConditionsReloadCounter(t *testing.T) {
	c := NewConditions()
	require.EqualValues(t, 0, c.Reloads())
	c.Reload()
	c.Reload()
	require.EqualValues(t, 2, c.Reloads())
}

func TestLoggingShutdownRecordsCalls(t *testing.T) {
	s := NewLoggingShutdown(nil)
	s.DoShutdown(cfg.HaltPoweroff)
	s.DoShutdown(cfg.HaltReboot)
	require.Equal(t, []cfg.HaltMode{cfg.HaltPoweroff, cfg.HaltReboot}, s.Calls())
}
