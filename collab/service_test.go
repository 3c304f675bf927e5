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

func TestRegisterAndSweep(t *testing.T) {
	s := NewSupervisor()
	limits := cfg.NewRlimits()

	require.NoError(t, s.Register(cfg.KindService, "[234] /sbin/httpd", limits, ""))
	require.NoError(t, s.Register(cfg.KindService, "[234] /sbin/sshd", limits, ""))

	// sweep: only httpd re-declares, sshd should be removed.
	s.MarkDynamic()
	require.NoError(t, s.Register(cfg.KindService, "[234] /sbin/httpd", limits, ""))

	var removed []string
	s.CleanDynamic(func(origin, decl string) { removed = append(removed, decl) })

	require.Equal(t, []string{"[234] /sbin/sshd"}, removed)
	require.Len(t, s.services, 1)
}

func TestStepAllStartsAndStops(t *testing.T) {
	s := NewSupervisor()
	limits := cfg.NewRlimits()
	require.NoError(t, s.Register(cfg.KindService, "[234] /sbin/httpd", limits, ""))

	s.StepAllAt(cfg.MaskAll, 3)

	require.Equal(t, StateRunning, s.services[declKey("", "[234] /sbin/httpd")].State)

	// level 5 is not in [234], the service must stop.
	s.StepAllAt(cfg.MaskAll, 5)
	require.Equal(t, StateStopped, s.services[declKey("", "[234] /sbin/httpd")].State)
}

func TestRuntaskOneShot(t *testing.T) {
	s := NewSupervisor()
	limits := cfg.NewRlimits()
	require.NoError(t, s.Register(cfg.KindRun, "[234] /bin/once", limits, ""))

	s.StepAllAt(cfg.MaskAll, 2)
	key := declKey("", "[234] /bin/once")
	require.Equal(t, StateRunning, s.services[key].State)
	require.True(t, s.services[key].RanOnce)

	// it already ran; stopping then re-entering the level must not restart it.
	s.services[key].State = StateStopped
	s.StepAllAt(cfg.MaskAll, 2)
	require.Equal(t, StateStopped, s.services[key].State)

	s.RuntaskClean()
	require.False(t, s.services[key].RanOnce)
	s.StepAllAt(cfg.MaskAll, 2)
	require.Equal(t, StateRunning, s.services[key].State)
}

func TestIsDaemon(t *testing.T) {
	s := NewSupervisor()
	limits := cfg.NewRlimits()
	require.NoError(t, s.Register(cfg.KindService, "[234] /sbin/httpd", limits, ""))
	require.NoError(t, s.Register(cfg.KindTask, "[234] /bin/cleanup", limits, ""))

	require.True(t, s.IsDaemon(declKey("", "[234] /sbin/httpd")))
	require.False(t, s.IsDaemon(declKey("", "[234] /bin/cleanup")))
}
