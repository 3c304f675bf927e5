/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package cfg

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestFSWatcherMainFileSubstitutesBasename covers spec §4.7/§9: events
// on a single-file slot arrive without a basename, and the watcher
// must substitute the armed file's own basename.
func TestFSWatcherMainFileSubstitutesBasename(t *testing.T) {
	dir := t.TempDir()
	main := filepath.Join(dir, "finit.conf")
	require.NoError(t, os.WriteFile(main, []byte("host x\n"), 0644))

	cs := NewChangeSet()
	fw, err := NewFSWatcher(cs, nil)
	require.NoError(t, err)
	defer fw.Close()

	require.NoError(t, fw.WatchMainFile(main))
	fw.Start()

	require.NoError(t, os.WriteFile(main, []byte("host y\n"), 0644))

	require.Eventually(t, func() bool {
		return cs.Has("finit.conf")
	}, 2*time.Second, 20*time.Millisecond)
}

// TestFSWatcherFragmentDirCarriesOwnName covers the directory-slot half
// of spec §4.7: each event in a directory batch carries its own name.
func TestFSWatcherFragmentDirCarriesOwnName(t *testing.T) {
	dir := t.TempDir()
	fragDir := filepath.Join(dir, "finit.d")
	require.NoError(t, os.Mkdir(fragDir, 0755))

	cs := NewChangeSet()
	fw, err := NewFSWatcher(cs, nil)
	require.NoError(t, err)
	defer fw.Close()

	require.NoError(t, fw.WatchFragmentDir(fragDir))
	fw.Start()

	target := filepath.Join(fragDir, "10-a.conf")
	require.NoError(t, os.WriteFile(target, []byte("service [234] /bin/a\n"), 0644))

	require.Eventually(t, func() bool {
		return cs.Has("10-a.conf")
	}, 2*time.Second, 20*time.Millisecond)
}

// TestFSWatcherMissingSlotIsNotFatal covers spec §7 WatcherUnavailable:
// a missing target is non-fatal and other slots keep working.
func TestFSWatcherMissingSlotIsNotFatal(t *testing.T) {
	cs := NewChangeSet()
	fw, err := NewFSWatcher(cs, nil)
	require.NoError(t, err)
	defer fw.Close()

	err = fw.WatchFragmentDir(filepath.Join(t.TempDir(), "does-not-exist"))
	require.Error(t, err)
	require.ErrorIs(t, err, ErrWatcherUnavailable)

	// an empty slot (administrator uses only one configuration surface)
	require.NoError(t, fw.WatchAvailableDir(""))
}
