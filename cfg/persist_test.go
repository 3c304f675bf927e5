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

	"github.com/stretchr/testify/require"
)

func TestPersistRunlevelWritesAtomically(t *testing.T) {
	old := RunlevelStatePath
	defer func() { RunlevelStatePath = old }()

	dir := t.TempDir()
	RunlevelStatePath = filepath.Join(dir, "finit.runlevel")

	require.NoError(t, PersistRunlevel(3))
	data, err := os.ReadFile(RunlevelStatePath)
	require.NoError(t, err)
	require.Equal(t, "3", string(data))

	require.NoError(t, PersistRunlevel(5))
	data, err = os.ReadFile(RunlevelStatePath)
	require.NoError(t, err)
	require.Equal(t, "5", string(data))
}

func TestPersistRunlevelDisabled(t *testing.T) {
	old := RunlevelStatePath
	defer func() { RunlevelStatePath = old }()
	RunlevelStatePath = ""
	require.NoError(t, PersistRunlevel(2))
}
