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

func TestNewDefaultCollaboratorsWiresAllFive(t *testing.T) {
	c := NewDefaultCollaborators(nil)
	require.NotNil(t, c.Services)
	require.NotNil(t, c.TTYs)
	require.NotNil(t, c.Conds)
	require.NotNil(t, c.Hooks)
	require.NotNil(t, c.Halt)

	// satisfies cfg's adapter contracts at compile time
	var _ cfg.ServiceTable = c.Services
	var _ cfg.TTYTable = c.TTYs
}
