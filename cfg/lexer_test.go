/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package cfg

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDirectiveLexer(t *testing.T) {
	var lex DirectiveLexer

	tests := []struct {
		name    string
		line    string
		wantKw  Directive
		wantArg string
		wantOK  bool
	}{
		{"comment", "# a comment", "", "", false},
		{"blank", "", "", "", false},
		{"tabs normalized", "host\tbox1", DirHost, "box1", true},
		{"case insensitive keyword", "HOST box1", DirHost, "box1", true},
		{"trailing newline trimmed", "host box1\n", DirHost, "box1", true},
		{"runlevel before run prefix collision", "runlevel 3", DirRunlevel, "3", true},
		{"runparts before run prefix collision", "runparts /etc/rp.d", DirRunparts, "/etc/rp.d", true},
		{"run is its own keyword", "run [234] /bin/true", DirRun, "[234] /bin/true", true},
		{"unknown keyword", "frobnicate x", "", "", false},
		{"leading whitespace argument stripped", "host   box1", DirHost, "box1", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			kw, arg, ok := lex.Lex(tc.line)
			require.Equal(t, tc.wantOK, ok)
			if tc.wantOK {
				require.Equal(t, tc.wantKw, kw)
				require.Equal(t, tc.wantArg, arg)
			}
		})
	}
}

func TestDirectiveClassification(t *testing.T) {
	require.True(t, DirHost.IsStatic())
	require.False(t, DirHost.IsDynamic())
	require.True(t, DirHost.BootstrapOnly())

	require.True(t, DirService.IsDynamic())
	require.False(t, DirService.IsStatic())
	require.False(t, DirService.BootstrapOnly())

	require.True(t, DirInclude.IsStatic())
	require.False(t, DirInclude.BootstrapOnly())
}
