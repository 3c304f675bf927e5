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
)

func TestParseDeclMaskCommandCond(t *testing.T) {
	pd := parseDecl("[234] /sbin/httpd -f <pid/dhcpcd>", true)
	require.Equal(t, "/sbin/httpd -f", pd.command)
	require.True(t, pd.hasCond)
	require.Equal(t, "pid/dhcpcd", pd.cond.Expr)
}

func TestParseDeclNoMaskNoCond(t *testing.T) {
	pd := parseDecl("/bin/sh -c cleanup", false)
	require.Equal(t, "/bin/sh -c cleanup", pd.command)
	require.False(t, pd.hasCond)
	// absence of a mask expression falls back to the default ([234]).
	require.True(t, pd.mask.Allows(2))
	require.False(t, pd.mask.Allows(0))
}

func TestDeclKeyStability(t *testing.T) {
	a := declKey("/etc/finit.d/10-httpd.conf", "  [234] /sbin/httpd  ")
	b := declKey("/etc/finit.d/10-httpd.conf", "[234] /sbin/httpd")
	require.Equal(t, a, b)

	c := declKey("/etc/finit.d/20-other.conf", "[234] /sbin/httpd")
	require.NotEqual(t, a, c)
}
