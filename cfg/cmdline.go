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
	"strings"
)

const procCmdlinePath = "/proc/cmdline"

const (
	debugToken1 = "finit_debug"
	debugToken2 = "--debug"
)

// DetectDebugFlag implements spec §6: if /proc/cmdline contains either
// token "finit_debug" or "--debug", debug logging is enabled. Grounded
// on the teacher's ingest/log/kernel_linux.go read-trim idiom for
// /proc files; a missing or unreadable /proc/cmdline is treated as
// "no debug flag", not an error.
func DetectDebugFlag() bool {
	return cmdlineHasToken(procCmdlinePath)
}

func cmdlineHasToken(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	fields := strings.Fields(strings.TrimSpace(string(data)))
	for _, f := range fields {
		if f == debugToken1 || f == debugToken2 {
			return true
		}
	}
	return false
}
