/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package collab implements the default in-memory adapters for the
// external collaborator contracts named in spec §6: ServiceTable,
// TTYTable, ConditionStore, Plugins, Shutdown. Grounded on
// manager/process.go's restart-with-backoff process lifecycle, with
// actual process spawning replaced by a state field per spec §1's
// Non-goals - a real implementation would plug exec.Cmd in underneath
// Service.Runner.
package collab

import (
	"strings"

	"github.com/coreinit/finit/cfg"
)

// parsedDecl is the result of splitting a service/task/run/inetd
// declaration's argument into its runlevel mask, command, and
// optional condition expression, per spec §6's grammar
// ("runlevel-mask + command + options + optional <cond>").
type parsedDecl struct {
	mask    cfg.RunlevelMask
	command string
	cond    cfg.ParsedCond
	hasCond bool
}

func parseDecl(declText string, daemonKind bool) parsedDecl {
	text := strings.TrimSpace(declText)

	maskExpr := ""
	if strings.HasPrefix(text, "[") {
		if end := strings.IndexByte(text, ']'); end >= 0 {
			maskExpr = text[:end+1]
			text = strings.TrimSpace(text[end+1:])
		}
	}

	var pc parsedDecl
	pc.mask = cfg.ParseRunlevels(maskExpr)

	if idx := strings.IndexByte(text, '<'); idx >= 0 {
		pc.command = strings.TrimSpace(text[:idx])
		if parsed, err := (cfg.CondParser{}).Parse(text[idx+1:], daemonKind); err == nil {
			pc.cond = parsed
			pc.hasCond = true
		}
	} else {
		pc.command = text
	}
	return pc
}

// declKey is the stable identity of a declaration across reloads: the
// pair (originFile, declText) re-declaring identically is the same
// entry, so its mark bit clears on re-registration during a sweep
// (spec §4.5 step 4, invariant 6).
func declKey(originFile, declText string) string {
	return originFile + "\x00" + strings.TrimSpace(declText)
}
