/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package cfg

import "strings"

// Directive is one recognized keyword in the main file or a fragment.
type Directive string

const (
	DirHost     Directive = "host"
	DirModule   Directive = "module"
	DirMknod    Directive = "mknod"
	DirNetwork  Directive = "network"
	DirRunparts Directive = "runparts"
	DirRunlevel Directive = "runlevel"
	DirInclude  Directive = "include"
	DirShutdown Directive = "shutdown"
	DirRlimit   Directive = "rlimit"
	DirService  Directive = "service"
	DirTask     Directive = "task"
	DirRun      Directive = "run"
	DirInetd    Directive = "inetd"
	DirTTY      Directive = "tty"
)

// staticKeywords lists the directives recognized by the static pass
// (main file only). dynamicKeywords lists the directives recognized by
// the dynamic pass (main file and every fragment).
var staticKeywords = []Directive{
	DirHost, DirMknod, DirNetwork, DirRunparts, DirRunlevel,
	DirInclude, DirShutdown,
}

var dynamicKeywords = []Directive{
	DirModule, DirService, DirTask, DirRun, DirInetd, DirRlimit, DirTTY,
}

// allKeywords is ordered longest-prefix-first so that, e.g., "runparts"
// is matched before "run" and "runlevel" is matched before "run".
var allKeywords = []Directive{
	DirRunlevel, DirRunparts, DirShutdown, DirInclude, DirNetwork,
	DirModule, DirMknod, DirHost, DirService, DirInetd, DirRlimit,
	DirTask, DirRun, DirTTY,
}

// DirectiveLexer normalizes one raw configuration line and classifies
// its keyword, per spec §4.1.
type DirectiveLexer struct{}

// Lex normalizes line (tabs to spaces, trimmed trailing whitespace) and
// splits it into a keyword and argument. A line matches when it begins
// with a recognized keyword followed by a space, or consists of the
// bare keyword alone (then arg is empty). ok is false, with an empty
// keyword, for a blank line, a comment (a normalized line beginning
// with '#') and a line that matches no keyword.
func (DirectiveLexer) Lex(line string) (kw Directive, arg string, ok bool) {
	norm := normalizeLine(line)
	if norm == "" || strings.HasPrefix(norm, "#") {
		return "", "", false
	}
	lower := strings.ToLower(norm)
	for _, k := range allKeywords {
		prefix := string(k) + " "
		if strings.HasPrefix(lower, prefix) {
			kw = k
			arg = strings.TrimLeft(norm[len(prefix):], " ")
			ok = true
			return
		}
		// a directive with no argument at all (bare keyword, EOL)
		if lower == string(k) {
			kw = k
			ok = true
			return
		}
	}
	return "", "", false
}

// normalizeLine replaces tabs with spaces and trims trailing
// newline/carriage-return/whitespace, matching spec §4.1.
func normalizeLine(line string) string {
	line = strings.ReplaceAll(line, "\t", " ")
	return strings.TrimRight(line, " \r\n")
}

// IsStatic reports whether kw is recognized by the static pass.
func (kw Directive) IsStatic() bool {
	for _, k := range staticKeywords {
		if k == kw {
			return true
		}
	}
	return false
}

// IsDynamic reports whether kw is recognized by the dynamic pass.
func (kw Directive) IsDynamic() bool {
	for _, k := range dynamicKeywords {
		if k == kw {
			return true
		}
	}
	return false
}

// BootstrapOnly reports whether kw is honored only during bootstrap
// (runlevel == 0), per spec §4.5/§6.
func (kw Directive) BootstrapOnly() bool {
	switch kw {
	case DirHost, DirMknod, DirNetwork, DirRunparts, DirRunlevel, DirModule:
		return true
	}
	return false
}
