/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package cfg

import (
	"fmt"
	"strings"

	"github.com/inhies/go-bytesize"
	"golang.org/x/sys/unix"
)

// Unlimited is the sentinel value denoting "no bound", spelled
// "unlimited" or "infinity" in a directive argument.
const Unlimited uint64 = unix.RLIM_INFINITY

// rlimitMax is the upper bound on any resource-limit value accepted by
// the parser: 2 << 31, i.e. 2^32. The source this spec was distilled
// from uses this literal bound; whether it is intended versus an
// off-by-one against 2^31-1 is unclear (spec §9, open question). We
// preserve it exactly rather than "fixing" it.
const rlimitMax uint64 = 1 << 32

// ResourceKind is one of the closed enumeration of rlimit resources
// named in spec §3.
type ResourceKind string

const (
	ResAS         ResourceKind = "as"
	ResCore       ResourceKind = "core"
	ResCPU        ResourceKind = "cpu"
	ResData       ResourceKind = "data"
	ResFsize      ResourceKind = "fsize"
	ResLocks      ResourceKind = "locks"
	ResMemlock    ResourceKind = "memlock"
	ResMsgqueue   ResourceKind = "msgqueue"
	ResNice       ResourceKind = "nice"
	ResNofile     ResourceKind = "nofile"
	ResNproc      ResourceKind = "nproc"
	ResRSS        ResourceKind = "rss"
	ResRtprio     ResourceKind = "rtprio"
	ResRttime     ResourceKind = "rttime" // optional, not on every platform
	ResSigpending ResourceKind = "sigpending"
	ResStack      ResourceKind = "stack"
)

// byteDenominated is the subset of kinds logged in human-readable byte
// form via go-bytesize, rather than as a raw integer.
var byteDenominated = map[ResourceKind]bool{
	ResAS: true, ResData: true, ResFsize: true, ResMemlock: true,
	ResRSS: true, ResStack: true, ResCore: true,
}

// unixResource maps a ResourceKind to its RLIMIT_* number, for kinds
// golang.org/x/sys/unix exposes on Linux.
var unixResource = map[ResourceKind]int{
	ResAS:         unix.RLIMIT_AS,
	ResCore:       unix.RLIMIT_CORE,
	ResCPU:        unix.RLIMIT_CPU,
	ResData:       unix.RLIMIT_DATA,
	ResFsize:      unix.RLIMIT_FSIZE,
	ResLocks:      unix.RLIMIT_LOCKS,
	ResMemlock:    unix.RLIMIT_MEMLOCK,
	ResMsgqueue:   unix.RLIMIT_MSGQUEUE,
	ResNice:       unix.RLIMIT_NICE,
	ResNofile:     unix.RLIMIT_NOFILE,
	ResNproc:      unix.RLIMIT_NPROC,
	ResRSS:        unix.RLIMIT_RSS,
	ResRtprio:     unix.RLIMIT_RTPRIO,
	ResRttime:     unix.RLIMIT_RTTIME,
	ResSigpending: unix.RLIMIT_SIGPENDING,
	ResStack:      unix.RLIMIT_STACK,
}

func validResourceKind(k ResourceKind) bool {
	_, ok := unixResource[k]
	return ok
}

// ResourceLimit is a {soft, hard} pair for one resource kind. A value
// of Unlimited denotes no bound. SoftSet/HardSet distinguish "never
// set" from "explicitly set to 0".
type ResourceLimit struct {
	Soft    uint64
	Hard    uint64
	SoftSet bool
	HardSet bool
}

// Rlimits is the per-resource-kind limit table, seeded from the OS at
// each full reload (spec §3 GlobalRlimits) and cloned per-fragment.
type Rlimits map[ResourceKind]*ResourceLimit

// NewRlimits returns an empty table.
func NewRlimits() Rlimits {
	return make(Rlimits)
}

// Clone returns a deep copy so a fragment can mutate its own working
// set without affecting the process-wide globals.
func (r Rlimits) Clone() Rlimits {
	out := make(Rlimits, len(r))
	for k, v := range r {
		cp := *v
		out[k] = &cp
	}
	return out
}

func (r Rlimits) entry(k ResourceKind) *ResourceLimit {
	e, ok := r[k]
	if !ok {
		e = &ResourceLimit{}
		r[k] = e
	}
	return e
}

// SetSoft records the soft limit for kind.
func (r Rlimits) SetSoft(k ResourceKind, v uint64) {
	e := r.entry(k)
	e.Soft = v
	e.SoftSet = true
}

// SetHard records the hard limit for kind.
func (r Rlimits) SetHard(k ResourceKind, v uint64) {
	e := r.entry(k)
	e.Hard = v
	e.HardSet = true
}

// RlimitParser implements spec §4.3: `rlimit <soft|hard> <resource> <value>`.
type RlimitParser struct{}

// Parse applies arg (the text after "rlimit ") to limits. On any
// failure, it logs nothing itself (the caller decides how to surface
// the ParseWarning) and returns an error; limits is left unchanged.
func (RlimitParser) Parse(arg string, limits Rlimits) error {
	fields := strings.Fields(arg)
	if len(fields) != 3 {
		return fmt.Errorf("%w: rlimit needs 3 fields, got %d", errParseWarning, len(fields))
	}
	level, resource, valueTok := fields[0], ResourceKind(fields[1]), fields[2]

	if level != "soft" && level != "hard" {
		return fmt.Errorf("%w: rlimit level must be soft or hard, got %q", errParseWarning, level)
	}
	if !validResourceKind(resource) {
		return fmt.Errorf("%w: unknown rlimit resource %q", errParseWarning, resource)
	}
	value, err := parseRlimitValue(valueTok)
	if err != nil {
		return fmt.Errorf("%w: %v", errParseWarning, err)
	}

	if level == "soft" {
		limits.SetSoft(resource, value)
	} else {
		limits.SetHard(resource, value)
	}
	return nil
}

func parseRlimitValue(tok string) (uint64, error) {
	lower := strings.ToLower(tok)
	if lower == "unlimited" || lower == "infinity" {
		return Unlimited, nil
	}
	v, err := ParseUint64(tok)
	if err != nil {
		return 0, fmt.Errorf("invalid rlimit value %q: %w", tok, err)
	}
	if v > rlimitMax {
		return 0, fmt.Errorf("rlimit value %q exceeds the %s bound", tok, bytesize.ByteSize(rlimitMax))
	}
	return v, nil
}

// HumanValue renders a resource value for logging: byte-denominated
// kinds use go-bytesize, the rest print as a plain integer or
// "unlimited".
func HumanValue(k ResourceKind, v uint64) string {
	if v == Unlimited {
		return "unlimited"
	}
	if byteDenominated[k] {
		return bytesize.ByteSize(v).String()
	}
	return fmt.Sprintf("%d", v)
}

// ApplyToOS pushes limits onto the running process via
// unix.Setrlimit, one resource at a time. A failure on one kind does
// not abort the rest (spec §7 OSRlimitApplyFailure); failures are
// returned together keyed by kind.
func ApplyToOS(limits Rlimits) map[ResourceKind]error {
	var failures map[ResourceKind]error
	for kind, lim := range limits {
		num, ok := unixResource[kind]
		if !ok {
			continue
		}
		rl := unix.Rlimit{Cur: lim.Soft, Max: lim.Hard}
		if !lim.SoftSet {
			rl.Cur = Unlimited
		}
		if !lim.HardSet {
			rl.Max = Unlimited
		}
		if err := unix.Setrlimit(num, &rl); err != nil {
			if failures == nil {
				failures = make(map[ResourceKind]error)
			}
			failures[kind] = err
		}
	}
	return failures
}

// SnapshotFromOS reads the current OS resource-limit table into a
// fresh Rlimits, used at the start of every conf_reload (spec §4.5
// step 2).
func SnapshotFromOS() Rlimits {
	out := NewRlimits()
	for kind, num := range unixResource {
		var rl unix.Rlimit
		if err := unix.Getrlimit(num, &rl); err != nil {
			continue
		}
		out.SetSoft(kind, rl.Cur)
		out.SetHard(kind, rl.Max)
	}
	return out
}
