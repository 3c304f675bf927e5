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
)

// CondCapacity bounds how long a condition expression may be; it
// stands in for "the service's condition-field capacity" (spec §4.4),
// which in a real service table is a fixed-size field.
const CondCapacity = 256

// ParsedCond is the result of parsing a service line's "<cond>" suffix.
type ParsedCond struct {
	Expr         string
	SighupCapable bool
}

// CondParser implements spec §4.4.
type CondParser struct{}

// Parse takes the raw text following the '<' marker on a service line
// (without the marker itself) plus whether the declaration is a
// daemon-kind service, and returns the parsed condition. If raw does
// not actually represent a condition (the service line had no '<' at
// all), callers should not invoke Parse; daemonKind only governs the
// SIGHUP-capable default when raw is present but carries no explicit
// '!' prefix.
func (CondParser) Parse(raw string, daemonKind bool) (ParsedCond, error) {
	sighup := daemonKind
	if strings.HasPrefix(raw, "!") {
		sighup = false
		raw = raw[1:]
	}
	expr := raw
	if idx := strings.IndexByte(raw, '>'); idx >= 0 {
		expr = raw[:idx]
	}
	if len(expr) > CondCapacity {
		return ParsedCond{}, fmt.Errorf("%w: condition expression exceeds capacity (%d > %d)", errParseWarning, len(expr), CondCapacity)
	}
	return ParsedCond{Expr: expr, SighupCapable: sighup}, nil
}
