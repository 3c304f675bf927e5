/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package cfg

import "errors"

// Sentinel errors surfaced by the configuration loader and watcher. Most
// parse-level problems (ParseWarning in the spec) are not sentinel errors:
// they are logged by the caller and parsing continues at the next line.
// errParseWarning is the sentinel every ParseWarning-class error
// (malformed directive, bad rlimit value, over-long condition, unknown
// keyword - spec §7) wraps, so callers can errors.Is against one kind
// regardless of which parser produced it.
var errParseWarning = errors.New("parse warning")

// IsParseWarning reports whether err is (or wraps) a ParseWarning-class
// condition, per spec §7: logged at warning severity, never fatal.
func IsParseWarning(err error) bool {
	return errors.Is(err, errParseWarning)
}

var (
	// ErrMissingInclude is attached to the error logged when an `include`
	// directive names an absolute path that does not exist. The offending
	// include is ignored, the rest of the file still parses.
	ErrMissingInclude = errors.New("include path does not exist")

	// ErrRelativeInclude is attached to the error logged when an `include`
	// directive names a path that is not absolute.
	ErrRelativeInclude = errors.New("include path must be absolute")

	// ErrStaleFragment marks a dangling symlink or unreadable fragment
	// directory entry. The fragment is skipped, not fatal to the reload.
	ErrStaleFragment = errors.New("fragment entry is stale or unreadable")

	// ErrWatcherUnavailable is returned when a watch slot could not be
	// armed. Each slot is independent; this is never fatal.
	ErrWatcherUnavailable = errors.New("watch slot unavailable")

	// ErrInetdUnsupported is attached to the error logged when an `inetd`
	// directive is seen but inetd support was not enabled on the loader.
	ErrInetdUnsupported = errors.New("inetd support not compiled in")

	// ErrConfigTooLarge guards against a runaway main file or fragment.
	ErrConfigTooLarge = errors.New("configuration file is too large")
)
