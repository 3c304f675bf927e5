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
	"os"
	"strconv"

	"github.com/dchest/safefile"
)

// RunlevelStatePath is where PersistRunlevel writes the current
// runlevel, standing in for the "utmp adapter" spec §4.8's
// RUNLEVEL_CHANGE phase calls to persist the new runlevel. A var, not a
// const, so tests can redirect it.
var RunlevelStatePath = "/run/finit.runlevel"

// PersistRunlevel atomically writes level to RunlevelStatePath, grounded
// on the teacher's ingesters/utils.State.Write: create a temp file
// alongside the target, write, and Commit renames it into place so a
// crash mid-write never leaves a half-written state file. An empty
// RunlevelStatePath disables persistence entirely (optional component).
func PersistRunlevel(level int) error {
	if RunlevelStatePath == "" {
		return nil
	}
	fout, err := safefile.Create(RunlevelStatePath, 0644)
	if err != nil {
		return fmt.Errorf("persist runlevel: %w", err)
	}
	name := fout.Name()
	if _, err := fout.Write([]byte(strconv.Itoa(level))); err != nil {
		fout.File.Close()
		os.Remove(name)
		return fmt.Errorf("persist runlevel: %w", err)
	}
	if err := fout.Commit(); err != nil {
		fout.File.Close()
		os.Remove(name)
		return fmt.Errorf("persist runlevel: %w", err)
	}
	return nil
}
