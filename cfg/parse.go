/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package cfg

import (
	"strconv"
	"strings"
)

// ParseUint64 parses v as decimal, or as hex when prefixed with "0x".
func ParseUint64(v string) (i uint64, err error) {
	if strings.HasPrefix(v, "0x") {
		return strconv.ParseUint(strings.TrimPrefix(v, "0x"), 16, 64)
	}
	return strconv.ParseUint(v, 10, 64)
}
