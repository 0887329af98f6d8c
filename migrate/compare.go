// Copyright 2021-present The Atlas Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

package migrate

import (
	"sort"
	"strings"
)

// rank places _Begin before every other name and _End after every other
// name; all other names share the middle rank and are ordered ordinally.
func rank(name string) int {
	switch name {
	case BeginName:
		return 0
	case EndName:
		return 2
	default:
		return 1
	}
}

// CompareNames defines the total order used throughout this system:
// _Begin sorts first, _End sorts last, and all other names compare
// case-insensitively and ordinally ascending (spec §4.0).
func CompareNames(a, b string) int {
	if ra, rb := rank(a), rank(b); ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	return strings.Compare(strings.ToLower(a), strings.ToLower(b))
}

// Less reports whether a sorts strictly before b under CompareNames.
func Less(a, b string) bool {
	return CompareNames(a, b) < 0
}

// SameName reports whether a and b denote the same migration identity.
func SameName(a, b string) bool {
	return CompareNames(a, b) == 0
}

// Sort orders ms ascending per CompareNames. The sort is stable so that
// callers feeding already-sorted input (e.g. per-directory discovery
// results) never observe a spurious reordering among equal names.
func Sort(ms []*Migration) {
	sort.SliceStable(ms, func(i, j int) bool {
		return Less(ms[i].Name, ms[j].Name)
	})
}

// IsSorted reports whether ms is already in CompareNames order.
func IsSorted(ms []*Migration) bool {
	for i := 1; i < len(ms); i++ {
		if Less(ms[i].Name, ms[i-1].Name) {
			return false
		}
	}
	return true
}
