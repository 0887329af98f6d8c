// Copyright 2021-present The Atlas Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

package loader

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseMagic(t *testing.T) {
	mg, ok := parseMagic("--# REQUIRES: M1 M2")
	require.True(t, ok)
	require.Equal(t, "REQUIRES", mg.name)
	require.Equal(t, []string{"M1", "M2"}, mg.args)

	mg, ok = parseMagic("--# PRE")
	require.True(t, ok)
	require.Equal(t, "PRE", mg.name)
	require.Empty(t, mg.args)

	_, ok = parseMagic("-- not magic")
	require.False(t, ok)
}

func TestScan_BlockCommentNotNested(t *testing.T) {
	var out strings.Builder
	scan("/* a /* b */ c */", func(magic) bool { return false }, &out)
	require.Equal(t, "/* a /* b */ c */", out.String())
}

func TestScan_LineCommentStopsAtNewline(t *testing.T) {
	var out strings.Builder
	scan("-- comment\nSELECT 1;", func(magic) bool { return false }, &out)
	require.Equal(t, "-- comment\nSELECT 1;", out.String())
}

func TestScan_MagicCommentConsumedWhenHandled(t *testing.T) {
	var out strings.Builder
	var seen []string
	scan("--# CORE\nSELECT 1;", func(mg magic) bool {
		seen = append(seen, mg.name)
		return true
	}, &out)
	require.Equal(t, []string{"CORE"}, seen)
	require.Equal(t, "SELECT 1;", out.String())
}
