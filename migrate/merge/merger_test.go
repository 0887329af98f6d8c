// Copyright 2021-present The Atlas Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

package merge_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"deploydb.io/deploy/migrate"
	"deploydb.io/deploy/migrate/merge"
)

type fakeLoader struct{ calls int }

func (f *fakeLoader) Load(m *migrate.Migration) error {
	f.calls++
	m.IsContentLoaded = true
	m.Core.IsRequired = true
	return nil
}

func defined(name, hash string) *migrate.Migration {
	m := migrate.New(name)
	m.Hash = hash
	return m
}

func applied(name, hash string, state migrate.State) *migrate.Migration {
	m := migrate.New(name)
	m.Hash = hash
	m.State = state
	return m
}

func TestMerge_DefinedOnly(t *testing.T) {
	l := &fakeLoader{}
	out, err := merge.Merge(l, []*migrate.Migration{defined("M1", "H1")}, nil)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.True(t, out[0].IsContentLoaded)
	require.Equal(t, 1, l.calls)
}

func TestMerge_AppliedOnlyVanished_NotPost_IsEmitted(t *testing.T) {
	l := &fakeLoader{}
	out, err := merge.Merge(l, nil, []*migrate.Migration{applied("M9", "H", migrate.AppliedPre)})
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, "M9", out[0].Name)
}

func TestMerge_AppliedOnlyVanished_Post_IsSkipped(t *testing.T) {
	l := &fakeLoader{}
	out, err := merge.Merge(l, nil, []*migrate.Migration{applied("M9", "", migrate.AppliedPost)})
	require.NoError(t, err)
	require.Empty(t, out)
}

func TestMerge_Both_UnchangedPost_IsSkipped(t *testing.T) {
	l := &fakeLoader{}
	out, err := merge.Merge(l,
		[]*migrate.Migration{defined("M1", "ABC")},
		[]*migrate.Migration{applied("M1", "ABC", migrate.AppliedPost)},
	)
	require.NoError(t, err)
	require.Empty(t, out)
	require.Zero(t, l.calls, "no-op completions must not be (re)loaded")
}

func TestMerge_Both_HashMismatch_EmitsWithHasChanged(t *testing.T) {
	l := &fakeLoader{}
	out, err := merge.Merge(l,
		[]*migrate.Migration{defined("M1", "ABC")},
		[]*migrate.Migration{applied("M1", "DEF", migrate.AppliedCore)},
	)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.True(t, out[0].HasChanged)
	require.Equal(t, "ABC", out[0].Hash)
}

func TestMerge_Both_ChangedButAlreadyPost_SkipsContentCopy(t *testing.T) {
	l := &fakeLoader{}
	out, err := merge.Merge(l,
		[]*migrate.Migration{defined("M1", "ABC")},
		[]*migrate.Migration{applied("M1", "DEF", migrate.AppliedPost)},
	)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.True(t, out[0].HasChanged)
	require.False(t, out[0].IsContentLoaded, "content is not loaded once a migration is fully applied")
	require.Zero(t, l.calls)
}

func TestMerge_OnlyPseudoResultsInEmptyList(t *testing.T) {
	l := &fakeLoader{}
	begin := defined(migrate.BeginName, "H")
	begin.IsPseudo = true
	out, err := merge.Merge(l, []*migrate.Migration{begin}, nil)
	require.NoError(t, err)
	require.Empty(t, out)
}

func TestMerge_BlankAppliedHashNeverReportsChanged(t *testing.T) {
	l := &fakeLoader{}
	out, err := merge.Merge(l,
		[]*migrate.Migration{defined("M1", "ABC")},
		[]*migrate.Migration{applied("M1", "", migrate.AppliedPost)},
	)
	require.NoError(t, err)
	require.Empty(t, out, "blank hash opts out of change detection, so AppliedPost+unchanged is elided")
}

func TestMerge_BlankAppliedHash_NotYetPost_IsKeptUnchanged(t *testing.T) {
	l := &fakeLoader{}
	out, err := merge.Merge(l,
		[]*migrate.Migration{defined("M1", "ABC")},
		[]*migrate.Migration{applied("M1", "", migrate.AppliedCore)},
	)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.False(t, out[0].HasChanged)
}
