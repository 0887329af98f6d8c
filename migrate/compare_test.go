// Copyright 2021-present The Atlas Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

package migrate_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"deploydb.io/deploy/migrate"
)

func TestCompareNames_PseudoEndpoints(t *testing.T) {
	require.True(t, migrate.Less(migrate.BeginName, "M1"))
	require.True(t, migrate.Less("M1", migrate.EndName))
	require.True(t, migrate.Less(migrate.BeginName, migrate.EndName))
	require.False(t, migrate.Less(migrate.EndName, "M1"))
	require.False(t, migrate.Less("M1", migrate.BeginName))
}

func TestCompareNames_CaseInsensitiveOrdinal(t *testing.T) {
	require.True(t, migrate.Less("m1", "M2"))
	require.True(t, migrate.SameName("m1", "M1"))
	require.False(t, migrate.Less("M1", "m1"))
}

func TestSort(t *testing.T) {
	ms := []*migrate.Migration{
		migrate.New("M3"),
		migrate.New(migrate.EndName),
		migrate.New("m1"),
		migrate.New(migrate.BeginName),
		migrate.New("M2"),
	}
	migrate.Sort(ms)
	var names []string
	for _, m := range ms {
		names = append(names, m.Name)
	}
	require.Equal(t, []string{migrate.BeginName, "m1", "M2", "M3", migrate.EndName}, names)
	require.True(t, migrate.IsSorted(ms))
}
