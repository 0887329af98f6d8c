// Copyright 2021-present The Atlas Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

package local_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"deploydb.io/deploy/migrate"
	"deploydb.io/deploy/migrate/local"
)

func newSource(t *testing.T, names ...string) string {
	t.Helper()
	src := t.TempDir()
	for _, n := range names {
		writeFile(t, filepath.Join(src, "Migrations", n, "_Main.sql"), "SELECT 1;")
	}
	return src
}

func TestDiscover_SortsAndMarksPseudo(t *testing.T) {
	src := newSource(t, "M2", migrate.EndName, "m1", migrate.BeginName)
	repo, err := local.Open(src)
	require.NoError(t, err)

	ms, err := repo.Discover(context.Background(), "")
	require.NoError(t, err)
	require.True(t, migrate.IsSorted(ms))

	var names []string
	for _, m := range ms {
		names = append(names, m.Name)
	}
	require.Equal(t, []string{migrate.BeginName, "m1", "M2", migrate.EndName}, names)

	require.True(t, ms[0].IsPseudo)
	require.True(t, ms[len(ms)-1].IsPseudo)
	require.False(t, ms[1].IsPseudo)
}

func TestDiscover_IgnoresDirsWithoutMainSql(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(src, "Migrations", "NotAMigration"), 0o755))
	writeFile(t, filepath.Join(src, "Migrations", "M1", "_Main.sql"), "SELECT 1;")

	repo, err := local.Open(src)
	require.NoError(t, err)
	ms, err := repo.Discover(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, ms, 1)
	require.Equal(t, "M1", ms[0].Name)
}

func TestDiscover_MaxNameFilters(t *testing.T) {
	src := newSource(t, "M1", "M2", "M3")
	repo, err := local.Open(src)
	require.NoError(t, err)

	ms, err := repo.Discover(context.Background(), "M2")
	require.NoError(t, err)
	var names []string
	for _, m := range ms {
		names = append(names, m.Name)
	}
	require.Equal(t, []string{"M1", "M2"}, names)
}

func TestOpen_RequiresMigrationsDir(t *testing.T) {
	_, err := local.Open(t.TempDir())
	require.Error(t, err)
}
