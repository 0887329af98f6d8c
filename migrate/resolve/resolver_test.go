// Copyright 2021-present The Atlas Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

package resolve_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"deploydb.io/deploy/migrate"
	"deploydb.io/deploy/migrate/resolve"
)

func TestResolve_BindsEarlierTargets(t *testing.T) {
	m1 := migrate.New("M1")
	m2 := migrate.New("M2")
	m2.DependsOn = []migrate.MigrationReference{{Name: "m1"}}
	m3 := migrate.New("M3")
	m3.DependsOn = []migrate.MigrationReference{{Name: "M2"}, {Name: "Nope"}}

	resolve.Resolve([]*migrate.Migration{m1, m2, m3})

	require.Same(t, m1, m2.DependsOn[0].Migration)
	require.Same(t, m2, m3.DependsOn[0].Migration)
	require.Nil(t, m3.DependsOn[1].Migration)
}

func TestResolve_SelfAndForwardReferencesStayUnresolved(t *testing.T) {
	m1 := migrate.New("M1")
	m1.DependsOn = []migrate.MigrationReference{{Name: "M1"}, {Name: "M2"}}
	m2 := migrate.New("M2")

	resolve.Resolve([]*migrate.Migration{m1, m2})

	require.Nil(t, m1.DependsOn[0].Migration, "self-dependency must not resolve")
	require.Nil(t, m1.DependsOn[1].Migration, "forward dependency must not resolve")
}

func TestResolve_PseudoMigrationsNeverBoundOrUsedAsTargets(t *testing.T) {
	begin := migrate.New(migrate.BeginName)
	begin.IsPseudo = true
	m1 := migrate.New("M1")
	m1.DependsOn = []migrate.MigrationReference{{Name: migrate.BeginName}}

	resolve.Resolve([]*migrate.Migration{begin, m1})

	require.Nil(t, m1.DependsOn[0].Migration)
}
