// Copyright 2021-present The Atlas Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

// Package loader implements MigrationLoader (spec §4.2): it partitions a
// migration's raw SQL into Pre/Core/Post content, collects REQUIRES
// dependency declarations, and synthesizes the registration batches that
// record a phase as applied.
package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"deploydb.io/deploy/migrate"
	"deploydb.io/deploy/migrate/loader/sqlcmd"
)

// Loader partitions migration scripts into phase content.
type Loader struct{}

// New returns a Loader.
func New() *Loader { return &Loader{} }

// Load populates m's Pre/Core/Post content, DependsOn and
// IsContentLoaded, exactly once, regardless of how many goroutines call
// Load concurrently for the same *Migration (spec §4.2 concurrency).
func (l *Loader) Load(m *migrate.Migration) error {
	return m.LoadOnce(l.load)
}

func (l *Loader) load(m *migrate.Migration) error {
	raw, err := os.ReadFile(filepath.Join(m.Path, "_Main.sql"))
	if err != nil {
		return fmt.Errorf("migrate/loader: reading %s: %w", m.Name, err)
	}
	text := sqlcmd.Expand(string(raw), map[string]string{"Path": m.Path})

	cur := migrate.Core
	switch m.Name {
	case migrate.BeginName:
		cur = migrate.Pre
	case migrate.EndName:
		cur = migrate.Post
	}

	var (
		bufs = map[migrate.Phase]*strings.Builder{
			migrate.Pre:  {},
			migrate.Core: {},
			migrate.Post: {},
		}
		deps = map[string]string{}
		// scratch receives scan's output; flush moves it into the current
		// phase's buffer whenever a magic comment switches phases.
		scratch strings.Builder
	)
	flush := func() {
		bufs[cur].WriteString(scratch.String())
		scratch.Reset()
	}

	onMagic := func(mg magic) bool {
		switch mg.name {
		case "PRE":
			flush()
			cur = migrate.Pre
			return true
		case "CORE":
			flush()
			cur = migrate.Core
			return true
		case "POST":
			flush()
			cur = migrate.Post
			return true
		case "REQUIRES":
			if m.IsPseudo {
				// REQUIRES is silently rejected for pseudo-migrations.
				return true
			}
			for _, name := range mg.args {
				key := strings.ToLower(name)
				if _, ok := deps[key]; !ok {
					deps[key] = name
				}
			}
			return true
		default:
			return false
		}
	}

	for _, batch := range sqlcmd.Batches(text) {
		scan(batch, onMagic, &scratch)
		flush()
	}

	for _, p := range []migrate.Phase{migrate.Pre, migrate.Core, migrate.Post} {
		content := m.ContentFor(p)
		content.Sql = bufs[p].String()
		content.IsRequired = strings.TrimSpace(content.Sql) != ""
	}

	if !m.IsPseudo {
		for p := range bufs {
			content := m.ContentFor(p)
			if content.IsRequired {
				content.Sql = content.Sql + registrationSQL(m.Name, m.Hash, p)
			}
		}
		m.DependsOn = sortedRefs(deps)
	}
	return nil
}

func sortedRefs(deps map[string]string) []migrate.MigrationReference {
	names := make([]string, 0, len(deps))
	for _, n := range deps {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool { return migrate.Less(names[i], names[j]) })
	refs := make([]migrate.MigrationReference, len(names))
	for i, n := range names {
		refs[i] = migrate.MigrationReference{Name: n}
	}
	return refs
}

// runDateColumn returns the phase-specific column updated by the
// registration MERGE (spec §6).
func runDateColumn(p migrate.Phase) string {
	switch p {
	case migrate.Pre:
		return "PreRunDate"
	case migrate.Core:
		return "CoreRunDate"
	case migrate.Post:
		return "PostRunDate"
	default:
		panic("migrate/loader: unknown phase")
	}
}

// registrationSQL returns the two synthesized final batches appended to a
// non-empty, non-pseudo phase: a PRINT announcing completion and a MERGE
// into _deploy.Migration guarded by a THROW asserting exactly one row was
// affected (spec §4.2, §6).
func registrationSQL(name, hash string, p migrate.Phase) string {
	col := runDateColumn(p)
	escapedName := strings.ReplaceAll(name, "'", "''")
	escapedHash := strings.ReplaceAll(hash, "'", "''")
	nameLit := func(b *builder) { b.WriteString(escapedName) }
	hashLit := func(b *builder) { b.WriteString(escapedHash) }

	b := &builder{Indent: ""}
	b.Quote("PRINT N", func(b *builder) {
		b.WriteString(escapedName + " " + p.String() + " complete")
	}).P(";").NL()
	b.P("MERGE INTO _deploy.Migration AS target").NL()
	b.P("USING (SELECT").Quote("N", nameLit).P("AS Name) AS source").NL()
	b.P("ON target.Name = source.Name").NL()
	b.P("WHEN MATCHED THEN UPDATE SET Hash =").Quote("N", hashLit).P(", " + col + " = SYSUTCDATETIME()").NL()
	b.P("WHEN NOT MATCHED THEN INSERT (Name, Hash, " + col + ") VALUES (source.Name,").Quote("N", hashLit).P(", SYSUTCDATETIME());").NL()
	b.P("IF @@ROWCOUNT <> 1 THROW 51000,").Quote("N", func(b *builder) {
		b.WriteString(fmt.Sprintf("expected exactly one row to be affected registering %s %s", escapedName, p))
	}).P(", 1;")

	return "\n" + b.String() + "\n"
}
