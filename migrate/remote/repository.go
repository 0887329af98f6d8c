// Copyright 2021-present The Atlas Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

// Package remote implements the applied-migration half of the
// MigrationRepository: reading the `_deploy.Migration` registry off a
// target database (spec §4.3).
package remote

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"deploydb.io/deploy/migrate"
)

// queryWithFloor is used when an earliest defined migration name is
// known; queryNoFloor is used otherwise. Both wrap the real SELECT in a
// sp_executesql call guarded by an OBJECT_ID check, so that targets which
// have never been deployed to (no _deploy.Migration table yet) simply
// return zero rows instead of failing to compile (spec §4.3, §6).
const (
	queryWithFloor = `IF OBJECT_ID('_deploy.Migration', 'U') IS NOT NULL
EXEC sp_executesql N'SELECT Name, Hash, State FROM _deploy.Migration WHERE State < 3 OR Name >= @min ORDER BY Name;', N'@min nvarchar(128)', @min = @min;`

	queryNoFloor = `IF OBJECT_ID('_deploy.Migration', 'U') IS NOT NULL
EXEC sp_executesql N'SELECT Name, Hash, State FROM _deploy.Migration WHERE State < 3 ORDER BY Name;';`
)

// row mirrors one result row of the applied-migration query.
type row struct {
	Name  string         `db:"Name"`
	Hash  sql.NullString `db:"Hash"`
	State int            `db:"State"`
}

// Repository reads applied migrations from one target database.
type Repository struct {
	db *sqlx.DB
}

// New wraps an already-open *sql.DB (registered under the go-mssqldb
// driver) as a Repository.
func New(db *sql.DB) *Repository {
	return &Repository{db: sqlx.NewDb(db, "sqlserver")}
}

// GetAppliedMigrations reads the applied-migration registry. earliestName
// may be empty, in which case no floor is applied (spec §4.3).
func (r *Repository) GetAppliedMigrations(ctx context.Context, earliestName string) ([]*migrate.Migration, error) {
	var (
		rows []row
		err  error
	)
	if earliestName == "" {
		err = r.db.SelectContext(ctx, &rows, queryNoFloor)
	} else {
		err = r.db.SelectContext(ctx, &rows, queryWithFloor, sql.Named("min", earliestName))
	}
	if err != nil {
		return nil, fmt.Errorf("migrate/remote: reading applied migrations: %w", err)
	}

	out := make([]*migrate.Migration, len(rows))
	for i, rw := range rows {
		m := migrate.New(rw.Name)
		m.State = stateOf(rw.State)
		if rw.Hash.Valid {
			m.Hash = rw.Hash.String
		}
		out[i] = m
	}
	migrate.Sort(out)
	return out, nil
}

func stateOf(n int) migrate.State {
	switch n {
	case 0:
		return migrate.NotApplied
	case 1:
		return migrate.AppliedPre
	case 2:
		return migrate.AppliedCore
	case 3:
		return migrate.AppliedPost
	default:
		return migrate.NotApplied
	}
}
