// Copyright 2021-present The Atlas Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

package config

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/microsoft/go-mssqldb"

	"deploydb.io/deploy/migrate/apply"
	"deploydb.io/deploy/migrate/session"
)

// ParallelSets converts the descriptor's sets into the connection-opening
// targets migrate/session drives. Each target opens its own *sql.DB
// lazily, once the applicator is ready to use it.
func (c *Config) ParallelSets() []session.ParallelSet {
	out := make([]session.ParallelSet, len(c.Sets))
	for i, set := range c.Sets {
		targets := make([]apply.Target, len(set.Targets))
		for j, t := range set.Targets {
			t := t
			targets[j] = apply.Target{
				Server:   t.Server,
				Database: t.Database,
				Open: func(ctx context.Context) (*sql.DB, error) {
					dsn := fmt.Sprintf("server=%s;database=%s", t.Server, t.Database)
					db, err := sql.Open("sqlserver", dsn)
					if err != nil {
						return nil, fmt.Errorf("config: opening %s/%s: %w", t.Server, t.Database, err)
					}
					if err := db.PingContext(ctx); err != nil {
						db.Close()
						return nil, fmt.Errorf("config: connecting to %s/%s: %w", t.Server, t.Database, err)
					}
					return db, nil
				},
			}
		}
		out[i] = session.ParallelSet{MaxParallelism: set.MaxParallelism, Targets: targets}
	}
	return out
}
