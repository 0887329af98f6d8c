// Copyright 2021-present The Atlas Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

// Package local implements the defined-migration half of the
// MigrationRepository: filesystem discovery, content hashing and sorting
// (spec §4.1).
package local

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"deploydb.io/deploy/migrate"
)

// mainFile is the required marker file inside every migration directory.
const mainFile = "_Main.sql"

// Repository discovers defined migrations under <source>/Migrations.
type Repository struct {
	root string // <source>/Migrations
}

// Open returns a Repository rooted at <source>/Migrations. It fails fast
// if that directory does not exist, per spec §4.1 ("the loader expects a
// Migrations subdirectory").
func Open(source string) (*Repository, error) {
	root := filepath.Join(source, "Migrations")
	fi, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("migrate/local: %w", err)
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("migrate/local: %q is not a directory", root)
	}
	return &Repository{root: root}, nil
}

// Root returns the Migrations directory this repository reads from.
func (r *Repository) Root() string { return r.root }

// Discover returns the sorted, content-addressed list of defined
// migrations. If maxName is non-empty, directories whose name compares
// strictly greater than maxName (case-insensitive, ordinal) are excluded.
func (r *Repository) Discover(ctx context.Context, maxName string) ([]*migrate.Migration, error) {
	entries, err := os.ReadDir(r.root)
	if err != nil {
		return nil, fmt.Errorf("migrate/local: reading %s: %w", r.root, err)
	}

	type job struct {
		name string
		path string
	}
	var jobs []job
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if maxName != "" && migrate.Less(maxName, e.Name()) {
			continue
		}
		dir := filepath.Join(r.root, e.Name())
		if _, err := os.Stat(filepath.Join(dir, mainFile)); err != nil {
			continue // no _Main.sql: not a migration directory
		}
		jobs = append(jobs, job{name: e.Name(), path: dir})
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		out     = make([]*migrate.Migration, 0, len(jobs))
		firstErr error
		sem     = make(chan struct{}, workerCount())
	)
	for _, j := range jobs {
		j := j
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			h, err := HashDir(j.path)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = fmt.Errorf("migrate/local: hashing %s: %w", j.path, err)
				}
				return
			}
			m := migrate.New(j.name)
			m.Path = j.path
			m.Hash = h
			m.IsPseudo = j.name == migrate.BeginName || j.name == migrate.EndName
			out = append(out, m)
		}()
	}
	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}
	migrate.Sort(out)
	return out, nil
}

func workerCount() int {
	if n := runtime.GOMAXPROCS(0); n > 0 {
		return n
	}
	return 1
}
