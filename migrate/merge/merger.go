// Copyright 2021-present The Atlas Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

// Package merge implements MigrationMerger (spec §4.4): reconciling the
// defined migration list with the applied registry of one target into a
// single ordered pending list.
package merge

import (
	"fmt"

	"deploydb.io/deploy/migrate"
)

// Loader ensures a migration's phase content is populated. It is
// satisfied by *loader.Loader; accepting the narrow interface here keeps
// this package free of a dependency on the loader's SQL-partitioning
// internals.
type Loader interface {
	Load(*migrate.Migration) error
}

// Merge reconciles defined and applied (both already sorted per
// migrate.Sort) into the pending list spec §4.4 describes. If the result
// would contain only pseudo-migrations, it returns an empty slice instead
// (pseudo-migrations exist to bracket non-trivial deployments only).
func Merge(loader Loader, defined, applied []*migrate.Migration) ([]*migrate.Migration, error) {
	var (
		pending []*migrate.Migration
		i, j    int
	)
	for i < len(defined) && j < len(applied) {
		d, a := defined[i], applied[j]
		switch c := migrate.CompareNames(d.Name, a.Name); {
		case c < 0:
			if err := loader.Load(d); err != nil {
				return nil, fmt.Errorf("migrate/merge: %w", err)
			}
			pending = append(pending, d)
			i++
		case c > 0:
			if a.State != migrate.AppliedPost {
				pending = append(pending, a)
			}
			j++
		default:
			changed := d.ComputeChanged(a.Hash)
			if !changed && a.State == migrate.AppliedPost {
				i++
				j++
				continue
			}
			a.Path = d.Path
			a.HasChanged = changed
			a.Hash = d.Hash
			if a.State != migrate.AppliedPost {
				if err := loader.Load(d); err != nil {
					return nil, fmt.Errorf("migrate/merge: %w", err)
				}
				a.Pre, a.Core, a.Post = d.Pre, d.Core, d.Post
				a.DependsOn = d.DependsOn
				a.IsContentLoaded = d.IsContentLoaded
			}
			pending = append(pending, a)
			i++
			j++
		}
	}
	for ; i < len(defined); i++ {
		if err := loader.Load(defined[i]); err != nil {
			return nil, fmt.Errorf("migrate/merge: %w", err)
		}
		pending = append(pending, defined[i])
	}
	for ; j < len(applied); j++ {
		if applied[j].State != migrate.AppliedPost {
			pending = append(pending, applied[j])
		}
	}

	for _, m := range pending {
		if !m.IsPseudo {
			return pending, nil
		}
	}
	return nil, nil
}
