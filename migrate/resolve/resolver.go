// Copyright 2021-present The Atlas Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

// Package resolve implements MigrationReferenceResolver (spec §4.5):
// binding textual REQUIRES names to the Migration instances they name.
package resolve

import (
	"strings"

	"deploydb.io/deploy/migrate"
)

// Resolve walks pending once, in order, binding each non-pseudo
// migration's DependsOn references against migrations seen earlier in the
// walk. Because a valid dependency target always sorts strictly earlier
// than its referrer (spec §4.0), this single forward pass resolves every
// satisfiable reference; anything left unbound is left for the validator
// to classify.
func Resolve(pending []*migrate.Migration) {
	seen := make(map[string]*migrate.Migration, len(pending))
	for _, m := range pending {
		if !m.IsPseudo {
			for i := range m.DependsOn {
				if target, ok := seen[strings.ToLower(m.DependsOn[i].Name)]; ok {
					m.DependsOn[i].Migration = target
				}
			}
			seen[strings.ToLower(m.Name)] = m
		}
	}
}
