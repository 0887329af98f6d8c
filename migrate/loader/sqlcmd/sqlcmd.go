// Copyright 2021-present The Atlas Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

// Package sqlcmd is a minimal stand-in for a SQLCMD-style preprocessor: it
// substitutes $(Name) variable tokens and splits a script into batches on
// a line containing only GO (optionally with a repeat count), the two
// textual transforms the loader needs before it can scan phases and magic
// comments out of a migration's SQL. It never interprets SQL itself (spec
// §1 Out-of-scope: "a SQLCMD-style preprocessor (treated as a
// text-substitution helper consumed by the loader)").
package sqlcmd

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	varToken  = regexp.MustCompile(`\$\(([A-Za-z_][A-Za-z0-9_]*)\)`)
	goBatch   = regexp.MustCompile(`(?mi)^[ \t]*GO[ \t]*([0-9]*)[ \t]*\r?$`)
)

// Expand substitutes every $(Name) occurrence with vars[Name]. Unknown
// variables are left untouched verbatim, so that tokens meant for a richer
// downstream preprocessor are not silently corrupted.
func Expand(text string, vars map[string]string) string {
	return varToken.ReplaceAllStringFunc(text, func(tok string) string {
		name := varToken.FindStringSubmatch(tok)[1]
		if v, ok := vars[name]; ok {
			return v
		}
		return tok
	})
}

// Batches splits text on GO-only lines, honoring an optional repeat count
// (`GO 3` repeats the preceding batch three times), and returns the
// non-empty batch bodies in order.
func Batches(text string) []string {
	var (
		batches []string
		last    int
	)
	locs := goBatch.FindAllStringSubmatchIndex(text, -1)
	for _, loc := range locs {
		body := text[last:loc[0]]
		count := 1
		if loc[2] >= 0 && loc[3] > loc[2] {
			if n, err := strconv.Atoi(text[loc[2]:loc[3]]); err == nil && n > 0 {
				count = n
			}
		}
		if trimmed := strings.TrimSpace(body); trimmed != "" {
			for i := 0; i < count; i++ {
				batches = append(batches, body)
			}
		}
		last = loc[1]
	}
	if tail := text[last:]; strings.TrimSpace(tail) != "" {
		batches = append(batches, tail)
	}
	if len(batches) == 0 && strings.TrimSpace(text) != "" {
		batches = append(batches, text)
	}
	return batches
}
