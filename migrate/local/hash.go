// Copyright 2021-present The Atlas Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

package local

import (
	"crypto/sha1" //nolint:gosec // fingerprint only, not a security primitive (spec §4.1).
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// HashDir computes the content hash of a migration directory per spec
// §4.1: every *.sql file under dir (recursively) is hashed individually
// with SHA-1, the per-file digests are ordered by ordinal ascending full
// path and joined with newlines exactly as a textual listing would render
// them, and that joined text is itself SHA-1 hashed. The final digest is
// returned as uppercase hex.
func HashDir(dir string) (string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.EqualFold(filepath.Ext(path), ".sql") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	sort.Strings(paths) // ordinal ascending full path, not case-insensitive

	var lines []string
	for _, p := range paths {
		h, err := hashFile(p)
		if err != nil {
			return "", fmt.Errorf("hashing %s: %w", p, err)
		}
		lines = append(lines, h)
	}
	h := sha1.New() //nolint:gosec
	io.WriteString(h, strings.Join(lines, "\n"))
	return strings.ToUpper(hex.EncodeToString(h.Sum(nil))), nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha1.New() //nolint:gosec
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return strings.ToUpper(hex.EncodeToString(h.Sum(nil))), nil
}
