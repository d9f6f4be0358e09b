// Station - Self-hosted Peer Station Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/station

// Package fsutil holds small file helpers shared by the on-disk caches.
package fsutil

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ErrTooLarge is returned by CopyAtomic when the source exceeds the limit.
var ErrTooLarge = errors.New("content exceeds size limit")

// WriteFileAtomic writes data to path through a temp file in the same
// directory and a rename, creating parent directories as needed. Readers see
// either the old file or the complete new one.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	_, err := CopyAtomic(path, bytes.NewReader(data), perm, -1)
	return err
}

// CopyAtomic streams r into path like WriteFileAtomic. When limit is not
// negative, more than limit bytes fails with ErrTooLarge and leaves path
// untouched. It returns the bytes written.
func CopyAtomic(path string, r io.Reader, perm os.FileMode, limit int64) (int64, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("create dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	fail := func(err error) (int64, error) {
		tmp.Close()
		os.Remove(tmpName)
		return 0, err
	}

	src := r
	if limit >= 0 {
		src = io.LimitReader(r, limit+1)
	}
	n, err := io.Copy(tmp, src)
	if err != nil {
		return fail(fmt.Errorf("write temp file: %w", err))
	}
	if limit >= 0 && n > limit {
		return fail(fmt.Errorf("%w: more than %d bytes", ErrTooLarge, limit))
	}
	if err := tmp.Chmod(perm); err != nil {
		return fail(fmt.Errorf("chmod temp file: %w", err))
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return 0, fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return 0, fmt.Errorf("rename temp file: %w", err)
	}
	return n, nil
}
