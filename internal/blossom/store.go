// Station - Self-hosted Peer Station Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/station

// Package blossom is the station's default content-addressed blob store:
// each blob is a file named by the hex SHA-256 of its bytes, bounded by a
// per-file and a total quota.
package blossom

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/tomtom215/station/internal/logging"
	"github.com/tomtom215/station/internal/metrics"
)

var (
	ErrBlobTooLarge = errors.New("blob exceeds per-file limit")
	ErrStorageFull  = errors.New("blob storage quota exceeded")
	ErrBlobNotFound = errors.New("blob not found")
	ErrInvalidHash  = errors.New("invalid sha256")
)

var hashPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

// Descriptor describes a stored blob. URL is filled in by the HTTP layer.
type Descriptor struct {
	URL      string `json:"url,omitempty"`
	SHA256   string `json:"sha256"`
	Size     int64  `json:"size"`
	Type     string `json:"type"`
	Uploaded int64  `json:"uploaded"`
}

// Config bounds a Store.
type Config struct {
	Dir           string
	MaxFileBytes  int64
	MaxTotalBytes int64
}

// Store keeps blobs on disk. Sizes are indexed in memory at Open.
type Store struct {
	cfg Config

	mu    sync.RWMutex
	sizes map[string]int64
	used  int64
}

// Open creates the directory if needed and indexes existing blobs.
func Open(cfg Config) (*Store, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create blob dir: %w", err)
	}
	s := &Store{cfg: cfg, sizes: make(map[string]int64)}

	entries, err := os.ReadDir(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("read blob dir: %w", err)
	}
	for _, e := range entries {
		if !e.Type().IsRegular() || !hashPattern.MatchString(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		s.sizes[e.Name()] = info.Size()
		s.used += info.Size()
	}
	metrics.BlossomStoredBytes.Set(float64(s.used))
	logging.Debug().Int("blobs", len(s.sizes)).Int64("bytes", s.used).Msg("blob store opened")
	return s, nil
}

// Ingest stores the bytes from r and returns their descriptor. Uploading
// an existing blob is a no-op that returns the stored descriptor.
func (s *Store) Ingest(ctx context.Context, r io.Reader, contentType string) (Descriptor, error) {
	tmp, err := os.CreateTemp(s.cfg.Dir, ".upload-*")
	if err != nil {
		return Descriptor{}, fmt.Errorf("create upload file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	hasher := sha256.New()
	src := io.Reader(r)
	if s.cfg.MaxFileBytes > 0 {
		src = io.LimitReader(r, s.cfg.MaxFileBytes+1)
	}
	sniff := &sniffWriter{}
	n, err := io.Copy(io.MultiWriter(tmp, hasher, sniff), contextReader{ctx: ctx, r: src})
	closeErr := tmp.Close()
	if err != nil {
		return Descriptor{}, fmt.Errorf("receive upload: %w", err)
	}
	if closeErr != nil {
		return Descriptor{}, fmt.Errorf("close upload file: %w", closeErr)
	}
	if s.cfg.MaxFileBytes > 0 && n > s.cfg.MaxFileBytes {
		metrics.BlossomUploads.WithLabelValues("too_large").Inc()
		return Descriptor{}, fmt.Errorf("%w: limit %d bytes", ErrBlobTooLarge, s.cfg.MaxFileBytes)
	}

	sum := hex.EncodeToString(hasher.Sum(nil))
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(sniff.buf)
	}
	desc := Descriptor{SHA256: sum, Size: n, Type: contentType, Uploaded: time.Now().Unix()}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sizes[sum]; ok {
		metrics.BlossomUploads.WithLabelValues("duplicate").Inc()
		return desc, nil
	}
	if s.cfg.MaxTotalBytes > 0 && s.used+n > s.cfg.MaxTotalBytes {
		metrics.BlossomUploads.WithLabelValues("quota").Inc()
		return Descriptor{}, fmt.Errorf("%w: %d of %d bytes used", ErrStorageFull, s.used, s.cfg.MaxTotalBytes)
	}
	if err := os.Rename(tmpName, filepath.Join(s.cfg.Dir, sum)); err != nil {
		return Descriptor{}, fmt.Errorf("store blob: %w", err)
	}
	s.sizes[sum] = n
	s.used += n
	metrics.BlossomStoredBytes.Set(float64(s.used))
	metrics.BlossomUploads.WithLabelValues("stored").Inc()
	return desc, nil
}

// BlobFile returns the path and descriptor of a stored blob. hash may carry
// a file extension ("<sha256>.png").
func (s *Store) BlobFile(hash string) (string, Descriptor, error) {
	hash = trimExt(hash)
	if !hashPattern.MatchString(hash) {
		return "", Descriptor{}, fmt.Errorf("%w: %q", ErrInvalidHash, hash)
	}
	s.mu.RLock()
	size, ok := s.sizes[hash]
	s.mu.RUnlock()
	if !ok {
		return "", Descriptor{}, fmt.Errorf("%w: %s", ErrBlobNotFound, hash)
	}

	p := filepath.Join(s.cfg.Dir, hash)
	desc := Descriptor{SHA256: hash, Size: size, Type: detectFileType(p)}
	if info, err := os.Stat(p); err == nil {
		desc.Uploaded = info.ModTime().Unix()
	}
	return p, desc, nil
}

// Usage returns the stored blob count and bytes.
func (s *Store) Usage() (blobs int, bytes int64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sizes), s.used
}

func trimExt(name string) string {
	if ext := filepath.Ext(name); ext != "" {
		return name[:len(name)-len(ext)]
	}
	return name
}

func detectFileType(p string) string {
	f, err := os.Open(p)
	if err != nil {
		return "application/octet-stream"
	}
	defer f.Close()
	buf := make([]byte, 512)
	n, _ := io.ReadFull(f, buf)
	return http.DetectContentType(buf[:n])
}

// sniffWriter keeps the first 512 bytes for content type detection.
type sniffWriter struct{ buf []byte }

func (w *sniffWriter) Write(p []byte) (int, error) {
	if room := 512 - len(w.buf); room > 0 {
		if len(p) < room {
			room = len(p)
		}
		w.buf = append(w.buf, p[:room]...)
	}
	return len(p), nil
}

// contextReader stops a long upload once ctx is canceled.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
