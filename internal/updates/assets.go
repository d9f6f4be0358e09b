// Station - Self-hosted Peer Station Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/station

package updates

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"

	"github.com/tomtom215/station/internal/fsutil"
	"github.com/tomtom215/station/internal/logging"
	"github.com/tomtom215/station/internal/metrics"
)

// SanitizeAssetName returns name if it is safe to use as a file name in the
// mirror directory, or "" otherwise.
func SanitizeAssetName(name string) string {
	if !assetNamePattern.MatchString(name) || name == ReleaseFile {
		return ""
	}
	return name
}

// AssetPath resolves a mirrored asset for serving.
func (m *Mirror) AssetPath(name string) (string, error) {
	clean := SanitizeAssetName(name)
	if clean == "" {
		return "", fmt.Errorf("%w: %q", ErrAssetNotFound, name)
	}
	p := filepath.Join(m.cfg.Dir, clean)
	info, err := os.Stat(p)
	if err != nil || !info.Mode().IsRegular() {
		return "", fmt.Errorf("%w: %s", ErrAssetNotFound, clean)
	}
	return p, nil
}

// mirrorAssets downloads every asset not yet present with the advertised
// size. Failures are logged per asset.
func (m *Mirror) mirrorAssets(ctx context.Context, assets []Asset) {
	for _, a := range assets {
		if ctx.Err() != nil {
			return
		}
		name := SanitizeAssetName(a.Name)
		if name == "" || a.DownloadURL == "" {
			logging.Warn().Str("asset", a.Name).Msg("skipping asset with unsafe name or no URL")
			metrics.UpdateAssetsMirrored.WithLabelValues("skipped").Inc()
			continue
		}
		if m.cfg.MaxAssetBytes > 0 && a.Size > m.cfg.MaxAssetBytes {
			logging.Warn().Str("asset", name).Int64("size", a.Size).Msg("skipping asset above size cap")
			metrics.UpdateAssetsMirrored.WithLabelValues("skipped").Inc()
			continue
		}

		p := filepath.Join(m.cfg.Dir, name)
		if info, err := os.Stat(p); err == nil && a.Size > 0 && info.Size() == a.Size {
			continue
		}

		n, err := m.download(ctx, a.DownloadURL, p)
		if err != nil {
			logging.Warn().Err(err).Str("asset", name).Msg("asset download failed")
			metrics.UpdateAssetsMirrored.WithLabelValues("failed").Inc()
			continue
		}
		metrics.UpdateAssetsMirrored.WithLabelValues("downloaded").Inc()
		logging.Info().Str("asset", name).Int64("bytes", n).Msg("asset mirrored")
	}
	m.refreshAssetList()
}

func (m *Mirror) download(ctx context.Context, url, dest string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return 0, fmt.Errorf("create asset request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := m.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("asset request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: %d", errHTTPStatus, resp.StatusCode)
	}
	limit := int64(-1)
	if m.cfg.MaxAssetBytes > 0 {
		limit = m.cfg.MaxAssetBytes
	}
	n, err := fsutil.CopyAtomic(dest, resp.Body, 0o644, limit)
	if errors.Is(err, fsutil.ErrTooLarge) {
		return 0, fmt.Errorf("asset exceeds %d bytes: %w", limit, err)
	}
	return n, err
}

func (m *Mirror) refreshAssetList() {
	entries, err := os.ReadDir(m.cfg.Dir)
	if err != nil {
		return
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() && SanitizeAssetName(e.Name()) != "" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	m.mu.Lock()
	m.status.Assets = names
	m.mu.Unlock()
}
