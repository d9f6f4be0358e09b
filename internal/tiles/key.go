// Station - Self-hosted Peer Station Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/station

package tiles

import (
	"fmt"
	"strconv"
	"strings"
)

// maxSupportedZoom bounds the shift in Key.Validate; no slippy-map source
// goes past 22.
const maxSupportedZoom = 30

// Key addresses one slippy-map tile.
type Key struct {
	Z int
	X int
	Y int
}

// ParseKey parses path segments. A trailing ".png" on y is accepted.
func ParseKey(z, x, y string) (Key, error) {
	y = strings.TrimSuffix(y, ".png")

	zi, err := strconv.Atoi(z)
	if err != nil {
		return Key{}, fmt.Errorf("%w: zoom %q", ErrBadCoordinates, z)
	}
	xi, err := strconv.Atoi(x)
	if err != nil {
		return Key{}, fmt.Errorf("%w: x %q", ErrBadCoordinates, x)
	}
	yi, err := strconv.Atoi(y)
	if err != nil {
		return Key{}, fmt.Errorf("%w: y %q", ErrBadCoordinates, y)
	}
	return Key{Z: zi, X: xi, Y: yi}, nil
}

// Validate checks that x and y fall inside the 2^z grid.
func (k Key) Validate() error {
	if k.Z < 0 || k.Z > maxSupportedZoom {
		return fmt.Errorf("%w: zoom %d", ErrBadCoordinates, k.Z)
	}
	n := 1 << k.Z
	if k.X < 0 || k.X >= n || k.Y < 0 || k.Y >= n {
		return fmt.Errorf("%w: %s outside %dx%d grid", ErrBadCoordinates, k, n, n)
	}
	return nil
}

// String returns the cache key "{z}/{x}/{y}".
func (k Key) String() string {
	return strconv.Itoa(k.Z) + "/" + strconv.Itoa(k.X) + "/" + strconv.Itoa(k.Y)
}
