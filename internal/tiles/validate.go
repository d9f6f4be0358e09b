// Station - Self-hosted Peer Station Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/station

package tiles

import (
	"bytes"
	"fmt"
)

var (
	pngSignature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}
	pngIEND      = []byte("IEND")
	jpegSOI      = []byte{0xFF, 0xD8}
	jpegEOI      = []byte{0xFF, 0xD9}
)

// Validate checks that data is a complete PNG or JPEG image. A truncated
// download fails here because its trailer is missing.
//
// PNG: 8-byte signature and an IEND chunk type in the last 8 bytes (type
// followed by its 4-byte CRC). JPEG: SOI marker first and EOI marker last.
func Validate(data []byte) error {
	switch {
	case bytes.HasPrefix(data, pngSignature):
		if len(data) < len(pngSignature)+12 {
			return fmt.Errorf("%w: png truncated at %d bytes", ErrInvalidTile, len(data))
		}
		if !bytes.Equal(data[len(data)-8:len(data)-4], pngIEND) {
			return fmt.Errorf("%w: png missing IEND", ErrInvalidTile)
		}
		return nil
	case bytes.HasPrefix(data, jpegSOI):
		if len(data) < 4 || !bytes.HasSuffix(data, jpegEOI) {
			return fmt.Errorf("%w: jpeg missing EOI", ErrInvalidTile)
		}
		return nil
	default:
		return fmt.Errorf("%w: unrecognized format", ErrInvalidTile)
	}
}

// ContentType returns the MIME type for a validated tile.
func ContentType(data []byte) string {
	if bytes.HasPrefix(data, jpegSOI) {
		return "image/jpeg"
	}
	return "image/png"
}
