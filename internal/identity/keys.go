// Station - Self-hosted Peer Station Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/station

// Package identity handles station key pairs, their bech32 encodings,
// callsign derivation and the name registry served at /.well-known/nostr.json.
package identity

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/decred/dcrd/bech32"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// Bech32 human-readable prefixes.
const (
	NpubPrefix = "npub"
	NsecPrefix = "nsec"
)

// Identity errors.
var (
	ErrInvalidKey    = errors.New("invalid key")
	ErrWrongPrefix   = errors.New("unexpected bech32 prefix")
	ErrEmptyCallsign = errors.New("empty callsign")
)

// KeyPair is a station or device identity in bech32 form.
type KeyPair struct {
	Npub string
	Nsec string
}

// GenerateKeyPair creates a fresh secp256k1 key pair.
func GenerateKeyPair() (KeyPair, error) {
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return KeyPair{}, fmt.Errorf("generate private key: %w", err)
	}
	return keyPairFromPrivate(priv)
}

// KeyPairFromNsec rebuilds the full key pair from an nsec string.
func KeyPairFromNsec(nsec string) (KeyPair, error) {
	raw, err := decode(NsecPrefix, nsec)
	if err != nil {
		return KeyPair{}, err
	}
	if len(raw) != 32 {
		return KeyPair{}, fmt.Errorf("%w: private key is %d bytes", ErrInvalidKey, len(raw))
	}
	priv := secp256k1.PrivKeyFromBytes(raw)
	if priv.Key.IsZero() {
		return KeyPair{}, fmt.Errorf("%w: zero private key", ErrInvalidKey)
	}
	return keyPairFromPrivate(priv)
}

func keyPairFromPrivate(priv *secp256k1.PrivateKey) (KeyPair, error) {
	// x-only public key: drop the compressed-point parity byte.
	pub := priv.PubKey().SerializeCompressed()[1:]
	npub, err := encode(NpubPrefix, pub)
	if err != nil {
		return KeyPair{}, err
	}
	nsec, err := encode(NsecPrefix, priv.Serialize())
	if err != nil {
		return KeyPair{}, err
	}
	return KeyPair{Npub: npub, Nsec: nsec}, nil
}

// NpubToHex returns the 64-char hex public key for an npub.
func NpubToHex(npub string) (string, error) {
	raw, err := decode(NpubPrefix, npub)
	if err != nil {
		return "", err
	}
	if len(raw) != 32 {
		return "", fmt.Errorf("%w: public key is %d bytes", ErrInvalidKey, len(raw))
	}
	return hex.EncodeToString(raw), nil
}

// HexToNpub encodes a 64-char hex public key as an npub.
func HexToNpub(pubHex string) (string, error) {
	raw, err := hex.DecodeString(strings.TrimSpace(pubHex))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	if len(raw) != 32 {
		return "", fmt.Errorf("%w: public key is %d bytes", ErrInvalidKey, len(raw))
	}
	return encode(NpubPrefix, raw)
}

// ValidNpub reports whether s decodes as a 32-byte npub.
func ValidNpub(s string) bool {
	_, err := NpubToHex(s)
	return err == nil
}

// Callsign derives the short station identifier from an npub: "X3" followed
// by the first four data characters of the npub, upper-cased. The result is
// a pure function of the key and is never stored as a source of truth.
func Callsign(npub string) string {
	npub = strings.ToLower(strings.TrimSpace(npub))
	if !strings.HasPrefix(npub, NpubPrefix+"1") || len(npub) < 9 {
		return ""
	}
	return "X3" + strings.ToUpper(npub[5:9])
}

func encode(hrp string, data []byte) (string, error) {
	conv, err := bech32.ConvertBits(data, 8, 5, true)
	if err != nil {
		return "", fmt.Errorf("convert bits: %w", err)
	}
	s, err := bech32.Encode(hrp, conv)
	if err != nil {
		return "", fmt.Errorf("bech32 encode: %w", err)
	}
	return s, nil
}

func decode(wantHRP, s string) ([]byte, error) {
	hrp, data, err := bech32.Decode(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	if hrp != wantHRP {
		return nil, fmt.Errorf("%w: got %q, want %q", ErrWrongPrefix, hrp, wantHRP)
	}
	raw, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return raw, nil
}
