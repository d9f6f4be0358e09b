// Station - Self-hosted Peer Station Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/station

package validation

import (
	"strings"
	"testing"

	"github.com/tomtom215/station/internal/identity"
)

type sample struct {
	Npub    string  `validate:"required,npub"`
	Zoom    int     `validate:"tilezoom"`
	Lat     float64 `validate:"latitude"`
	Mode    string  `validate:"oneof=root node"`
	Message string  `validate:"max=5"`
}

func TestGetValidator_Singleton(t *testing.T) {
	t.Parallel()

	if GetValidator() != GetValidator() {
		t.Error("GetValidator() should return the same instance")
	}
}

func TestValidateStruct(t *testing.T) {
	t.Parallel()

	kp, err := identity.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	valid := sample{Npub: kp.Npub, Zoom: 18, Lat: 45, Mode: "root", Message: "hi"}

	tests := []struct {
		name    string
		mutate  func(*sample)
		wantTag string
	}{
		{"valid", func(*sample) {}, ""},
		{"missing npub", func(s *sample) { s.Npub = "" }, "required"},
		{"bad npub", func(s *sample) { s.Npub = kp.Nsec }, "npub"},
		{"zoom too high", func(s *sample) { s.Zoom = 23 }, "tilezoom"},
		{"latitude out of range", func(s *sample) { s.Lat = 91 }, "latitude"},
		{"bad mode", func(s *sample) { s.Mode = "leaf" }, "oneof"},
		{"message too long", func(s *sample) { s.Message = "toolong" }, "max"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := valid
			tt.mutate(&s)
			verr := ValidateStruct(&s)
			if tt.wantTag == "" {
				if verr != nil {
					t.Fatalf("unexpected error: %v", verr)
				}
				return
			}
			if verr == nil {
				t.Fatalf("expected %s failure", tt.wantTag)
			}
			if got := verr.Fields()[0].Tag; got != tt.wantTag {
				t.Errorf("tag = %q, want %q", got, tt.wantTag)
			}
			if verr.Code() != CodeValidation {
				t.Errorf("code = %q", verr.Code())
			}
		})
	}
}

func TestValidateStruct_MessagesJoined(t *testing.T) {
	t.Parallel()

	verr := ValidateStruct(&sample{Zoom: 30, Mode: "x"})
	if verr == nil {
		t.Fatal("expected errors")
	}
	msg := verr.Error()
	for _, want := range []string{"sample.Npub is required", "zoom level", "must be one of: root node"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message %q missing %q", msg, want)
		}
	}
}
