// Copyright 2026 The Grackle Authors
// SPDX-License-Identifier: Apache-2.0

package handletable

import (
	"errors"
	"testing"
)

func TestEncode(t *testing.T) {
	got := Encode([]Entry{{Slot: 4, Handle: 0x1fc}, {Slot: 3, Handle: 0x1f4}})
	if want := "3:0x1f4;4:0x1fc;"; got != want {
		t.Fatalf("Encode = %q, want %q", got, want)
	}
	if Encode(nil) != "" {
		t.Fatal("Encode(nil) should be empty")
	}
}

func TestParseRoundTrip(t *testing.T) {
	original := []Entry{{Slot: 3, Handle: 0x1f4}, {Slot: 17, Handle: 0xffff_ffff_0000}}
	parsed, err := Parse(Encode(original))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(parsed) != 2 || parsed[0] != original[0] || parsed[1] != original[1] {
		t.Fatalf("Parse(Encode(x)) = %v, want %v", parsed, original)
	}
	handle, ok := Lookup(parsed, 17)
	if !ok || handle != 0xffff_ffff_0000 {
		t.Fatalf("Lookup(17) = %#x, %v", handle, ok)
	}
	if _, ok := Lookup(parsed, 5); ok {
		t.Fatal("Lookup(5) found a handle")
	}
}

func TestParseWithoutTrailingSemicolon(t *testing.T) {
	parsed, err := Parse("3:0x10;4:0X20")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(parsed) != 2 || parsed[1].Handle != 0x20 {
		t.Fatalf("Parse = %v", parsed)
	}
}

func TestParseErrors(t *testing.T) {
	for _, input := range []string{
		"3",
		"3:1f4;",
		"x:0x1;",
		"3:0xzz;",
		"3:0x1;3:0x2;",
		"-1:0x1;",
	} {
		if _, err := Parse(input); !errors.Is(err, ErrMalformed) {
			t.Errorf("Parse(%q) = %v, want ErrMalformed", input, err)
		}
	}
}
