// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package rgerr

import (
	"errors"
	"testing"
)

func TestNewErrorMessage(t *testing.T) {
	err := New("arena", InvalidArguments, "Alloc: bad size")
	if got := err.Error(); got != "arena: Alloc: bad size" {
		t.Fatalf("Error():\nhave %q\nwant %q", got, "arena: Alloc: bad size")
	}
}

func TestWrapChainsCauseAndMessage(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap("alloc", OutOfMemory, "Plan: backend allocation failed", cause)
	want := "alloc: Plan: backend allocation failed: disk full"
	if got := err.Error(); got != want {
		t.Fatalf("Error():\nhave %q\nwant %q", got, want)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("errors.Is(err, cause): have false want true")
	}
}

func TestIsMatchesKindAcrossPackages(t *testing.T) {
	err := New("signature", UnknownNode, "ParamIndex: no such node")
	if !Is(err, UnknownNode) {
		t.Fatalf("Is(err, UnknownNode): have false want true")
	}
	if Is(err, InvalidProgram) {
		t.Fatalf("Is(err, InvalidProgram): have true want false")
	}
	if !errors.Is(err, UnknownNode.Sentinel()) {
		t.Fatalf("errors.Is(err, UnknownNode.Sentinel()): have false want true")
	}
}

func TestKindString(t *testing.T) {
	if got := InvalidProgram.String(); got != "InvalidProgram" {
		t.Fatalf("String():\nhave %q\nwant %q", got, "InvalidProgram")
	}
	if got := Kind(1000).String(); got != "Kind(?)" {
		t.Fatalf("String() out of range:\nhave %q\nwant %q", got, "Kind(?)")
	}
}

func TestErrorIsDistinguishesOtherErrorTypes(t *testing.T) {
	err := New("graph", IndexOutOfBounds, "Node: id out of range")
	if errors.Is(err, errors.New("unrelated")) {
		t.Fatalf("errors.Is against an unrelated error: have true want false")
	}
}
