// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package analyzer

import (
	"testing"

	"github.com/gviegas/rendergraph/builder"
	"github.com/gviegas/rendergraph/driver"
	"github.com/gviegas/rendergraph/graph"
	"github.com/gviegas/rendergraph/program"
	"github.com/gviegas/rendergraph/signature"
)

func mustDecl(t *testing.T, b *builder.Builder, name string, params ...signature.ParamDecl) {
	t.Helper()
	decl, err := signature.New(name, 0, params)
	if err != nil {
		t.Fatalf("signature.New(%s): %v", name, err)
	}
	b.DeclareNodeKind(decl)
}

func contains(edges []graph.NodeId, want graph.NodeId) bool {
	for _, e := range edges {
		if e == want {
			return true
		}
	}
	return false
}

// TestAnalyzeReadAfterReadCoalesces checks that two readers of
// the same range, with no writer between them, share the one
// transition synthesized before the first read: the second
// read adds no transition of its own, only an ordering edge
// back to that transition.
func TestAnalyzeReadAfterReadCoalesces(t *testing.T) {
	b := builder.New(graph.New(), program.NewGenerator())
	mustDecl(t, b, "write", signature.ParamDecl{
		Name: "dst", Flags: signature.Resource | signature.Out,
		Explicit: &signature.AccessAttr{Access: driver.AShaderWrite, Stages: driver.SCompute},
	})
	mustDecl(t, b, "read", signature.ParamDecl{
		Name: "src", Flags: signature.Resource,
		Explicit: &signature.AccessAttr{Access: driver.AShaderRead, Stages: driver.SCompute},
	})

	if err := b.EnterFunction([program.NumKinds]int{3, 1}); err != nil {
		t.Fatalf("EnterFunction: %v", err)
	}
	res := b.DeclareResource(signature.ResourceDecl{Name: "buf", Type: driver.RBuffer, ByteSize: 256})
	w, err := b.AddNode("write", []builder.ParamBinding{{Param: "dst", Resource: res}})
	if err != nil {
		t.Fatalf("AddNode write: %v", err)
	}
	r1, err := b.AddNode("read", []builder.ParamBinding{{Param: "src", Resource: res}})
	if err != nil {
		t.Fatalf("AddNode r1: %v", err)
	}
	r2, err := b.AddNode("read", []builder.ParamBinding{{Param: "src", Resource: res}})
	if err != nil {
		t.Fatalf("AddNode r2: %v", err)
	}
	b.ExitFunction()

	az := New(b)
	if err := az.Analyze(); err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if len(az.Transitions) != 1 {
		t.Fatalf("expected 1 transition (before the first read) for write-read-read, got %d", len(az.Transitions))
	}
	trans := az.Transitions[0].Node
	if !contains(b.Graph.InEdges(trans), w) {
		t.Fatal("transition missing dependency on writer")
	}
	if !contains(b.Graph.InEdges(r1), trans) {
		t.Fatal("r1 missing dependency on transition")
	}
	if !contains(b.Graph.InEdges(r2), trans) {
		t.Fatal("r2 missing dependency on transition")
	}
}

// TestAnalyzeWriteAfterReadTransitions checks that a
// write-read-write sequence on the same range synthesizes two
// transitions: one between the first write and the read, and
// one ordered after the reader, before the second write.
func TestAnalyzeWriteAfterReadTransitions(t *testing.T) {
	b := builder.New(graph.New(), program.NewGenerator())
	mustDecl(t, b, "write", signature.ParamDecl{
		Name: "dst", Flags: signature.Resource | signature.Out,
		Explicit: &signature.AccessAttr{Access: driver.AShaderWrite, Stages: driver.SCompute},
	})
	mustDecl(t, b, "read", signature.ParamDecl{
		Name: "src", Flags: signature.Resource,
		Explicit: &signature.AccessAttr{Access: driver.AShaderRead, Stages: driver.SCompute},
	})

	if err := b.EnterFunction([program.NumKinds]int{3, 1}); err != nil {
		t.Fatalf("EnterFunction: %v", err)
	}
	res := b.DeclareResource(signature.ResourceDecl{Name: "buf", Type: driver.RBuffer, ByteSize: 256})
	w1, err := b.AddNode("write", []builder.ParamBinding{{Param: "dst", Resource: res}})
	if err != nil {
		t.Fatalf("AddNode w1: %v", err)
	}
	r1, err := b.AddNode("read", []builder.ParamBinding{{Param: "src", Resource: res}})
	if err != nil {
		t.Fatalf("AddNode r1: %v", err)
	}
	w2, err := b.AddNode("write", []builder.ParamBinding{{Param: "dst", Resource: res}})
	if err != nil {
		t.Fatalf("AddNode w2: %v", err)
	}
	b.ExitFunction()

	az := New(b)
	if err := az.Analyze(); err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if len(az.Transitions) != 2 {
		t.Fatalf("expected 2 transitions for write-read-write, got %d", len(az.Transitions))
	}
	t0, t1 := az.Transitions[0].Node, az.Transitions[1].Node
	if !contains(b.Graph.InEdges(t0), w1) {
		t.Fatal("first transition missing dependency on prior writer")
	}
	if !contains(b.Graph.InEdges(r1), t0) {
		t.Fatal("reader missing dependency on first transition")
	}
	if !contains(b.Graph.InEdges(t1), r1) {
		t.Fatal("second transition missing dependency on reader")
	}
	if !contains(b.Graph.InEdges(w2), t1) {
		t.Fatal("second writer missing dependency on second transition")
	}
}
