// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package alloc

import (
	"testing"

	"github.com/gviegas/rendergraph/builder"
	"github.com/gviegas/rendergraph/driver"
	"github.com/gviegas/rendergraph/driver/mock"
	"github.com/gviegas/rendergraph/graph"
	"github.com/gviegas/rendergraph/program"
	"github.com/gviegas/rendergraph/signature"
)

func declWrite(t *testing.T, b *builder.Builder) {
	t.Helper()
	decl, err := signature.New("write", 0, []signature.ParamDecl{
		{Name: "dst", Flags: signature.Resource | signature.Out,
			Explicit: &signature.AccessAttr{Access: driver.AShaderWrite, Stages: driver.SCompute}},
	})
	if err != nil {
		t.Fatalf("signature.New: %v", err)
	}
	b.DeclareNodeKind(decl)
}

// TestPlanAliasesNonOverlappingLifetimes checks that two
// resources whose lifetimes don't overlap in the schedule
// order can share the same heap offset.
func TestPlanAliasesNonOverlappingLifetimes(t *testing.T) {
	b := builder.New(graph.New(), program.NewGenerator())
	declWrite(t, b)

	if err := b.EnterFunction([program.NumKinds]int{2, 2}); err != nil {
		t.Fatalf("EnterFunction: %v", err)
	}
	r1 := b.DeclareResource(signature.ResourceDecl{Name: "a", Type: driver.RBuffer, ByteSize: 4096})
	r2 := b.DeclareResource(signature.ResourceDecl{Name: "b", Type: driver.RBuffer, ByteSize: 4096})
	n1, err := b.AddNode("write", []builder.ParamBinding{{Param: "dst", Resource: r1}})
	if err != nil {
		t.Fatalf("AddNode n1: %v", err)
	}
	n2, err := b.AddNode("write", []builder.ParamBinding{{Param: "dst", Resource: r2}})
	if err != nil {
		t.Fatalf("AddNode n2: %v", err)
	}
	b.ExitFunction()

	order := []graph.NodeId{n1, n2}
	p := New(mock.New())
	placements, err := p.Plan(b, order)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(placements) != 2 {
		t.Fatalf("got %d placements, want 2", len(placements))
	}
	byRes := map[int]Placement{}
	for _, pl := range placements {
		byRes[pl.Resource] = pl
	}
	a, b2 := byRes[r1], byRes[r2]
	if a.Heap != b2.Heap || a.Offset != b2.Offset {
		t.Fatalf("non-overlapping resources not aliased: %+v vs %+v", a, b2)
	}
}

// TestPlanStableAcrossFrames checks that the same resource id
// lands in the same heap/offset on a second call to Plan.
func TestPlanStableAcrossFrames(t *testing.T) {
	b := builder.New(graph.New(), program.NewGenerator())
	declWrite(t, b)
	backend := mock.New()
	p := New(backend)

	build := func() (graph.NodeId, int) {
		if err := b.EnterFunction([program.NumKinds]int{1, 1}); err != nil {
			t.Fatalf("EnterFunction: %v", err)
		}
		r := b.DeclareResource(signature.ResourceDecl{Name: "a", Type: driver.RBuffer, ByteSize: 1024})
		n, err := b.AddNode("write", []builder.ParamBinding{{Param: "dst", Resource: r}})
		if err != nil {
			t.Fatalf("AddNode: %v", err)
		}
		b.ExitFunction()
		return n, r
	}

	n1, _ := build()
	pl1, err := p.Plan(b, []graph.NodeId{n1})
	if err != nil {
		t.Fatalf("Plan frame 1: %v", err)
	}
	b.Reset()

	n2, _ := build()
	pl2, err := p.Plan(b, []graph.NodeId{n2})
	if err != nil {
		t.Fatalf("Plan frame 2: %v", err)
	}

	if pl1[0].Heap != pl2[0].Heap || pl1[0].Offset != pl2[0].Offset {
		t.Fatalf("placement not stable across frames: %+v != %+v", pl1[0], pl2[0])
	}
}
