// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package builder

import (
	"testing"

	"github.com/gviegas/rendergraph/driver"
	"github.com/gviegas/rendergraph/graph"
	"github.com/gviegas/rendergraph/program"
	"github.com/gviegas/rendergraph/signature"
)

func declKind(t *testing.T, b *Builder, name string) {
	t.Helper()
	decl, err := signature.New(name, 0, []signature.ParamDecl{
		{Name: "src", Flags: signature.Resource},
		{Name: "dst", Flags: signature.Resource | signature.Out},
	})
	if err != nil {
		t.Fatalf("signature.New: %v", err)
	}
	b.DeclareNodeKind(decl)
}

func buildFrame(t *testing.T, b *Builder) (res int, n1, n2 graph.NodeId) {
	t.Helper()
	if err := b.EnterFunction([program.NumKinds]int{2, 1}); err != nil {
		t.Fatalf("EnterFunction: %v", err)
	}
	res = b.DeclareResource(signature.ResourceDecl{Name: "buf", Type: driver.RBuffer, ByteSize: 1024})

	var err error
	n1, err = b.AddNode("copy", []ParamBinding{{Param: "dst", Resource: res}})
	if err != nil {
		t.Fatalf("AddNode n1: %v", err)
	}
	n2, err = b.AddNode("copy", []ParamBinding{{Param: "src", Resource: res}})
	if err != nil {
		t.Fatalf("AddNode n2: %v", err)
	}
	b.AddDependency(n1, n2)
	b.ExitFunction()
	return res, n1, n2
}

func TestBuilderStableAcrossFrames(t *testing.T) {
	g := graph.New()
	gen := program.NewGenerator()
	b := New(g, gen)
	declKind(t, b, "copy")

	res1, n1a, n2a := buildFrame(t, b)
	cmd1a, cmd2a := g.Node(n1a).CmdId, g.Node(n2a).CmdId

	b.Reset()
	res2, n1b, n2b := buildFrame(t, b)
	cmd1b, cmd2b := g.Node(n1b).CmdId, g.Node(n2b).CmdId

	if res1 != res2 {
		t.Fatalf("resource id changed across frames: %d != %d", res1, res2)
	}
	if cmd1a != cmd1b || cmd2a != cmd2b {
		t.Fatalf("node stable ids changed across frames: (%d,%d) != (%d,%d)", cmd1a, cmd2a, cmd1b, cmd2b)
	}

	out := g.OutEdges(n1b)
	if len(out) != 1 || out[0] != n2b {
		t.Fatalf("dependency not preserved: %v", out)
	}
}

func TestBuilderRejectsUnknownNodeKind(t *testing.T) {
	b := New(graph.New(), program.NewGenerator())
	if err := b.EnterFunction([program.NumKinds]int{0, 0}); err != nil {
		t.Fatalf("EnterFunction: %v", err)
	}
	if _, err := b.AddNode("missing", nil); err == nil {
		t.Fatal("expected error for undeclared node kind")
	}
}

func TestBuilderSubgraphScope(t *testing.T) {
	b := New(graph.New(), program.NewGenerator())
	declKind(t, b, "copy")
	if err := b.EnterFunction([program.NumKinds]int{0, 1}); err != nil {
		t.Fatalf("EnterFunction: %v", err)
	}
	id, begin := b.BeginSubgraph(graph.Atomic)
	n, err := b.AddNode("copy", nil)
	if err != nil {
		t.Fatalf("AddNode: %v", err)
	}
	end := b.EndSubgraph(id)

	if b.Graph.Node(n).Subgraph != id {
		t.Fatalf("node not scoped to subgraph: %d != %d", b.Graph.Node(n).Subgraph, id)
	}
	sg := b.Graph.Subgraph(id)
	if sg.BeginNode != begin || sg.EndNode != end {
		t.Fatalf("subgraph begin/end mismatch: got (%d,%d) want (%d,%d)", sg.BeginNode, sg.EndNode, begin, end)
	}
}
