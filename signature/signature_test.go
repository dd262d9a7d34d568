// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package signature

import (
	"testing"

	"github.com/gviegas/rendergraph/driver"
)

func TestNewEmptyNameFails(t *testing.T) {
	if _, err := New("", Graphics, nil); err == nil {
		t.Fatalf("New with empty name: have nil error, want error")
	}
}

func TestNewAppendResolvesRunningCount(t *testing.T) {
	decl, err := New("geometry", Graphics, []ParamDecl{
		{Name: "rt0", Semantic: SemRenderTarget, SemanticIndex: Append},
		{Name: "rt1", Semantic: SemRenderTarget, SemanticIndex: Append},
		{Name: "user", Semantic: SemUser},
	})
	if err != nil {
		t.Fatalf("New: unexpected error: %v", err)
	}
	i0 := decl.ParamIndex("rt0")
	i1 := decl.ParamIndex("rt1")
	if i0 < 0 || i1 < 0 {
		t.Fatalf("ParamIndex: rt0=%d rt1=%d, want both >= 0", i0, i1)
	}
	if decl.Params[i0].SemanticIndex != 0 {
		t.Fatalf("rt0.SemanticIndex:\nhave %d\nwant 0", decl.Params[i0].SemanticIndex)
	}
	if decl.Params[i1].SemanticIndex != 1 {
		t.Fatalf("rt1.SemanticIndex:\nhave %d\nwant 1", decl.Params[i1].SemanticIndex)
	}
}

func TestNewExplicitIndexSkipsCount(t *testing.T) {
	decl, err := New("pass", Graphics, []ParamDecl{
		{Name: "rt_second", Semantic: SemRenderTarget, SemanticIndex: 1},
		{Name: "rt_first", Semantic: SemRenderTarget, SemanticIndex: 0},
	})
	if err != nil {
		t.Fatalf("New: unexpected error: %v", err)
	}
	if got := decl.Params[decl.ParamIndex("rt_first")].SemanticIndex; got != 0 {
		t.Fatalf("rt_first.SemanticIndex:\nhave %d\nwant 0", got)
	}
	if got := decl.Params[decl.ParamIndex("rt_second")].SemanticIndex; got != 1 {
		t.Fatalf("rt_second.SemanticIndex:\nhave %d\nwant 1", got)
	}
}

func TestInferBaseAccess(t *testing.T) {
	decl, err := New("geometry", 0, []ParamDecl{
		{Name: "color", Semantic: SemRenderTarget, SemanticIndex: Append},
		{Name: "depth", Semantic: SemDepthStencilTarget, SemanticIndex: Append},
		{Name: "idx", Semantic: SemIndexBuffer, SemanticIndex: Append},
	})
	if err != nil {
		t.Fatalf("New: unexpected error: %v", err)
	}
	if a := decl.Params[decl.ParamIndex("color")].Access.Access; a&driver.AColorWrite == 0 {
		t.Fatalf("color access:\nhave %v\nwant AColorWrite set", a)
	}
	if a := decl.Params[decl.ParamIndex("depth")].Access.Access; a&driver.ADSWrite == 0 {
		t.Fatalf("depth access:\nhave %v\nwant ADSWrite set", a)
	}
	if a := decl.Params[decl.ParamIndex("idx")].Access.Access; a&driver.AIndexBufRead == 0 {
		t.Fatalf("idx access:\nhave %v\nwant AIndexBufRead set", a)
	}
}

func TestExplicitReadOnlyMasksDSWrite(t *testing.T) {
	decl, err := New("shadow_sample", 0, []ParamDecl{
		{
			Name:     "depth",
			Semantic: SemDepthStencilTarget, SemanticIndex: Append,
			Explicit: &AccessAttr{Access: driver.ADSRead},
		},
	})
	if err != nil {
		t.Fatalf("New: unexpected error: %v", err)
	}
	access := decl.Params[decl.ParamIndex("depth")].Access.Access
	if access&driver.ADSWrite != 0 {
		t.Fatalf("depth access:\nhave %v\nwant ADSWrite masked off", access)
	}
	if access&driver.ADSRead == 0 {
		t.Fatalf("depth access:\nhave %v\nwant ADSRead set", access)
	}
}

func TestQueueInference(t *testing.T) {
	decl, err := New("lighting", 0, []ParamDecl{
		{Name: "gbuffer", Semantic: SemUser, Explicit: &AccessAttr{Access: driver.AShaderRead}},
	})
	if err != nil {
		t.Fatalf("New: unexpected error: %v", err)
	}
	if decl.Queue&Compute == 0 {
		t.Fatalf("Queue:\nhave %v\nwant Compute bit set", decl.Queue)
	}

	declGfx, err := New("geometry", 0, []ParamDecl{
		{Name: "color", Semantic: SemRenderTarget, SemanticIndex: Append},
	})
	if err != nil {
		t.Fatalf("New: unexpected error: %v", err)
	}
	if declGfx.Queue&Graphics == 0 {
		t.Fatalf("Queue:\nhave %v\nwant Graphics bit set", declGfx.Queue)
	}
}

func TestSynthRenderPass(t *testing.T) {
	decl, err := New("geometry", Graphics, []ParamDecl{
		{Name: "rt0", Semantic: SemRenderTarget, SemanticIndex: Append},
		{Name: "rt1", Semantic: SemRenderTarget, SemanticIndex: Append},
		{Name: "depth", Semantic: SemDepthStencilTarget, SemanticIndex: Append},
		{Name: "clear0", Semantic: SemClearValue, SemanticIndex: Append},
		{Name: "vp", Semantic: SemViewport, SemanticIndex: Append},
		{Name: "sc", Semantic: SemScissor, SemanticIndex: Append},
	})
	if err != nil {
		t.Fatalf("New: unexpected error: %v", err)
	}
	if !decl.HasPass {
		t.Fatalf("HasPass: have false want true")
	}
	if decl.RPInfo.RTMask != 0b11 {
		t.Fatalf("RTMask:\nhave %08b\nwant %08b", decl.RPInfo.RTMask, 0b11)
	}
	if !decl.RPInfo.HasDS {
		t.Fatalf("HasDS: have false want true")
	}
	if decl.RPInfo.DSParam < 0 {
		t.Fatalf("DSParam: have %d, want >= 0", decl.RPInfo.DSParam)
	}
	if len(decl.RPInfo.ViewportParams) != 1 || len(decl.RPInfo.ScissorParams) != 1 {
		t.Fatalf("Viewport/Scissor params:\nhave %d/%d\nwant 1/1",
			len(decl.RPInfo.ViewportParams), len(decl.RPInfo.ScissorParams))
	}
}

func TestNoRenderTargetsNoPass(t *testing.T) {
	decl, err := New("compute_only", Compute, []ParamDecl{
		{Name: "buf", Semantic: SemUser, Explicit: &AccessAttr{Access: driver.AShaderRead}},
	})
	if err != nil {
		t.Fatalf("New: unexpected error: %v", err)
	}
	if decl.HasPass {
		t.Fatalf("HasPass: have true want false")
	}
}

func TestIsFixedFunction(t *testing.T) {
	for _, sem := range []Semantic{
		SemRenderTarget, SemDepthStencilTarget, SemResolveTarget,
		SemShadingRateImage, SemVertexBuffer, SemIndexBuffer,
		SemIndirectBuffer, SemStreamOutBuffer,
	} {
		if !sem.IsFixedFunction() {
			t.Fatalf("IsFixedFunction(%d): have false want true", sem)
		}
	}
	for _, sem := range []Semantic{SemUser, SemViewport, SemScissor, SemClearValue} {
		if sem.IsFixedFunction() {
			t.Fatalf("IsFixedFunction(%d): have true want false", sem)
		}
	}
}

func TestAccessAttrIsWrite(t *testing.T) {
	if (AccessAttr{Access: driver.AColorRead}).IsWrite() {
		t.Fatalf("IsWrite(AColorRead): have true want false")
	}
	if !(AccessAttr{Access: driver.AColorWrite}).IsWrite() {
		t.Fatalf("IsWrite(AColorWrite): have false want true")
	}
}
