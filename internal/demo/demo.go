// Copyright 2023 Gustavo C. Viegas. All rights reserved.

// Package demo builds a small, representative render graph
// used by cmd/rgc to exercise every node kind and resource
// flag the façade supports, without depending on any real
// graphics backend.
package demo

import (
	"github.com/gviegas/rendergraph/builder"
	"github.com/gviegas/rendergraph/driver"
	"github.com/gviegas/rendergraph/signature"
)

// Resource names Build declares, exported for a caller that
// wants to register per-node-kind callbacks against known
// bindings.
const (
	ColorTarget = "color_target"
	DepthTarget = "depth_target"
	GBuffer     = "gbuffer"
	History     = "history"
	Readback    = "readback"
	Swapchain   = "swapchain"
)

// Node kinds Build declares. A caller registers a
// rendergraph.NodeCallback against each of these names.
const (
	KindGeometry = "geometry_pass"
	KindLighting = "lighting_pass"
	KindTAA      = "taa_resolve"
	KindReadback = "copy_to_readback"
	KindPresent  = "blit_to_swapchain"
)

// Build declares resources and node kinds, then adds one
// instance of each: a graphics geometry pass writing a
// G-buffer and a depth target, a compute lighting pass reading
// the G-buffer and writing the color target, a temporal
// resolve node that reads the color target and writes the
// persistent history buffer (it binds no read of the
// history), a copy node reading the
// color target back to a CPU-visible buffer, and a final blit
// into an external swapchain image. Declaring node kinds is
// idempotent, so Build can run as the entry point of every
// frame unchanged.
func Build(b *builder.Builder) error {
	declareKinds(b)
	// One root block: 5 node calls, 6 resource declarations
	// (indexed by program.KindNode, program.KindResource).
	if err := b.EnterFunction([2]int{5, 6}); err != nil {
		return err
	}
	defer b.ExitFunction()

	gbuffer := b.DeclareResource(signature.ResourceDecl{
		Name: GBuffer, Type: driver.RImage, Format: driver.RGBA8un,
		Width: 1920, Height: 1080, Depth: 1, Layers: 1, Levels: 1, Samples: 1,
		Usage: driver.UShaderRead,
	})
	depth := b.DeclareResource(signature.ResourceDecl{
		Name: DepthTarget, Type: driver.RImage, Format: driver.RGBA8un,
		Width: 1920, Height: 1080, Depth: 1, Layers: 1, Levels: 1, Samples: 1,
	})
	color := b.DeclareResource(signature.ResourceDecl{
		Name: ColorTarget, Type: driver.RImage, Format: driver.RGBA8un,
		Width: 1920, Height: 1080, Depth: 1, Layers: 1, Levels: 1, Samples: 1,
		Usage: driver.UShaderRead,
	})
	history := b.DeclareResource(signature.ResourceDecl{
		Name: History, Type: driver.RImage, Format: driver.RGBA8un,
		Width: 1920, Height: 1080, Depth: 1, Layers: 1, Levels: 1, Samples: 1,
		Flags: signature.Persistent, TemporalLayers: 2, Usage: driver.UShaderRead,
	})
	readback := b.DeclareResource(signature.ResourceDecl{
		Name: Readback, Type: driver.RBuffer, ByteSize: 1920 * 1080 * 4,
		Flags: signature.CPUVisible,
	})
	swapchain := b.DeclareResource(signature.ResourceDecl{
		Name: Swapchain, Type: driver.RImage, Format: driver.RGBA8un,
		Width: 1920, Height: 1080, Depth: 1, Layers: 1, Levels: 1, Samples: 1,
		Flags: signature.External,
	})

	if _, err := b.AddNode(KindGeometry, []builder.ParamBinding{
		{Param: "target", Resource: gbuffer},
		{Param: "depth", Resource: depth},
	}); err != nil {
		return err
	}
	if _, err := b.AddNode(KindLighting, []builder.ParamBinding{
		{Param: "gbuffer", Resource: gbuffer},
		{Param: "out", Resource: color},
	}); err != nil {
		return err
	}
	if _, err := b.AddNode(KindTAA, []builder.ParamBinding{
		{Param: "current", Resource: color},
		{Param: "history", Resource: history},
	}); err != nil {
		return err
	}
	if _, err := b.AddNode(KindReadback, []builder.ParamBinding{
		{Param: "src", Resource: color},
		{Param: "dst", Resource: readback},
	}); err != nil {
		return err
	}
	if _, err := b.AddNode(KindPresent, []builder.ParamBinding{
		{Param: "src", Resource: color},
		{Param: "dst", Resource: swapchain},
	}); err != nil {
		return err
	}
	return nil
}

// declareKinds registers the node kinds Build instantiates.
// Declaring a *signature.NodeDeclInfo each call is cheap and
// deterministic, so it is simply redone every frame rather than
// cached by the caller.
func declareKinds(b *builder.Builder) {
	geometry, _ := signature.New(KindGeometry, signature.Graphics, []signature.ParamDecl{
		{Name: "target", Flags: signature.Out | signature.Resource, Semantic: signature.SemRenderTarget, SemanticIndex: signature.Append},
		{Name: "depth", Flags: signature.Out | signature.Resource, Semantic: signature.SemDepthStencilTarget, SemanticIndex: signature.Append},
	})
	b.DeclareNodeKind(geometry)

	lighting, _ := signature.New(KindLighting, signature.Compute, []signature.ParamDecl{
		{Name: "gbuffer", Flags: signature.Resource, Explicit: &signature.AccessAttr{Access: driver.AShaderRead, Stages: driver.SCompute}},
		{Name: "out", Flags: signature.Out | signature.Resource, Explicit: &signature.AccessAttr{Access: driver.AShaderWrite, Stages: driver.SCompute}},
	})
	b.DeclareNodeKind(lighting)

	taa, _ := signature.New(KindTAA, signature.Compute, []signature.ParamDecl{
		{Name: "current", Flags: signature.Resource, Explicit: &signature.AccessAttr{Access: driver.AShaderRead, Stages: driver.SCompute}},
		{Name: "history", Flags: signature.Out | signature.Resource, Explicit: &signature.AccessAttr{Access: driver.AShaderWrite, Stages: driver.SCompute}},
	})
	b.DeclareNodeKind(taa)

	readback, _ := signature.New(KindReadback, signature.Copy, []signature.ParamDecl{
		{Name: "src", Flags: signature.Resource, Explicit: &signature.AccessAttr{Access: driver.ACopyRead}},
		{Name: "dst", Flags: signature.Out | signature.Resource, Explicit: &signature.AccessAttr{Access: driver.ACopyWrite}},
	})
	b.DeclareNodeKind(readback)

	present, _ := signature.New(KindPresent, signature.Copy, []signature.ParamDecl{
		{Name: "src", Flags: signature.Resource, Explicit: &signature.AccessAttr{Access: driver.ACopyRead}},
		{Name: "dst", Flags: signature.Out | signature.Resource, Explicit: &signature.AccessAttr{Access: driver.ACopyWrite, DiscardAfter: true}},
	})
	b.DeclareNodeKind(present)
}
