// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package scene assembles a fixed set of 2D primitives and renders them once.
//
// A Scene is a background color and an ordered list of shapes. Each shape
// carries its own vertex positions, per-vertex colors, primitive mode,
// point size and line width. Shapes are drawn in order with no depth test,
// so later shapes paint over earlier ones.
//
// # Rendering
//
// Render drives any Target (usually a *prims.Context): it clears the
// surface, builds the shader program once, then uploads and draws each
// shape. Run wraps Render with context acquisition and release:
//
//	surface.Register("canvas", surface.Descriptor{Width: 512, Height: 512})
//
//	rep, err := scene.Run("canvas", scene.Face())
//	if err != nil {
//	    return err
//	}
//	png.Encode(w, rep.Image)
//
// # Scene files
//
// Load reads a scene from TOML:
//
//	name = "face"
//	background = [0.78, 0.64, 0.78, 1.0]
//
//	[[shape]]
//	name = "triangle"
//	mode = "triangles"
//	positions = [[0.0, 0.3], [-0.3, -0.3], [0.3, -0.3]]
//	color = [0.5, 0.0, 0.5, 1.0]
//	point_size = 10.0
//
// A shape gives either one color for every vertex or a colors list with
// one entry per position.
package scene
