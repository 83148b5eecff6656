// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package scene

import (
	_ "embed"
	"errors"
	"fmt"

	"github.com/chewxy/math32"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/prims"
	"golang.org/x/image/math/f32"
)

// VertexShader is the default WGSL vertex stage. It passes positions
// through unchanged and forwards the per-vertex color.
//
//go:embed shaders/vertex.wgsl
var VertexShader string

// FragmentShader is the default WGSL fragment stage. It writes the
// interpolated vertex color.
//
//go:embed shaders/fragment.wgsl
var FragmentShader string

// Scene is an ordered list of shapes over a background color.
type Scene struct {
	Name       string
	Background gputypes.Color

	// Shader sources. Empty means VertexShader / FragmentShader.
	VertexShader   string
	FragmentShader string

	Shapes []Shape
}

// Shape is one draw: a vertex sequence with per-vertex colors,
// interpreted under Mode.
type Shape struct {
	Name      string
	Mode      prims.PrimitiveMode
	Positions []f32.Vec2
	Colors    []f32.Vec4
	PointSize float32

	// LineWidth is the requested width for line modes. Zero means 1.
	LineWidth float32
}

// ErrInvalidScene is matched by every Validate failure.
var ErrInvalidScene = errors.New("scene: invalid scene")

// Face returns the built-in demo: a purple triangle nose, two blue eye
// strokes, a red mouth, and light-blue points on the triangle's corners.
func Face() *Scene {
	purple := f32.Vec4{0.5, 0, 0.5, 1}
	blue := f32.Vec4{0, 0, 1, 1}
	red := f32.Vec4{1, 0, 0, 1}
	lightBlue := f32.Vec4{0.6, 0.8, 1, 1}

	return &Scene{
		Name:       "face",
		Background: gputypes.Color{R: 0.78, G: 0.64, B: 0.78, A: 1},
		Shapes: []Shape{
			{
				Name:      "triangle",
				Mode:      prims.Triangles,
				Positions: []f32.Vec2{{0, 0.3}, {-0.3, -0.3}, {0.3, -0.3}},
				Colors:    repeat(purple, 3),
				PointSize: 10,
			},
			{
				Name: "eyes",
				Mode: prims.Lines,
				Positions: []f32.Vec2{
					{-0.4, 0.3}, {-0.4, 0.8},
					{0.4, 0.3}, {0.4, 0.8},
				},
				Colors:    repeat(blue, 4),
				PointSize: 10,
				LineWidth: 0.5,
			},
			{
				Name: "mouth",
				Mode: prims.Lines,
				Positions: []f32.Vec2{
					{-0.2, -0.7}, {0.2, -0.7},
					{-0.2, -0.7}, {-0.4, -0.6},
					{0.2, -0.7}, {0.4, -0.6},
				},
				Colors:    repeat(red, 6),
				PointSize: 10,
				LineWidth: 1,
			},
			{
				Name:      "top_point",
				Mode:      prims.Points,
				Positions: []f32.Vec2{{0, 0.3}},
				Colors:    repeat(lightBlue, 1),
				PointSize: 15,
			},
			{
				Name:      "bottom_points",
				Mode:      prims.Points,
				Positions: []f32.Vec2{{-0.3, -0.3}, {0.3, -0.3}},
				Colors:    repeat(lightBlue, 2),
				PointSize: 10,
			},
		},
	}
}

func repeat(c f32.Vec4, n int) []f32.Vec4 {
	out := make([]f32.Vec4, n)
	for i := range out {
		out[i] = c
	}
	return out
}

// Validate checks that every shape can be drawn: a known mode, a name,
// matching position and color counts, whole primitives for the mode, and
// finite coordinates and sizes.
func (s *Scene) Validate() error {
	if s == nil {
		return fmt.Errorf("%w: nil scene", ErrInvalidScene)
	}
	seen := make(map[string]bool, len(s.Shapes))
	for i := range s.Shapes {
		sh := &s.Shapes[i]
		if err := sh.validate(); err != nil {
			if sh.Name == "" {
				return fmt.Errorf("%w: shape %d: %v", ErrInvalidScene, i, err)
			}
			return fmt.Errorf("%w: shape %q: %v", ErrInvalidScene, sh.Name, err)
		}
		if seen[sh.Name] {
			return fmt.Errorf("%w: duplicate shape name %q", ErrInvalidScene, sh.Name)
		}
		seen[sh.Name] = true
	}
	return nil
}

func (sh *Shape) validate() error {
	switch {
	case sh.Name == "":
		return errors.New("missing name")
	case !sh.Mode.Valid():
		return fmt.Errorf("invalid mode %d", sh.Mode)
	case len(sh.Positions) == 0:
		return errors.New("no positions")
	case len(sh.Colors) != len(sh.Positions):
		return fmt.Errorf("%d colors for %d positions", len(sh.Colors), len(sh.Positions))
	case !finite(sh.PointSize) || sh.PointSize <= 0:
		return fmt.Errorf("point size %v must be positive", sh.PointSize)
	case !finite(sh.LineWidth) || sh.LineWidth < 0:
		return fmt.Errorf("line width %v must not be negative", sh.LineWidth)
	}

	n := len(sh.Positions)
	switch sh.Mode {
	case prims.Lines:
		if n%2 != 0 {
			return fmt.Errorf("lines need an even vertex count, have %d", n)
		}
	case prims.LineLoop, prims.LineStrip:
		if n < 2 {
			return fmt.Errorf("%s needs at least 2 vertices, have %d", sh.Mode, n)
		}
	case prims.Triangles:
		if n%3 != 0 {
			return fmt.Errorf("triangles need a vertex count divisible by 3, have %d", n)
		}
	}

	for i, p := range sh.Positions {
		if !finite(p[0]) || !finite(p[1]) {
			return fmt.Errorf("position %d is not finite", i)
		}
	}
	for i, c := range sh.Colors {
		for _, v := range c {
			if !finite(v) {
				return fmt.Errorf("color %d is not finite", i)
			}
		}
	}
	return nil
}

func finite(v float32) bool {
	return !math32.IsNaN(v) && !math32.IsInf(v, 0)
}

// positionData flattens positions into 2 floats per vertex.
func (sh *Shape) positionData() []float32 {
	out := make([]float32, 0, 2*len(sh.Positions))
	for _, p := range sh.Positions {
		out = append(out, p[0], p[1])
	}
	return out
}

// colorData flattens colors into 4 floats (RGBA) per vertex.
func (sh *Shape) colorData() []float32 {
	out := make([]float32, 0, 4*len(sh.Colors))
	for _, c := range sh.Colors {
		out = append(out, c[:]...)
	}
	return out
}

func (s *Scene) shaders() (vs, fs string) {
	vs, fs = s.VertexShader, s.FragmentShader
	if vs == "" {
		vs = VertexShader
	}
	if fs == "" {
		fs = FragmentShader
	}
	return vs, fs
}
