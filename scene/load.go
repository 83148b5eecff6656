// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package scene

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/prims"
	"github.com/pelletier/go-toml/v2"
	"golang.org/x/image/math/f32"
)

// file is the TOML form of a Scene. Vectors decode into slices so their
// lengths can be checked; fixed-size arrays would be silently padded or cut.
type file struct {
	Name           string       `toml:"name"`
	Background     []float64    `toml:"background"`
	VertexShader   string       `toml:"vertex_shader"`
	FragmentShader string       `toml:"fragment_shader"`
	Shapes         []shapeEntry `toml:"shape"`
}

type shapeEntry struct {
	Name      string               `toml:"name"`
	Mode      *prims.PrimitiveMode `toml:"mode"`
	Positions [][]float32          `toml:"positions"`
	Color     []float32            `toml:"color"`
	Colors    [][]float32          `toml:"colors"`
	PointSize *float32             `toml:"point_size"`
	LineWidth float32              `toml:"line_width"`
}

// defaultPointSize applies when a shape omits point_size.
const defaultPointSize = 1

// Load decodes a TOML scene from r and validates it. Unknown keys and
// vectors of the wrong length are rejected.
func Load(r io.Reader) (*Scene, error) {
	var f file
	dec := toml.NewDecoder(r).DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		return nil, decodeError(err)
	}

	s := &Scene{
		Name:           f.Name,
		Background:     gputypes.Color{A: 1},
		VertexShader:   f.VertexShader,
		FragmentShader: f.FragmentShader,
		Shapes:         make([]Shape, 0, len(f.Shapes)),
	}
	if f.Background != nil {
		bg := f.Background
		if len(bg) != 4 {
			return nil, lengthError("background", len(bg), 4)
		}
		s.Background = gputypes.Color{R: bg[0], G: bg[1], B: bg[2], A: bg[3]}
	}

	for i, e := range f.Shapes {
		sh, err := e.shape(i)
		if err != nil {
			return nil, err
		}
		s.Shapes = append(s.Shapes, sh)
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (e *shapeEntry) shape(i int) (Shape, error) {
	key := fmt.Sprintf("shape[%d]", i)
	if e.Mode == nil {
		return Shape{}, fmt.Errorf("scene: %s: missing mode", key)
	}
	sh := Shape{
		Name:      e.Name,
		Mode:      *e.Mode,
		Positions: make([]f32.Vec2, len(e.Positions)),
		PointSize: defaultPointSize,
		LineWidth: e.LineWidth,
	}
	if e.PointSize != nil {
		sh.PointSize = *e.PointSize
	}

	for j, p := range e.Positions {
		if len(p) != 2 {
			return Shape{}, lengthError(fmt.Sprintf("%s.positions[%d]", key, j), len(p), 2)
		}
		sh.Positions[j] = f32.Vec2{p[0], p[1]}
	}

	switch {
	case e.Color != nil && e.Colors != nil:
		return Shape{}, fmt.Errorf("scene: %s: set color or colors, not both", key)
	case e.Color != nil:
		c, err := vec4(key+".color", e.Color)
		if err != nil {
			return Shape{}, err
		}
		sh.Colors = repeat(c, len(e.Positions))
	case e.Colors != nil:
		sh.Colors = make([]f32.Vec4, len(e.Colors))
		for j, v := range e.Colors {
			c, err := vec4(fmt.Sprintf("%s.colors[%d]", key, j), v)
			if err != nil {
				return Shape{}, err
			}
			sh.Colors[j] = c
		}
	}
	return sh, nil
}

func vec4(key string, v []float32) (f32.Vec4, error) {
	if len(v) != 4 {
		return f32.Vec4{}, lengthError(key, len(v), 4)
	}
	return f32.Vec4{v[0], v[1], v[2], v[3]}, nil
}

func lengthError(key string, got, want int) error {
	return fmt.Errorf("scene: %s: %d components, want %d", key, got, want)
}

// LoadFile reads a TOML scene from path.
func LoadFile(path string) (*Scene, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("scene: %w", err)
	}
	defer f.Close()

	s, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// decodeError adds the source position to TOML decoding errors.
func decodeError(err error) error {
	var derr *toml.DecodeError
	if errors.As(err, &derr) {
		row, col := derr.Position()
		return fmt.Errorf("scene: line %d, column %d: %w", row, col, err)
	}
	var serr *toml.StrictMissingError
	if errors.As(err, &serr) {
		keys := make([]string, 0, len(serr.Errors))
		for i := range serr.Errors {
			keys = append(keys, strings.Join(serr.Errors[i].Key(), "."))
		}
		return fmt.Errorf("scene: unknown keys %s: %w", strings.Join(keys, ", "), err)
	}
	return fmt.Errorf("scene: %w", err)
}
