// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package scene

import (
	"errors"
	"fmt"
	"image"
	"log/slog"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/prims"
)

// Target is the rendering surface a scene is drawn on.
// *prims.Context implements it.
type Target interface {
	Clear(color gputypes.Color) error
	BuildProgram(vertexSource, fragmentSource string) (*prims.Program, error)
	Upload(label string, values []float32) (*prims.GeometryBuffer, error)
	Draw(req prims.DrawRequest) (prims.DrawResult, error)
}

var _ Target = (*prims.Context)(nil)

// ShapeReport is the outcome of drawing one shape.
type ShapeReport struct {
	Name   string
	Result prims.DrawResult
}

// Report describes a completed render.
type Report struct {
	Scene  string
	Shapes []ShapeReport

	// Image is the rendered surface. Only Run fills it in.
	Image *image.RGBA
}

// Clamped returns the names of shapes the rasterizer could not draw as
// requested, because of either line width or point size.
func (r *Report) Clamped() []string {
	return r.shapes(func(res prims.DrawResult) bool {
		return res.LineWidthClamped() || res.PointSizeClamped()
	})
}

// LineClamped returns the shapes whose line width was clamped.
func (r *Report) LineClamped() []string {
	return r.shapes(prims.DrawResult.LineWidthClamped)
}

// PointClamped returns the shapes whose point size was clamped.
func (r *Report) PointClamped() []string {
	return r.shapes(prims.DrawResult.PointSizeClamped)
}

func (r *Report) shapes(match func(prims.DrawResult) bool) []string {
	var names []string
	for _, s := range r.Shapes {
		if match(s.Result) {
			names = append(names, s.Name)
		}
	}
	return names
}

// Render draws s onto t: clear to the background, build the program once,
// then upload positions and colors and draw, shape by shape, in order.
// The first failure stops the sequence and is returned. Every program and
// buffer Render creates is released before it returns.
func Render(t Target, s *Scene) (*Report, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if err := t.Clear(s.Background); err != nil {
		return nil, fmt.Errorf("scene: clear: %w", err)
	}

	vs, fs := s.shaders()
	prog, err := t.BuildProgram(vs, fs)
	if err != nil {
		return nil, fmt.Errorf("scene: build program: %w", err)
	}
	defer prog.Destroy()

	var buffers []*prims.GeometryBuffer
	defer func() {
		for i := len(buffers) - 1; i >= 0; i-- {
			buffers[i].Destroy()
		}
	}()
	upload := func(label string, values []float32) (*prims.GeometryBuffer, error) {
		b, err := t.Upload(label, values)
		if err != nil {
			return nil, err
		}
		buffers = append(buffers, b)
		return b, nil
	}

	rep := &Report{Scene: s.Name, Shapes: make([]ShapeReport, 0, len(s.Shapes))}
	for i := range s.Shapes {
		sh := &s.Shapes[i]

		pos, err := upload(sh.Name+".positions", sh.positionData())
		if err != nil {
			return rep, fmt.Errorf("scene: shape %q: %w", sh.Name, err)
		}
		col, err := upload(sh.Name+".colors", sh.colorData())
		if err != nil {
			return rep, fmt.Errorf("scene: shape %q: %w", sh.Name, err)
		}

		res, err := t.Draw(prims.DrawRequest{
			Program:   prog,
			Positions: pos,
			Colors:    col,
			Count:     len(sh.Positions),
			Mode:      sh.Mode,
			PointSize: sh.PointSize,
			LineWidth: sh.LineWidth,
		})
		if err != nil {
			return rep, fmt.Errorf("scene: shape %q: %w", sh.Name, err)
		}
		rep.Shapes = append(rep.Shapes, ShapeReport{Name: sh.Name, Result: res})
	}
	return rep, nil
}

// Run renders s once on the surface registered under surfaceID and
// returns the report with the rendered image. The context is acquired
// once and released before Run returns. A failure at any step stops the
// run, is logged once at error level, and is returned.
func Run(surfaceID string, s *Scene, opts ...prims.Option) (rep *Report, err error) {
	defer func() {
		if err != nil {
			logFailure(surfaceID, err)
		}
	}()

	ctx, err := prims.Acquire(surfaceID, opts...)
	if err != nil {
		return nil, err
	}
	defer ctx.Close()

	rep, err = Render(ctx, s)
	if err != nil {
		return rep, err
	}
	if rep.Image, err = ctx.ReadPixels(); err != nil {
		return rep, fmt.Errorf("scene: read back: %w", err)
	}

	if lines := rep.LineClamped(); len(lines) > 0 {
		prims.Logger().Info("scene: line widths clamped", "surface", surfaceID, "shapes", lines)
	}
	if points := rep.PointClamped(); len(points) > 0 {
		prims.Logger().Info("scene: point sizes clamped", "surface", surfaceID, "shapes", points)
	}
	prims.Logger().Info("scene: rendered",
		"surface", surfaceID,
		"scene", rep.Scene,
		"draws", len(rep.Shapes))
	return rep, nil
}

func logFailure(surfaceID string, err error) {
	attrs := []any{"surface", surfaceID, "err", err}

	var compileErr *prims.ShaderCompileError
	var linkErr *prims.ProgramLinkError
	switch {
	case errors.Is(err, prims.ErrContextUnavailable):
		attrs = append(attrs, "stage", "acquire")
	case errors.As(err, &compileErr):
		attrs = append(attrs, "stage", "compile", slog.Group("shader",
			"stage", compileErr.Stage.String(),
			"log", compileErr.Log))
	case errors.As(err, &linkErr):
		attrs = append(attrs, "stage", "link", "log", linkErr.Log)
	}
	prims.Logger().Error("scene: run failed", attrs...)
}
