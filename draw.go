package prims

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/chewxy/math32"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// DrawRequest describes one draw call. It is built per shape and consumed
// by Draw.
//
// Count must not exceed the vertex count of the smaller bound buffer
// (Positions holds 2 floats per vertex, Colors 4). This is not checked.
type DrawRequest struct {
	Program   *Program
	Positions *GeometryBuffer
	Colors    *GeometryBuffer
	Count     int
	Mode      PrimitiveMode
	PointSize float32

	// LineWidth applies to Lines, LineLoop and LineStrip only.
	// Zero means 1.
	LineWidth float32
}

// DrawResult reports what a draw actually did.
type DrawResult struct {
	Mode  PrimitiveMode
	Count int

	// PointSize is the value written to the point size uniform.
	PointSize float32
	// EffectivePointSize is the size the rasterizer draws points at.
	// It only affects the Points mode.
	EffectivePointSize float32

	// RequestedLineWidth and EffectiveLineWidth are zero for non-line modes.
	RequestedLineWidth float32
	EffectiveLineWidth float32
}

// PointSizeClamped reports whether points were drawn at a different size
// than requested. It is always false for modes other than Points.
func (r DrawResult) PointSizeClamped() bool {
	return r.Mode == Points && r.PointSize != r.EffectivePointSize
}

// LineWidthClamped reports whether the rasterizer could not honor the
// requested line width.
func (r DrawResult) LineWidthClamped() bool {
	return r.Mode.IsLine() && r.RequestedLineWidth != r.EffectiveLineWidth
}

// Draw binds the position and color buffers, writes the per-draw uniforms
// and issues exactly one draw of req.Count vertices starting at vertex 0.
// The pass is submitted and completed before Draw returns, so draws land on
// the surface in call order.
func (c *Context) Draw(req DrawRequest) (DrawResult, error) {
	if err := c.checkOpen(); err != nil {
		return DrawResult{}, err
	}
	p := req.Program
	if p == nil || req.Positions == nil || req.Colors == nil {
		return DrawResult{}, errors.New("prims: draw: program and both buffers are required")
	}
	if p.destroyed || req.Positions.buf == nil || req.Colors.buf == nil {
		return DrawResult{}, fmt.Errorf("prims: draw: %w", ErrClosed)
	}
	if !req.Mode.Valid() {
		return DrawResult{}, fmt.Errorf("prims: draw: invalid primitive mode %d", req.Mode)
	}
	if req.Count < 0 {
		return DrawResult{}, fmt.Errorf("prims: draw: negative vertex count %d", req.Count)
	}

	res := DrawResult{
		Mode:      req.Mode,
		Count:     req.Count,
		PointSize: req.PointSize,
	}
	res.EffectivePointSize = c.pointSize(req.PointSize, req.Mode == Points)
	if req.Mode.IsLine() {
		res.RequestedLineWidth, res.EffectiveLineWidth = c.lineWidth(req.LineWidth)
	}

	if err := p.writeUniforms(c.queue, req.PointSize, res.EffectiveLineWidth); err != nil {
		return res, fmt.Errorf("prims: draw: %w", err)
	}
	if req.Count == 0 {
		return res, nil
	}

	var index hal.Buffer
	if req.Mode == LineLoop {
		var err error
		index, err = c.loopIndices(req.Count)
		if err != nil {
			return res, fmt.Errorf("prims: draw: %w", err)
		}
		defer c.device.DestroyBuffer(index)
	}

	count := uint32(req.Count)
	err := c.submitPass("draw_"+req.Mode.String(), gputypes.LoadOpLoad, gputypes.Color{}, func(pass hal.RenderPassEncoder) {
		pass.SetPipeline(p.pipelines[req.Mode])
		if p.bindGroup != nil {
			pass.SetBindGroup(0, p.bindGroup, nil)
		}
		pass.SetVertexBuffer(positionSlot, req.Positions.buf, 0)
		pass.SetVertexBuffer(colorSlot, req.Colors.buf, 0)
		if index != nil {
			pass.SetIndexBuffer(index, gputypes.IndexFormatUint32, 0)
			pass.DrawIndexed(count+1, 1, 0, 0, 0)
			return
		}
		pass.Draw(count, 1, 0, 0)
	})
	if err != nil {
		return res, fmt.Errorf("prims: draw %s: %w", req.Mode, err)
	}

	Logger().Debug("prims: draw",
		"mode", req.Mode,
		"count", req.Count,
		"point_size", req.PointSize,
		"line_width", res.EffectiveLineWidth)
	return res, nil
}

// lineWidth resolves the requested width against the rasterizer range.
// A clamp is a platform limitation: it is reported, not corrected.
func (c *Context) lineWidth(requested float32) (req, eff float32) {
	if requested == 0 || math32.IsNaN(requested) {
		requested = 1
	}
	lo, hi := c.LineWidthRange()
	eff = clampRange(requested, lo, hi)
	if eff != requested {
		level := Logger().Debug
		if !c.lineWidthWarned {
			c.lineWidthWarned = true
			level = Logger().Warn
		}
		level("prims: line width clamped by rasterizer",
			"surface", c.surfaceID,
			"requested", requested,
			"effective", eff,
			"range", [2]float32{lo, hi})
	}
	return requested, eff
}

// pointSize resolves the requested size against the rasterizer range.
// Only Points draws report a clamp; other modes never show the size.
func (c *Context) pointSize(requested float32, points bool) float32 {
	lo, hi := c.PointSizeRange()
	eff := clampRange(requested, lo, hi)
	if points && eff != requested {
		level := Logger().Debug
		if !c.pointSizeWarned {
			c.pointSizeWarned = true
			level = Logger().Warn
		}
		level("prims: point size clamped by rasterizer",
			"surface", c.surfaceID,
			"requested", requested,
			"effective", eff,
			"range", [2]float32{lo, hi})
	}
	return eff
}

func clampRange(v, lo, hi float32) float32 {
	if math32.IsNaN(v) {
		return lo
	}
	return math32.Max(lo, math32.Min(hi, v))
}

// loopIndices builds the index buffer 0, 1, ..., n-1, 0 that closes a line
// strip into a loop.
func (c *Context) loopIndices(n int) (hal.Buffer, error) {
	data := make([]byte, 4*(n+1))
	for i := range n {
		binary.LittleEndian.PutUint32(data[i*4:], uint32(i))
	}
	// Last index stays 0.

	buf, err := c.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "line_loop_indices",
		Size:  uint64(len(data)),
		Usage: gputypes.BufferUsageIndex | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("create index buffer: %w", err)
	}
	if err := c.queue.WriteBuffer(buf, 0, data); err != nil {
		c.device.DestroyBuffer(buf)
		return nil, fmt.Errorf("write index buffer: %w", err)
	}
	return buf, nil
}

// writeUniforms uploads the per-draw uniform block. The point size is
// written for every mode.
func (p *Program) writeUniforms(queue hal.Queue, pointSize, lineWidth float32) error {
	if p.uniformBuf == nil {
		return nil
	}
	data := make([]byte, p.uniformSize)
	if p.pointSizeOffset >= 0 {
		copy(data[p.pointSizeOffset:], floatBytes([]float32{pointSize}))
	}
	if p.lineWidthOffset >= 0 {
		copy(data[p.lineWidthOffset:], floatBytes([]float32{lineWidth}))
	}
	if err := queue.WriteBuffer(p.uniformBuf, 0, data); err != nil {
		return fmt.Errorf("write uniforms: %w", err)
	}
	return nil
}
