package prims

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// GeometryBuffer is a static GPU vertex buffer of 32-bit floats.
// It is written once by Upload and read by any number of draws.
type GeometryBuffer struct {
	label  string
	device hal.Device
	buf    hal.Buffer
	n      int
}

// Upload copies values into a new GPU vertex buffer. The buffer is never
// mapped or rewritten after creation.
func (c *Context) Upload(label string, values []float32) (*GeometryBuffer, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyGeometry, label)
	}

	data := floatBytes(values)
	buf, err := c.device.CreateBuffer(&hal.BufferDescriptor{
		Label: label,
		Size:  uint64(len(data)),
		Usage: gputypes.BufferUsageVertex | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("prims: create buffer %s: %w", label, err)
	}
	if err := c.queue.WriteBuffer(buf, 0, data); err != nil {
		c.device.DestroyBuffer(buf)
		return nil, fmt.Errorf("prims: write buffer %s: %w", label, err)
	}

	Logger().Debug("prims: geometry uploaded", "label", label, "floats", len(values))
	return &GeometryBuffer{label: label, device: c.device, buf: buf, n: len(values)}, nil
}

// Len returns the number of floats in the buffer.
func (g *GeometryBuffer) Len() int { return g.n }

// Vertices returns how many whole vertices of the given component count
// the buffer holds.
func (g *GeometryBuffer) Vertices(components int) int {
	if components <= 0 {
		return 0
	}
	return g.n / components
}

// Label returns the debug label given at upload.
func (g *GeometryBuffer) Label() string { return g.label }

// Raw returns the underlying HAL buffer.
func (g *GeometryBuffer) Raw() hal.Buffer { return g.buf }

// Destroy releases the GPU buffer. It is safe to call more than once.
func (g *GeometryBuffer) Destroy() {
	if g == nil || g.buf == nil {
		return
	}
	g.device.DestroyBuffer(g.buf)
	g.buf = nil
}

// floatBytes encodes values as little-endian IEEE 754 float32, the vertex
// buffer layout every backend expects.
func floatBytes(values []float32) []byte {
	data := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(v))
	}
	return data
}
