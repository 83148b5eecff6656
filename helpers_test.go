package prims

import (
	"context"
	"encoding/binary"
	"log/slog"
	"math"
	"sync"
	"testing"
	"unsafe"

	"github.com/gogpu/prims/internal/haltest"
	"github.com/gogpu/prims/surface"
	"github.com/gogpu/wgpu/hal"
)

const testVertexShader = `
struct DrawUniforms {
    point_size: f32,
    line_width: f32,
    _pad: vec2<f32>,
}

@group(0) @binding(0) var<uniform> u: DrawUniforms;

struct VertexOutput {
    @builtin(position) position: vec4<f32>,
    @location(0) color: vec4<f32>,
}

@vertex
fn vs_main(@location(0) a_position: vec2<f32>, @location(1) a_color: vec4<f32>) -> VertexOutput {
    var out: VertexOutput;
    out.position = vec4<f32>(a_position, 0.0, 1.0);
    out.color = a_color;
    return out;
}
`

const testFragmentShader = `
@fragment
fn fs_main(@location(0) color: vec4<f32>) -> @location(0) vec4<f32> {
    return color;
}
`

const testSurface = "test-surface"

// newTestContext acquires a context on a recording noop device.
func newTestContext(t *testing.T) (*Context, *haltest.Recorder) {
	t.Helper()
	rec, err := haltest.New()
	if err != nil {
		t.Fatalf("haltest.New() error = %v", err)
	}
	reg := surface.NewRegistry()
	if err := reg.Register(testSurface, surface.Descriptor{Width: 64, Height: 48}); err != nil {
		rec.Close()
		t.Fatalf("Register() error = %v", err)
	}
	ctx, err := Acquire(testSurface, WithRegistry(reg), WithDeviceProvider(rec))
	if err != nil {
		rec.Close()
		t.Fatalf("Acquire() error = %v", err)
	}
	t.Cleanup(func() {
		ctx.Close()
		rec.Close()
	})
	return ctx, rec
}

// newTestProgram builds the standard test program.
func newTestProgram(t *testing.T, ctx *Context) *Program {
	t.Helper()
	p, err := ctx.BuildProgram(testVertexShader, testFragmentShader)
	if err != nil {
		t.Fatalf("BuildProgram() error = %v", err)
	}
	t.Cleanup(p.Destroy)
	return p
}

func mustUpload(t *testing.T, ctx *Context, label string, values []float32) *GeometryBuffer {
	t.Helper()
	g, err := ctx.Upload(label, values)
	if err != nil {
		t.Fatalf("Upload(%s) error = %v", label, err)
	}
	t.Cleanup(g.Destroy)
	return g
}

// readFloats maps a buffer on the recorder and decodes n floats.
func readFloats(t *testing.T, rec *haltest.Recorder, b hal.Buffer, n int) []float32 {
	t.Helper()
	size := uint64(4 * n)
	m, err := rec.MapBuffer(b, 0, size)
	if err != nil {
		t.Fatalf("MapBuffer() error = %v", err)
	}
	defer func() { _ = rec.UnmapBuffer(b) }()

	raw := unsafe.Slice((*byte)(m.Ptr), size)
	out := make([]float32, n)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return out
}

// captureHandler is a slog.Handler that keeps every record.
type captureHandler struct {
	mu      sync.Mutex
	records []slog.Record
}

func (h *captureHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *captureHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	h.records = append(h.records, r)
	h.mu.Unlock()
	return nil
}

func (h *captureHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *captureHandler) WithGroup(string) slog.Handler      { return h }

func (h *captureHandler) count(level slog.Level) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, r := range h.records {
		if r.Level == level {
			n++
		}
	}
	return n
}

// captureLogs installs a capturing logger for the duration of the test.
func captureLogs(t *testing.T) *captureHandler {
	t.Helper()
	orig := Logger()
	h := &captureHandler{}
	SetLogger(slog.New(h))
	t.Cleanup(func() { SetLogger(orig) })
	return h
}
