package prims

import (
	"errors"
	"log/slog"
	"testing"
	"unsafe"

	"github.com/google/go-cmp/cmp"

	"github.com/gogpu/prims/internal/haltest"
)

type drawFixture struct {
	ctx  *Context
	rec  *haltest.Recorder
	prog *Program
	pos  *GeometryBuffer
	col  *GeometryBuffer
}

func newDrawFixture(t *testing.T, vertices int) drawFixture {
	t.Helper()
	ctx, rec := newTestContext(t)
	f := drawFixture{
		ctx:  ctx,
		rec:  rec,
		prog: newTestProgram(t, ctx),
		pos:  mustUpload(t, ctx, "shape.positions", make([]float32, vertices*positionComponents)),
		col:  mustUpload(t, ctx, "shape.colors", make([]float32, vertices*colorComponents)),
	}
	rec.Reset()
	return f
}

func (f drawFixture) request(mode PrimitiveMode, count int) DrawRequest {
	return DrawRequest{
		Program:   f.prog,
		Positions: f.pos,
		Colors:    f.col,
		Count:     count,
		Mode:      mode,
		PointSize: 10,
	}
}

func TestDrawLines(t *testing.T) {
	f := newDrawFixture(t, 4)

	req := f.request(Lines, 4)
	req.LineWidth = 0.5
	res, err := f.ctx.Draw(req)
	if err != nil {
		t.Fatalf("Draw() error = %v", err)
	}

	draws := f.rec.CallsOf("Draw")
	if len(draws) != 1 || draws[0].Count != 4 {
		t.Fatalf("Draw calls = %+v, want exactly one of 4 vertices", draws)
	}
	pipelines := f.rec.CallsOf("SetPipeline")
	if len(pipelines) != 1 || pipelines[0].Label != "draw_lines" {
		t.Errorf("SetPipeline calls = %+v, want draw_lines", pipelines)
	}

	want := DrawResult{
		Mode:               Lines,
		Count:              4,
		PointSize:          10,
		EffectivePointSize: 1,
		RequestedLineWidth: 0.5,
		EffectiveLineWidth: 1,
	}
	if diff := cmp.Diff(want, res); diff != "" {
		t.Errorf("DrawResult mismatch (-want +got):\n%s", diff)
	}
	if !res.LineWidthClamped() {
		t.Error("LineWidthClamped() = false for a 0.5 request")
	}

	u := readFloats(t, f.rec, f.prog.uniformBuf, 2)
	if u[0] != 10 || u[1] != 1 {
		t.Errorf("uniforms = %v, want [10 1]", u)
	}
}

func TestDrawBindsPositionAndColor(t *testing.T) {
	f := newDrawFixture(t, 3)

	if _, err := f.ctx.Draw(f.request(Triangles, 3)); err != nil {
		t.Fatal(err)
	}

	var binds []haltest.Call
	for _, c := range f.rec.Calls() {
		if c.Op == "SetVertexBuffer" {
			binds = append(binds, c)
		}
	}
	want := []haltest.Call{
		{Op: "SetVertexBuffer", Slot: positionSlot, Label: "shape.positions"},
		{Op: "SetVertexBuffer", Slot: colorSlot, Label: "shape.colors"},
	}
	if diff := cmp.Diff(want, binds); diff != "" {
		t.Errorf("vertex buffer binds mismatch (-want +got):\n%s", diff)
	}
	if len(f.rec.CallsOf("SetBindGroup")) != 1 {
		t.Error("uniform bind group should be bound once")
	}
}

func TestDrawPointSizeEveryMode(t *testing.T) {
	for mode := Points; mode <= Triangles; mode++ {
		t.Run(mode.String(), func(t *testing.T) {
			f := newDrawFixture(t, 4)

			req := f.request(mode, 4)
			req.PointSize = 15
			res, err := f.ctx.Draw(req)
			if err != nil {
				t.Fatalf("Draw() error = %v", err)
			}
			if res.PointSize != 15 {
				t.Errorf("PointSize = %v, want 15", res.PointSize)
			}
			if u := readFloats(t, f.rec, f.prog.uniformBuf, 1); u[0] != 15 {
				t.Errorf("point_size uniform = %v, want 15", u[0])
			}
			if !mode.IsLine() && (res.RequestedLineWidth != 0 || res.EffectiveLineWidth != 0) {
				t.Errorf("line width reported for %v: %+v", mode, res)
			}
		})
	}
}

func TestDrawLineLoop(t *testing.T) {
	f := newDrawFixture(t, 3)

	if _, err := f.ctx.Draw(f.request(LineLoop, 3)); err != nil {
		t.Fatalf("Draw() error = %v", err)
	}

	indexed := f.rec.CallsOf("DrawIndexed")
	if len(indexed) != 1 || indexed[0].Count != 4 {
		t.Fatalf("DrawIndexed calls = %+v, want one of 4 indices", indexed)
	}
	if len(f.rec.CallsOf("Draw")) != 0 {
		t.Error("line loop must not issue a non-indexed draw")
	}
	if p := f.rec.CallsOf("SetPipeline"); len(p) != 1 || p[0].Label != "draw_line_loop" {
		t.Errorf("SetPipeline calls = %+v", p)
	}
	// Only the fixture's position, color and uniform buffers remain.
	if n := f.rec.Live(haltest.KindBuffer); n != 3 {
		t.Errorf("live buffers = %d, want 3 (index buffer released)", n)
	}
}

func TestLoopIndices(t *testing.T) {
	f := newDrawFixture(t, 1)

	buf, err := f.ctx.loopIndices(3)
	if err != nil {
		t.Fatal(err)
	}
	defer f.ctx.device.DestroyBuffer(buf)

	m, err := f.rec.MapBuffer(buf, 0, 16)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = f.rec.UnmapBuffer(buf) }()
	idx := unsafe.Slice((*uint32)(m.Ptr), 4)
	if diff := cmp.Diff([]uint32{0, 1, 2, 0}, idx); diff != "" {
		t.Errorf("indices mismatch (-want +got):\n%s", diff)
	}
}

func TestDrawLineWidthWarnsOnce(t *testing.T) {
	logs := captureLogs(t)
	f := newDrawFixture(t, 2)

	for _, w := range []float32{0.5, 3, 1, 0} {
		req := f.request(Lines, 2)
		req.LineWidth = w
		if _, err := f.ctx.Draw(req); err != nil {
			t.Fatal(err)
		}
	}
	if n := logs.count(slog.LevelWarn); n != 1 {
		t.Errorf("warnings = %d, want 1", n)
	}
}

func TestDrawPointSizeWarnsOnce(t *testing.T) {
	logs := captureLogs(t)
	f := newDrawFixture(t, 2)

	for _, size := range []float32{15, 10, 1} {
		req := f.request(Points, 1)
		req.PointSize = size
		res, err := f.ctx.Draw(req)
		if err != nil {
			t.Fatal(err)
		}
		if res.EffectivePointSize != 1 {
			t.Errorf("EffectivePointSize = %v, want 1", res.EffectivePointSize)
		}
		if got, want := res.PointSizeClamped(), size != 1; got != want {
			t.Errorf("size %v: PointSizeClamped() = %v, want %v", size, got, want)
		}
	}
	if n := logs.count(slog.LevelWarn); n != 1 {
		t.Errorf("warnings = %d, want 1", n)
	}
}

func TestPointSizeClampedOnlyForPoints(t *testing.T) {
	logs := captureLogs(t)
	f := newDrawFixture(t, 3)

	for _, mode := range []PrimitiveMode{Lines, LineStrip, Triangles} {
		req := f.request(mode, 2)
		req.PointSize = 15
		res, err := f.ctx.Draw(req)
		if err != nil {
			t.Fatal(err)
		}
		if res.PointSizeClamped() {
			t.Errorf("%v: PointSizeClamped() = true, want false", mode)
		}
	}
	if n := logs.count(slog.LevelWarn); n != 0 {
		t.Errorf("warnings = %d, want 0", n)
	}
}

func TestDrawDefaultLineWidth(t *testing.T) {
	f := newDrawFixture(t, 2)

	res, err := f.ctx.Draw(f.request(LineStrip, 2))
	if err != nil {
		t.Fatal(err)
	}
	if res.RequestedLineWidth != 1 || res.EffectiveLineWidth != 1 || res.LineWidthClamped() {
		t.Errorf("DrawResult = %+v, want width 1 unclamped", res)
	}
}

func TestDrawZeroCount(t *testing.T) {
	f := newDrawFixture(t, 1)

	if _, err := f.ctx.Draw(f.request(Points, 0)); err != nil {
		t.Fatalf("Draw() error = %v", err)
	}
	if n := len(f.rec.CallsOf("Submit")); n != 0 {
		t.Errorf("submits = %d, want 0", n)
	}
}

func TestDrawInvalidRequests(t *testing.T) {
	f := newDrawFixture(t, 1)

	tests := []struct {
		name string
		req  DrawRequest
	}{
		{"nil program", DrawRequest{Positions: f.pos, Colors: f.col, Count: 1}},
		{"nil colors", DrawRequest{Program: f.prog, Positions: f.pos, Count: 1}},
		{"bad mode", DrawRequest{Program: f.prog, Positions: f.pos, Colors: f.col, Count: 1, Mode: 99}},
		{"negative count", DrawRequest{Program: f.prog, Positions: f.pos, Colors: f.col, Count: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.ctx.Draw(tt.req); err == nil {
				t.Error("Draw() error = nil")
			}
		})
	}
	if n := len(f.rec.CallsOf("Draw")); n != 0 {
		t.Errorf("draws = %d, want 0", n)
	}
}

func TestDrawDestroyedProgram(t *testing.T) {
	f := newDrawFixture(t, 1)
	f.prog.Destroy()

	if _, err := f.ctx.Draw(f.request(Points, 1)); !errors.Is(err, ErrClosed) {
		t.Errorf("Draw() error = %v, want ErrClosed", err)
	}
}

func TestDrawSubmitFailure(t *testing.T) {
	f := newDrawFixture(t, 3)
	f.rec.FailOn("Submit", errors.New("device lost"))

	if _, err := f.ctx.Draw(f.request(Triangles, 3)); err == nil {
		t.Fatal("Draw() should report the submit failure")
	}
	if n := f.rec.Live(haltest.KindCommandBuffer); n != 0 {
		t.Errorf("live command buffers = %d, want 0", n)
	}
}

func TestFirstDrawClearsTarget(t *testing.T) {
	f := newDrawFixture(t, 1)

	for range 2 {
		if _, err := f.ctx.Draw(f.request(Points, 1)); err != nil {
			t.Fatal(err)
		}
	}
	passes := f.rec.CallsOf("BeginRenderPass")
	if len(passes) != 2 {
		t.Fatalf("passes = %d, want 2", len(passes))
	}
	if passes[0].Load == passes[1].Load {
		t.Errorf("first pass should clear and second should load, got %+v", passes)
	}
}

func TestClampRange(t *testing.T) {
	tests := []struct {
		v, lo, hi, want float32
	}{
		{0.5, 1, 1, 1},
		{3, 1, 8, 3},
		{10, 1, 8, 8},
	}
	for _, tt := range tests {
		if got := clampRange(tt.v, tt.lo, tt.hi); got != tt.want {
			t.Errorf("clampRange(%v, %v, %v) = %v, want %v", tt.v, tt.lo, tt.hi, got, tt.want)
		}
	}
}
