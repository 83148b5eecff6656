package prims

import (
	"errors"
	"testing"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/prims/internal/haltest"
	"github.com/gogpu/prims/surface"
)

func TestAcquireUnknownSurface(t *testing.T) {
	_, err := Acquire("no-such-surface", WithRegistry(surface.NewRegistry()))
	if !errors.Is(err, ErrContextUnavailable) {
		t.Fatalf("Acquire() error = %v, want ErrContextUnavailable", err)
	}
	var nf *surface.NotFoundError
	if !errors.As(err, &nf) {
		t.Errorf("Acquire() error = %v, want wrapped *surface.NotFoundError", err)
	}
}

func TestAcquireBadProvider(t *testing.T) {
	reg := surface.NewRegistry()
	_ = reg.Register("s", surface.Descriptor{Width: 4, Height: 4})

	_, err := Acquire("s", WithRegistry(reg), WithDeviceProvider(struct{}{}))
	var cue *ContextUnavailableError
	if !errors.As(err, &cue) {
		t.Fatalf("Acquire() error = %v, want *ContextUnavailableError", err)
	}
	if cue.Surface != "s" {
		t.Errorf("Surface = %q, want s", cue.Surface)
	}
}

func TestAcquireMissingBackend(t *testing.T) {
	reg := surface.NewRegistry()
	_ = reg.Register("s", surface.Descriptor{Width: 4, Height: 4})

	// No Metal backend is linked into the test binary.
	_, err := Acquire("s", WithRegistry(reg), WithBackend(gputypes.BackendMetal))
	if !errors.Is(err, ErrContextUnavailable) {
		t.Fatalf("Acquire() error = %v, want ErrContextUnavailable", err)
	}
}

func TestAcquireNoopBackend(t *testing.T) {
	reg := surface.NewRegistry()
	_ = reg.Register("s", surface.Descriptor{Width: 16, Height: 8})

	ctx, err := Acquire("s", WithRegistry(reg), WithBackend(gputypes.BackendEmpty))
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer ctx.Close()

	if w, h := ctx.Size(); w != 16 || h != 8 {
		t.Errorf("Size() = %dx%d, want 16x8", w, h)
	}
	if ctx.Adapter() == nil {
		t.Error("Adapter() should be set for an owned device")
	}
}

func TestAcquireTargetFailureReleases(t *testing.T) {
	rec, err := haltest.New()
	if err != nil {
		t.Fatal(err)
	}
	defer rec.Close()
	rec.FailOn("CreateTextureView", errors.New("out of memory"))

	reg := surface.NewRegistry()
	_ = reg.Register("s", surface.Descriptor{Width: 4, Height: 4})

	_, err = Acquire("s", WithRegistry(reg), WithDeviceProvider(rec))
	if !errors.Is(err, ErrContextUnavailable) {
		t.Fatalf("Acquire() error = %v, want ErrContextUnavailable", err)
	}
	if n := rec.Live(haltest.KindTexture); n != 0 {
		t.Errorf("live textures = %d, want 0", n)
	}
}

func TestContextClose(t *testing.T) {
	ctx, rec := newTestContext(t)

	if rec.Live(haltest.KindTexture) != 1 || rec.Live(haltest.KindTextureView) != 1 {
		t.Fatalf("live = %v, want one target texture and view", rec.LiveAll())
	}

	ctx.Close()
	ctx.Close()

	if live := rec.LiveAll(); len(live) != 0 {
		t.Errorf("live after Close = %v, want none", live)
	}
	if _, err := ctx.Upload("x", []float32{1}); !errors.Is(err, ErrClosed) {
		t.Errorf("Upload() after Close error = %v, want ErrClosed", err)
	}
	if _, err := ctx.BuildProgram(testVertexShader, testFragmentShader); !errors.Is(err, ErrClosed) {
		t.Errorf("BuildProgram() after Close error = %v, want ErrClosed", err)
	}
}

func TestContextDeviceProvider(t *testing.T) {
	ctx, rec := newTestContext(t)

	var dp gpucontext.DeviceProvider = ctx
	if dp.Device() == nil || dp.Queue() == nil {
		t.Error("Device()/Queue() should be set")
	}
	if dp.SurfaceFormat() != gputypes.TextureFormatRGBA8Unorm {
		t.Errorf("SurfaceFormat() = %v, want RGBA8Unorm", dp.SurfaceFormat())
	}
	if dp.Adapter() != nil {
		t.Error("Adapter() should be nil for a borrowed device")
	}
	if got := dp.AdapterInfo(); got.Name != "shared device" || got.Type != gpucontext.AdapterTypeUnknown {
		t.Errorf("AdapterInfo() = %+v", got)
	}
	if ctx.HalDevice() != any(rec) {
		t.Error("HalDevice() should return the borrowed device")
	}
	if ctx.SurfaceID() != testSurface {
		t.Errorf("SurfaceID() = %q", ctx.SurfaceID())
	}
}

func TestSharedContextDoesNotOwnDevice(t *testing.T) {
	owner, rec := newTestContext(t)

	reg := surface.NewRegistry()
	_ = reg.Register("second", surface.Descriptor{Width: 2, Height: 2})
	shared, err := Acquire("second", WithRegistry(reg), WithDeviceProvider(owner))
	if err != nil {
		t.Fatalf("Acquire() with context as provider error = %v", err)
	}
	shared.Close()

	// The owner's device still works after the sharer closed.
	if _, err := owner.Upload("after", []float32{1, 2}); err != nil {
		t.Errorf("Upload() on owner after sharer Close error = %v", err)
	}
	if n := rec.Live(haltest.KindTexture); n != 1 {
		t.Errorf("live textures = %d, want only the owner's target", n)
	}
}

func TestAdapterType(t *testing.T) {
	tests := []struct {
		in   gputypes.DeviceType
		want gpucontext.AdapterType
	}{
		{gputypes.DeviceTypeDiscreteGPU, gpucontext.AdapterTypeDiscrete},
		{gputypes.DeviceTypeIntegratedGPU, gpucontext.AdapterTypeIntegrated},
		{gputypes.DeviceTypeCPU, gpucontext.AdapterTypeSoftware},
		{gputypes.DeviceTypeOther, gpucontext.AdapterTypeUnknown},
	}
	for _, tt := range tests {
		if got := adapterType(tt.in); got != tt.want {
			t.Errorf("adapterType(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestClearAndReadPixels(t *testing.T) {
	ctx, rec := newTestContext(t)

	if err := ctx.Clear(gputypes.Color{R: 0.78, G: 0.64, B: 0.78, A: 1}); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	passes := rec.CallsOf("BeginRenderPass")
	if len(passes) != 1 || passes[0].Load != gputypes.LoadOpClear {
		t.Errorf("passes = %+v, want one clearing pass", passes)
	}

	img, err := ctx.ReadPixels()
	if err != nil {
		t.Fatalf("ReadPixels() error = %v", err)
	}
	if b := img.Bounds(); b.Dx() != 64 || b.Dy() != 48 {
		t.Errorf("image bounds = %v, want 64x48", b)
	}
	if len(rec.CallsOf("CopyTextureToBuffer")) != 1 {
		t.Error("ReadPixels should copy the target once")
	}
	if n := rec.Live(haltest.KindBuffer); n != 0 {
		t.Errorf("live buffers after ReadPixels = %d, want 0", n)
	}
	if n := rec.Live(haltest.KindCommandBuffer); n != 0 {
		t.Errorf("live command buffers = %d, want 0", n)
	}
}

func TestSavePNG(t *testing.T) {
	ctx, _ := newTestContext(t)
	path := t.TempDir() + "/out.png"
	if err := ctx.SavePNG(path); err != nil {
		t.Fatalf("SavePNG() error = %v", err)
	}
}
