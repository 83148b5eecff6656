package prims

import (
	"errors"
	"fmt"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/prims/surface"
	"github.com/gogpu/wgpu/hal"
)

// Context is a rendering context bound to one display surface.
//
// It owns the GPU device (unless borrowed through WithDeviceProvider) and
// an offscreen render target of the surface's size. A Context is created
// once by Acquire, used for every build, upload and draw of a run, and
// released by Close. It is not safe for concurrent use.
type Context struct {
	surfaceID string
	desc      surface.Descriptor

	instance hal.Instance // nil when the device is borrowed
	adapter  hal.Adapter
	info     gputypes.AdapterInfo
	device   hal.Device
	queue    hal.Queue
	external bool

	target     hal.Texture
	targetView hal.TextureView
	loaded     bool // target holds defined contents

	lineWidthWarned bool
	pointSizeWarned bool
	closed          bool
}

var _ gpucontext.DeviceProvider = (*Context)(nil)

// Acquire obtains a rendering context for the surface registered under
// surfaceID. Acquisition is attempted once; every failure is reported as a
// *ContextUnavailableError matching ErrContextUnavailable.
func Acquire(surfaceID string, opts ...Option) (*Context, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	desc, err := o.registry.Lookup(surfaceID)
	if err != nil {
		return nil, unavailable(surfaceID, err)
	}

	c := &Context{surfaceID: surfaceID, desc: desc}
	if o.provider != nil {
		err = c.borrowDevice(o.provider)
	} else {
		err = c.openDevice(o)
	}
	if err != nil {
		c.releaseDevice()
		return nil, unavailable(surfaceID, err)
	}

	if err := c.createTarget(); err != nil {
		c.releaseDevice()
		return nil, unavailable(surfaceID, err)
	}

	Logger().Info("prims: context acquired",
		"surface", surfaceID,
		"size", fmt.Sprintf("%dx%d", desc.Width, desc.Height),
		"adapter", c.info.Name,
		"backend", c.info.Backend,
		"shared", c.external)
	return c, nil
}

// openDevice creates an instance on the selected backend and opens the
// preferred adapter.
func (c *Context) openDevice(o options) error {
	var (
		backend hal.Backend
		err     error
	)
	if o.backendSet {
		var ok bool
		if backend, ok = hal.GetBackend(o.backend); !ok {
			backend, err = hal.CreateBackend(o.backend)
			if err != nil {
				return fmt.Errorf("backend %s: %w", o.backend, err)
			}
		}
	} else {
		backend, err = hal.SelectBestBackend()
		if err != nil {
			return fmt.Errorf("select backend: %w", err)
		}
	}

	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{})
	if err != nil {
		return fmt.Errorf("create instance: %w", err)
	}
	c.instance = instance

	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		return errors.New("no GPU adapters found")
	}
	selected := &adapters[0]
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}

	open, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		return fmt.Errorf("open device: %w", err)
	}
	c.adapter = selected.Adapter
	c.info = selected.Info
	c.device = open.Device
	c.queue = open.Queue
	return nil
}

// borrowDevice takes the device and queue from a host provider.
func (c *Context) borrowDevice(provider any) error {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return fmt.Errorf("provider %T does not expose HAL types", provider)
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return errors.New("provider HalDevice is not hal.Device")
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return errors.New("provider HalQueue is not hal.Queue")
	}
	c.device = device
	c.queue = queue
	c.external = true

	if ip, ok := provider.(interface{ AdapterInfo() gputypes.AdapterInfo }); ok {
		c.info = ip.AdapterInfo()
	} else {
		c.info = gputypes.AdapterInfo{Name: "shared device"}
	}
	return nil
}

// createTarget allocates the offscreen color target the surface renders to.
func (c *Context) createTarget() error {
	tex, err := c.device.CreateTexture(&hal.TextureDescriptor{
		Label: c.surfaceID + ".target",
		Size: hal.Extent3D{
			Width:              uint32(c.desc.Width),
			Height:             uint32(c.desc.Height),
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        c.desc.Format,
		Usage:         gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageCopySrc,
	})
	if err != nil {
		return fmt.Errorf("create target texture: %w", err)
	}

	view, err := c.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:         c.surfaceID + ".target_view",
		Format:        c.desc.Format,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		c.device.DestroyTexture(tex)
		return fmt.Errorf("create target view: %w", err)
	}

	c.target = tex
	c.targetView = view
	return nil
}

// Close releases the render target and, if the context opened it, the
// device and instance. Close is idempotent.
func (c *Context) Close() {
	if c == nil || c.closed {
		return
	}
	c.closed = true

	if c.device != nil {
		if err := c.device.WaitIdle(); err != nil {
			Logger().Warn("prims: wait idle on close", "surface", c.surfaceID, "err", err)
		}
		if c.targetView != nil {
			c.device.DestroyTextureView(c.targetView)
			c.targetView = nil
		}
		if c.target != nil {
			c.device.DestroyTexture(c.target)
			c.target = nil
		}
	}
	c.releaseDevice()
	Logger().Debug("prims: context closed", "surface", c.surfaceID)
}

func (c *Context) releaseDevice() {
	if !c.external && c.device != nil {
		c.device.Destroy()
	}
	c.device = nil
	c.queue = nil
	if c.instance != nil {
		c.instance.Destroy()
		c.instance = nil
	}
}

func (c *Context) checkOpen() error {
	if c == nil || c.closed || c.device == nil {
		return ErrClosed
	}
	return nil
}

// SurfaceID returns the ID of the surface the context renders to.
func (c *Context) SurfaceID() string { return c.surfaceID }

// Size returns the surface size in pixels.
func (c *Context) Size() (width, height int) { return c.desc.Width, c.desc.Height }

// Info returns the adapter the context renders with.
func (c *Context) Info() gputypes.AdapterInfo { return c.info }

// LineWidthRange returns the line widths the rasterizer supports.
// WebGPU-class backends rasterize 1-pixel lines only.
func (c *Context) LineWidthRange() (lo, hi float32) { return 1, 1 }

// PointSizeRange returns the point sizes the rasterizer supports.
// Point primitives are always one pixel; the shader still receives the
// requested size as a uniform.
func (c *Context) PointSizeRange() (lo, hi float32) { return 1, 1 }

// HalDevice returns the underlying hal.Device so another component can
// share it through WithDeviceProvider.
func (c *Context) HalDevice() any { return c.device }

// HalQueue returns the underlying hal.Queue.
func (c *Context) HalQueue() any { return c.queue }

// Device implements gpucontext.DeviceProvider.
func (c *Context) Device() gpucontext.Device { return c.device }

// Queue implements gpucontext.DeviceProvider.
func (c *Context) Queue() gpucontext.Queue { return c.queue }

// Adapter implements gpucontext.DeviceProvider. It is nil for a borrowed
// device.
func (c *Context) Adapter() gpucontext.Adapter { return c.adapter }

// SurfaceFormat implements gpucontext.DeviceProvider.
func (c *Context) SurfaceFormat() gputypes.TextureFormat { return c.desc.Format }

// AdapterInfo implements gpucontext.DeviceProvider.
func (c *Context) AdapterInfo() gpucontext.AdapterInfo {
	return gpucontext.AdapterInfo{Name: c.info.Name, Type: adapterType(c.info.DeviceType)}
}

func adapterType(t gputypes.DeviceType) gpucontext.AdapterType {
	switch t {
	case gputypes.DeviceTypeDiscreteGPU:
		return gpucontext.AdapterTypeDiscrete
	case gputypes.DeviceTypeIntegratedGPU:
		return gpucontext.AdapterTypeIntegrated
	case gputypes.DeviceTypeCPU:
		return gpucontext.AdapterTypeSoftware
	default:
		return gpucontext.AdapterTypeUnknown
	}
}
