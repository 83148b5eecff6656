package prims

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"unsafe"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// copyPitchAlignment is the WebGPU bytesPerRow alignment for
// texture-to-buffer copies.
const copyPitchAlignment = 256

// Clear fills the whole surface with color.
func (c *Context) Clear(color gputypes.Color) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	if err := c.submitPass("clear", gputypes.LoadOpClear, color, nil); err != nil {
		return fmt.Errorf("prims: clear: %w", err)
	}
	return nil
}

// submitPass encodes one render pass on the target, submits it and waits
// for completion. The first pass on a never-cleared target clears it to
// transparent black so the loaded contents are defined.
func (c *Context) submitPass(label string, load gputypes.LoadOp, clear gputypes.Color, record func(hal.RenderPassEncoder)) error {
	if !c.loaded && load == gputypes.LoadOpLoad {
		load = gputypes.LoadOpClear
		clear = gputypes.Color{}
	}

	encoder, err := c.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding(label); err != nil {
		return fmt.Errorf("begin encoding: %w", err)
	}

	pass := encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: label,
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:       c.targetView,
			LoadOp:     load,
			StoreOp:    gputypes.StoreOpStore,
			ClearValue: clear,
		}},
	})
	if record != nil {
		record(pass)
	}
	pass.End()

	cmd, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("end encoding: %w", err)
	}
	defer c.device.FreeCommandBuffer(cmd)

	if err := c.submit(cmd); err != nil {
		return err
	}
	c.loaded = true
	return nil
}

func (c *Context) submit(cmd hal.CommandBuffer) error {
	if _, err := c.queue.Submit([]hal.CommandBuffer{cmd}); err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	if err := c.device.WaitIdle(); err != nil {
		return fmt.Errorf("wait for GPU: %w", err)
	}
	return nil
}

// ReadPixels copies the surface contents back to the CPU.
func (c *Context) ReadPixels() (*image.RGBA, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}

	w, h := uint32(c.desc.Width), uint32(c.desc.Height)
	pitch := (w*4 + copyPitchAlignment - 1) / copyPitchAlignment * copyPitchAlignment
	size := uint64(pitch) * uint64(h)

	staging, err := c.device.CreateBuffer(&hal.BufferDescriptor{
		Label: c.surfaceID + ".readback",
		Size:  size,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("prims: create readback buffer: %w", err)
	}
	defer c.device.DestroyBuffer(staging)

	encoder, err := c.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "readback"})
	if err != nil {
		return nil, fmt.Errorf("prims: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("readback"); err != nil {
		return nil, fmt.Errorf("prims: begin encoding: %w", err)
	}

	// Render attachments must be transitioned before they can be copied.
	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: c.target,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageRenderAttachment,
			NewUsage: gputypes.TextureUsageCopySrc,
		},
	}})
	encoder.CopyTextureToBuffer(c.target, staging, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{Offset: 0, BytesPerRow: pitch, RowsPerImage: h},
		TextureBase:  hal.ImageCopyTexture{Texture: c.target, MipLevel: 0},
		Size:         hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
	}})
	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: c.target,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageCopySrc,
			NewUsage: gputypes.TextureUsageRenderAttachment,
		},
	}})

	cmd, err := encoder.EndEncoding()
	if err != nil {
		return nil, fmt.Errorf("prims: end encoding: %w", err)
	}
	defer c.device.FreeCommandBuffer(cmd)

	if err := c.submit(cmd); err != nil {
		return nil, fmt.Errorf("prims: readback: %w", err)
	}

	mapping, err := c.device.MapBuffer(staging, 0, size)
	if err != nil {
		return nil, fmt.Errorf("prims: map readback buffer: %w", err)
	}
	raw := unsafe.Slice((*byte)(mapping.Ptr), size)

	img := image.NewRGBA(image.Rect(0, 0, int(w), int(h)))
	bgra := c.desc.Format == gputypes.TextureFormatBGRA8Unorm
	for y := range int(h) {
		src := raw[y*int(pitch) : y*int(pitch)+int(w)*4]
		dst := img.Pix[y*img.Stride : y*img.Stride+int(w)*4]
		copy(dst, src)
		if bgra {
			for i := 0; i < len(dst); i += 4 {
				dst[i], dst[i+2] = dst[i+2], dst[i]
			}
		}
	}

	if err := c.device.UnmapBuffer(staging); err != nil {
		Logger().Warn("prims: unmap readback buffer", "err", err)
	}
	return img, nil
}

// SavePNG reads the surface back and writes it to path as PNG.
func (c *Context) SavePNG(path string) error {
	img, err := c.ReadPixels()
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("prims: create %s: %w", path, err)
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return fmt.Errorf("prims: encode %s: %w", path, err)
	}
	return f.Close()
}
