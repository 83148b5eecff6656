// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package haltest provides a recording HAL device for tests.
//
// Recorder wraps the noop backend device. It counts every object created
// and destroyed, records the commands encoded into render passes, and can
// be told to fail specific operations. It implements the HalDevice/HalQueue
// provider convention so it can be passed to prims.WithDeviceProvider.
package haltest

import (
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
)

// Object kinds tracked by Recorder.
const (
	KindBuffer          = "buffer"
	KindTexture         = "texture"
	KindTextureView     = "texture_view"
	KindBindGroupLayout = "bind_group_layout"
	KindBindGroup       = "bind_group"
	KindPipelineLayout  = "pipeline_layout"
	KindShaderModule    = "shader_module"
	KindRenderPipeline  = "render_pipeline"
	KindCommandBuffer   = "command_buffer"
)

// Call is one recorded command.
type Call struct {
	Op    string
	Label string // pipeline, buffer or pass label
	Slot  uint32
	Count uint32
	Load  gputypes.LoadOp
}

// Recorder is a hal.Device that records what it is asked to do.
type Recorder struct {
	hal.Device

	instance hal.Instance
	queue    *Queue

	mu        sync.Mutex
	created   map[string]int
	destroyed map[string]int
	labels    map[hal.Buffer]string
	calls     []Call
	fail      map[string]error
	closed    bool
}

// New opens a noop device and wraps it.
func New() (*Recorder, error) {
	instance, err := noop.API{}.CreateInstance(nil)
	if err != nil {
		return nil, fmt.Errorf("create noop instance: %w", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, fmt.Errorf("noop instance has no adapters")
	}
	open, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("open noop device: %w", err)
	}

	r := &Recorder{
		Device:    open.Device,
		instance:  instance,
		created:   make(map[string]int),
		destroyed: make(map[string]int),
		labels:    make(map[hal.Buffer]string),
		fail:      make(map[string]error),
	}
	r.queue = &Queue{Queue: open.Queue, r: r}
	return r, nil
}

// Close destroys the wrapped device and instance.
func (r *Recorder) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	r.Device.Destroy()
	r.instance.Destroy()
}

// HalDevice returns the recorder itself as a hal.Device.
func (r *Recorder) HalDevice() any { return hal.Device(r) }

// HalQueue returns the recording queue as a hal.Queue.
func (r *Recorder) HalQueue() any { return hal.Queue(r.queue) }

// FailOn makes the named device or queue operation (for example
// "CreateShaderModule") return err until cleared with a nil err.
func (r *Recorder) FailOn(op string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err == nil {
		delete(r.fail, op)
		return
	}
	r.fail[op] = err
}

// Created returns how many objects of kind were created.
func (r *Recorder) Created(kind string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.created[kind]
}

// Live returns how many objects of kind are created and not destroyed.
func (r *Recorder) Live(kind string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.created[kind] - r.destroyed[kind]
}

// LiveAll returns the live count of every kind with a non-zero count.
func (r *Recorder) LiveAll() map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	live := make(map[string]int)
	for k, n := range r.created {
		if d := n - r.destroyed[k]; d != 0 {
			live[k] = d
		}
	}
	return live
}

// Calls returns a copy of the recorded commands.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// CallsOf returns the recorded commands with the given op.
func (r *Recorder) CallsOf(op string) []Call {
	var out []Call
	for _, c := range r.Calls() {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// Reset forgets recorded commands. Object counts are kept.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}

// BufferLabel returns the label a buffer was created with.
func (r *Recorder) BufferLabel(b hal.Buffer) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.labels[b]
}

func (r *Recorder) record(c Call) {
	r.mu.Lock()
	r.calls = append(r.calls, c)
	r.mu.Unlock()
}

func (r *Recorder) failure(op string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fail[op]
}

func (r *Recorder) inc(kind string) {
	r.mu.Lock()
	r.created[kind]++
	r.mu.Unlock()
}

func (r *Recorder) dec(kind string) {
	r.mu.Lock()
	r.destroyed[kind]++
	r.mu.Unlock()
}

// CreateBuffer implements hal.Device.
func (r *Recorder) CreateBuffer(desc *hal.BufferDescriptor) (hal.Buffer, error) {
	if err := r.failure("CreateBuffer"); err != nil {
		return nil, err
	}
	b, err := r.Device.CreateBuffer(desc)
	if err != nil {
		return nil, err
	}
	r.inc(KindBuffer)
	r.mu.Lock()
	r.labels[b] = desc.Label
	r.mu.Unlock()
	return b, nil
}

// DestroyBuffer implements hal.Device.
func (r *Recorder) DestroyBuffer(b hal.Buffer) {
	r.dec(KindBuffer)
	r.Device.DestroyBuffer(b)
}

// CreateTexture implements hal.Device.
func (r *Recorder) CreateTexture(desc *hal.TextureDescriptor) (hal.Texture, error) {
	if err := r.failure("CreateTexture"); err != nil {
		return nil, err
	}
	t, err := r.Device.CreateTexture(desc)
	if err == nil {
		r.inc(KindTexture)
	}
	return t, err
}

// DestroyTexture implements hal.Device.
func (r *Recorder) DestroyTexture(t hal.Texture) {
	r.dec(KindTexture)
	r.Device.DestroyTexture(t)
}

// CreateTextureView implements hal.Device.
func (r *Recorder) CreateTextureView(t hal.Texture, desc *hal.TextureViewDescriptor) (hal.TextureView, error) {
	if err := r.failure("CreateTextureView"); err != nil {
		return nil, err
	}
	v, err := r.Device.CreateTextureView(t, desc)
	if err == nil {
		r.inc(KindTextureView)
	}
	return v, err
}

// DestroyTextureView implements hal.Device.
func (r *Recorder) DestroyTextureView(v hal.TextureView) {
	r.dec(KindTextureView)
	r.Device.DestroyTextureView(v)
}

// CreateBindGroupLayout implements hal.Device.
func (r *Recorder) CreateBindGroupLayout(desc *hal.BindGroupLayoutDescriptor) (hal.BindGroupLayout, error) {
	if err := r.failure("CreateBindGroupLayout"); err != nil {
		return nil, err
	}
	l, err := r.Device.CreateBindGroupLayout(desc)
	if err == nil {
		r.inc(KindBindGroupLayout)
	}
	return l, err
}

// DestroyBindGroupLayout implements hal.Device.
func (r *Recorder) DestroyBindGroupLayout(l hal.BindGroupLayout) {
	r.dec(KindBindGroupLayout)
	r.Device.DestroyBindGroupLayout(l)
}

// CreateBindGroup implements hal.Device.
func (r *Recorder) CreateBindGroup(desc *hal.BindGroupDescriptor) (hal.BindGroup, error) {
	if err := r.failure("CreateBindGroup"); err != nil {
		return nil, err
	}
	g, err := r.Device.CreateBindGroup(desc)
	if err == nil {
		r.inc(KindBindGroup)
	}
	return g, err
}

// DestroyBindGroup implements hal.Device.
func (r *Recorder) DestroyBindGroup(g hal.BindGroup) {
	r.dec(KindBindGroup)
	r.Device.DestroyBindGroup(g)
}

// CreatePipelineLayout implements hal.Device.
func (r *Recorder) CreatePipelineLayout(desc *hal.PipelineLayoutDescriptor) (hal.PipelineLayout, error) {
	if err := r.failure("CreatePipelineLayout"); err != nil {
		return nil, err
	}
	l, err := r.Device.CreatePipelineLayout(desc)
	if err == nil {
		r.inc(KindPipelineLayout)
	}
	return l, err
}

// DestroyPipelineLayout implements hal.Device.
func (r *Recorder) DestroyPipelineLayout(l hal.PipelineLayout) {
	r.dec(KindPipelineLayout)
	r.Device.DestroyPipelineLayout(l)
}

// CreateShaderModule implements hal.Device.
func (r *Recorder) CreateShaderModule(desc *hal.ShaderModuleDescriptor) (hal.ShaderModule, error) {
	if err := r.failure("CreateShaderModule"); err != nil {
		return nil, err
	}
	m, err := r.Device.CreateShaderModule(desc)
	if err == nil {
		r.inc(KindShaderModule)
	}
	return m, err
}

// DestroyShaderModule implements hal.Device.
func (r *Recorder) DestroyShaderModule(m hal.ShaderModule) {
	r.dec(KindShaderModule)
	r.Device.DestroyShaderModule(m)
}

// Pipeline is the render pipeline handle returned by Recorder. Noop
// pipelines carry no identity, so the label is attached here.
type Pipeline struct {
	hal.RenderPipeline
	Label    string
	Topology gputypes.PrimitiveTopology
}

// CreateRenderPipeline implements hal.Device.
func (r *Recorder) CreateRenderPipeline(desc *hal.RenderPipelineDescriptor) (hal.RenderPipeline, error) {
	if err := r.failure("CreateRenderPipeline"); err != nil {
		return nil, err
	}
	p, err := r.Device.CreateRenderPipeline(desc)
	if err != nil {
		return nil, err
	}
	r.inc(KindRenderPipeline)
	return &Pipeline{RenderPipeline: p, Label: desc.Label, Topology: desc.Primitive.Topology}, nil
}

// DestroyRenderPipeline implements hal.Device.
func (r *Recorder) DestroyRenderPipeline(p hal.RenderPipeline) {
	r.dec(KindRenderPipeline)
	if rp, ok := p.(*Pipeline); ok {
		p = rp.RenderPipeline
	}
	r.Device.DestroyRenderPipeline(p)
}

// CreateCommandEncoder implements hal.Device.
func (r *Recorder) CreateCommandEncoder(desc *hal.CommandEncoderDescriptor) (hal.CommandEncoder, error) {
	if err := r.failure("CreateCommandEncoder"); err != nil {
		return nil, err
	}
	e, err := r.Device.CreateCommandEncoder(desc)
	if err != nil {
		return nil, err
	}
	return &encoder{CommandEncoder: e, r: r}, nil
}

// FreeCommandBuffer implements hal.Device.
func (r *Recorder) FreeCommandBuffer(cb hal.CommandBuffer) {
	r.dec(KindCommandBuffer)
	r.Device.FreeCommandBuffer(cb)
}

// Queue records submissions and buffer writes.
type Queue struct {
	hal.Queue
	r *Recorder
}

// Submit implements hal.Queue.
func (q *Queue) Submit(cmds []hal.CommandBuffer) (uint64, error) {
	if err := q.r.failure("Submit"); err != nil {
		return 0, err
	}
	q.r.record(Call{Op: "Submit", Count: uint32(len(cmds))})
	return q.Queue.Submit(cmds)
}

// WriteBuffer implements hal.Queue.
func (q *Queue) WriteBuffer(b hal.Buffer, offset uint64, data []byte) error {
	if err := q.r.failure("WriteBuffer"); err != nil {
		return err
	}
	q.r.record(Call{Op: "WriteBuffer", Label: q.r.BufferLabel(b), Count: uint32(len(data))})
	return q.Queue.WriteBuffer(b, offset, data)
}

type encoder struct {
	hal.CommandEncoder
	r *Recorder
}

func (e *encoder) EndEncoding() (hal.CommandBuffer, error) {
	cb, err := e.CommandEncoder.EndEncoding()
	if err == nil {
		e.r.inc(KindCommandBuffer)
	}
	return cb, err
}

func (e *encoder) BeginRenderPass(desc *hal.RenderPassDescriptor) hal.RenderPassEncoder {
	c := Call{Op: "BeginRenderPass", Label: desc.Label}
	if len(desc.ColorAttachments) > 0 {
		c.Load = desc.ColorAttachments[0].LoadOp
	}
	e.r.record(c)
	return &pass{RenderPassEncoder: e.CommandEncoder.BeginRenderPass(desc), r: e.r}
}

func (e *encoder) CopyTextureToBuffer(src hal.Texture, dst hal.Buffer, regions []hal.BufferTextureCopy) {
	e.r.record(Call{Op: "CopyTextureToBuffer", Label: e.r.BufferLabel(dst), Count: uint32(len(regions))})
	e.CommandEncoder.CopyTextureToBuffer(src, dst, regions)
}

type pass struct {
	hal.RenderPassEncoder
	r *Recorder
}

func (p *pass) SetPipeline(pl hal.RenderPipeline) {
	c := Call{Op: "SetPipeline"}
	if rp, ok := pl.(*Pipeline); ok {
		c.Label = rp.Label
		pl = rp.RenderPipeline
	}
	p.r.record(c)
	p.RenderPassEncoder.SetPipeline(pl)
}

func (p *pass) SetBindGroup(index uint32, g hal.BindGroup, offsets []uint32) {
	p.r.record(Call{Op: "SetBindGroup", Slot: index})
	p.RenderPassEncoder.SetBindGroup(index, g, offsets)
}

func (p *pass) SetVertexBuffer(slot uint32, b hal.Buffer, offset uint64) {
	p.r.record(Call{Op: "SetVertexBuffer", Slot: slot, Label: p.r.BufferLabel(b)})
	p.RenderPassEncoder.SetVertexBuffer(slot, b, offset)
}

func (p *pass) SetIndexBuffer(b hal.Buffer, format gputypes.IndexFormat, offset uint64) {
	p.r.record(Call{Op: "SetIndexBuffer", Label: p.r.BufferLabel(b)})
	p.RenderPassEncoder.SetIndexBuffer(b, format, offset)
}

func (p *pass) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	p.r.record(Call{Op: "Draw", Count: vertexCount})
	p.RenderPassEncoder.Draw(vertexCount, instanceCount, firstVertex, firstInstance)
}

func (p *pass) DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32) {
	p.r.record(Call{Op: "DrawIndexed", Count: indexCount})
	p.RenderPassEncoder.DrawIndexed(indexCount, instanceCount, firstIndex, baseVertex, firstInstance)
}

func (p *pass) End() {
	p.r.record(Call{Op: "End"})
	p.RenderPassEncoder.End()
}
