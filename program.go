package prims

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/prims/internal/shader"
	"github.com/gogpu/wgpu/hal"
)

// Vertex buffer slots used by every program.
const (
	positionSlot = 0
	colorSlot    = 1

	positionComponents = 2
	colorComponents    = 4
)

// ProgramLayout names the shader interface a program is linked against.
// Empty fields take the defaults of DefaultProgramLayout.
type ProgramLayout struct {
	// PositionAttribute is the vertex input receiving vec2<f32> positions.
	PositionAttribute string
	// ColorAttribute is the vertex input receiving vec4<f32> RGBA colors.
	ColorAttribute string
	// PointSizeUniform is the f32 member of the @group(0) @binding(0)
	// uniform block that receives the per-draw point size.
	PointSizeUniform string
	// LineWidthUniform is the optional f32 member that receives the
	// effective line width.
	LineWidthUniform string
}

// DefaultProgramLayout returns the conventional attribute and uniform names.
func DefaultProgramLayout() ProgramLayout {
	return ProgramLayout{
		PositionAttribute: "a_position",
		ColorAttribute:    "a_color",
		PointSizeUniform:  "point_size",
		LineWidthUniform:  "line_width",
	}
}

func (l ProgramLayout) withDefaults() ProgramLayout {
	d := DefaultProgramLayout()
	if l.PositionAttribute == "" {
		l.PositionAttribute = d.PositionAttribute
	}
	if l.ColorAttribute == "" {
		l.ColorAttribute = d.ColorAttribute
	}
	if l.PointSizeUniform == "" {
		l.PointSizeUniform = d.PointSizeUniform
	}
	if l.LineWidthUniform == "" {
		l.LineWidthUniform = d.LineWidthUniform
	}
	return l
}

// Program is a linked vertex+fragment shader pair ready for drawing.
//
// It owns both shader modules, the pipeline layout, one render pipeline per
// primitive mode and a small uniform buffer. A Program is immutable after
// BuildProgram returns and is reused across all draws of a run.
type Program struct {
	device hal.Device
	layout ProgramLayout

	vs, fs         *shader.Module
	vertexModule   hal.ShaderModule
	fragmentModule hal.ShaderModule

	positionLocation uint32
	colorLocation    uint32

	// Uniform block layout; uniformSize is zero when the shaders declare
	// no uniform block.
	uniformSize     uint64
	pointSizeOffset int64 // -1 if absent
	lineWidthOffset int64 // -1 if absent

	bindLayout hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	pipelines  [Triangles + 1]hal.RenderPipeline
	uniformBuf hal.Buffer
	bindGroup  hal.BindGroup

	destroyed bool
}

// BuildProgram compiles both WGSL stages and links them into a Program
// using DefaultProgramLayout.
//
// A stage that fails to compile yields *ShaderCompileError naming the
// stage. Stages that compile but cannot be linked yield *ProgramLinkError.
// On any failure every object created so far is released.
func (c *Context) BuildProgram(vertexSource, fragmentSource string) (*Program, error) {
	return c.BuildProgramWithLayout(vertexSource, fragmentSource, DefaultProgramLayout())
}

// BuildProgramWithLayout is BuildProgram with custom interface names.
func (c *Context) BuildProgramWithLayout(vertexSource, fragmentSource string, layout ProgramLayout) (*Program, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}

	p := &Program{
		device:          c.device,
		layout:          layout.withDefaults(),
		pointSizeOffset: -1,
		lineWidthOffset: -1,
	}

	var err error
	p.vs, p.vertexModule, err = p.compileStage(StageVertex, vertexSource)
	if err != nil {
		return nil, err
	}
	p.fs, p.fragmentModule, err = p.compileStage(StageFragment, fragmentSource)
	if err != nil {
		p.Destroy()
		return nil, err
	}

	if err := p.link(c.desc.Format); err != nil {
		p.Destroy()
		var le *ProgramLinkError
		if errors.As(err, &le) {
			return nil, le
		}
		return nil, &ProgramLinkError{Log: err.Error()}
	}

	Logger().Debug("prims: program built",
		"vertex", p.vs.EntryPoint,
		"fragment", p.fs.EntryPoint,
		"position_location", p.positionLocation,
		"color_location", p.colorLocation,
		"uniform_size", p.uniformSize)
	return p, nil
}

// compileStage runs the WGSL front end and creates the HAL module.
func (p *Program) compileStage(stage ShaderStage, source string) (*shader.Module, hal.ShaderModule, error) {
	st := shader.Vertex
	if stage == StageFragment {
		st = shader.Fragment
	}

	m, err := shader.Compile(st, source)
	if err != nil {
		var se *shader.Error
		if errors.As(err, &se) {
			return nil, nil, &ShaderCompileError{Stage: stage, Log: se.Log}
		}
		return nil, nil, &ShaderCompileError{Stage: stage, Log: err.Error()}
	}

	mod, err := shader.CreateModule(p.device, stage.String()+"_shader", m)
	if err != nil {
		return nil, nil, &ShaderCompileError{Stage: stage, Log: err.Error()}
	}
	return m, mod, nil
}

// link resolves the shader interface and creates the pipeline objects.
// Interface problems are collected and reported together.
func (p *Program) link(format gputypes.TextureFormat) error {
	var problems []string

	attr := func(name string, want shader.Type) uint32 {
		v, ok := p.vs.Input(name)
		switch {
		case !ok:
			problems = append(problems, fmt.Sprintf("attribute %q not found in vertex stage", name))
		case v.Type != want:
			problems = append(problems, fmt.Sprintf("attribute %q is %s, want %s", name, v.Type, want))
		}
		return v.Location
	}
	p.positionLocation = attr(p.layout.PositionAttribute, shader.Vec2F32)
	p.colorLocation = attr(p.layout.ColorAttribute, shader.Vec4F32)

	for _, in := range p.vs.Inputs {
		if in.Name != p.layout.PositionAttribute && in.Name != p.layout.ColorAttribute {
			problems = append(problems, fmt.Sprintf("attribute %q at location %d has no vertex buffer", in.Name, in.Location))
		}
	}

	if err := shader.Link(p.vs, p.fs); err != nil {
		problems = append(problems, err.Error())
	}
	problems = append(problems, p.resolveUniforms()...)

	if len(problems) > 0 {
		return &ProgramLinkError{Log: strings.Join(problems, "\n")}
	}
	return p.createPipelines(format)
}

// resolveUniforms locates the per-draw uniform block at group 0, binding 0.
func (p *Program) resolveUniforms() []string {
	var problems []string
	var block *shader.UniformBlock

	for _, m := range []*shader.Module{p.vs, p.fs} {
		for i := range m.Uniforms {
			u := &m.Uniforms[i]
			if u.Group != 0 || u.Binding != 0 {
				problems = append(problems, fmt.Sprintf("%s uniform %q at @group(%d) @binding(%d) is not supported", m.Stage, u.Name, u.Group, u.Binding))
				continue
			}
			if block != nil && block.Size != u.Size {
				problems = append(problems, fmt.Sprintf("uniform block size differs between stages (%d vs %d bytes)", block.Size, u.Size))
				continue
			}
			if block == nil {
				block = u
			}
		}
	}
	if block == nil {
		return problems
	}

	member := func(name string) int64 {
		m, ok := block.Member(name)
		if !ok {
			return -1
		}
		if m.Type != shader.F32 {
			problems = append(problems, fmt.Sprintf("uniform %q is %s, want f32", name, m.Type))
			return -1
		}
		return int64(m.Offset)
	}
	p.pointSizeOffset = member(p.layout.PointSizeUniform)
	p.lineWidthOffset = member(p.layout.LineWidthUniform)

	// Uniform buffers are sized in 16-byte rows.
	p.uniformSize = max(uint64(block.Size+15)/16*16, 16)
	return problems
}

func (p *Program) createPipelines(format gputypes.TextureFormat) error {
	var bindLayouts []hal.BindGroupLayout
	if p.uniformSize > 0 {
		layout, err := p.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
			Label: "draw_uniform_layout",
			Entries: []gputypes.BindGroupLayoutEntry{{
				Binding:    0,
				Visibility: gputypes.ShaderStageVertex | gputypes.ShaderStageFragment,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
			}},
		})
		if err != nil {
			return fmt.Errorf("create uniform layout: %w", err)
		}
		p.bindLayout = layout
		bindLayouts = []hal.BindGroupLayout{layout}
	}

	pipeLayout, err := p.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "draw_pipe_layout",
		BindGroupLayouts: bindLayouts,
	})
	if err != nil {
		return fmt.Errorf("create pipeline layout: %w", err)
	}
	p.pipeLayout = pipeLayout

	buffers := []gputypes.VertexBufferLayout{
		{
			ArrayStride: positionComponents * 4,
			StepMode:    gputypes.VertexStepModeVertex,
			Attributes: []gputypes.VertexAttribute{
				{Format: gputypes.VertexFormatFloat32x2, Offset: 0, ShaderLocation: p.positionLocation},
			},
		},
		{
			ArrayStride: colorComponents * 4,
			StepMode:    gputypes.VertexStepModeVertex,
			Attributes: []gputypes.VertexAttribute{
				{Format: gputypes.VertexFormatFloat32x4, Offset: 0, ShaderLocation: p.colorLocation},
			},
		},
	}

	for mode := Points; mode <= Triangles; mode++ {
		primitive := gputypes.PrimitiveState{
			Topology:  mode.topology(),
			FrontFace: gputypes.FrontFaceCCW,
			CullMode:  gputypes.CullModeNone,
		}
		if mode == LineLoop {
			idx := gputypes.IndexFormatUint32
			primitive.StripIndexFormat = &idx
		}

		pipeline, err := p.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
			Label:  "draw_" + mode.String(),
			Layout: p.pipeLayout,
			Vertex: hal.VertexState{
				Module:     p.vertexModule,
				EntryPoint: p.vs.EntryPoint,
				Buffers:    buffers,
			},
			Fragment: &hal.FragmentState{
				Module:     p.fragmentModule,
				EntryPoint: p.fs.EntryPoint,
				Targets: []gputypes.ColorTargetState{{
					Format:    format,
					WriteMask: gputypes.ColorWriteMaskAll,
				}},
			},
			Primitive: primitive,
			Multisample: gputypes.MultisampleState{
				Count: 1,
				Mask:  0xFFFFFFFF,
			},
		})
		if err != nil {
			return fmt.Errorf("create %s pipeline: %w", mode, err)
		}
		p.pipelines[mode] = pipeline
	}

	if p.uniformSize == 0 {
		return nil
	}

	uniformBuf, err := p.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "draw_uniforms",
		Size:  p.uniformSize,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create uniform buffer: %w", err)
	}
	p.uniformBuf = uniformBuf

	bindGroup, err := p.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "draw_uniform_bind",
		Layout: p.bindLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{
				Buffer: uniformBuf.NativeHandle(), Offset: 0, Size: p.uniformSize,
			}},
		},
	})
	if err != nil {
		return fmt.Errorf("create bind group: %w", err)
	}
	p.bindGroup = bindGroup
	return nil
}

// PositionLocation returns the shader location of the position attribute.
func (p *Program) PositionLocation() uint32 { return p.positionLocation }

// ColorLocation returns the shader location of the color attribute.
func (p *Program) ColorLocation() uint32 { return p.colorLocation }

// HasPointSize reports whether the shaders declare the point size uniform.
func (p *Program) HasPointSize() bool { return p.pointSizeOffset >= 0 }

// Destroy releases every GPU object owned by the program in reverse order
// of creation. It is safe to call more than once.
func (p *Program) Destroy() {
	if p == nil || p.destroyed {
		return
	}
	p.destroyed = true

	if p.bindGroup != nil {
		p.device.DestroyBindGroup(p.bindGroup)
		p.bindGroup = nil
	}
	if p.uniformBuf != nil {
		p.device.DestroyBuffer(p.uniformBuf)
		p.uniformBuf = nil
	}
	for i := len(p.pipelines) - 1; i >= 0; i-- {
		if p.pipelines[i] != nil {
			p.device.DestroyRenderPipeline(p.pipelines[i])
			p.pipelines[i] = nil
		}
	}
	if p.pipeLayout != nil {
		p.device.DestroyPipelineLayout(p.pipeLayout)
		p.pipeLayout = nil
	}
	if p.bindLayout != nil {
		p.device.DestroyBindGroupLayout(p.bindLayout)
		p.bindLayout = nil
	}
	if p.fragmentModule != nil {
		p.device.DestroyShaderModule(p.fragmentModule)
		p.fragmentModule = nil
	}
	if p.vertexModule != nil {
		p.device.DestroyShaderModule(p.vertexModule)
		p.vertexModule = nil
	}
}
