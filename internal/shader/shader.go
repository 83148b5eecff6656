// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package shader compiles WGSL stages with naga and reflects the parts of
// their interfaces that a draw needs: vertex attributes, inter-stage
// varyings and uniform blocks.
package shader

import (
	"fmt"
	"strings"

	"github.com/gogpu/naga"
	"github.com/gogpu/naga/ir"
	"github.com/gogpu/wgpu/hal"
)

// Stage is a programmable pipeline stage.
type Stage uint8

const (
	Vertex Stage = iota
	Fragment
)

func (s Stage) String() string {
	if s == Fragment {
		return "fragment"
	}
	return "vertex"
}

func (s Stage) ir() ir.ShaderStage {
	if s == Fragment {
		return ir.StageFragment
	}
	return ir.StageVertex
}

// Error carries compiler diagnostics for one stage.
type Error struct {
	Stage Stage
	Log   string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s shader: %s", e.Stage, e.Log)
}

// Module is a compiled and reflected shader stage.
type Module struct {
	Stage      Stage
	Source     string
	EntryPoint string

	// Inputs are the @location inputs of the entry point. For a vertex
	// stage these are the vertex attributes.
	Inputs []Var

	// Outputs are the @location outputs of the entry point.
	Outputs []Var

	// Uniforms are the var<uniform> globals with a resource binding.
	Uniforms []UniformBlock
}

// Compile parses, lowers and validates WGSL source for the given stage.
// The source must declare an entry point for that stage; the first one
// found is used. Diagnostics are returned as *Error.
//
// Successful results are cached by stage and source, so the returned
// Module is shared and must not be modified.
func Compile(stage Stage, source string) (*Module, error) {
	key := cacheKey{stage: stage, source: source}
	if m, ok := compiled.get(key); ok {
		return m, nil
	}
	m, err := compile(stage, source)
	if err != nil {
		return nil, err
	}
	compiled.set(key, m)
	return m, nil
}

func compile(stage Stage, source string) (*Module, error) {
	if strings.TrimSpace(source) == "" {
		return nil, &Error{Stage: stage, Log: "empty source"}
	}

	ast, err := naga.Parse(source)
	if err != nil {
		return nil, &Error{Stage: stage, Log: err.Error()}
	}
	mod, err := naga.LowerWithSource(ast, source)
	if err != nil {
		return nil, &Error{Stage: stage, Log: err.Error()}
	}
	verrs, err := naga.Validate(mod)
	if err != nil {
		return nil, &Error{Stage: stage, Log: err.Error()}
	}
	if len(verrs) > 0 {
		lines := make([]string, len(verrs))
		for i, ve := range verrs {
			lines[i] = ve.Error()
		}
		return nil, &Error{Stage: stage, Log: strings.Join(lines, "\n")}
	}

	ep := findEntryPoint(mod, stage.ir())
	if ep == nil {
		return nil, &Error{Stage: stage, Log: fmt.Sprintf("no @%s entry point", stage)}
	}

	m := &Module{
		Stage:      stage,
		Source:     source,
		EntryPoint: ep.Name,
		Inputs:     entryInputs(mod, ep),
		Outputs:    entryOutputs(mod, ep),
		Uniforms:   uniformBlocks(mod),
	}
	return m, nil
}

func findEntryPoint(mod *ir.Module, stage ir.ShaderStage) *ir.EntryPoint {
	for i := range mod.EntryPoints {
		if mod.EntryPoints[i].Stage == stage {
			return &mod.EntryPoints[i]
		}
	}
	return nil
}

// Input returns the @location input with the given name.
func (m *Module) Input(name string) (Var, bool) {
	for _, v := range m.Inputs {
		if v.Name == name {
			return v, true
		}
	}
	return Var{}, false
}

// Uniform returns the uniform block bound at group/binding.
func (m *Module) Uniform(group, binding uint32) (UniformBlock, bool) {
	for _, u := range m.Uniforms {
		if u.Group == group && u.Binding == binding {
			return u, true
		}
	}
	return UniformBlock{}, false
}

// CreateModule creates a HAL shader module from the validated WGSL source.
func CreateModule(device hal.Device, label string, m *Module) (hal.ShaderModule, error) {
	return device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label: label,
		Source: hal.ShaderSource{
			WGSL: m.Source,
		},
	})
}
