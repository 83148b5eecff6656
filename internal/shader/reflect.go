// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package shader

import (
	"fmt"

	"github.com/gogpu/naga/ir"
)

// Type is the reflected shape of a numeric interface value.
// Components is 1 for scalars and 2..4 for vectors; 0 means the type is
// not a numeric scalar or vector.
type Type struct {
	Kind       ir.ScalarKind
	Width      uint8
	Components uint8
}

// Common types.
var (
	F32     = Type{Kind: ir.ScalarFloat, Width: 4, Components: 1}
	Vec2F32 = Type{Kind: ir.ScalarFloat, Width: 4, Components: 2}
	Vec4F32 = Type{Kind: ir.ScalarFloat, Width: 4, Components: 4}
)

func (t Type) String() string {
	var scalar string
	switch t.Kind {
	case ir.ScalarFloat:
		scalar = fmt.Sprintf("f%d", int(t.Width)*8)
	case ir.ScalarSint:
		scalar = fmt.Sprintf("i%d", int(t.Width)*8)
	case ir.ScalarUint:
		scalar = fmt.Sprintf("u%d", int(t.Width)*8)
	case ir.ScalarBool:
		scalar = "bool"
	default:
		scalar = "?"
	}
	switch t.Components {
	case 0:
		return "opaque"
	case 1:
		return scalar
	default:
		return fmt.Sprintf("vec%d<%s>", t.Components, scalar)
	}
}

// Var is a @location-bound interface value.
type Var struct {
	Name     string
	Location uint32
	Type     Type
}

// UniformBlock is a var<uniform> global and its member layout.
type UniformBlock struct {
	Name    string
	Group   uint32
	Binding uint32
	Size    uint32
	Members []Member
}

// Member is one field of a uniform block.
type Member struct {
	Name   string
	Offset uint32
	Type   Type
}

// Member returns the field with the given name.
func (u UniformBlock) Member(name string) (Member, bool) {
	for _, m := range u.Members {
		if m.Name == name {
			return m, true
		}
	}
	return Member{}, false
}

func typeOf(mod *ir.Module, h ir.TypeHandle) Type {
	if int(h) >= len(mod.Types) {
		return Type{}
	}
	switch inner := mod.Types[h].Inner.(type) {
	case ir.ScalarType:
		return Type{Kind: inner.Kind, Width: inner.Width, Components: 1}
	case ir.VectorType:
		return Type{Kind: inner.Scalar.Kind, Width: inner.Scalar.Width, Components: uint8(inner.Size)}
	default:
		return Type{}
	}
}

func structOf(mod *ir.Module, h ir.TypeHandle) (ir.StructType, bool) {
	if int(h) >= len(mod.Types) {
		return ir.StructType{}, false
	}
	st, ok := mod.Types[h].Inner.(ir.StructType)
	return st, ok
}

// location extracts the location of a binding, if it is one.
func location(b *ir.Binding) (uint32, bool) {
	if b == nil || *b == nil {
		return 0, false
	}
	switch lb := (*b).(type) {
	case ir.LocationBinding:
		return lb.Location, true
	case *ir.LocationBinding:
		return lb.Location, true
	default:
		return 0, false
	}
}

// structVars collects location-bound members of a struct type.
func structVars(mod *ir.Module, h ir.TypeHandle) []Var {
	st, ok := structOf(mod, h)
	if !ok {
		return nil
	}
	var vars []Var
	for _, m := range st.Members {
		if loc, ok := location(m.Binding); ok {
			vars = append(vars, Var{Name: m.Name, Location: loc, Type: typeOf(mod, m.Type)})
		}
	}
	return vars
}

func entryInputs(mod *ir.Module, ep *ir.EntryPoint) []Var {
	var vars []Var
	for _, arg := range ep.Function.Arguments {
		if loc, ok := location(arg.Binding); ok {
			vars = append(vars, Var{Name: arg.Name, Location: loc, Type: typeOf(mod, arg.Type)})
			continue
		}
		if arg.Binding == nil {
			vars = append(vars, structVars(mod, arg.Type)...)
		}
	}
	return vars
}

func entryOutputs(mod *ir.Module, ep *ir.EntryPoint) []Var {
	res := ep.Function.Result
	if res == nil {
		return nil
	}
	if loc, ok := location(res.Binding); ok {
		return []Var{{Location: loc, Type: typeOf(mod, res.Type)}}
	}
	if res.Binding == nil {
		return structVars(mod, res.Type)
	}
	return nil
}

func uniformBlocks(mod *ir.Module) []UniformBlock {
	var blocks []UniformBlock
	for _, gv := range mod.GlobalVariables {
		if gv.Space != ir.SpaceUniform || gv.Binding == nil {
			continue
		}
		block := UniformBlock{
			Name:    gv.Name,
			Group:   gv.Binding.Group,
			Binding: gv.Binding.Binding,
		}
		if st, ok := structOf(mod, gv.Type); ok {
			block.Size = st.Span
			for _, m := range st.Members {
				block.Members = append(block.Members, Member{Name: m.Name, Offset: m.Offset, Type: typeOf(mod, m.Type)})
			}
		} else {
			t := typeOf(mod, gv.Type)
			block.Size = uint32(t.Width) * uint32(max(t.Components, 1))
			block.Members = []Member{{Name: gv.Name, Type: t}}
		}
		blocks = append(blocks, block)
	}
	return blocks
}
