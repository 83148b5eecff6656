// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package shader

import (
	"fmt"
	"strings"
)

// LinkError lists every interface mismatch found between two stages.
type LinkError struct {
	Problems []string
}

func (e *LinkError) Error() string {
	return strings.Join(e.Problems, "; ")
}

// Link checks that every fragment @location input is written by a vertex
// output at the same location with the same type.
func Link(vs, fs *Module) error {
	if vs.Stage != Vertex || fs.Stage != Fragment {
		return &LinkError{Problems: []string{fmt.Sprintf("cannot link %s with %s", vs.Stage, fs.Stage)}}
	}

	outputs := make(map[uint32]Var, len(vs.Outputs))
	for _, o := range vs.Outputs {
		outputs[o.Location] = o
	}

	var problems []string
	for _, in := range fs.Inputs {
		out, ok := outputs[in.Location]
		switch {
		case !ok:
			problems = append(problems, fmt.Sprintf("fragment input %q at location %d has no vertex output", in.Name, in.Location))
		case out.Type != in.Type:
			problems = append(problems, fmt.Sprintf("fragment input %q at location %d is %s, vertex output is %s", in.Name, in.Location, in.Type, out.Type))
		}
	}
	if len(problems) > 0 {
		return &LinkError{Problems: problems}
	}
	return nil
}
