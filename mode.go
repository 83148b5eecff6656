package prims

import (
	"fmt"
	"strings"

	"github.com/gogpu/gputypes"
)

// PrimitiveMode selects how vertices are assembled into primitives.
type PrimitiveMode uint8

const (
	// Points draws each vertex as a point.
	Points PrimitiveMode = iota
	// Lines draws each pair of vertices as an independent segment.
	Lines
	// LineLoop draws a connected polyline closed back to the first vertex.
	LineLoop
	// LineStrip draws a connected open polyline.
	LineStrip
	// Triangles draws each vertex triple as a filled triangle.
	Triangles
)

var modeNames = [...]string{
	Points:    "points",
	Lines:     "lines",
	LineLoop:  "line_loop",
	LineStrip: "line_strip",
	Triangles: "triangles",
}

// String returns the lower-case mode name used in scene files.
func (m PrimitiveMode) String() string {
	if m.Valid() {
		return modeNames[m]
	}
	return fmt.Sprintf("PrimitiveMode(%d)", m)
}

// IsLine reports whether m rasterizes lines and is affected by line width.
func (m PrimitiveMode) IsLine() bool {
	return m == Lines || m == LineLoop || m == LineStrip
}

// Valid reports whether m is one of the defined modes.
func (m PrimitiveMode) Valid() bool {
	return m <= Triangles
}

// topology maps the mode onto a GPU primitive topology. LineLoop has no
// native topology and is drawn as an indexed line strip.
func (m PrimitiveMode) topology() gputypes.PrimitiveTopology {
	switch m {
	case Points:
		return gputypes.PrimitiveTopologyPointList
	case Lines:
		return gputypes.PrimitiveTopologyLineList
	case LineLoop, LineStrip:
		return gputypes.PrimitiveTopologyLineStrip
	default:
		return gputypes.PrimitiveTopologyTriangleList
	}
}

// ParsePrimitiveMode parses a mode name. Matching is case-insensitive and
// accepts '-' in place of '_', so "LINE_STRIP" and "line-strip" both work.
func ParsePrimitiveMode(s string) (PrimitiveMode, error) {
	name := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	for m, n := range modeNames {
		if n == name {
			return PrimitiveMode(m), nil
		}
	}
	return 0, fmt.Errorf("prims: unknown primitive mode %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (m PrimitiveMode) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("prims: invalid primitive mode %d", m)
	}
	return []byte(modeNames[m]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *PrimitiveMode) UnmarshalText(text []byte) error {
	v, err := ParsePrimitiveMode(string(text))
	if err != nil {
		return err
	}
	*m = v
	return nil
}
