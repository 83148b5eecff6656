// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package surface

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/gogpu/gputypes"
)

// Descriptor describes a display surface.
type Descriptor struct {
	// Width and Height are the surface size in pixels.
	Width  int
	Height int

	// Format is the color format of the surface.
	// Zero means gputypes.TextureFormatRGBA8Unorm.
	Format gputypes.TextureFormat

	// Label is an optional human-readable name used in logs.
	Label string
}

// MaxDimension is the largest accepted surface width or height.
// It matches the WebGPU default maxTextureDimension2D limit.
const MaxDimension = 8192

// Validate checks the descriptor and returns the first problem found.
func (d Descriptor) Validate() error {
	if d.Width <= 0 || d.Height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidSize, d.Width, d.Height)
	}
	if d.Width > MaxDimension || d.Height > MaxDimension {
		return fmt.Errorf("%w: %dx%d exceeds %d", ErrInvalidSize, d.Width, d.Height, MaxDimension)
	}
	switch d.Format {
	case gputypes.TextureFormatUndefined, gputypes.TextureFormatRGBA8Unorm, gputypes.TextureFormatBGRA8Unorm:
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, d.Format)
	}
}

// normalized fills defaults.
func (d Descriptor) normalized() Descriptor {
	if d.Format == gputypes.TextureFormatUndefined {
		d.Format = gputypes.TextureFormatRGBA8Unorm
	}
	return d
}

// Registry maps surface IDs to descriptors. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Descriptor
}

// NewRegistry creates a new empty registry.
// Most code should use the default registry via Register and Lookup.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Descriptor)}
}

// defaultRegistry is the process-wide registry.
var defaultRegistry = NewRegistry()

// Default returns the process-wide registry.
func Default() *Registry { return defaultRegistry }

// Register adds a surface to the default registry.
func Register(id string, desc Descriptor) error {
	return defaultRegistry.Register(id, desc)
}

// Unregister removes a surface from the default registry.
func Unregister(id string) {
	defaultRegistry.Unregister(id)
}

// Lookup returns the descriptor of a surface in the default registry.
func Lookup(id string) (Descriptor, error) {
	return defaultRegistry.Lookup(id)
}

// List returns the IDs in the default registry, sorted.
func List() []string {
	return defaultRegistry.List()
}

// Register adds or replaces a surface.
func (r *Registry) Register(id string, desc Descriptor) error {
	if id == "" {
		return ErrEmptyID
	}
	if err := desc.Validate(); err != nil {
		return fmt.Errorf("surface %q: %w", id, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.entries == nil {
		r.entries = make(map[string]Descriptor)
	}
	r.entries[id] = desc.normalized()
	return nil
}

// Unregister removes a surface. Unknown IDs are ignored.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.entries, id)
}

// Lookup returns the descriptor registered under id.
func (r *Registry) Lookup(id string) (Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	desc, ok := r.entries[id]
	if !ok {
		return Descriptor{}, &NotFoundError{ID: id}
	}
	return desc, nil
}

// List returns all registered IDs, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.entries) == 0 {
		return nil
	}
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Errors.
var (
	// ErrEmptyID is returned when registering a surface without an ID.
	ErrEmptyID = errors.New("surface: empty surface ID")

	// ErrInvalidSize is returned for non-positive or oversized dimensions.
	ErrInvalidSize = errors.New("surface: invalid size")

	// ErrUnsupportedFormat is returned for formats other than RGBA8/BGRA8.
	ErrUnsupportedFormat = errors.New("surface: unsupported format")
)

// NotFoundError is returned when a surface ID is not registered.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("surface: %q not found", e.ID)
}
