// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package surface names the display surfaces that rendering contexts are
// acquired for.
//
// A surface is identified by a string ID (the equivalent of a canvas
// element ID) and described by its pixel size and color format. Hosts
// register surfaces up front; prims.Acquire looks them up by ID.
//
// # Registry
//
// The package keeps a process-wide default registry:
//
//	surface.Register("face", surface.Descriptor{Width: 512, Height: 512})
//
//	desc, err := surface.Lookup("face")
//
// Independent registries can be created with NewRegistry and passed to
// prims.Acquire with prims.WithRegistry, which keeps tests isolated.
package surface
