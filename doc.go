// Package prims renders simple 2D primitives (points, lines and triangles)
// onto a GPU-backed surface in a single pass.
//
// # Overview
//
// A rendering session is a short, linear sequence of explicit steps:
//
//	surface.Register("face", surface.Descriptor{Width: 512, Height: 512})
//
//	ctx, err := prims.Acquire("face")
//	if err != nil {
//	    return err // errors.Is(err, prims.ErrContextUnavailable)
//	}
//	defer ctx.Close()
//
//	prog, err := ctx.BuildProgram(vertexWGSL, fragmentWGSL)
//	if err != nil {
//	    return err // *prims.ShaderCompileError or *prims.ProgramLinkError
//	}
//	defer prog.Destroy()
//
//	pos, _ := ctx.Upload("triangle.positions", []float32{0, 0.3, -0.3, -0.3, 0.3, -0.3})
//	col, _ := ctx.Upload("triangle.colors", colors)
//
//	res, err := ctx.Draw(prims.DrawRequest{
//	    Program:   prog,
//	    Positions: pos,
//	    Colors:    col,
//	    Count:     3,
//	    Mode:      prims.Triangles,
//	    PointSize: 10,
//	})
//
// There is no hidden "current" GPU state. The context, program and buffers
// are passed to every call that uses them.
//
// # Backends
//
// Rendering goes through the gogpu/wgpu hardware abstraction layer. Import
// github.com/gogpu/wgpu/hal/allbackends to register the platform backends
// (Vulkan, Metal, DX12, GLES and the software rasterizer). A host that
// already owns a device can share it with [WithDeviceProvider].
//
// # Line width
//
// WebGPU-class rasterizers draw 1-pixel lines only. [DrawResult] reports
// both the requested and the effective line width so callers can see the
// clamp instead of having it silently ignored.
//
// # Logging
//
// The package is silent by default. Use [SetLogger] to enable log/slog
// output.
package prims
