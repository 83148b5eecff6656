// Command primdemo renders a scene of 2D primitives once and saves the
// surface as a PNG.
//
// Without -scene it draws the built-in face:
//
//	primdemo -output face.png
//	primdemo -backend vulkan -width 1024 -height 1024 -v
//	primdemo -scene scene/testdata/face.toml
package main

import (
	"errors"
	"flag"
	"fmt"
	"image/png"
	"log/slog"
	"os"
	"strings"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/prims"
	"github.com/gogpu/prims/scene"
	"github.com/gogpu/prims/surface"

	_ "github.com/gogpu/wgpu/hal/allbackends"
)

// errReported marks a failure scene.Run has already logged.
var errReported = errors.New("run failed")

var backends = map[string]gputypes.Backend{
	"vulkan":   gputypes.BackendVulkan,
	"metal":    gputypes.BackendMetal,
	"dx12":     gputypes.BackendDX12,
	"gl":       gputypes.BackendGL,
	"software": gputypes.BackendEmpty,
}

func main() {
	var (
		surfaceID = flag.String("surface", "webgl-canvas", "surface ID to render to")
		width     = flag.Int("width", 512, "surface width")
		height    = flag.Int("height", 512, "surface height")
		backend   = flag.String("backend", "", "GPU backend: vulkan, metal, dx12, gl or software (default: best available)")
		scenePath = flag.String("scene", "", "TOML scene file (default: built-in face)")
		output    = flag.String("output", "primitives.png", "output file")
		verbose   = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	prims.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if err := run(*surfaceID, *width, *height, *backend, *scenePath, *output); err != nil {
		if !errors.Is(err, errReported) {
			prims.Logger().Error("primdemo failed", "err", err)
		}
		os.Exit(1)
	}
}

func run(surfaceID string, width, height int, backend, scenePath, output string) error {
	var opts []prims.Option
	if backend != "" {
		b, ok := backends[strings.ToLower(backend)]
		if !ok {
			return fmt.Errorf("unknown backend %q", backend)
		}
		opts = append(opts, prims.WithBackend(b))
	}

	s := scene.Face()
	if scenePath != "" {
		var err error
		if s, err = scene.LoadFile(scenePath); err != nil {
			return err
		}
	}

	if err := surface.Register(surfaceID, surface.Descriptor{Width: width, Height: height, Label: output}); err != nil {
		return err
	}
	defer surface.Unregister(surfaceID)

	rep, err := scene.Run(surfaceID, s, opts...)
	if err != nil {
		return fmt.Errorf("%w: %w", errReported, err)
	}

	f, err := os.Create(output)
	if err != nil {
		return err
	}
	if err := png.Encode(f, rep.Image); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", output, err)
	}
	if err := f.Close(); err != nil {
		return err
	}

	prims.Logger().Info("primdemo: saved", "file", output, "width", width, "height", height, "draws", len(rep.Shapes))
	return nil
}
