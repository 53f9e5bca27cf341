// Command depthdemo streams a synthetic depth field through a depthmesh
// Mesher on an in-process GPU backend and writes the final mesh as GLB and
// its depth visualization as WebP.
package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log"
	"log/slog"
	"os"
	"path/filepath"

	_ "github.com/ftrvxmtrx/tga"
	"github.com/schollz/progressbar/v3"

	"github.com/gogpu/depthmesh"
	"github.com/gogpu/depthmesh/export"
	"github.com/gogpu/depthmesh/halctx"
	"github.com/gogpu/depthmesh/internal/config"
	"github.com/gogpu/depthmesh/preview"
)

func main() {
	var (
		configPath = flag.String("config", "", "YAML config file")
		backend    = flag.String("backend", "", "HAL backend: software or noop")
		method     = flag.String("method", "", "displacement method: mesh or shader")
		frames     = flag.Int("frames", 0, "number of frames to run")
		output     = flag.String("output", "", "output directory")
		verbose    = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	if *verbose {
		depthmesh.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
	}

	var cfg config.Config
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			log.Fatal(err)
		}
	}
	cfg.Resolve(config.Flags{
		Backend:   *backend,
		Method:    *method,
		Frames:    *frames,
		OutputDir: *output,
	})

	if err := run(context.Background(), cfg); err != nil {
		log.Fatalf("depthdemo: %v", err)
	}
}

func run(ctx context.Context, cfg config.Config) error {
	params, err := cfg.Parameters()
	if err != nil {
		return err
	}
	policy, err := cfg.ReadbackPolicy()
	if err != nil {
		return err
	}

	var colorImg image.Image
	if cfg.ColorImage != "" {
		if colorImg, err = loadImage(cfg.ColorImage); err != nil {
			return err
		}
	}

	provider, err := halctx.Open(halctx.Backend(cfg.Backend))
	if err != nil {
		return err
	}
	defer provider.Destroy()

	w, h := uint32(cfg.Width), uint32(cfg.Height)
	depth, err := depthmesh.NewDepthTexture(provider, w, h)
	if err != nil {
		return err
	}
	defer depth.Destroy()

	mesher, err := depthmesh.NewMesher(provider,
		depthmesh.WithWorkers(cfg.Workers),
		depthmesh.WithReadbackPolicy(policy),
		depthmesh.WithCoordinateRemap(cfg.Remap),
		depthmesh.WithAutoExtents(cfg.AutoExtents),
		depthmesh.WithParameters(params),
	)
	if err != nil {
		return err
	}
	defer mesher.Close()

	field := make([]float32, cfg.Width*cfg.Height)
	var snap depthmesh.MeshSnapshot

	bar := progressbar.Default(int64(cfg.Frames), "frames")
	for frame := range cfg.Frames {
		synthesize(field, cfg.Width, cfg.Height, frame)
		if err := depth.Upload(field); err != nil {
			return err
		}
		snap, err = mesher.AdvanceFrame(ctx, depthmesh.Frame{Depth: depth, Color: colorImg})
		if err != nil {
			return fmt.Errorf("frame %d: %w", frame, err)
		}
		_ = bar.Add(1)
	}
	_ = bar.Close()

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return err
	}

	meshPath := filepath.Join(cfg.OutputDir, "mesh.glb")
	if snap.Method == depthmesh.MethodMesh {
		if err := export.WriteGLB(meshPath, snap); err != nil {
			return err
		}
		log.Printf("mesh saved to %s (%d vertices, %d quads)", meshPath, len(snap.Vertices), len(snap.Indices)/4)
	} else {
		if err := checkShader(provider); err != nil {
			return err
		}
		log.Printf("shader method: mesh is flat, skipping %s", meshPath)
	}

	img, err := preview.Render(field, cfg.Width, cfg.Height, snap.Uniforms)
	if err != nil {
		return err
	}
	previewPath := filepath.Join(cfg.OutputDir, "depth.webp")
	f, err := os.Create(previewPath)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := preview.EncodeWebP(f, img); err != nil {
		return err
	}
	log.Printf("preview saved to %s (frame %d, depth digest %016x)", previewPath, snap.Frame, snap.DepthDigest)
	return nil
}

// checkShader builds the displacement shader module the renderer would bind.
func checkShader(provider *halctx.Provider) error {
	device, _, err := halctx.Resolve(provider)
	if err != nil {
		return err
	}
	module, err := depthmesh.CreateDisplacementShaderModule(device)
	if err != nil {
		return err
	}
	device.DestroyShaderModule(module)
	depthmesh.Logger().Debug("depthdemo: displacement shader module created")
	return nil
}

func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, format, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	depthmesh.Logger().Debug("depthdemo: color image loaded", "path", path, "format", format, "size", img.Bounds().Size())
	return img, nil
}
