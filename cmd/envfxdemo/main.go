// Command envfxdemo runs the effects engine headless and saves the result.
//
// Scan a lightmap and print the detected lights:
//
//	envfxdemo -scan assets/lightmap.png
//
// Render for a few seconds, then save the parameters and the first frame:
//
//	envfxdemo -config envfx.yaml -duration 5s -params params.yaml -output frame.png
package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"image/png"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/gogpu/envfx"
	"github.com/gogpu/envfx/config"
	"github.com/gogpu/envfx/lightmap"
)

func main() {
	var (
		configPath = flag.String("config", "", "YAML configuration file")
		scan       = flag.String("scan", "", "lightmap to scan; prints the lights and exits")
		duration   = flag.Duration("duration", 5*time.Second, "how long to render")
		paramsOut  = flag.String("params", "", "write the final parameters to this YAML file")
		output     = flag.String("output", "", "save the first pipeline's last frame as PNG")
		verbose    = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	envfx.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	cfg := config.Default()
	if *configPath != "" {
		c, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = c
	}

	if *scan != "" {
		scanLightmap(cfg, *scan)
		return
	}

	eng, err := envfx.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create engine: %v", err)
	}
	defer eng.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()
	if err := eng.Start(ctx); err != nil {
		log.Printf("Some effects failed: %v", err)
	}
	<-ctx.Done()

	v := eng.Store().Get()
	log.Printf("Phase %s: intensity=%.2f speed=%.2f angle=%.1f ambient=%.2f trigger=%v",
		eng.Phase(), v.Intensity, v.Speed, v.Angle, v.Ambient, v.Trigger)
	for _, p := range eng.Pipelines() {
		log.Printf("Pipeline %s: %v, %d frames", p.Label(), p.State(), p.Frames())
	}

	if *paramsOut != "" {
		if err := saveParams(eng, *paramsOut); err != nil {
			log.Fatalf("Failed to save params: %v", err)
		}
		log.Printf("Parameters saved to %s", *paramsOut)
	}
	if *output != "" {
		pls := eng.Pipelines()
		if len(pls) == 0 {
			log.Fatal("No pipeline to read back")
		}
		img, err := pls[0].ReadPixels()
		if err != nil {
			log.Fatalf("Failed to read pixels: %v", err)
		}
		if err := savePNG(img, *output); err != nil {
			log.Fatalf("Failed to save: %v", err)
		}
		log.Printf("Frame saved to %s (%dx%d)", *output, img.Bounds().Dx(), img.Bounds().Dy())
	}
}

func scanLightmap(cfg *config.Config, src string) {
	dec := lightmap.NewLoader()
	lights := lightmap.Extract(context.Background(), dec, src, cfg.Detection,
		image.Pt(cfg.Surface.Width, cfg.Surface.Height))
	for i, l := range lights {
		fmt.Printf("%3d  pos=(%.1f, %.1f)  color=(%.2f, %.2f, %.2f)  radius=%.1f\n",
			i, l.Position[0], l.Position[1], l.Color[0], l.Color[1], l.Color[2], l.Radius)
	}
	fmt.Printf("%d lights\n", len(lights))
}

func saveParams(eng *envfx.Engine, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := eng.Store().Save(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func savePNG(img image.Image, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
