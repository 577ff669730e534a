// Command bake renders a stored garment configuration to one texture file
// per region.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/kitforge/kitforge/backend-go/internal/asset"
	"github.com/kitforge/kitforge/backend-go/internal/document"
	"github.com/kitforge/kitforge/backend-go/internal/engine"
	"github.com/kitforge/kitforge/backend-go/internal/export"
	"github.com/kitforge/kitforge/backend-go/internal/region"
	"github.com/kitforge/kitforge/backend-go/internal/texture"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		slog.Error("bake failed", "error", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("bake", flag.ContinueOnError)
	configPath := fs.String("config", "", "configuration JSON file (default: untouched garment)")
	assetDir := fs.String("assets", ".", "directory that /assets/ references resolve to")
	outDir := fs.String("out", "textures", "output directory")
	format := fs.String("format", "png", "output format: png or webp")
	variant := fs.String("variant", string(region.SetIn), "shoulder variant: setIn or raglan")
	size := fs.Int("size", texture.DefaultSize, "surface size in pixels")
	timeout := fs.Duration("timeout", export.DefaultTimeout, "how long to wait for assets")
	verbose := fs.Bool("v", false, "debug logging")
	if err := fs.Parse(args); err != nil {
		return err
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	f, err := texture.ParseFormat(*format)
	if err != nil {
		return err
	}
	v, err := region.ParseVariant(*variant)
	if err != nil {
		return err
	}
	if *size <= 0 || *size > texture.MaxSize {
		return fmt.Errorf("size must be in 1..%d", texture.MaxSize)
	}

	doc := document.NewDefault()
	if *configPath != "" {
		file, err := os.Open(*configPath)
		if err != nil {
			return err
		}
		doc, err = document.Parse(file)
		file.Close()
		if err != nil {
			return err
		}
	}

	e, err := engine.New(engine.Options{
		Variant: v,
		Size:    *size,
		Fetcher: asset.SchemeFetcher{
			Local:  asset.FSFetcher{FS: os.DirFS(*assetDir), Prefix: "/assets/"},
			Remote: asset.HTTPFetcher{Client: &http.Client{Timeout: *timeout}},
		},
		Logger: logger,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	start := time.Now()
	if err := export.Bake(ctx, e, doc); err != nil {
		return err
	}

	paths, err := export.WriteAll(e, *outDir, f)
	if err != nil {
		return err
	}
	for _, p := range paths {
		fmt.Println(p)
	}
	logger.Info("baked", "textures", len(paths), "variant", v, "size", *size, "took", time.Since(start))
	return nil
}
