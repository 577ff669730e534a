package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/kitforge/kitforge/backend-go/internal/asset"
	"github.com/kitforge/kitforge/backend-go/internal/config"
	"github.com/kitforge/kitforge/backend-go/internal/engine"
	"github.com/kitforge/kitforge/backend-go/internal/export"
	"github.com/kitforge/kitforge/backend-go/internal/live"
	"github.com/kitforge/kitforge/backend-go/internal/mesh"
	mw "github.com/kitforge/kitforge/backend-go/internal/middleware"
	"github.com/kitforge/kitforge/backend-go/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	level, _ := cfg.Level()
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repo, closeRepo, err := openRepository(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("open configuration store", "error", err)
		os.Exit(1)
	}
	defer closeRepo()

	if err := os.MkdirAll(cfg.AssetDir, 0755); err != nil {
		slog.Error("create asset dir", "error", err)
		os.Exit(1)
	}

	var scene mesh.Raycaster
	if cfg.ModelPath != "" {
		scene, err = loadModel(cfg.ModelPath)
		if err != nil {
			slog.Error("load model", "path", cfg.ModelPath, "error", err)
			os.Exit(1)
		}
	}

	var remote asset.Fetcher
	if hosts := cfg.RemoteHosts(); len(hosts) > 0 {
		remote = asset.HTTPFetcher{
			Client:  &http.Client{Timeout: 30 * time.Second},
			Allowed: asset.HostAllowlist(hosts),
		}
	} else {
		slog.Info("remote assets disabled, set REMOTE_ASSET_HOSTS to allow")
	}
	fetcher := asset.SchemeFetcher{
		Local:  asset.FSFetcher{FS: os.DirFS(cfg.AssetDir), Prefix: "/assets/"},
		Remote: remote,
	}
	newEngine := func() (*engine.Engine, error) {
		return engine.New(engine.Options{
			Variant:        cfg.Variant(),
			Size:           cfg.SurfaceSize,
			Fetcher:        fetcher,
			Scene:          scene,
			CameraDuration: cfg.CameraDuration,
			CameraEasing:   cfg.Easing(),
		})
	}

	hub := live.NewHub(repo, newEngine, cfg.TickInterval)
	go hub.Run()

	assetHandler := asset.NewHandler(cfg.AssetDir)
	assetHandler.SetRemote(remote)
	configHandler := store.NewHandler(repo)
	exportHandler := export.NewHandler(repo, newEngine)

	r := mux.NewRouter()

	// Global middleware
	r.Use(mw.Recovery)
	r.Use(mw.Logger)
	r.Use(mw.CORS(cfg.Origins()))

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	// Assets
	r.HandleFunc("/assets/upload", assetHandler.Upload).Methods("POST", "OPTIONS")
	r.HandleFunc("/assets/import", assetHandler.Import).Methods("POST", "OPTIONS")
	r.HandleFunc("/assets/{id}", assetHandler.Remove).Methods("DELETE", "OPTIONS")
	r.PathPrefix("/assets/").Handler(assetHandler.Serve()).Methods("GET")

	// Configurations
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/configs", configHandler.Create).Methods("POST", "OPTIONS")
	api.HandleFunc("/configs/{id}", configHandler.Get).Methods("GET")
	api.HandleFunc("/configs/{id}", configHandler.Save).Methods("PUT", "OPTIONS")
	api.HandleFunc("/configs/{id}/textures.zip", exportHandler.Bundle).Methods("GET")
	api.HandleFunc("/configs/{id}/textures/{region}", exportHandler.Texture).Methods("GET")
	api.HandleFunc("/sessions/{id}/textures/{region}", hub.Texture).Methods("GET")

	// WebSocket endpoint
	r.HandleFunc("/ws/session/{id}", hub.ServeWS(live.OriginPatterns(cfg.Origins())))

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down server")

		// Stop hub first to save every session with unsaved edits
		hub.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		srv.Shutdown(shutdownCtx)
	}()

	slog.Info("server starting", "addr", addr, "variant", cfg.ShoulderVariant, "size", cfg.SurfaceSize)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

// openRepository connects to PostgreSQL, or keeps configurations in memory
// when no database is configured.
func openRepository(ctx context.Context, databaseURL string) (store.Repository, func(), error) {
	if databaseURL == "" {
		slog.Warn("DATABASE_URL not set, configurations are kept in memory")
		return store.NewMemory(), func() {}, nil
	}
	db, err := store.Open(ctx, databaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	return db, db.Close, nil
}

func loadModel(path string) (*mesh.Scene, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	m, err := mesh.LoadOBJ(f, filepath.Base(path))
	if err != nil {
		return nil, err
	}
	return mesh.NewScene(m), nil
}
