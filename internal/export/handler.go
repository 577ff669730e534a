package export

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/kitforge/kitforge/backend-go/internal/document"
	"github.com/kitforge/kitforge/backend-go/internal/engine"
	"github.com/kitforge/kitforge/backend-go/internal/region"
	"github.com/kitforge/kitforge/backend-go/internal/store"
	"github.com/kitforge/kitforge/backend-go/internal/texture"
)

// ErrRenderFailed is returned when a surface could not be rendered.
var ErrRenderFailed = errors.New("export: render failed")

// DefaultTimeout bounds how long one bake waits for its assets.
const DefaultTimeout = 30 * time.Second

// NewEngineFunc creates a fresh engine for one bake.
type NewEngineFunc func() (*engine.Engine, error)

// Bake loads doc into e, waits for every asset and renders all surfaces.
func Bake(ctx context.Context, e *engine.Engine, doc *document.Configuration) error {
	if err := e.LoadConfiguration(ctx, doc); err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if err := e.Settle(ctx); err != nil {
		return err
	}
	e.Tick(0)
	if dirty := e.DirtyRegions(); len(dirty) > 0 {
		return fmt.Errorf("%w: %v", ErrRenderFailed, dirty)
	}
	return nil
}

// Filename names a region's texture file.
func Filename(id region.ID, f texture.Format) string {
	return sanitize(string(id)) + "." + string(f)
}

// WriteAll writes every region's texture into dir and returns the paths.
func WriteAll(e *engine.Engine, dir string, f texture.Format) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	var paths []string
	for _, id := range e.Registry().Regions() {
		tex, err := e.Texture(id)
		if err != nil {
			return paths, err
		}
		path := filepath.Join(dir, Filename(id, f))
		out, err := os.Create(path)
		if err != nil {
			return paths, fmt.Errorf("create %s: %w", path, err)
		}
		err = texture.Encode(out, tex.Image, f)
		if cerr := out.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			os.Remove(path)
			return paths, fmt.Errorf("write %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// Handler renders stored configurations to texture files.
type Handler struct {
	repo      store.Repository
	newEngine NewEngineFunc
	timeout   time.Duration
}

func NewHandler(repo store.Repository, newEngine NewEngineFunc) *Handler {
	return &Handler{repo: repo, newEngine: newEngine, timeout: DefaultTimeout}
}

func (h *Handler) bake(r *http.Request, id string) (*engine.Engine, int, error) {
	snap, err := h.repo.Latest(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, http.StatusNotFound, err
		}
		return nil, http.StatusInternalServerError, err
	}

	e, err := h.newEngine()
	if err != nil {
		return nil, http.StatusInternalServerError, err
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	if err := Bake(ctx, e, snap.Document); err != nil {
		return nil, http.StatusInternalServerError, err
	}
	return e, http.StatusOK, nil
}

func parseFormat(r *http.Request) (texture.Format, error) {
	f := r.URL.Query().Get("format")
	if f == "" {
		return texture.PNG, nil
	}
	return texture.ParseFormat(f)
}

// Texture handles GET /api/configs/{id}/textures/{region}?format=png|webp.
func (h *Handler) Texture(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	format, err := parseFormat(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	id, err := region.ParseID(vars["region"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	e, status, err := h.bake(r, vars["id"])
	if err != nil {
		slog.Warn("bake failed", "config", vars["id"], "error", err)
		http.Error(w, http.StatusText(status), status)
		return
	}

	tex, err := e.Texture(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", Filename(id, format)))
	if err := texture.Encode(w, tex.Image, format); err != nil {
		slog.Error("encode texture", "region", id, "error", err)
	}
}

// Bundle handles GET /api/configs/{id}/textures.zip with every region.
func (h *Handler) Bundle(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	format, err := parseFormat(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	e, status, err := h.bake(r, vars["id"])
	if err != nil {
		slog.Warn("bake failed", "config", vars["id"], "error", err)
		http.Error(w, http.StatusText(status), status)
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", sanitize(vars["id"])+".zip"))

	zw := zip.NewWriter(w)
	for _, id := range e.Registry().Regions() {
		tex, err := e.Texture(id)
		if err != nil {
			continue
		}
		fw, err := zw.Create(Filename(id, format))
		if err != nil {
			slog.Error("zip entry", "region", id, "error", err)
			return
		}
		if err := texture.Encode(fw, tex.Image, format); err != nil {
			slog.Error("encode texture", "region", id, "error", err)
			return
		}
	}
	if err := zw.Close(); err != nil {
		slog.Error("close zip", "error", err)
	}
}

// sanitize keeps a filename to ASCII letters, digits, dashes and underscores.
func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			return r
		}
		return '-'
	}, name)
}
