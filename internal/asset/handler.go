package asset

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/gorilla/mux"

	"github.com/kitforge/kitforge/backend-go/internal/typeid"
)

const maxUploadSize = 10 << 20 // 10MB

var ErrInvalidImage = errors.New("invalid image")

// UploadResponse describes a stored asset.
type UploadResponse struct {
	ID     string `json:"id"`
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Type   string `json:"type"`
	Source string `json:"source"`
	Name   string `json:"name"`
}

// Handler stores uploaded artwork on disk as PNG, named by asset id.
type Handler struct {
	dir    string
	remote Fetcher
}

// NewHandler creates a handler storing files in dir. Remote imports stay
// disabled until SetRemote is called.
func NewHandler(dir string) *Handler {
	if err := os.MkdirAll(dir, 0755); err != nil {
		slog.Error("create asset dir", "error", err, "dir", dir)
	}
	return &Handler{dir: dir}
}

// SetRemote sets the fetcher used by Import. nil disables imports.
func (h *Handler) SetRemote(f Fetcher) {
	h.remote = f
}

// Dir returns the storage directory.
func (h *Handler) Dir() string {
	return h.dir
}

func (h *Handler) path(id string) string {
	return filepath.Join(h.dir, id+".png")
}

// store decodes r and writes it as a new PNG asset.
func (h *Handler) store(r io.Reader, name string) (*UploadResponse, error) {
	if ext := Ext(name); ext != "" && !slices.Contains(Extensions, ext) {
		return nil, fmt.Errorf("%w: unsupported image type %s", ErrInvalidImage, ext)
	}
	img, format, err := Decode(r, name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	id := typeid.NewAssetID()
	if err := writePNG(h.path(id), img); err != nil {
		return nil, err
	}

	b := img.Bounds()
	slog.Info("asset stored", "id", id, "source", format, "width", b.Dx(), "height", b.Dy())
	return &UploadResponse{
		ID:     id,
		URL:    "/assets/" + id + ".png",
		Width:  b.Dx(),
		Height: b.Dy(),
		Type:   "png",
		Source: format,
		Name:   name,
	}, nil
}

func writePNG(path string, img image.Image) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create asset file: %w", err)
	}
	if err := png.Encode(out, img); err != nil {
		out.Close()
		os.Remove(path)
		return fmt.Errorf("encode png: %w", err)
	}
	return out.Close()
}

func (h *Handler) respond(w http.ResponseWriter, resp *UploadResponse, err error) {
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, resp)
	case errors.Is(err, ErrInvalidImage):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		slog.Error("store asset", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to save file"})
	}
}

// Upload handles POST /assets/upload (multipart form with "file" field).
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "file too large (max 10MB)"})
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing file field"})
		return
	}
	defer file.Close()

	resp, err := h.store(file, header.Filename)
	h.respond(w, resp, err)
}

type importRequest struct {
	URL string `json:"url"`
}

// Import handles POST /assets/import with {"url": "..."}, copying a remote
// image into the asset store.
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	if h.remote == nil {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "remote import disabled"})
		return
	}

	var req importRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 4096)).Decode(&req); err != nil || req.URL == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "url is required"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()
	body, err := h.remote.Fetch(ctx, req.URL)
	if errors.Is(err, ErrHostNotAllowed) {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "host not allowed"})
		return
	}
	if err != nil {
		slog.Warn("asset import failed", "url", req.URL, "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "could not fetch url"})
		return
	}
	defer body.Close()

	resp, err := h.store(io.LimitReader(body, MaxAssetBytes), req.URL)
	h.respond(w, resp, err)
}

// Serve returns an http.Handler that serves stored asset files with caching headers.
func (h *Handler) Serve() http.Handler {
	fs := http.FileServer(http.Dir(h.dir))
	return http.StripPrefix("/assets/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Asset ids are unique, so files never change.
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		fs.ServeHTTP(w, r)
	}))
}

// Delete removes an asset file from disk.
func (h *Handler) Delete(assetID string) error {
	if err := typeid.Validate(assetID, typeid.PrefixAsset); err != nil {
		return fmt.Errorf("asset: %w", err)
	}
	if err := os.Remove(h.path(assetID)); err != nil {
		return fmt.Errorf("asset not found: %s: %w", assetID, err)
	}
	return nil
}

// Remove handles DELETE /assets/{id}.
func (h *Handler) Remove(w http.ResponseWriter, r *http.Request) {
	if err := h.Delete(mux.Vars(r)["id"]); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
