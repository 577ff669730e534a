package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/kitforge/kitforge/backend-go/internal/document"
	"github.com/kitforge/kitforge/backend-go/internal/typeid"
)

const maxDocumentSize = 1 << 20

// Handler serves the configuration endpoints.
type Handler struct {
	repo Repository
}

func NewHandler(repo Repository) *Handler {
	return &Handler{repo: repo}
}

type saveResponse struct {
	ID      string `json:"id"`
	Version int    `json:"version"`
}

// Create handles POST /api/configs. An empty body stores the default
// configuration.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	doc, err := readDocument(w, r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	id := typeid.NewConfigID()
	version, err := h.repo.Save(r.Context(), id, doc)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	slog.Info("configuration created", "id", id)
	writeJSON(w, http.StatusCreated, saveResponse{ID: id, Version: version})
}

// Save handles PUT /api/configs/{id}, storing a new version.
func (h *Handler) Save(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := typeid.Validate(id, typeid.PrefixConfig); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	doc, err := readDocument(w, r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	version, err := h.repo.Save(r.Context(), id, doc)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, saveResponse{ID: id, Version: version})
}

// Get handles GET /api/configs/{id}, returning the latest version.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	snap, err := h.repo.Latest(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, snap)
}

func readDocument(w http.ResponseWriter, r *http.Request) (*document.Configuration, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxDocumentSize))
	if err != nil {
		return nil, errors.New("invalid request body")
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return document.NewDefault(), nil
	}
	return document.Parse(bytes.NewReader(body))
}

func handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	default:
		slog.Error("store error", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
