package export

import (
	"archive/zip"
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kitforge/kitforge/backend-go/internal/asset"
	"github.com/kitforge/kitforge/backend-go/internal/document"
	"github.com/kitforge/kitforge/backend-go/internal/engine"
	"github.com/kitforge/kitforge/backend-go/internal/region"
	"github.com/kitforge/kitforge/backend-go/internal/store"
	"github.com/kitforge/kitforge/backend-go/internal/texture"
)

const size = 64

func crestPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i+2], img.Pix[i+3] = 255, 255
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func engineFactory(t *testing.T) NewEngineFunc {
	fsys := fstest.MapFS{"crest.png": {Data: crestPNG(t)}}
	return func() (*engine.Engine, error) {
		return engine.New(engine.Options{
			Size:    size,
			Fetcher: asset.FSFetcher{FS: fsys, Prefix: "/assets/"},
		})
	}
}

func sampleDocument() *document.Configuration {
	doc := document.NewDefault()
	doc.Parts[region.Front] = document.Part{Color: "#ff0000"}
	doc.Logos[region.Front] = []document.Logo{{
		URL: "/assets/crest.png", Left: 32, Top: 32, ScaleX: 1, ScaleY: 1,
		OriginX: "center", OriginY: "center",
	}}
	return doc
}

func TestBakeRendersConfiguration(t *testing.T) {
	e, err := engineFactory(t)()
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, Bake(ctx, e, sampleDocument()))

	tex, err := e.Texture(region.Front)
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{B: 255, A: 255}, tex.Image.RGBAAt(32, 32))
	assert.Equal(t, color.RGBA{R: 255, A: 255}, tex.Image.RGBAAt(2, 2))

	dir := t.TempDir()
	paths, err := WriteAll(e, dir, texture.PNG)
	require.NoError(t, err)
	assert.Len(t, paths, len(e.Registry().Regions()))
	assert.FileExists(t, filepath.Join(dir, "front.png"))

	f, err := os.Open(filepath.Join(dir, "front.png"))
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, size, size), img.Bounds())
}

func TestBakeRejectsInvalidDocument(t *testing.T) {
	e, err := engineFactory(t)()
	require.NoError(t, err)
	doc := document.NewDefault()
	doc.Parts["pocket"] = document.Part{Color: "#fff"}
	assert.ErrorIs(t, Bake(context.Background(), e, doc), document.ErrInvalid)
}

func setupRouter(t *testing.T) (*mux.Router, string) {
	repo := store.NewMemory()
	id := "cfg_01h455vb4pex5vsknk084sn02q"
	_, err := repo.Save(context.Background(), id, sampleDocument())
	require.NoError(t, err)

	h := NewHandler(repo, engineFactory(t))
	r := mux.NewRouter()
	r.HandleFunc("/api/configs/{id}/textures.zip", h.Bundle).Methods("GET")
	r.HandleFunc("/api/configs/{id}/textures/{region}", h.Texture).Methods("GET")
	return r, id
}

func TestTextureEndpoint(t *testing.T) {
	r, id := setupRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/configs/"+id+"/textures/front", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	img, err := png.Decode(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, size, img.Bounds().Dx())

	req = httptest.NewRequest(http.MethodGet, "/api/configs/"+id+"/textures/front?format=webp", nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/webp", rec.Header().Get("Content-Type"))
	assert.Equal(t, "RIFF", rec.Body.String()[:4])
}

func TestTextureEndpointErrors(t *testing.T) {
	r, id := setupRouter(t)

	for _, tc := range []struct {
		path string
		code int
	}{
		{"/api/configs/" + id + "/textures/pocket", http.StatusBadRequest},
		{"/api/configs/" + id + "/textures/front?format=gif", http.StatusBadRequest},
		{"/api/configs/cfg_01h455vb4pex5vsknk084sn02r/textures/front", http.StatusNotFound},
	} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tc.path, nil))
		assert.Equal(t, tc.code, rec.Code, tc.path)
	}
}

func TestBundleEndpoint(t *testing.T) {
	r, id := setupRouter(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/configs/"+id+"/textures.zip", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	zr, err := zip.NewReader(bytes.NewReader(rec.Body.Bytes()), int64(rec.Body.Len()))
	require.NoError(t, err)
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	assert.Contains(t, names, "front.png")
	assert.Contains(t, names, "collar.png")
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "cfg_abc", sanitize("cfg_abc"))
	assert.Equal(t, "a-b-c", sanitize("a/b.c"))
}
