package asset

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestExt(t *testing.T) {
	assert.Equal(t, ".png", Ext("/assets/a.PNG?v=2"))
	assert.Equal(t, ".tga", Ext("https://cdn.example.com/x/logo.tga#frag"))
	assert.Equal(t, "", Ext("blob"))
}

func TestDecodeSniffsWithoutExtension(t *testing.T) {
	data := pngBytes(t, 3, 2)
	img, format, err := Decode(bytes.NewReader(data), "upload")
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, 3, img.Bounds().Dx())

	_, _, err = Decode(strings.NewReader("not an image"), "x.png")
	assert.Error(t, err)

	_, _, err = Decode(strings.NewReader("plain text payload"), "notes")
	assert.ErrorIs(t, err, ErrUnknownFormat)

	// A PDF signature is recognised but is not an image.
	_, _, err = Decode(strings.NewReader("%PDF-1.7 rest of file"), "doc")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

// pngHeader returns a PNG that declares w x h pixels but carries no image data.
func pngHeader(w, h uint32) []byte {
	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")
	chunk := make([]byte, 17)
	copy(chunk, "IHDR")
	binary.BigEndian.PutUint32(chunk[4:], w)
	binary.BigEndian.PutUint32(chunk[8:], h)
	chunk[12] = 8 // bit depth
	chunk[13] = 6 // RGBA
	binary.Write(&buf, binary.BigEndian, uint32(13))
	buf.Write(chunk)
	binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(chunk))
	return buf.Bytes()
}

func TestDecodeRejectsOversizedHeader(t *testing.T) {
	for _, name := range []string{"huge.png", "upload"} {
		_, format, err := Decode(bytes.NewReader(pngHeader(12000, 12000)), name)
		assert.ErrorIs(t, err, ErrTooLarge, name)
		assert.Equal(t, "png", format)
	}

	_, _, err := Decode(bytes.NewReader(pngHeader(0, 10)), "empty.png")
	assert.ErrorIs(t, err, ErrTooLarge)

	img, _, err := Decode(bytes.NewReader(pngBytes(t, 64, 64)), "ok.png")
	require.NoError(t, err)
	assert.Equal(t, 64, img.Bounds().Dy())
}

func TestNormalize(t *testing.T) {
	src := image.NewNRGBA(image.Rect(10, 10, 410, 210))
	out := Normalize(src, 100)
	assert.Equal(t, image.Rect(0, 0, 100, 50), out.Bounds())

	tall := image.NewGray(image.Rect(0, 0, 20, 80))
	assert.Equal(t, image.Rect(0, 0, 5, 20), Normalize(tall, 20).Bounds())

	small := image.NewRGBA(image.Rect(5, 5, 15, 15))
	small.SetRGBA(5, 5, color.RGBA{R: 9, A: 255})
	got := Normalize(small, 0)
	assert.Equal(t, image.Rect(0, 0, 10, 10), got.Bounds())
	assert.Equal(t, uint8(9), got.RGBAAt(0, 0).R)
}

func TestLoaderDeliversResult(t *testing.T) {
	fsys := fstest.MapFS{"logos/crest.png": {Data: pngBytes(t, 8, 4)}}
	l := NewLoader(FSFetcher{FS: fsys, Prefix: "/assets/"}, 0, nil)

	task := l.Load(context.Background(), "logo_1", "/assets/logos/crest.png", "meta")
	img, err := task.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 8, 4), img.Bounds())

	select {
	case <-l.Ready():
	case <-time.After(time.Second):
		t.Fatal("no ready signal")
	}
	results := l.Drain()
	require.Len(t, results, 1)
	assert.Equal(t, "logo_1", results[0].Key)
	assert.Equal(t, "meta", results[0].Meta)
	assert.Empty(t, l.Drain())
	assert.Equal(t, 0, l.Pending())
}

func TestLoaderReportsFailureOnce(t *testing.T) {
	l := NewLoader(FSFetcher{FS: fstest.MapFS{}}, 0, nil)
	_, err := l.Load(context.Background(), "design:front", "missing.png", nil).Wait(context.Background())
	require.Error(t, err)

	results := l.Drain()
	require.Len(t, results, 1)
	assert.Error(t, results[0].Err)
	assert.Nil(t, results[0].Image)
}

// gatedFetcher blocks fetches of "slow.png" until the context ends.
type gatedFetcher struct {
	fsys    fstest.MapFS
	started chan struct{}
}

func (g gatedFetcher) Fetch(ctx context.Context, ref string) (io.ReadCloser, error) {
	if ref == "slow.png" {
		close(g.started)
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return FSFetcher{FS: g.fsys}.Fetch(ctx, ref)
}

func TestLoaderSupersedesSameKey(t *testing.T) {
	g := gatedFetcher{fsys: fstest.MapFS{"fast.png": {Data: pngBytes(t, 2, 2)}}, started: make(chan struct{})}
	l := NewLoader(g, 0, nil)
	ctx := context.Background()

	first := l.Load(ctx, "design:front", "slow.png", nil)
	<-g.started
	second := l.Load(ctx, "design:front", "fast.png", nil)

	_, err := first.Wait(ctx)
	assert.ErrorIs(t, err, ErrLoadSuperseded)
	_, err = second.Wait(ctx)
	require.NoError(t, err)

	require.NoError(t, l.Wait(ctx))
	results := l.Drain()
	require.Len(t, results, 1)
	assert.Equal(t, "fast.png", results[0].Ref)
}

func TestLoaderCancel(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	g := gatedFetcher{started: make(chan struct{})}
	l := NewLoader(g, 0, logger)
	task := l.Load(context.Background(), "k", "slow.png", nil)
	<-g.started
	task.Cancel()

	_, err := task.Wait(context.Background())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, l.Drain(), 1)
	assert.Contains(t, logs.String(), "asset load cancelled")
	assert.NotContains(t, logs.String(), "level=WARN")
}

func TestLoaderForgetsFinishedKeys(t *testing.T) {
	fsys := fstest.MapFS{"a.png": {Data: pngBytes(t, 2, 2)}}
	l := NewLoader(FSFetcher{FS: fsys}, 0, nil)
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		l.Load(ctx, fmt.Sprintf("logo:%d", i), "a.png", nil)
	}
	require.NoError(t, l.Wait(ctx))
	assert.Len(t, l.Drain(), 50)

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.Empty(t, l.latest)
	assert.Empty(t, l.inflight)
}

func TestHTTPFetcher(t *testing.T) {
	data := pngBytes(t, 4, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/assets/a.png" {
			http.NotFound(w, r)
			return
		}
		w.Write(data)
	}))
	defer srv.Close()

	l := NewLoader(HTTPFetcher{Client: srv.Client(), BaseURL: srv.URL}, 0, nil)
	img, err := l.Load(context.Background(), "a", "/assets/a.png", nil).Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, img.Bounds().Dx())

	_, err = l.Load(context.Background(), "b", "/assets/b.png", nil).Wait(context.Background())
	assert.ErrorContains(t, err, "status 404")
}

func TestUploadStoresPNG(t *testing.T) {
	dir := t.TempDir()
	h := NewHandler(dir)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "crest.png")
	require.NoError(t, err)
	fw.Write(pngBytes(t, 6, 3))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/assets/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.Upload(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp UploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, strings.HasPrefix(resp.ID, "asset_"))
	assert.Equal(t, 6, resp.Width)
	assert.Equal(t, "png", resp.Source)
	_, err = os.Stat(filepath.Join(dir, resp.ID+".png"))
	require.NoError(t, err)

	rec = httptest.NewRecorder()
	h.Serve().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, resp.URL, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Cache-Control"), "immutable")

	require.NoError(t, h.Delete(resp.ID))
	assert.Error(t, h.Delete(resp.ID))
}

func TestUploadRejectsUnsupportedType(t *testing.T) {
	h := NewHandler(t.TempDir())
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, _ := mw.CreateFormFile("file", "notes.txt")
	fw.Write([]byte("hello"))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/assets/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.Upload(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadRejectsOversizedImage(t *testing.T) {
	dir := t.TempDir()
	h := NewHandler(dir)
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, _ := mw.CreateFormFile("file", "huge.png")
	fw.Write(pngHeader(20000, 20000))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/assets/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.Upload(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "too large")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRemoveRoute(t *testing.T) {
	dir := t.TempDir()
	h := NewHandler(dir)
	id := "asset_01h455vb4pex5vsknk084sn02q"
	require.NoError(t, os.WriteFile(filepath.Join(dir, id+".png"), pngBytes(t, 2, 2), 0644))

	r := mux.NewRouter()
	r.HandleFunc("/assets/{id}", h.Remove).Methods("DELETE")

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/assets/"+id, nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.NoFileExists(t, filepath.Join(dir, id+".png"))

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/assets/"+id, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/assets/cfg_01h455vb4pex5vsknk084sn02q", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSchemeFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("remote"))
	}))
	defer srv.Close()

	f := SchemeFetcher{
		Local:  FSFetcher{FS: fstest.MapFS{"a.png": {Data: []byte("local")}}, Prefix: "/assets/"},
		Remote: HTTPFetcher{Client: srv.Client()},
	}
	read := func(ref string) string {
		rc, err := f.Fetch(context.Background(), ref)
		require.NoError(t, err)
		defer rc.Close()
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		return string(data)
	}
	assert.Equal(t, "local", read("/assets/a.png"))
	assert.Equal(t, "remote", read(srv.URL+"/b.png"))

	_, err := SchemeFetcher{Local: f.Local}.Fetch(context.Background(), srv.URL+"/b.png")
	assert.Error(t, err)
}

func TestImportCopiesRemoteImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/logo":
			w.Write(pngBytes(t, 5, 4))
		case "/notes.txt":
			w.Write([]byte("hello"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	dir := t.TempDir()
	h := NewHandler(dir)
	h.SetRemote(HTTPFetcher{Client: srv.Client(), Allowed: HostAllowlist{"127.0.0.1"}})

	post := func(body string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h.Import(rec, httptest.NewRequest(http.MethodPost, "/assets/import", strings.NewReader(body)))
		return rec
	}

	rec := post(`{"url":"` + srv.URL + `/logo"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp UploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 5, resp.Width)
	assert.Equal(t, "png", resp.Source)
	assert.FileExists(t, filepath.Join(dir, resp.ID+".png"))

	assert.Equal(t, http.StatusBadRequest, post(`{"url":"`+srv.URL+`/notes.txt"}`).Code)
	assert.Equal(t, http.StatusBadGateway, post(`{"url":"`+srv.URL+`/missing.png"}`).Code)
	assert.Equal(t, http.StatusBadRequest, post(`{}`).Code)
	assert.Equal(t, http.StatusForbidden, post(`{"url":"http://169.254.169.254/latest/meta-data"}`).Code)

	h.SetRemote(nil)
	assert.Equal(t, http.StatusForbidden, post(`{"url":"`+srv.URL+`/logo"}`).Code)
}

func TestHostAllowlist(t *testing.T) {
	a := HostAllowlist{"cdn.example.com", ".assets.example"}
	assert.True(t, a.Allows("cdn.example.com"))
	assert.True(t, a.Allows("CDN.example.com."))
	assert.True(t, a.Allows("eu.assets.example"))
	assert.False(t, a.Allows("assets.example"))
	assert.False(t, a.Allows("evilassets.example"))
	assert.False(t, a.Allows("example.com"))
	assert.False(t, a.Allows(""))
	assert.False(t, HostAllowlist{}.Allows("cdn.example.com"))
}

func TestHTTPFetcherEnforcesAllowlist(t *testing.T) {
	internal := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(pngBytes(t, 2, 2))
	}))
	defer internal.Close()
	// localhost resolves to the same listener but is a different host name.
	redirect := strings.Replace(internal.URL, "127.0.0.1", "localhost", 1)
	front := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, redirect+"/secret.png", http.StatusFound)
	}))
	defer front.Close()

	f := HTTPFetcher{Allowed: HostAllowlist{"127.0.0.1"}}
	rc, err := f.Fetch(context.Background(), internal.URL+"/a.png")
	require.NoError(t, err)
	rc.Close()

	_, err = f.Fetch(context.Background(), front.URL+"/start")
	assert.ErrorIs(t, err, ErrHostNotAllowed)

	_, err = HTTPFetcher{Allowed: HostAllowlist{"cdn.example.com"}}.Fetch(context.Background(), internal.URL+"/a.png")
	assert.ErrorIs(t, err, ErrHostNotAllowed)

	_, err = HTTPFetcher{Allowed: HostAllowlist{"127.0.0.1"}}.Fetch(context.Background(), "file:///etc/passwd")
	assert.ErrorIs(t, err, ErrHostNotAllowed)
}
