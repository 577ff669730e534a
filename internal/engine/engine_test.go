package engine

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kitforge/kitforge/backend-go/internal/asset"
	"github.com/kitforge/kitforge/backend-go/internal/camera"
	"github.com/kitforge/kitforge/backend-go/internal/document"
	"github.com/kitforge/kitforge/backend-go/internal/mesh"
	"github.com/kitforge/kitforge/backend-go/internal/placement"
	"github.com/kitforge/kitforge/backend-go/internal/region"
	"github.com/kitforge/kitforge/backend-go/internal/stripe"
)

const size = 256

func solidPNG(t *testing.T, w, h int, c color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func assets(t *testing.T) fstest.MapFS {
	return fstest.MapFS{
		"crest.png":  {Data: solidPNG(t, 20, 20, color.RGBA{B: 255, A: 255})},
		"wide.png":   {Data: solidPNG(t, 400, 100, color.RGBA{G: 255, A: 255})},
		"design.png": {Data: solidPNG(t, 64, 64, color.RGBA{R: 200, A: 255})},
		"other.png":  {Data: solidPNG(t, 64, 64, color.RGBA{R: 10, A: 255})},
	}
}

type orbit struct{ enabled bool }

func (o *orbit) SetEnabled(v bool) { o.enabled = v }

func newEngine(t *testing.T, opts Options) *Engine {
	t.Helper()
	if opts.Size == 0 {
		opts.Size = size
	}
	if opts.Fetcher == nil {
		opts.Fetcher = asset.FSFetcher{FS: assets(t), Prefix: "/assets/"}
	}
	e, err := New(opts)
	require.NoError(t, err)
	return e
}

func settle(t *testing.T, e *Engine) Frame {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, e.Settle(ctx))
	return e.Tick(0)
}

func TestNewRequiresFetcher(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
	_, err = New(Options{Fetcher: asset.FSFetcher{}, Variant: "batwing"})
	assert.ErrorIs(t, err, region.ErrUnknownVariant)
}

func TestTickFlushesOnlyDirtyRegions(t *testing.T) {
	e := newEngine(t, Options{})
	f := e.Tick(16 * time.Millisecond)
	assert.Empty(t, f.Updated)

	require.NoError(t, e.SetPartColor(region.Collar, "#00ff00"))
	assert.Equal(t, []region.ID{region.Collar}, e.DirtyRegions())
	f = e.Tick(16 * time.Millisecond)
	assert.Equal(t, []region.ID{region.Collar}, f.Updated)
	assert.Empty(t, e.DirtyRegions())

	tex, err := e.Texture(region.Collar)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), tex.Version)
	assert.Equal(t, uint8(255), tex.Image.RGBAAt(3, 3).G)

	front, _ := e.Texture(region.Front)
	assert.Equal(t, uint64(0), front.Version)
	assert.Empty(t, e.Tick(0).Updated)
}

func TestSetStripeValidation(t *testing.T) {
	e := newEngine(t, Options{})
	err := e.SetStripe(region.Front, "tab5", stripe.DefaultConfig())
	assert.ErrorIs(t, err, region.ErrInvalidSlot)
	err = e.SetStripe("pocket", region.Tab1, stripe.DefaultConfig())
	assert.ErrorIs(t, err, region.ErrUnknownRegion)
	err = e.SetStripe(region.Front, region.Tab1, stripe.Config{Count: -2})
	assert.ErrorIs(t, err, stripe.ErrInvalidConfig)
	assert.Equal(t, stripe.DefaultConfig(), e.StripeConfig(region.Front, region.Tab1))
}

func TestOrientationRegeneratesSlots(t *testing.T) {
	e := newEngine(t, Options{Size: 2048})
	cfg := stripe.Config{Count: 3, Thickness: 5, Gap: 10, Position: 5, Color: "#000000"}
	require.NoError(t, e.SetStripe(region.Front, region.Tab1, cfg))
	layers := e.Layers(region.Front)
	require.Len(t, layers, 2)
	assert.Equal(t, 3, layers[1].Rects)

	require.NoError(t, e.SetOrientation(stripe.Vertical))
	// ceil((0.425*2048 + 100) / 150)
	assert.Equal(t, 7, e.Layers(region.Front)[1].Rects)
	assert.Error(t, e.SetOrientation("diagonal"))

	require.NoError(t, e.SetStripe(region.Front, region.Tab1, stripe.Config{Count: 0, Thickness: 5, Gap: 10}))
	assert.Len(t, e.Layers(region.Front), 1)
}

func TestLoadLogoSelectsAndFits(t *testing.T) {
	o := &orbit{enabled: true}
	e := newEngine(t, Options{Orbit: o})
	var events []placement.Selection
	e.OnSelectionChange(func(s placement.Selection) { events = append(events, s) })

	_, err := e.LoadLogo(context.Background(), region.Front, "/assets/wide.png", nil)
	require.NoError(t, err)
	f := settle(t, e)
	assert.Contains(t, f.Updated, region.Front)

	logos := e.Logos(region.Front)
	require.Len(t, logos, 1)
	box, _ := e.Registry().BoundingBox(region.Front)
	cx, cy := box.Center(size)
	assert.InDelta(t, cx, logos[0].Center().X, 1e-9)
	assert.InDelta(t, cy, logos[0].Center().Y, 1e-9)
	// wide.png is scaled down to the surface size on load.
	assert.Equal(t, float64(size), logos[0].Width)
	assert.InDelta(t, box.Width*0.5, logos[0].ScaleX, 1e-9)

	sel := e.Selection()
	assert.Equal(t, logos[0].Handle, sel.Handle)
	require.Len(t, events, 1)
	assert.Len(t, e.Overlay(), 3)
	sb := e.SelectionBounds()
	require.False(t, sb.IsEmpty())
	assert.InDelta(t, cx, sb.X+sb.Width/2, 1e-6)
	assert.InDelta(t, cy, sb.Y+sb.Height/2, 1e-6)
	assert.InDelta(t, logos[0].Width*logos[0].ScaleX, sb.Width, 1e-6)

	// The overlay also covers the hotspots above the logo's top corners.
	ob := e.OverlayBounds()
	assert.True(t, ob.Contains(sb.X, sb.Y))
	assert.True(t, ob.Contains(sb.X+sb.Width, sb.Y+sb.Height))
	assert.Less(t, ob.Y, sb.Y)
	assert.Less(t, ob.X, sb.X)
	assert.Equal(t, string(logos[0].Handle), e.HitTest(region.Front, cx, cy))
}

func TestLogoLoadFailureLeavesStateAlone(t *testing.T) {
	e := newEngine(t, Options{})
	_, err := e.LoadLogo(context.Background(), region.Back, "/assets/missing.png", nil)
	require.NoError(t, err)
	settle(t, e)
	assert.Empty(t, e.Logos(region.Back))
	assert.Equal(t, placement.Idle, e.Interaction().State)
}

func TestDesignLoadsSupersede(t *testing.T) {
	e := newEngine(t, Options{})
	ctx := context.Background()
	_, err := e.LoadDesign(ctx, region.Back, "/assets/design.png")
	require.NoError(t, err)
	_, err = e.LoadDesign(ctx, region.Back, "/assets/other.png")
	require.NoError(t, err)
	settle(t, e)

	tex, _ := e.Texture(region.Back)
	assert.Equal(t, uint8(10), tex.Image.RGBAAt(size/2, size/2).R)
	assert.Equal(t, "/assets/other.png", e.Configuration().Designs[region.Back])
}

func TestClearDesignDropsPendingLoad(t *testing.T) {
	e := newEngine(t, Options{})
	require.NoError(t, e.SetPartColor(region.Hem, "#0000ff"))
	_, err := e.LoadDesign(context.Background(), region.Hem, "/assets/design.png")
	require.NoError(t, err)
	require.NoError(t, e.ClearDesign(region.Hem))
	settle(t, e)

	tex, _ := e.Texture(region.Hem)
	px := tex.Image.RGBAAt(10, 10)
	assert.Equal(t, uint8(255), px.B)
	assert.Equal(t, uint8(0), px.R)
}

func TestVectorDesignIsRecordedNotRasterized(t *testing.T) {
	e := newEngine(t, Options{})
	task, err := e.LoadDesign(context.Background(), region.Front, "/assets/pattern.svg")
	require.NoError(t, err)
	assert.Nil(t, task)
	assert.Equal(t, 0, e.PendingLoads())
	assert.Equal(t, "/assets/pattern.svg", e.Configuration().Designs[region.Front])
}

func TestConfigurationRoundTrip(t *testing.T) {
	doc := `{
	  "activeTab": "colors",
	  "design": {"svgPath": "/assets/design.png"},
	  "parts": {"front": {"color": "#ff0000"}},
	  "logos": {
	    "front": [
	      {"url": "/assets/crest.png", "left": 60, "top": 70, "scaleX": 1.5, "scaleY": 1.5, "angle": 30, "originX": "center", "originY": "center"},
	      {"url": "/assets/design.png", "left": 128, "top": 128, "scaleX": 1, "scaleY": 1, "angle": 0, "originX": "center", "originY": "center"}
	    ],
	    "back": [{"url": "/assets/crest.png", "left": 10, "top": 20, "scaleX": 1, "scaleY": 2, "angle": 0, "originX": "left", "originY": "top"}]
	  },
	  "orientation": "vertical",
	  "stripes": {"back": {"tab3": {"count": 2, "color": "#123456", "position": 1, "gap": 2, "thickness": 3}}},
	  "designs": {"hem": "/assets/other.png"}
	}`
	in, err := document.Parse(strings.NewReader(doc))
	require.NoError(t, err)

	e := newEngine(t, Options{})
	require.NoError(t, e.LoadConfiguration(context.Background(), in))
	settle(t, e)

	out, err := e.ExportJSON()
	require.NoError(t, err)
	assert.Equal(t, document.TabColors, out.ActiveTab)
	assert.Equal(t, "/assets/design.png", out.Design.SVGPath)
	assert.Equal(t, document.Part{Color: "#ff0000"}, out.Parts[region.Front])
	assert.Equal(t, stripe.Vertical, out.Orientation)
	assert.Equal(t, in.Stripes[region.Back][region.Tab3], out.Stripes[region.Back][region.Tab3])
	assert.Equal(t, stripe.DefaultConfig(), out.Stripes[region.Front][region.Tab1])
	assert.Equal(t, map[region.ID]string{region.Hem: "/assets/other.png"}, out.Designs)

	// The design placed at the surface center is background, not a logo.
	assert.Equal(t, in.Logos[region.Front][:1], out.Logos[region.Front])
	assert.Equal(t, in.Logos[region.Back], out.Logos[region.Back])
	assert.Empty(t, out.Logos[region.Hem])

	// Loading again replaces everything.
	require.NoError(t, e.LoadConfiguration(context.Background(), document.NewDefault()))
	settle(t, e)
	assert.Empty(t, e.Logos(region.Front))
	assert.Equal(t, stripe.Horizontal, e.Orientation())
}

func TestPointerGestureThroughScene(t *testing.T) {
	m, err := mesh.LoadOBJ(strings.NewReader(`v -1 -1 0
v 1 -1 0
v 1 1 0
v -1 1 0
vt 0 0
vt 1 0
vt 1 1
vt 0 1
usemtl mat_front
f 1/1 2/2 3/3 4/4
`), "shirt")
	require.NoError(t, err)

	o := &orbit{enabled: true}
	initial := camera.Pose{Position: mesh.Vec3{0, 0, 5}}
	e := newEngine(t, Options{Orbit: o, Scene: mesh.NewScene(m), InitialPose: &initial})

	hit, ok := e.Pick(0, 0, 1)
	require.True(t, ok)
	assert.Equal(t, "mat_front", hit.Material)
	assert.InDelta(t, 0.5, hit.UV[0], 1e-9)
	assert.InDelta(t, 0.5, hit.UV[1], 1e-9)

	_, err = e.LoadLogo(context.Background(), region.Front, "/assets/crest.png",
		&document.Logo{URL: "/assets/crest.png", Left: size / 2, Top: size / 2, ScaleX: 1, ScaleY: 1})
	require.NoError(t, err)
	settle(t, e)
	assert.Equal(t, placement.Idle, e.Interaction().State)

	require.NoError(t, e.PointerDown(hit, true))
	assert.Equal(t, placement.Selected, e.Interaction().State)
	require.NoError(t, e.PointerDown(hit, true))
	assert.Equal(t, placement.Dragging, e.Interaction().State)
	assert.False(t, e.OrbitEnabled())
	assert.False(t, o.enabled)

	e.OrbitCamera(camera.Pose{Position: mesh.Vec3{9, 9, 9}})
	assert.Equal(t, initial, e.CameraPose())

	moved := mesh.Hit{Material: "mat_front", UV: mesh.Vec2{0.25, 0.75}}
	require.NoError(t, e.PointerMove(moved, true))
	e.PointerUp()
	assert.True(t, o.enabled)

	l := e.Logos(region.Front)[0]
	assert.Equal(t, float64(size)/4, l.Center().X)
	assert.Equal(t, float64(size)*3/4, l.Center().Y)

	require.NoError(t, e.PointerDown(mesh.Hit{}, false))
	assert.Equal(t, placement.Context{}, e.Interaction())
	assert.Empty(t, e.Overlay())
}

func TestControlPanelCommands(t *testing.T) {
	e := newEngine(t, Options{})
	_, err := e.LoadLogo(context.Background(), region.Front, "/assets/crest.png", nil)
	require.NoError(t, err)
	settle(t, e)

	require.NoError(t, e.ScaleSelected(2))
	require.NoError(t, e.RotateSelected(90))
	require.NoError(t, e.CloneSelected())
	logos := e.Logos(region.Front)
	require.Len(t, logos, 2)
	assert.Equal(t, logos[1].Handle, e.Selection().Handle)
	assert.Equal(t, logos[0].Left+40, logos[1].Left)
	assert.Equal(t, 90.0, logos[1].Angle)

	require.NoError(t, e.DeleteSelected())
	assert.Len(t, e.Logos(region.Front), 1)
	assert.ErrorIs(t, e.DeleteSelected(), placement.ErrNoSelection)

	require.NoError(t, e.SetActiveTab(document.TabColors))
	assert.Error(t, e.SetActiveTab("logos"))
}

func TestCameraEasingOption(t *testing.T) {
	midway := func(easing camera.Easing) camera.Pose {
		e := newEngine(t, Options{CameraDuration: time.Second, CameraEasing: easing})
		require.True(t, e.FocusRegion(region.Back))
		e.Tick(500 * time.Millisecond)
		return e.CameraPose()
	}
	linear, cubic := midway(camera.Linear), midway(camera.CubicOut)
	assert.NotEqual(t, linear, cubic)
	assert.Equal(t, cubic, midway(""))
}

func TestCameraCommands(t *testing.T) {
	e := newEngine(t, Options{CameraDuration: time.Second})
	initial := camera.DefaultInitialPose()

	assert.True(t, e.FocusRegion(region.Back))
	assert.False(t, e.FocusRegion("pocket"))
	for e.Tick(100 * time.Millisecond).Animating {
	}
	assert.Equal(t, camera.DefaultTargets()[region.Back], e.CameraPose())

	e.ResetCamera()
	e.Tick(200 * time.Millisecond)
	e.ResetCamera()
	ticks := 0
	for e.Tick(100 * time.Millisecond).Animating {
		ticks++
	}
	assert.Equal(t, 7, ticks)
	assert.Equal(t, initial, e.CameraPose())
}
