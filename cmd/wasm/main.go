//go:build js && wasm

package main

import (
	"context"
	"encoding/json"
	"strings"
	"syscall/js"
	"time"

	"github.com/kitforge/kitforge/backend-go/internal/asset"
	"github.com/kitforge/kitforge/backend-go/internal/camera"
	"github.com/kitforge/kitforge/backend-go/internal/document"
	"github.com/kitforge/kitforge/backend-go/internal/engine"
	"github.com/kitforge/kitforge/backend-go/internal/mesh"
	"github.com/kitforge/kitforge/backend-go/internal/placement"
	"github.com/kitforge/kitforge/backend-go/internal/region"
	"github.com/kitforge/kitforge/backend-go/internal/stripe"
)

var (
	eng   *engine.Engine
	orbit = &jsOrbit{}
)

// jsOrbit forwards orbit enable/disable to a host callback.
type jsOrbit struct {
	fn js.Value
}

func (o *jsOrbit) SetEnabled(v bool) {
	if o.fn.Type() == js.TypeFunction {
		o.fn.Invoke(v)
	}
}

func main() {
	kitEngine := js.Global().Get("Object").New()
	kitEngine.Set("init", js.FuncOf(initEngine))

	// --- Commands (frontend → engine) ---
	kitEngine.Set("loadConfiguration", js.FuncOf(loadConfiguration))
	kitEngine.Set("setActiveTab", js.FuncOf(setActiveTab))
	kitEngine.Set("setOrientation", js.FuncOf(setOrientation))
	kitEngine.Set("setStripe", js.FuncOf(setStripe))
	kitEngine.Set("setPartColor", js.FuncOf(setPartColor))
	kitEngine.Set("loadDesign", js.FuncOf(loadDesign))
	kitEngine.Set("clearDesign", js.FuncOf(clearDesign))
	kitEngine.Set("loadLogo", js.FuncOf(loadLogo))
	kitEngine.Set("pointerDown", js.FuncOf(pointerDown))
	kitEngine.Set("pointerMove", js.FuncOf(pointerMove))
	kitEngine.Set("pointerUp", js.FuncOf(pointerUp))
	kitEngine.Set("scaleSelected", js.FuncOf(scaleSelected))
	kitEngine.Set("rotateSelected", js.FuncOf(rotateSelected))
	kitEngine.Set("deleteSelected", js.FuncOf(deleteSelected))
	kitEngine.Set("cloneSelected", js.FuncOf(cloneSelected))
	kitEngine.Set("resetCamera", js.FuncOf(resetCamera))
	kitEngine.Set("focusRegion", js.FuncOf(focusRegion))
	kitEngine.Set("orbitCamera", js.FuncOf(orbitCamera))
	kitEngine.Set("onSelectionChange", js.FuncOf(onSelectionChange))
	kitEngine.Set("tick", js.FuncOf(tick))

	// --- Queries (frontend ← engine) ---
	kitEngine.Set("exportConfiguration", js.FuncOf(exportConfiguration))
	kitEngine.Set("getTexture", js.FuncOf(getTexture))
	kitEngine.Set("getOverlay", js.FuncOf(getOverlay))
	kitEngine.Set("hitTest", js.FuncOf(hitTest))
	kitEngine.Set("getSelectionBounds", js.FuncOf(getSelectionBounds))
	kitEngine.Set("getOverlayBounds", js.FuncOf(getOverlayBounds))
	kitEngine.Set("getSelection", js.FuncOf(getSelection))
	kitEngine.Set("getCameraPose", js.FuncOf(getCameraPose))
	kitEngine.Set("isOrbitEnabled", js.FuncOf(isOrbitEnabled))
	kitEngine.Set("getRegions", js.FuncOf(getRegions))

	js.Global().Set("kitEngine", kitEngine)

	// Signal that WASM is ready
	js.Global().Set("kitWasmReady", js.ValueOf(true))

	// Keep Go runtime alive
	select {}
}

func fail(err error) interface{} {
	return js.ValueOf(map[string]interface{}{"error": err.Error()})
}

func failMsg(msg string) interface{} {
	return js.ValueOf(map[string]interface{}{"error": msg})
}

func ok() interface{} {
	return js.ValueOf(map[string]interface{}{"ok": true})
}

func result(err error) interface{} {
	if err != nil {
		return fail(err)
	}
	return ok()
}

func toJSON(v any) interface{} {
	data, err := json.Marshal(v)
	if err != nil {
		return js.ValueOf("")
	}
	return js.ValueOf(string(data))
}

func ready() bool {
	return eng != nil
}

// --- Command Handlers ---

// initEngine(optionsJSON, orbitCallback) creates the engine. Options are
// {variant, size, baseURL, cameraDurationMs, cameraEasing}.
func initEngine(this js.Value, args []js.Value) interface{} {
	var opts struct {
		Variant          string  `json:"variant"`
		Size             int     `json:"size"`
		BaseURL          string  `json:"baseURL"`
		CameraDurationMs float64 `json:"cameraDurationMs"`
		CameraEasing     string  `json:"cameraEasing"`
	}
	if len(args) > 0 && args[0].Type() == js.TypeString {
		if err := json.Unmarshal([]byte(args[0].String()), &opts); err != nil {
			return fail(err)
		}
	}
	if len(args) > 1 {
		orbit.fn = args[1]
	}
	if opts.BaseURL == "" {
		opts.BaseURL = js.Global().Get("location").Get("origin").String()
	}

	var variant region.Variant
	if opts.Variant != "" {
		v, err := region.ParseVariant(opts.Variant)
		if err != nil {
			return fail(err)
		}
		variant = v
	}

	easing, err := camera.ParseEasing(opts.CameraEasing)
	if err != nil {
		return fail(err)
	}

	e, err := engine.New(engine.Options{
		Variant:        variant,
		Size:           opts.Size,
		Fetcher:        asset.HTTPFetcher{BaseURL: opts.BaseURL},
		Orbit:          orbit,
		CameraDuration: time.Duration(opts.CameraDurationMs * float64(time.Millisecond)),
		CameraEasing:   easing,
	})
	if err != nil {
		return fail(err)
	}
	eng = e
	return ok()
}

func loadConfiguration(this js.Value, args []js.Value) interface{} {
	if !ready() {
		return failMsg("engine not initialized")
	}
	if len(args) < 1 {
		return failMsg("missing configuration JSON")
	}
	doc, err := document.Parse(strings.NewReader(args[0].String()))
	if err != nil {
		return fail(err)
	}
	return result(eng.LoadConfiguration(context.Background(), doc))
}

func setActiveTab(this js.Value, args []js.Value) interface{} {
	if !ready() || len(args) < 1 {
		return failMsg("missing tab")
	}
	return result(eng.SetActiveTab(document.ActiveTab(args[0].String())))
}

func setOrientation(this js.Value, args []js.Value) interface{} {
	if !ready() || len(args) < 1 {
		return failMsg("missing orientation")
	}
	return result(eng.SetOrientation(stripe.Orientation(args[0].String())))
}

// setStripe(region, slot, configJSON)
func setStripe(this js.Value, args []js.Value) interface{} {
	if !ready() || len(args) < 3 {
		return failMsg("expected region, slot and config")
	}
	var cfg stripe.Config
	if err := json.Unmarshal([]byte(args[2].String()), &cfg); err != nil {
		return fail(err)
	}
	return result(eng.SetStripe(region.ID(args[0].String()), region.Slot(args[1].String()), cfg))
}

func setPartColor(this js.Value, args []js.Value) interface{} {
	if !ready() || len(args) < 2 {
		return failMsg("expected region and color")
	}
	return result(eng.SetPartColor(region.ID(args[0].String()), args[1].String()))
}

// loadDesign(region, ref). A null or empty region loads the ref everywhere.
func loadDesign(this js.Value, args []js.Value) interface{} {
	if !ready() || len(args) < 2 {
		return failMsg("expected region and ref")
	}
	ref := args[1].String()
	if args[0].Type() != js.TypeString || args[0].String() == "" {
		return result(eng.LoadGarmentDesign(context.Background(), ref))
	}
	_, err := eng.LoadDesign(context.Background(), region.ID(args[0].String()), ref)
	return result(err)
}

func clearDesign(this js.Value, args []js.Value) interface{} {
	if !ready() || len(args) < 1 {
		return failMsg("missing region")
	}
	return result(eng.ClearDesign(region.ID(args[0].String())))
}

func loadLogo(this js.Value, args []js.Value) interface{} {
	if !ready() || len(args) < 2 {
		return failMsg("expected region and ref")
	}
	_, err := eng.LoadLogo(context.Background(), region.ID(args[0].String()), args[1].String(), nil)
	return result(err)
}

// hitArgs reads (material, u, v). A null material is a miss.
func hitArgs(args []js.Value) (mesh.Hit, bool) {
	if len(args) < 3 || args[0].Type() != js.TypeString {
		return mesh.Hit{}, false
	}
	return mesh.Hit{Material: args[0].String(), UV: mesh.Vec2{args[1].Float(), args[2].Float()}}, true
}

func pointerDown(this js.Value, args []js.Value) interface{} {
	if !ready() {
		return failMsg("engine not initialized")
	}
	hit, hitOK := hitArgs(args)
	return result(eng.PointerDown(hit, hitOK))
}

func pointerMove(this js.Value, args []js.Value) interface{} {
	if !ready() {
		return failMsg("engine not initialized")
	}
	hit, hitOK := hitArgs(args)
	return result(eng.PointerMove(hit, hitOK))
}

func pointerUp(this js.Value, args []js.Value) interface{} {
	if ready() {
		eng.PointerUp()
	}
	return nil
}

func scaleSelected(this js.Value, args []js.Value) interface{} {
	if !ready() || len(args) < 1 {
		return failMsg("missing factor")
	}
	return result(eng.ScaleSelected(args[0].Float()))
}

func rotateSelected(this js.Value, args []js.Value) interface{} {
	if !ready() || len(args) < 1 {
		return failMsg("missing degrees")
	}
	return result(eng.RotateSelected(args[0].Float()))
}

func deleteSelected(this js.Value, args []js.Value) interface{} {
	if !ready() {
		return failMsg("engine not initialized")
	}
	return result(eng.DeleteSelected())
}

func cloneSelected(this js.Value, args []js.Value) interface{} {
	if !ready() {
		return failMsg("engine not initialized")
	}
	return result(eng.CloneSelected())
}

func resetCamera(this js.Value, args []js.Value) interface{} {
	if ready() {
		eng.ResetCamera()
	}
	return nil
}

func focusRegion(this js.Value, args []js.Value) interface{} {
	if !ready() || len(args) < 1 {
		return js.ValueOf(false)
	}
	return js.ValueOf(eng.FocusRegion(region.ID(args[0].String())))
}

// orbitCamera(poseJSON) reports a pose from the host's orbit controls.
func orbitCamera(this js.Value, args []js.Value) interface{} {
	if !ready() || len(args) < 1 {
		return nil
	}
	var p camera.Pose
	if err := json.Unmarshal([]byte(args[0].String()), &p); err != nil {
		return fail(err)
	}
	eng.OrbitCamera(p)
	return nil
}

func onSelectionChange(this js.Value, args []js.Value) interface{} {
	if !ready() || len(args) < 1 || args[0].Type() != js.TypeFunction {
		return nil
	}
	fn := args[0]
	eng.OnSelectionChange(func(s placement.Selection) {
		data, err := json.Marshal(s)
		if err != nil {
			return
		}
		fn.Invoke(string(data))
	})
	return nil
}

// tick(dtMs) returns the frame as JSON.
func tick(this js.Value, args []js.Value) interface{} {
	if !ready() {
		return js.ValueOf("{}")
	}
	var dt time.Duration
	if len(args) > 0 {
		dt = time.Duration(args[0].Float() * float64(time.Millisecond))
	}
	return toJSON(eng.Tick(dt))
}

// --- Query Handlers ---

func exportConfiguration(this js.Value, args []js.Value) interface{} {
	if !ready() {
		return failMsg("engine not initialized")
	}
	doc, err := eng.ExportJSON()
	if err != nil {
		return fail(err)
	}
	return toJSON(doc)
}

// getTexture(region) returns {version, size, needsUpdate, pixels} with RGBA
// pixels. needsUpdate is set while edits wait for the next tick.
func getTexture(this js.Value, args []js.Value) interface{} {
	if !ready() || len(args) < 1 {
		return nil
	}
	tex, err := eng.Texture(region.ID(args[0].String()))
	if err != nil {
		return fail(err)
	}
	pixels := js.Global().Get("Uint8ClampedArray").New(len(tex.Image.Pix))
	js.CopyBytesToJS(pixels, tex.Image.Pix)
	return js.ValueOf(map[string]interface{}{
		"version":     float64(tex.Version),
		"size":        tex.Image.Bounds().Dx(),
		"needsUpdate": tex.NeedsUpdate(),
		"pixels":      pixels,
	})
}

func getOverlay(this js.Value, args []js.Value) interface{} {
	if !ready() {
		return js.ValueOf("[]")
	}
	s, err := engine.DrawCommandsToJSON(eng.Overlay())
	if err != nil {
		return js.ValueOf("[]")
	}
	return js.ValueOf(s)
}

// hitTest(region, x, y) returns the handle of the topmost logo at a surface pixel.
func hitTest(this js.Value, args []js.Value) interface{} {
	if !ready() || len(args) < 3 {
		return js.ValueOf("")
	}
	return js.ValueOf(eng.HitTest(region.ID(args[0].String()), args[1].Float(), args[2].Float()))
}

func getSelectionBounds(this js.Value, args []js.Value) interface{} {
	if !ready() {
		return js.ValueOf("null")
	}
	return js.ValueOf(engine.RectToJSON(eng.SelectionBounds()))
}

func getOverlayBounds(this js.Value, args []js.Value) interface{} {
	if !ready() {
		return js.ValueOf("null")
	}
	return js.ValueOf(engine.RectToJSON(eng.OverlayBounds()))
}

func getSelection(this js.Value, args []js.Value) interface{} {
	if !ready() {
		return js.ValueOf("{}")
	}
	return toJSON(eng.Selection())
}

func getCameraPose(this js.Value, args []js.Value) interface{} {
	if !ready() {
		return js.ValueOf("{}")
	}
	return toJSON(eng.CameraPose())
}

func isOrbitEnabled(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(ready() && eng.OrbitEnabled())
}

func getRegions(this js.Value, args []js.Value) interface{} {
	if !ready() {
		return js.ValueOf("[]")
	}
	return toJSON(eng.Registry().Regions())
}
