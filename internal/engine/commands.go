package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kitforge/kitforge/backend-go/internal/asset"
	"github.com/kitforge/kitforge/backend-go/internal/camera"
	"github.com/kitforge/kitforge/backend-go/internal/compositor"
	"github.com/kitforge/kitforge/backend-go/internal/document"
	"github.com/kitforge/kitforge/backend-go/internal/mesh"
	"github.com/kitforge/kitforge/backend-go/internal/region"
	"github.com/kitforge/kitforge/backend-go/internal/stripe"
	"github.com/kitforge/kitforge/backend-go/internal/typeid"
)

// designLoad and logoLoad travel with asset loads so the completion can be
// applied to the right surface.
type designLoad struct {
	region region.ID
	token  uint64
}

type pendingDesign struct {
	task  *asset.Task
	token uint64
}

type logoLoad struct {
	generation int
	region     region.ID
	placement  *document.Logo
	sel        bool
}

func (e *Engine) checkRegion(id region.ID) error {
	if !e.registry.Has(id) {
		slog.Error("command on unregistered region", "region", id)
		return fmt.Errorf("engine: %w: %q", region.ErrUnknownRegion, id)
	}
	return nil
}

// SetActiveTab switches the control panel tab.
func (e *Engine) SetActiveTab(tab document.ActiveTab) error {
	switch tab {
	case document.TabDesigns, document.TabColors:
		e.activeTab = tab
		return nil
	default:
		return fmt.Errorf("engine: %w: activeTab %q", document.ErrInvalid, tab)
	}
}

// SetOrientation changes the orientation of every stripe slot and
// regenerates all of them.
func (e *Engine) SetOrientation(o stripe.Orientation) error {
	if _, err := stripe.ParseOrientation(string(o)); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	if o == e.orientation {
		return nil
	}
	e.orientation = o
	for _, id := range e.registry.Regions() {
		for _, slot := range region.Slots {
			if err := e.applyStripe(id, slot, e.stripes.Get(id, slot)); err != nil {
				return err
			}
		}
	}
	return nil
}

// SetStripe stores a slot's settings and regenerates its layer. A count of
// zero clears the slot.
func (e *Engine) SetStripe(id region.ID, slot region.Slot, cfg stripe.Config) error {
	if slot.Index() < 0 {
		slog.Warn("stripe slot rejected", "region", id, "slot", slot)
		return fmt.Errorf("engine: %w: %q", region.ErrInvalidSlot, slot)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	if err := e.applyStripe(id, slot, cfg); err != nil {
		return err
	}
	e.stripes.Set(id, slot, cfg)
	return nil
}

func (e *Engine) applyStripe(id region.ID, slot region.Slot, cfg stripe.Config) error {
	box, err := e.registry.BoundingBox(id)
	if err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	rects := cfg.Rects(e.orientation, box, float64(e.bank.Size()))
	return e.compositor.UpsertStripeLayer(id, slot, rects)
}

// SetPartColor sets the base fill of a region.
func (e *Engine) SetPartColor(id region.ID, color string) error {
	if err := e.checkRegion(id); err != nil {
		return err
	}
	e.colors[id] = color
	return e.compositor.SetDesignColor(id, color)
}

// LoadDesign starts loading the design raster of one region. A newer load
// for the same region supersedes an unfinished one. Vector designs are
// recorded but not rasterized, and return a nil task.
func (e *Engine) LoadDesign(ctx context.Context, id region.ID, ref string) (*asset.Task, error) {
	if err := e.checkRegion(id); err != nil {
		return nil, err
	}
	e.designs[id] = ref
	if asset.Ext(ref) == ".svg" {
		slog.Warn("vector design not rasterized", "region", id, "ref", ref)
		e.cancelDesign(id)
		return nil, e.compositor.SetDesignLayer(id, ref, nil)
	}
	e.designToken++
	t := e.loader.Load(ctx, "design:"+string(id), ref, designLoad{region: id, token: e.designToken})
	e.designTasks[id] = pendingDesign{task: t, token: e.designToken}
	return t, nil
}

// LoadGarmentDesign loads one design onto every region that has no design
// of its own.
func (e *Engine) LoadGarmentDesign(ctx context.Context, ref string) error {
	prev := e.designRef
	e.designRef = ref
	for _, id := range e.registry.Regions() {
		if cur, ok := e.designs[id]; ok && cur != prev {
			continue
		}
		if ref == "" {
			if err := e.ClearDesign(id); err != nil {
				return err
			}
			continue
		}
		if _, err := e.LoadDesign(ctx, id, ref); err != nil {
			return err
		}
	}
	return nil
}

// ClearDesign cancels any unfinished design load and empties the design layer.
func (e *Engine) ClearDesign(id region.ID) error {
	if err := e.checkRegion(id); err != nil {
		return err
	}
	e.cancelDesign(id)
	delete(e.designs, id)
	if err := e.compositor.ClearDesignLayer(id); err != nil {
		return err
	}
	if c, ok := e.colors[id]; ok {
		return e.compositor.SetDesignColor(id, c)
	}
	return nil
}

func (e *Engine) cancelDesign(id region.ID) {
	if p, ok := e.designTasks[id]; ok {
		p.task.Cancel()
		delete(e.designTasks, id)
	}
}

// LoadLogo starts loading a logo for a region. With a nil placement the
// logo lands in the middle of the region's bounding box and becomes the
// active selection.
func (e *Engine) LoadLogo(ctx context.Context, id region.ID, ref string, at *document.Logo) (*asset.Task, error) {
	if err := e.checkRegion(id); err != nil {
		return nil, err
	}
	key := "logo:" + typeid.NewLogoID()
	return e.loader.Load(ctx, key, ref, logoLoad{generation: e.generation, region: id, placement: at, sel: at == nil}), nil
}

func (e *Engine) applyLoads() {
	for _, res := range e.loader.Drain() {
		switch meta := res.Meta.(type) {
		case designLoad:
			if p, ok := e.designTasks[meta.region]; !ok || p.token != meta.token {
				// Cleared or replaced while loading.
				continue
			}
			delete(e.designTasks, meta.region)
			if res.Err != nil {
				continue
			}
			if err := e.compositor.SetDesignLayer(meta.region, res.Ref, res.Image); err != nil {
				e.logger.Warn("apply design", "region", meta.region, "error", err)
			}
		case logoLoad:
			if res.Err != nil || meta.generation != e.generation {
				continue
			}
			if err := e.placeLogo(meta, res); err != nil {
				e.logger.Warn("apply logo", "region", meta.region, "ref", res.Ref, "error", err)
			}
		default:
			e.logger.Warn("unexpected asset result", "key", res.Key)
		}
	}
}

// defaultLogoShare is the fraction of a region's box width a freshly
// placed logo may cover.
const defaultLogoShare = 0.5

func (e *Engine) placeLogo(meta logoLoad, res asset.Result) error {
	box, err := e.registry.BoundingBox(meta.region)
	if err != nil {
		return err
	}
	size := float64(e.bank.Size())

	var logo *compositor.Logo
	if at := meta.placement; at != nil {
		logo = compositor.NewLogo(res.Ref, res.Image, at.Left, at.Top, 1)
		logo.ScaleX, logo.ScaleY = at.ScaleX, at.ScaleY
		logo.Angle = at.Angle
		if at.OriginX != "" {
			logo.OriginX = at.OriginX
		}
		if at.OriginY != "" {
			logo.OriginY = at.OriginY
		}
	} else {
		cx, cy := box.Center(size)
		scale := 1.0
		if w := float64(res.Image.Bounds().Dx()); w > 0 {
			scale = min(1, box.Width*size*defaultLogoShare/w)
		}
		logo = compositor.NewLogo(res.Ref, res.Image, cx, cy, scale)
	}

	h, err := e.compositor.AddLogoLayer(meta.region, logo)
	if err != nil {
		return err
	}
	if meta.sel {
		ctx, err := e.placement.Select(meta.region, h)
		if err != nil {
			return err
		}
		e.interaction = ctx
	}
	return nil
}

// --- Pointer input ---

// Pick casts a ray from the current camera through normalized device
// coordinates. It needs a scene.
func (e *Engine) Pick(ndcX, ndcY, aspect float64) (mesh.Hit, bool) {
	if e.scene == nil {
		return mesh.Hit{}, false
	}
	pose := e.camera.Pose()
	cam := mesh.Camera{Position: pose.Position, Target: pose.Target, FOV: e.fov, Aspect: aspect}
	return e.scene.Intersect(cam.Ray(ndcX, ndcY))
}

// PointerDown handles a press. ok is false when the ray missed the model.
func (e *Engine) PointerDown(hit mesh.Hit, ok bool) error {
	ctx, err := e.placement.PointerDown(e.interaction, hit, ok)
	e.interaction = ctx
	return err
}

// PointerMove handles pointer motion.
func (e *Engine) PointerMove(hit mesh.Hit, ok bool) error {
	ctx, err := e.placement.PointerMove(e.interaction, hit, ok)
	e.interaction = ctx
	return err
}

// PointerUp ends a gesture.
func (e *Engine) PointerUp() {
	e.interaction = e.placement.PointerUp(e.interaction)
}

// ScaleSelected multiplies the active logo's scale.
func (e *Engine) ScaleSelected(factor float64) error {
	return e.placement.ScaleSelected(e.interaction, factor)
}

// RotateSelected sets the active logo's angle in degrees.
func (e *Engine) RotateSelected(degrees float64) error {
	return e.placement.RotateSelected(e.interaction, degrees)
}

// DeleteSelected removes the active logo.
func (e *Engine) DeleteSelected() error {
	ctx, err := e.placement.DeleteSelected(e.interaction)
	e.interaction = ctx
	return err
}

// CloneSelected duplicates the active logo and selects the copy.
func (e *Engine) CloneSelected() error {
	ctx, err := e.placement.CloneSelected(e.interaction)
	e.interaction = ctx
	return err
}

// --- Camera ---

// ResetCamera animates back to the initial view unless an animation is
// already running.
func (e *Engine) ResetCamera() {
	e.camera.Reset()
}

// FocusRegion animates to the region's close-up, replacing any running
// animation. It reports whether the region has a camera target.
func (e *Engine) FocusRegion(id region.ID) bool {
	return e.camera.AnimateTo(id)
}

// OrbitCamera applies a pose from the orbit controller. It is ignored while
// a logo is being dragged or the camera is animating.
func (e *Engine) OrbitCamera(p camera.Pose) {
	if !e.orbit.enabled {
		return
	}
	e.camera.SetPose(p)
}
