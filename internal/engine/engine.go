package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kitforge/kitforge/backend-go/internal/asset"
	"github.com/kitforge/kitforge/backend-go/internal/camera"
	"github.com/kitforge/kitforge/backend-go/internal/compositor"
	"github.com/kitforge/kitforge/backend-go/internal/document"
	"github.com/kitforge/kitforge/backend-go/internal/mesh"
	"github.com/kitforge/kitforge/backend-go/internal/placement"
	"github.com/kitforge/kitforge/backend-go/internal/region"
	"github.com/kitforge/kitforge/backend-go/internal/stripe"
	"github.com/kitforge/kitforge/backend-go/internal/texture"
)

// Options configure a new engine. Zero values pick the defaults.
type Options struct {
	Variant        region.Variant
	Size           int
	Fetcher        asset.Fetcher
	Orbit          placement.OrbitController
	Scene          mesh.Raycaster
	FOV            float64
	CameraDuration time.Duration
	CameraEasing   camera.Easing
	InitialPose    *camera.Pose
	CameraTargets  map[region.ID]camera.Pose
	Logger         *slog.Logger
}

// Engine owns every surface of one garment and processes commands from a
// single goroutine. Only asset decoding runs elsewhere; its results are
// applied during Tick.
type Engine struct {
	registry   *region.Registry
	bank       *texture.Bank
	compositor *compositor.Compositor
	placement  *placement.Engine
	camera     *camera.Animator
	loader     *asset.Loader
	orbit      *orbitGate
	scene      mesh.Raycaster
	fov        float64
	logger     *slog.Logger

	interaction placement.Context
	stripes     stripe.Table
	orientation stripe.Orientation
	activeTab   document.ActiveTab
	designRef   string
	designs     map[region.ID]string
	colors      map[region.ID]string
	designTasks map[region.ID]pendingDesign
	designToken uint64
	generation  int
}

// Frame is the outcome of one Tick.
type Frame struct {
	Pose      camera.Pose `json:"pose"`
	Animating bool        `json:"animating"`
	Updated   []region.ID `json:"updated,omitempty"`
}

// New creates an engine with every surface empty.
func New(opts Options) (*Engine, error) {
	if opts.Variant == "" {
		opts.Variant = region.SetIn
	}
	if opts.Size <= 0 {
		opts.Size = texture.DefaultSize
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.CameraDuration == 0 {
		opts.CameraDuration = camera.DefaultDuration
	}
	if opts.FOV <= 0 {
		opts.FOV = 45
	}
	initial := camera.DefaultInitialPose()
	if opts.InitialPose != nil {
		initial = *opts.InitialPose
	}
	if opts.CameraTargets == nil {
		opts.CameraTargets = camera.DefaultTargets()
	}
	if opts.Fetcher == nil {
		return nil, fmt.Errorf("engine: no asset fetcher")
	}

	reg, err := region.NewRegistry(opts.Variant)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	e := &Engine{
		registry:    reg,
		bank:        texture.NewBank(opts.Size, reg.Regions()),
		orbit:       &orbitGate{next: opts.Orbit, enabled: true},
		scene:       opts.Scene,
		fov:         opts.FOV,
		logger:      opts.Logger,
		loader:      asset.NewLoader(opts.Fetcher, opts.Size, opts.Logger),
		camera:      camera.NewAnimator(initial, opts.CameraTargets, opts.CameraDuration),
		stripes:     stripe.NewTable(reg.Regions()),
		orientation: stripe.Horizontal,
		activeTab:   document.TabDesigns,
		designs:     make(map[region.ID]string),
		colors:      make(map[region.ID]string),
		designTasks: make(map[region.ID]pendingDesign),
	}
	e.camera.SetLogger(opts.Logger)
	if opts.CameraEasing != "" {
		e.camera.SetEasing(opts.CameraEasing)
	}
	e.compositor = compositor.New(e.bank)
	e.placement = placement.New(reg, e.compositor, e.orbit, opts.Size)
	return e, nil
}

// orbitGate remembers whether free orbiting is allowed and forwards the
// flag to the host's controller.
type orbitGate struct {
	next    placement.OrbitController
	enabled bool
}

func (o *orbitGate) SetEnabled(v bool) {
	o.enabled = v
	if o.next != nil {
		o.next.SetEnabled(v)
	}
}

// Tick applies finished asset loads, advances the camera by dt and
// re-renders every invalidated surface.
func (e *Engine) Tick(dt time.Duration) Frame {
	e.applyLoads()
	e.camera.Advance(dt)
	updated := e.bank.Flush(e.compositor.Render)
	return Frame{
		Pose:      e.camera.Pose(),
		Animating: e.camera.Animating(),
		Updated:   updated,
	}
}

// Settle waits for every pending asset load and applies the results.
func (e *Engine) Settle(ctx context.Context) error {
	if err := e.loader.Wait(ctx); err != nil {
		return fmt.Errorf("engine: settle: %w", err)
	}
	e.applyLoads()
	return nil
}

// LoadsReady signals when Tick has asset results to apply.
func (e *Engine) LoadsReady() <-chan struct{} {
	return e.loader.Ready()
}

// DirtyRegions lists surfaces still waiting for a render, in flush order.
// A surface whose render failed stays here after Tick.
func (e *Engine) DirtyRegions() []region.ID {
	return e.bank.Dirty()
}

// PendingLoads returns the number of asset loads still running.
func (e *Engine) PendingLoads() int {
	return e.loader.Pending()
}

// OnSelectionChange registers fn to run whenever the active logo changes.
func (e *Engine) OnSelectionChange(fn func(placement.Selection)) {
	e.placement.OnSelectionChange(fn)
}

// --- Queries ---

// Registry returns the active region registry.
func (e *Engine) Registry() *region.Registry {
	return e.registry
}

// Size returns the surface side length.
func (e *Engine) Size() int {
	return e.bank.Size()
}

// Texture returns a region's texture handle.
func (e *Engine) Texture(id region.ID) (*texture.Texture, error) {
	return e.bank.Texture(id)
}

// BindMaterials maps texturable mesh materials to their textures.
func (e *Engine) BindMaterials(materials []string) map[string]*texture.Texture {
	return e.bank.Bind(materials, e.registry)
}

// Selection describes the active logo.
func (e *Engine) Selection() placement.Selection {
	return e.placement.Selection(e.interaction)
}

// Interaction returns the pointer interaction state.
func (e *Engine) Interaction() placement.Context {
	return e.interaction
}

// CameraPose returns the current camera pose.
func (e *Engine) CameraPose() camera.Pose {
	return e.camera.Pose()
}

// OrbitEnabled reports whether the camera may be orbited freely.
func (e *Engine) OrbitEnabled() bool {
	return e.orbit.enabled
}

// StripeConfig returns one slot's stripe settings.
func (e *Engine) StripeConfig(id region.ID, slot region.Slot) stripe.Config {
	return e.stripes.Get(id, slot)
}

// Orientation returns the stripe orientation shared by all slots.
func (e *Engine) Orientation() stripe.Orientation {
	return e.orientation
}

// ActiveTab returns the control panel tab.
func (e *Engine) ActiveTab() document.ActiveTab {
	return e.activeTab
}

// Layers lists a region's layers bottom to top.
func (e *Engine) Layers(id region.ID) []compositor.LayerInfo {
	return e.compositor.Layers(id)
}

// Revision changes whenever any layer is mutated.
func (e *Engine) Revision() uint64 {
	return e.compositor.Revision()
}

// Logos returns a region's logos bottom to top.
func (e *Engine) Logos(id region.ID) []*compositor.Logo {
	return e.compositor.Logos(id)
}
