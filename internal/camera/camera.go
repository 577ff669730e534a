package camera

import (
	"log/slog"
	"time"

	"github.com/kitforge/kitforge/backend-go/internal/mesh"
	"github.com/kitforge/kitforge/backend-go/internal/region"
)

// DefaultDuration is the length of one camera transition.
const DefaultDuration = time.Second

// Pose is a camera position and the point it looks at.
type Pose struct {
	Position mesh.Vec3 `json:"position"`
	Target   mesh.Vec3 `json:"target"`
}

// DefaultInitialPose frames the whole garment from the front.
func DefaultInitialPose() Pose {
	return Pose{Position: mesh.Vec3{0, 0.2, 5}, Target: mesh.Vec3{0, 0.2, 0}}
}

// DefaultTargets returns a close-up pose per region.
func DefaultTargets() map[region.ID]Pose {
	return map[region.ID]Pose{
		region.Front:       {Position: mesh.Vec3{0, 0.3, 3.2}, Target: mesh.Vec3{0, 0.3, 0}},
		region.Back:        {Position: mesh.Vec3{0, 0.3, -3.2}, Target: mesh.Vec3{0, 0.3, 0}},
		region.SleeveLeft:  {Position: mesh.Vec3{-2.8, 0.6, 1.2}, Target: mesh.Vec3{-0.8, 0.6, 0}},
		region.SleeveRight: {Position: mesh.Vec3{2.8, 0.6, 1.2}, Target: mesh.Vec3{0.8, 0.6, 0}},
		region.Collar:      {Position: mesh.Vec3{0, 1.8, 2.4}, Target: mesh.Vec3{0, 1.1, 0}},
		region.Hem:         {Position: mesh.Vec3{0, -1.2, 2.8}, Target: mesh.Vec3{0, -0.8, 0}},
	}
}

type animation struct {
	start   Pose
	target  Pose
	elapsed time.Duration
}

// Animator moves the camera between poses. It is idle or running exactly
// one animation; time only advances through Advance.
type Animator struct {
	initial  Pose
	targets  map[region.ID]Pose
	duration time.Duration
	easing   Easing
	current  Pose
	anim     *animation
	logger   *slog.Logger
}

// NewAnimator creates an idle animator at the initial pose. A non-positive
// duration makes every animation finish on the next Advance.
func NewAnimator(initial Pose, targets map[region.ID]Pose, duration time.Duration) *Animator {
	return &Animator{
		initial:  initial,
		targets:  targets,
		duration: duration,
		easing:   DefaultEasing,
		current:  initial,
		logger:   slog.Default(),
	}
}

// SetLogger replaces the logger used for warnings.
func (a *Animator) SetLogger(l *slog.Logger) {
	if l != nil {
		a.logger = l
	}
}

// SetEasing changes the curve used by subsequent frames.
func (a *Animator) SetEasing(e Easing) {
	a.easing = e
}

// Pose returns the current camera pose.
func (a *Animator) Pose() Pose {
	return a.current
}

// Animating reports whether a transition is running.
func (a *Animator) Animating() bool {
	return a.anim != nil
}

// SetPose moves the camera directly, as the orbit controller does. It is
// ignored while animating.
func (a *Animator) SetPose(p Pose) {
	if a.anim != nil {
		return
	}
	a.current = p
}

// Reset animates back to the initial pose. It does nothing while any
// animation is running, so at most one reset is ever in flight.
func (a *Animator) Reset() {
	if a.anim != nil {
		return
	}
	a.start(a.initial)
}

// AnimateTo starts a transition to the region's named pose and reports
// whether one exists. A running animation is replaced, starting from the
// current pose.
func (a *Animator) AnimateTo(id region.ID) bool {
	target, ok := a.targets[id]
	if !ok {
		a.logger.Warn("no camera target for region", "region", id)
		return false
	}
	a.start(target)
	return true
}

func (a *Animator) start(target Pose) {
	a.anim = &animation{start: a.current, target: target}
}

// Advance moves the running animation forward by dt and reports whether
// the pose changed.
func (a *Animator) Advance(dt time.Duration) bool {
	if a.anim == nil {
		return false
	}
	a.anim.elapsed += dt

	progress := 1.0
	if a.duration > 0 {
		progress = min(float64(a.anim.elapsed)/float64(a.duration), 1)
	}
	if progress >= 1 {
		a.current = a.anim.target
		a.anim = nil
		return true
	}

	t := a.easing.Apply(progress)
	from, to := a.anim.start, a.anim.target
	a.current = Pose{
		Position: ToSpherical(from.Position).Lerp(ToSpherical(to.Position), t).Vec3(),
		Target:   from.Target.Lerp(to.Target, t),
	}
	return true
}
