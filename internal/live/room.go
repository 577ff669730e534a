package live

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kitforge/kitforge/backend-go/internal/document"
	"github.com/kitforge/kitforge/backend-go/internal/engine"
	"github.com/kitforge/kitforge/backend-go/internal/mesh"
	"github.com/kitforge/kitforge/backend-go/internal/placement"
	"github.com/kitforge/kitforge/backend-go/internal/region"
	"github.com/kitforge/kitforge/backend-go/internal/store"
	"github.com/kitforge/kitforge/backend-go/internal/typeid"
)

var errUnknownType = errors.New("unknown message type")

// Room is one live editing session of a stored configuration. Every
// client in the room drives the same engine; the mutex serializes their
// commands with the render tick.
type Room struct {
	configID  string
	sessionID string

	mu        sync.Mutex
	engine    *engine.Engine
	clients   map[string]*Client          // clientID -> client
	presence  map[string]*PresencePayload // clientID -> last presence
	dirty     bool
	animating bool
	last      time.Time

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func newRoom(configID string, e *engine.Engine) *Room {
	r := &Room{
		configID:  configID,
		sessionID: typeid.NewSessionID(),
		engine:    e,
		clients:   make(map[string]*Client),
		presence:  make(map[string]*PresencePayload),
		done:      make(chan struct{}),
	}
	e.OnSelectionChange(r.selectionChanged)
	return r
}

// load restores the latest stored version, or the default garment when the
// configuration has never been saved.
func (r *Room) load(ctx context.Context, repo store.Repository) error {
	doc := document.NewDefault()
	snap, err := repo.Latest(ctx, r.configID)
	switch {
	case err == nil:
		doc = snap.Document
	case !errors.Is(err, store.ErrNotFound):
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.engine.LoadConfiguration(ctx, doc)
}

// run ticks the engine until ctx ends. Finished asset loads trigger an
// early tick.
func (r *Room) run(ctx context.Context, interval time.Duration) {
	defer close(r.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.mu.Lock()
	r.last = time.Now()
	r.mu.Unlock()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			r.tick(now)
		case <-r.engine.LoadsReady():
			r.tick(time.Now())
		}
	}
}

func (r *Room) tick(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	frame := r.engine.Tick(now.Sub(r.last))
	r.last = now

	if len(frame.Updated) > 0 {
		r.broadcastLocked(TypeTextureDirty, TextureDirtyPayload{Textures: r.versionsLocked(frame.Updated...)}, "")
	}
	if frame.Animating || r.animating {
		r.broadcastLocked(TypeCameraPose, PosePayload{Pose: frame.Pose, Animating: frame.Animating}, "")
	}
	r.animating = frame.Animating
}

// versionsLocked lists the current texture versions of ids, or of every
// region when ids is empty.
func (r *Room) versionsLocked(ids ...region.ID) []TextureVersion {
	if len(ids) == 0 {
		ids = r.engine.Registry().Regions()
	}
	out := make([]TextureVersion, 0, len(ids))
	for _, id := range ids {
		tex, err := r.engine.Texture(id)
		if err != nil {
			continue
		}
		out = append(out, TextureVersion{Region: id, Version: tex.Version})
	}
	return out
}

func (r *Room) selectionChanged(sel placement.Selection) {
	r.broadcastLocked(TypeSelectionChanged, sel, "")
}

// join adds c and greets it with the full session state.
func (r *Room) join(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.clients[c.ClientID] = c
	welcome, err := newMessage(TypeWelcome, WelcomePayload{
		ClientID:      c.ClientID,
		Configuration: r.engine.Configuration(),
		Textures:      r.versionsLocked(),
		Pose:          r.engine.CameraPose(),
	})
	if err == nil {
		welcome.SessionID = r.sessionID
		c.Send(welcome)
	}
	if sel := r.engine.Selection(); sel.Handle != "" {
		if msg, err := newMessage(TypeSelectionChanged, sel); err == nil {
			c.Send(msg)
		}
	}
	if msg, err := newMessage(TypePresenceState, PresenceStatePayload{Presences: r.presence}); err == nil {
		c.Send(msg)
	}
	r.broadcastLocked(TypePresenceJoin, PresenceJoinPayload{ClientID: c.ClientID, DisplayName: c.DisplayName}, c.ClientID)
}

// leave removes c and reports how many clients remain.
func (r *Room) leave(c *Client) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.clients[c.ClientID]; !ok {
		return len(r.clients)
	}
	delete(r.clients, c.ClientID)
	close(c.send)
	delete(r.presence, c.ClientID)
	r.broadcastLocked(TypePresenceLeave, PresenceLeavePayload{ClientID: c.ClientID}, "")
	return len(r.clients)
}

func (r *Room) broadcastLocked(typ string, payload any, excludeClientID string) {
	msg, err := newMessage(typ, payload)
	if err != nil {
		slog.Error("marshal broadcast", "type", typ, "error", err)
		return
	}
	msg.SessionID = r.sessionID
	for id, c := range r.clients {
		if id != excludeClientID {
			c.Send(msg)
		}
	}
}

// save stores the session as a new configuration version if it changed
// since the last save, or unconditionally when force is set.
func (r *Room) save(ctx context.Context, repo store.Repository, force bool) (int, error) {
	r.mu.Lock()
	if !r.dirty && !force {
		r.mu.Unlock()
		return 0, nil
	}
	doc, err := r.engine.ExportJSON()
	if err != nil {
		r.mu.Unlock()
		return 0, err
	}
	r.dirty = false
	r.mu.Unlock()

	version, err := repo.Save(ctx, r.configID, doc)
	if err != nil {
		r.mu.Lock()
		r.dirty = true
		r.mu.Unlock()
		return 0, err
	}
	return version, nil
}

// apply executes one client command against the engine.
func (r *Room) apply(ctx context.Context, c *Client, msg *Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	mutated, err := r.applyLocked(ctx, c, msg)
	if mutated && err == nil {
		r.dirty = true
	}
	return err
}

func decode(msg *Message, v any) error {
	if len(msg.Payload) == 0 {
		return fmt.Errorf("%s: missing payload", msg.Type)
	}
	if err := json.Unmarshal(msg.Payload, v); err != nil {
		return fmt.Errorf("%s: invalid payload: %w", msg.Type, err)
	}
	return nil
}

func (r *Room) hit(p PointerPayload) (mesh.Hit, bool) {
	if p.NDC != nil {
		aspect := p.NDC.Aspect
		if aspect <= 0 {
			aspect = 1
		}
		return r.engine.Pick(p.NDC.X, p.NDC.Y, aspect)
	}
	if p.Material == "" {
		return mesh.Hit{}, false
	}
	return mesh.Hit{Material: p.Material, UV: mesh.Vec2{p.U, p.V}}, true
}

func (r *Room) applyLocked(ctx context.Context, c *Client, msg *Message) (bool, error) {
	e := r.engine
	switch msg.Type {
	case TypePointerDown, TypePointerMove:
		var p PointerPayload
		if err := decode(msg, &p); err != nil {
			return false, err
		}
		hit, ok := r.hit(p)
		before := e.Revision()
		if msg.Type == TypePointerDown {
			err := e.PointerDown(hit, ok)
			return e.Revision() != before, err
		}
		err := e.PointerMove(hit, ok)
		return e.Revision() != before, err

	case TypePointerUp:
		e.PointerUp()
		return false, nil

	case TypeStripeSet:
		var p StripePayload
		if err := decode(msg, &p); err != nil {
			return false, err
		}
		return true, e.SetStripe(p.Region, p.Slot, p.Config)

	case TypeOrientationSet:
		var p OrientationPayload
		if err := decode(msg, &p); err != nil {
			return false, err
		}
		return true, e.SetOrientation(p.Orientation)

	case TypeTabSet:
		var p TabPayload
		if err := decode(msg, &p); err != nil {
			return false, err
		}
		return true, e.SetActiveTab(p.Tab)

	case TypePartColor:
		var p ColorPayload
		if err := decode(msg, &p); err != nil {
			return false, err
		}
		return true, e.SetPartColor(p.Region, p.Color)

	case TypeDesignLoad:
		var p DesignPayload
		if err := decode(msg, &p); err != nil {
			return false, err
		}
		if p.Region == "" {
			return true, e.LoadGarmentDesign(ctx, p.Ref)
		}
		_, err := e.LoadDesign(ctx, p.Region, p.Ref)
		return true, err

	case TypeDesignClear:
		var p RegionPayload
		if err := decode(msg, &p); err != nil {
			return false, err
		}
		return true, e.ClearDesign(p.Region)

	case TypeLogoAdd:
		var p LogoPayload
		if err := decode(msg, &p); err != nil {
			return false, err
		}
		_, err := e.LoadLogo(ctx, p.Region, p.URL, nil)
		return true, err

	case TypeLogoScale:
		var p ScalePayload
		if err := decode(msg, &p); err != nil {
			return false, err
		}
		return true, e.ScaleSelected(p.Factor)

	case TypeLogoRotate:
		var p RotatePayload
		if err := decode(msg, &p); err != nil {
			return false, err
		}
		return true, e.RotateSelected(p.Degrees)

	case TypeLogoDelete:
		return true, e.DeleteSelected()

	case TypeLogoClone:
		return true, e.CloneSelected()

	case TypeCameraReset:
		e.ResetCamera()
		return false, nil

	case TypeCameraFocus:
		var p RegionPayload
		if err := decode(msg, &p); err != nil {
			return false, err
		}
		if !e.FocusRegion(p.Region) {
			return false, fmt.Errorf("no camera target for region %q", p.Region)
		}
		return false, nil

	case TypeCameraOrbit:
		var p PosePayload
		if err := decode(msg, &p); err != nil {
			return false, err
		}
		e.OrbitCamera(p.Pose)
		if e.OrbitEnabled() {
			r.broadcastLocked(TypeCameraPose, PosePayload{Pose: e.CameraPose()}, c.ClientID)
		}
		return false, nil

	case TypePresenceUpdate:
		var p PresencePayload
		if err := decode(msg, &p); err != nil {
			return false, err
		}
		p.DisplayName = c.DisplayName
		r.presence[c.ClientID] = &p
		r.broadcastLocked(TypePresenceUpdate, p, c.ClientID)
		return false, nil
	}
	return false, fmt.Errorf("%w: %q", errUnknownType, msg.Type)
}
