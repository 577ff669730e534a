package live

import (
	"encoding/json"

	"github.com/kitforge/kitforge/backend-go/internal/camera"
	"github.com/kitforge/kitforge/backend-go/internal/document"
	"github.com/kitforge/kitforge/backend-go/internal/region"
	"github.com/kitforge/kitforge/backend-go/internal/stripe"
)

type Message struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId,omitempty"`
	ClientID  string          `json:"clientId,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

const (
	TypePresenceUpdate = "presence.update"
	TypePresenceState  = "presence.state"
	TypePresenceJoin   = "presence.join"
	TypePresenceLeave  = "presence.leave"
	TypeError          = "error"

	// Connection
	TypeWelcome = "welcome"

	// Pointer input
	TypePointerDown = "pointer.down"
	TypePointerMove = "pointer.move"
	TypePointerUp   = "pointer.up"

	// Edits
	TypeStripeSet      = "stripe.set"
	TypeOrientationSet = "orientation.set"
	TypePartColor      = "part.color"
	TypeDesignLoad     = "design.load"
	TypeDesignClear    = "design.clear"
	TypeLogoAdd        = "logo.add"
	TypeLogoScale      = "logo.scale"
	TypeLogoRotate     = "logo.rotate"
	TypeLogoDelete     = "logo.delete"
	TypeLogoClone      = "logo.clone"
	TypeTabSet         = "tab.set"

	// Camera
	TypeCameraReset = "camera.reset"
	TypeCameraFocus = "camera.focus"
	TypeCameraOrbit = "camera.orbit"
	TypeCameraPose  = "camera.pose"

	// Outbound state
	TypeTextureDirty     = "texture.dirty"
	TypeSelectionChanged = "selection.changed"

	// Persistence
	TypeConfigSave  = "config.save"
	TypeConfigSaved = "config.saved"
)

// NDC is a pointer position in normalized device coordinates.
type NDC struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Aspect float64 `json:"aspect"`
}

// PointerPayload carries either a ray in NDC, cast server side against the
// loaded model, or a hit the client already resolved. An empty material
// with no NDC is a miss.
type PointerPayload struct {
	NDC      *NDC    `json:"ndc,omitempty"`
	Material string  `json:"material,omitempty"`
	U        float64 `json:"u"`
	V        float64 `json:"v"`
}

type StripePayload struct {
	Region region.ID     `json:"region"`
	Slot   region.Slot   `json:"slot"`
	Config stripe.Config `json:"config"`
}

type OrientationPayload struct {
	Orientation stripe.Orientation `json:"orientation"`
}

type TabPayload struct {
	Tab document.ActiveTab `json:"tab"`
}

type ColorPayload struct {
	Region region.ID `json:"region"`
	Color  string    `json:"color"`
}

// DesignPayload loads artwork into one region, or into every region when
// Region is empty.
type DesignPayload struct {
	Region region.ID `json:"region,omitempty"`
	Ref    string    `json:"ref"`
}

type RegionPayload struct {
	Region region.ID `json:"region"`
}

type LogoPayload struct {
	Region region.ID `json:"region"`
	URL    string    `json:"url"`
}

type ScalePayload struct {
	Factor float64 `json:"factor"`
}

type RotatePayload struct {
	Degrees float64 `json:"degrees"`
}

type PosePayload struct {
	Pose      camera.Pose `json:"pose"`
	Animating bool        `json:"animating"`
}

// TextureVersion tells clients a region's texture was re-rendered.
type TextureVersion struct {
	Region  region.ID `json:"region"`
	Version uint64    `json:"version"`
}

type TextureDirtyPayload struct {
	Textures []TextureVersion `json:"textures"`
}

type WelcomePayload struct {
	ClientID      string                  `json:"clientId"`
	Configuration *document.Configuration `json:"configuration"`
	Textures      []TextureVersion        `json:"textures"`
	Pose          camera.Pose             `json:"pose"`
}

type ConfigSavedPayload struct {
	Version int `json:"version"`
}

type ErrorPayload struct {
	Request string `json:"request,omitempty"`
	Message string `json:"message"`
}

type PresencePayload struct {
	Cursor      *CursorPos `json:"cursor,omitempty"`
	Region      region.ID  `json:"region,omitempty"`
	DisplayName string     `json:"displayName,omitempty"`
}

// CursorPos is a position in the texture space of Region.
type CursorPos struct {
	U float64 `json:"u"`
	V float64 `json:"v"`
}

type PresenceStatePayload struct {
	Presences map[string]*PresencePayload `json:"presences"`
}

type PresenceJoinPayload struct {
	ClientID    string `json:"clientId"`
	DisplayName string `json:"displayName"`
}

type PresenceLeavePayload struct {
	ClientID string `json:"clientId"`
}

func newMessage(typ string, payload any) (*Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Message{Type: typ, Payload: data}, nil
}
