package live

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/gorilla/mux"

	"github.com/kitforge/kitforge/backend-go/internal/engine"
	"github.com/kitforge/kitforge/backend-go/internal/region"
	"github.com/kitforge/kitforge/backend-go/internal/store"
	"github.com/kitforge/kitforge/backend-go/internal/texture"
)

// DefaultTickInterval is the render cadence of a room.
const DefaultTickInterval = 16 * time.Millisecond

var ErrNoSession = errors.New("no live session")

// EngineFactory creates the engine backing a new room.
type EngineFactory func() (*engine.Engine, error)

type Hub struct {
	mu        sync.RWMutex
	rooms     map[string]*Room // configID -> room
	repo      store.Repository
	newEngine EngineFactory
	interval  time.Duration

	register   chan *Client
	unregister chan *Client

	ctx     context.Context
	cancel  context.CancelFunc
	stopped chan struct{}
}

func NewHub(repo store.Repository, newEngine EngineFactory, interval time.Duration) *Hub {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		rooms:      make(map[string]*Room),
		repo:       repo,
		newEngine:  newEngine,
		interval:   interval,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		ctx:        ctx,
		cancel:     cancel,
		stopped:    make(chan struct{}),
	}
}

func (h *Hub) Run() {
	defer close(h.stopped)
	for {
		select {
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case <-h.ctx.Done():
			return
		}
	}
}

func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.ctx.Done():
		client.disconnect(websocket.StatusGoingAway, "server shutting down")
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.ctx.Done():
	}
}

// Stop ends every room, saving sessions with unsaved edits.
func (h *Hub) Stop() {
	h.cancel()
	<-h.stopped

	h.mu.Lock()
	rooms := h.rooms
	h.rooms = make(map[string]*Room)
	h.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for id, room := range rooms {
		room.cancel()
		<-room.done
		if _, err := room.save(ctx, h.repo, false); err != nil {
			slog.Error("save session on shutdown", "config", id, "error", err)
		}
	}
}

func (h *Hub) openRoom(configID string) (*Room, error) {
	h.mu.RLock()
	room, ok := h.rooms[configID]
	h.mu.RUnlock()
	if ok {
		return room, nil
	}

	e, err := h.newEngine()
	if err != nil {
		return nil, fmt.Errorf("create engine: %w", err)
	}
	room = newRoom(configID, e)
	ctx, cancel := context.WithCancel(h.ctx)
	room.ctx, room.cancel = ctx, cancel
	if err := room.load(ctx, h.repo); err != nil {
		cancel()
		return nil, fmt.Errorf("load configuration %s: %w", configID, err)
	}
	go room.run(ctx, h.interval)

	h.mu.Lock()
	h.rooms[configID] = room
	h.mu.Unlock()
	slog.Info("session opened", "config", configID, "session", room.sessionID)
	return room, nil
}

func (h *Hub) addClient(client *Client) {
	room, err := h.openRoom(client.ConfigID)
	if err != nil {
		slog.Error("open session", "config", client.ConfigID, "error", err)
		client.disconnect(websocket.StatusInternalError, "session unavailable")
		return
	}
	room.join(client)
	slog.Info("client joined", "client", client.ClientID, "config", client.ConfigID)
}

func (h *Hub) removeClient(client *Client) {
	h.mu.RLock()
	room, ok := h.rooms[client.ConfigID]
	h.mu.RUnlock()
	if !ok {
		return
	}

	remaining := room.leave(client)
	slog.Info("client left", "client", client.ClientID, "config", client.ConfigID)
	if remaining > 0 {
		return
	}

	h.mu.Lock()
	delete(h.rooms, client.ConfigID)
	h.mu.Unlock()

	room.cancel()
	<-room.done
	if _, err := room.save(h.ctx, h.repo, false); err != nil {
		slog.Error("save session", "config", client.ConfigID, "error", err)
	}
	slog.Info("session closed", "config", client.ConfigID, "session", room.sessionID)
}

func (h *Hub) room(configID string) (*Room, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	room, ok := h.rooms[configID]
	return room, ok
}

func (h *Hub) handleMessage(ctx context.Context, sender *Client, msg *Message) {
	// Saves use the connection's ctx; edits run under the room's.
	room, ok := h.room(sender.ConfigID)
	if !ok {
		sender.SendError(msg.Type, ErrNoSession.Error())
		return
	}

	if msg.Type == TypeConfigSave {
		version, err := room.save(ctx, h.repo, true)
		if err != nil {
			slog.Error("save session", "config", sender.ConfigID, "error", err)
			sender.SendError(msg.Type, "save failed")
			return
		}
		if out, err := newMessage(TypeConfigSaved, ConfigSavedPayload{Version: version}); err == nil {
			sender.Send(out)
		}
		return
	}

	if err := room.apply(room.ctx, sender, msg); err != nil {
		slog.Warn("command rejected", "type", msg.Type, "client", sender.ClientID, "error", err)
		sender.SendError(msg.Type, err.Error())
	}
}

// Texture handles GET /api/sessions/{id}/textures/{region}, serving the
// live session's current texture as PNG.
func (h *Hub) Texture(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, err := region.ParseID(vars["region"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	room, ok := h.room(vars["id"])
	if !ok {
		http.Error(w, ErrNoSession.Error(), http.StatusNotFound)
		return
	}

	var buf bytes.Buffer
	var version uint64
	var stale bool
	room.mu.Lock()
	tex, err := room.engine.Texture(id)
	if err == nil {
		version, stale = tex.Version, tex.NeedsUpdate()
		err = texture.Encode(&buf, tex.Image, texture.PNG)
	}
	room.mu.Unlock()
	if err != nil {
		slog.Error("encode session texture", "config", vars["id"], "region", id, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", texture.PNG.ContentType())
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Texture-Version", strconv.FormatUint(version, 10))
	if stale {
		// Pixels predate edits the next tick will render.
		w.Header().Set("X-Texture-Stale", "true")
	}
	w.Write(buf.Bytes())
}
