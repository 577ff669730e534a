package live

import (
	"log/slog"
	"net/http"
	"net/url"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/kitforge/kitforge/backend-go/internal/typeid"
)

// OriginPatterns turns allowed origins such as "http://localhost:5173" into
// the host patterns the websocket handshake checks.
func OriginPatterns(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			out = append(out, u.Host)
			continue
		}
		out = append(out, o)
	}
	return out
}

// ServeWS handles GET /ws/session/{id}, joining the caller to the live
// session of configuration id.
func (h *Hub) ServeWS(originPatterns []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		configID := mux.Vars(r)["id"]
		if err := typeid.Validate(configID, typeid.PrefixConfig); err != nil {
			http.Error(w, "invalid configuration id", http.StatusBadRequest)
			return
		}

		displayName := r.URL.Query().Get("name")
		clientID := uuid.New().String()
		if displayName == "" {
			displayName = "guest-" + clientID[:8]
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: originPatterns,
		})
		if err != nil {
			slog.Error("websocket accept", "error", err)
			return
		}

		client := NewClient(h, conn, configID, clientID, displayName)
		h.Register(client)

		ctx := r.Context()
		go client.WritePump(ctx)
		client.ReadPump(ctx)
	}
}
