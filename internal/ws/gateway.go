package ws

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/classchat/server/internal/auth"
)

// authWait bounds how long an upgraded connection may take to present its
// auth frame before it is closed.
const authWait = 5 * time.Second

// Gateway upgrades HTTP requests to WebSocket connections and gates entry
// to the broadcast group on token verification. A connection that fails
// verification is closed before it ever joins.
type Gateway struct {
	hub      *Hub
	jwt      *auth.JWTService
	upgrader websocket.Upgrader
}

// NewGateway creates a gateway over the hub. Cross-origin upgrades are only
// accepted from the configured client origin.
func NewGateway(hub *Hub, jwtService *auth.JWTService, clientOrigin string) *Gateway {
	return &Gateway{
		hub: hub,
		jwt: jwtService,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || origin == clientOrigin
			},
		},
	}
}

// HandleConnection is the /ws handler. The token may arrive either as a
// `token` query parameter on the handshake URL or in a first
// {"auth":{"token":...}} frame after the upgrade.
func (g *Gateway) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed for %s: %v", r.RemoteAddr, err)
		return
	}

	token := r.URL.Query().Get("token")
	if token == "" {
		token = readAuthFrame(conn)
	}

	claims, err := g.jwt.VerifyToken(token)
	if err != nil {
		log.Printf("WebSocket auth failed for %s", r.RemoteAddr)
		reject(conn)
		return
	}

	client := newClient(conn, g.hub, connUser{ID: claims.UserID, Username: claims.Username}, r.RemoteAddr)
	g.hub.Register(client)
}

// readAuthFrame waits briefly for the auth frame and extracts its token.
// Returns "" on timeout or malformed input; verification fails on "".
func readAuthFrame(conn *websocket.Conn) string {
	_ = conn.SetReadDeadline(time.Now().Add(authWait))
	defer func() { _ = conn.SetReadDeadline(time.Time{}) }()

	_, raw, err := conn.ReadMessage()
	if err != nil {
		return ""
	}
	var frame AuthFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return ""
	}
	return frame.Auth.Token
}

// reject closes an unauthenticated connection without it reaching the group.
func reject(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "unauthorized")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	_ = conn.Close()
}
