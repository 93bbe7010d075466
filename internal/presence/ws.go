package presence

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"skedit/pkg/auth"
	apperrors "skedit/pkg/errors"
	httputil "skedit/pkg/http"
	"skedit/pkg/logger"
	"skedit/pkg/model"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	frameTimeout   = 5 * time.Second
)

// LockTracker is the slice of the lock service the realtime channel needs.
type LockTracker interface {
	GetLockInfo(ctx context.Context, resourceID string) (*model.LockView, error)
	ExtendLock(ctx context.Context, resourceID, userID string) bool
	UpdatePointerPosition(ctx context.Context, resourceID, userID string, pos model.Position)
}

type TokenVerifier interface {
	Verify(token string) (*auth.Principal, error)
}

type Options struct {
	HeartbeatInterval  time.Duration
	PointerMinInterval time.Duration
	SendBuffer         int
	AllowedOrigins     []string
}

// WSHandler upgrades authenticated requests and runs the per-connection
// read and write loops.
type WSHandler struct {
	hub      *Hub
	pusher   Pusher
	locks    LockTracker
	verifier TokenVerifier
	opts     Options
	upgrader websocket.Upgrader
	log      *logger.Logger
	now      func() time.Time
}

// NewWSHandler wires the transport. pusher is where room broadcasts go; pass
// the hub itself when no backplane is configured.
func NewWSHandler(hub *Hub, pusher Pusher, locks LockTracker, verifier TokenVerifier, opts Options, log *logger.Logger) *WSHandler {
	if pusher == nil {
		pusher = hub
	}
	h := &WSHandler{
		hub:      hub,
		pusher:   pusher,
		locks:    locks,
		verifier: verifier,
		opts:     opts,
		log:      log.Component("presence_ws"),
		now:      time.Now,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *WSHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.opts.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	if len(h.opts.AllowedOrigins) > 0 {
		return false
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

func tokenFrom(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	return httputil.BearerToken(r)
}

func (h *WSHandler) Serve(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	principal, err := h.verifier.Verify(tokenFrom(r))
	if err != nil {
		message := "Authentication required"
		if errors.Is(err, auth.ErrTokenExpired) {
			message = "Token has expired"
		} else if !errors.Is(err, auth.ErrMissingToken) {
			message = "Invalid token"
		}
		h.log.Warn("Websocket upgrade rejected", "remote_addr", r.RemoteAddr, "reason", err.Error())
		if writeErr := httputil.WriteError(w, apperrors.Unauthorized(message)); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Serve", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("Websocket upgrade failed", "user_id", principal.UserID, "error", err)
		return
	}

	conn := NewConn(principal, h.opts.SendBuffer)
	h.hub.Register(conn)

	go h.writeLoop(ws, conn)
	h.readLoop(r.Context(), ws, conn)
}

type session struct {
	conn        *Conn
	lastPointer time.Time
}

func (h *WSHandler) readLoop(ctx context.Context, ws *websocket.Conn, conn *Conn) {
	defer func() {
		h.hub.Unregister(conn)
		_ = ws.Close()
	}()

	ws.SetReadLimit(maxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	s := &session{conn: conn}
	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug("Websocket read failed", "user_id", conn.UserID(), "conn_id", conn.ID(), "error", err)
			}
			return
		}
		_ = ws.SetReadDeadline(time.Now().Add(pongWait))
		h.dispatch(ctx, s, raw)
	}
}

func (h *WSHandler) writeLoop(ws *websocket.Conn, conn *Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = ws.Close()
	}()

	for {
		select {
		case payload := <-conn.Send():
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.TextMessage, payload); err != nil {
				conn.Close()
				return
			}
		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				conn.Close()
				return
			}
		case <-conn.Done():
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			_ = ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (h *WSHandler) dispatch(parent context.Context, s *session, raw []byte) {
	var frame inboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		h.sendError(s.conn, "Invalid message format")
		return
	}

	ctx, cancel := context.WithTimeout(parent, frameTimeout)
	defer cancel()

	switch frame.Event {
	case EventJoinRoom:
		h.handleJoin(ctx, s, frame.Data)
	case EventLeaveRoom:
		h.handleLeave(s, frame.Data)
	case EventPointerUpdate:
		h.handlePointer(ctx, s, frame.Data)
	case EventHeartbeat:
		h.handleHeartbeat(ctx, s, frame.Data)
	default:
		h.sendError(s.conn, "Unknown event: "+frame.Event)
	}
}

func decodeResourceID(data json.RawMessage) (string, bool) {
	var req roomRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return "", false
	}
	return model.CanonicalID(req.ResourceID)
}

func (h *WSHandler) handleJoin(ctx context.Context, s *session, data json.RawMessage) {
	resourceID, ok := decodeResourceID(data)
	if !ok {
		h.sendError(s.conn, "Invalid appointment ID format")
		return
	}
	h.hub.Join(s.conn, resourceID)

	view, err := h.locks.GetLockInfo(ctx, resourceID)
	if err != nil {
		h.log.Warn("Failed to load lock status", "resource_id", resourceID, "user_id", s.conn.UserID(), "error", err)
		h.sendError(s.conn, "Failed to load lock status")
		return
	}
	h.hub.Send(s.conn, Frame{Event: EventLockStatus, Data: LockStatus{
		ResourceID:          resourceID,
		Lock:                view,
		HeartbeatIntervalMs: h.opts.HeartbeatInterval.Milliseconds(),
	}})
}

func (h *WSHandler) handleLeave(s *session, data json.RawMessage) {
	resourceID, ok := decodeResourceID(data)
	if !ok {
		h.sendError(s.conn, "Invalid appointment ID format")
		return
	}
	h.hub.Leave(s.conn, resourceID)
}

func (h *WSHandler) handlePointer(ctx context.Context, s *session, data json.RawMessage) {
	var req pointerRequest
	if err := json.Unmarshal(data, &req); err != nil {
		h.sendError(s.conn, "Invalid pointer update")
		return
	}
	resourceID, ok := model.CanonicalID(req.ResourceID)
	if !ok {
		h.sendError(s.conn, "Invalid pointer update")
		return
	}
	req.ResourceID = resourceID
	if !h.hub.InRoom(s.conn, req.ResourceID) {
		h.sendError(s.conn, "Join the appointment room before sending pointer updates")
		return
	}

	now := h.now()
	if !s.lastPointer.IsZero() && now.Sub(s.lastPointer) < h.opts.PointerMinInterval {
		h.hub.metrics.EventDropped("throttled")
		return
	}
	s.lastPointer = now

	principal := s.conn.Principal()
	h.locks.UpdatePointerPosition(ctx, req.ResourceID, principal.UserID, model.Position{X: req.X, Y: req.Y})
	h.pusher.BroadcastToRoom(req.ResourceID, Frame{Event: EventPointerUpdate, Data: PointerUpdate{
		ResourceID: req.ResourceID,
		UserID:     principal.UserID,
		X:          req.X,
		Y:          req.Y,
		UserInfo:   UserInfo{Name: principal.Name, Email: principal.Email},
	}}, s.conn.ID())
}

func (h *WSHandler) handleHeartbeat(ctx context.Context, s *session, data json.RawMessage) {
	resourceID, ok := decodeResourceID(data)
	if !ok {
		return
	}
	h.locks.ExtendLock(ctx, resourceID, s.conn.UserID())
}

func (h *WSHandler) sendError(c *Conn, message string) {
	h.hub.Send(c, Frame{Event: EventError, Data: ErrorPayload{Message: message}})
}
