package presence

import (
	"fmt"
	"net/http"

	httputil "skedit/pkg/http"
	"skedit/pkg/logger"
	"skedit/pkg/middleware"

	"github.com/julienschmidt/httprouter"
)

type Handler struct {
	hub      *Hub
	pusher   Pusher
	ws       *WSHandler
	verifier middleware.TokenVerifier
	log      *logger.Logger
}

func NewHandler(hub *Hub, pusher Pusher, ws *WSHandler, verifier middleware.TokenVerifier, log *logger.Logger) *Handler {
	if pusher == nil {
		pusher = hub
	}
	return &Handler{
		hub:      hub,
		pusher:   pusher,
		ws:       ws,
		verifier: verifier,
		log:      log,
	}
}

func (h *Handler) RegisterRoutes(router *httprouter.Router) {
	admin := func(handle httprouter.Handle) httprouter.Handle {
		return middleware.Chain(handle, middleware.Authenticate(h.verifier, h.log), middleware.RequireAdmin)
	}

	router.GET("/ws", h.ws.Serve)
	router.GET("/api/v1/presence/stats", admin(h.Stats))
	router.DELETE("/api/v1/presence/users/:userId", admin(h.DisconnectUser))
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if err := httputil.WriteSuccess(w, h.hub.Stats()); err != nil {
		h.log.Error("failed to write success response", "handler", "Stats", "operation", "WriteSuccess", "error", err)
	}
}

func (h *Handler) DisconnectUser(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	userID := ps.ByName("userId")
	n := h.pusher.DisconnectUser(userID)

	err := httputil.WriteMessage(w, fmt.Sprintf("Disconnected %d connections for user", n), map[string]any{
		"user_id":     userID,
		"connections": n,
	})
	if err != nil {
		h.log.Error("failed to write success response", "handler", "DisconnectUser", "operation", "WriteMessage", "error", err)
	}
}
