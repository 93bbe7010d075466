package handler

import (
	"fmt"
	"net/http"

	"skedit/internal/locks/notify"
	"skedit/internal/locks/service"
	"skedit/pkg/auth"
	apperrors "skedit/pkg/errors"
	httputil "skedit/pkg/http"
	"skedit/pkg/logger"
	"skedit/pkg/middleware"
	"skedit/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type LockHandler struct {
	service  service.LockService
	notifier notify.Notifier
	verifier middleware.TokenVerifier
	limiter  *middleware.RateLimiter
	log      *logger.Logger
}

// NewLockHandler builds the lock routes. A nil notifier disables push and
// clients rely on polling the status route.
func NewLockHandler(
	service service.LockService,
	notifier notify.Notifier,
	verifier middleware.TokenVerifier,
	limiter *middleware.RateLimiter,
	log *logger.Logger,
) *LockHandler {
	if notifier == nil {
		notifier = notify.Noop()
	}
	return &LockHandler{
		service:  service,
		notifier: notifier,
		verifier: verifier,
		limiter:  limiter,
		log:      log,
	}
}

func (h *LockHandler) RegisterRoutes(router *httprouter.Router) {
	authn := middleware.Authenticate(h.verifier, h.log)
	user := func(handle httprouter.Handle) httprouter.Handle {
		return middleware.Chain(handle, authn)
	}
	limited := func(handle httprouter.Handle) httprouter.Handle {
		if h.limiter == nil {
			return user(handle)
		}
		return middleware.Chain(handle, authn, middleware.RateLimit(h.limiter))
	}
	admin := func(handle httprouter.Handle) httprouter.Handle {
		return middleware.Chain(handle, authn, middleware.RequireAdmin)
	}

	router.GET("/api/v1/locks/:resourceId", limited(h.Status))
	router.POST("/api/v1/locks/:resourceId/acquire", limited(h.Acquire))
	router.DELETE("/api/v1/locks/:resourceId", user(h.Release))
	router.POST("/api/v1/locks/:resourceId/force", admin(h.Force))
	router.GET("/api/v1/locks/:resourceId/history", admin(h.History))

	router.GET("/api/v1/users/:userId/locks", admin(h.UserLocks))
	router.DELETE("/api/v1/users/:userId/locks", admin(h.ForceReleaseUserLocks))
}

func (h *LockHandler) caller(w http.ResponseWriter, r *http.Request, handler string) (*auth.Principal, bool) {
	principal, ok := auth.FromContext(r.Context())
	if !ok {
		h.writeError(w, handler, apperrors.Unauthorized("Authentication required"))
		return nil, false
	}
	return principal, true
}

func (h *LockHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *LockHandler) Status(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	view, err := h.service.GetLockInfo(r.Context(), ps.ByName("resourceId"))
	if err != nil {
		h.writeError(w, "Status", err)
		return
	}

	if view == nil {
		if err := httputil.WriteNull(w, "No active lock"); err != nil {
			h.log.Error("failed to write success response", "handler", "Status", "operation", "WriteNull", "error", err)
		}
		return
	}
	if err := httputil.WriteSuccess(w, view); err != nil {
		h.log.Error("failed to write success response", "handler", "Status", "operation", "WriteSuccess", "error", err)
	}
}

func (h *LockHandler) Acquire(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	principal, ok := h.caller(w, r, "Acquire")
	if !ok {
		return
	}

	view, err := h.service.AcquireLock(r.Context(), ps.ByName("resourceId"), principal.UserID)
	if err != nil {
		h.writeError(w, "Acquire", err)
		return
	}
	h.notifier.LockAcquired(view)

	if err := httputil.WriteMessage(w, "Lock acquired successfully", view); err != nil {
		h.log.Error("failed to write success response", "handler", "Acquire", "operation", "WriteMessage", "error", err)
	}
}

func (h *LockHandler) Release(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	principal, ok := h.caller(w, r, "Release")
	if !ok {
		return
	}

	resourceID := ps.ByName("resourceId")
	if id, ok := model.CanonicalID(resourceID); ok {
		resourceID = id
	}
	if err := h.service.ReleaseLock(r.Context(), resourceID, principal.UserID); err != nil {
		h.writeError(w, "Release", err)
		return
	}
	h.notifier.LockReleased(resourceID, principal.UserID)

	if err := httputil.WriteMessage(w, "Lock released successfully", nil); err != nil {
		h.log.Error("failed to write success response", "handler", "Release", "operation", "WriteMessage", "error", err)
	}
}

func (h *LockHandler) Force(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	principal, ok := h.caller(w, r, "Force")
	if !ok {
		return
	}

	takeover, err := h.service.ForceLock(r.Context(), ps.ByName("resourceId"), principal.UserID)
	if err != nil {
		h.writeError(w, "Force", err)
		return
	}
	h.notifier.LockForceTaken(takeover, principal.UserID)

	if err := httputil.WriteMessage(w, "Lock acquired by admin", takeover); err != nil {
		h.log.Error("failed to write success response", "handler", "Force", "operation", "WriteMessage", "error", err)
	}
}

func (h *LockHandler) History(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	locks, err := h.service.GetResourceLocks(r.Context(), ps.ByName("resourceId"))
	if err != nil {
		h.writeError(w, "History", err)
		return
	}

	if err := httputil.WriteSuccess(w, locks); err != nil {
		h.log.Error("failed to write success response", "handler", "History", "operation", "WriteSuccess", "error", err)
	}
}

func (h *LockHandler) UserLocks(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	locks, err := h.service.GetUserActiveLocks(r.Context(), ps.ByName("userId"))
	if err != nil {
		h.writeError(w, "UserLocks", err)
		return
	}

	if err := httputil.WriteSuccess(w, locks); err != nil {
		h.log.Error("failed to write success response", "handler", "UserLocks", "operation", "WriteSuccess", "error", err)
	}
}

func (h *LockHandler) ForceReleaseUserLocks(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	principal, ok := h.caller(w, r, "ForceReleaseUserLocks")
	if !ok {
		return
	}

	userID := ps.ByName("userId")
	released, err := h.service.ForceReleaseUserLocks(r.Context(), userID, principal.UserID)
	if err != nil {
		h.writeError(w, "ForceReleaseUserLocks", err)
		return
	}
	for _, lock := range released {
		h.notifier.LockReleased(lock.ResourceID, lock.HolderID)
	}

	message := "No active locks found for user"
	if len(released) > 0 {
		message = fmt.Sprintf("Released %d locks for user", len(released))
	}
	if err := httputil.WriteMessage(w, message, map[string]any{"released": len(released)}); err != nil {
		h.log.Error("failed to write success response", "handler", "ForceReleaseUserLocks", "operation", "WriteMessage", "error", err)
	}
}
