package handler

import (
	"net/http"

	"skedit/internal/appointments/service"
	"skedit/internal/locks/notify"
	"skedit/pkg/auth"
	apperrors "skedit/pkg/errors"
	httputil "skedit/pkg/http"
	"skedit/pkg/logger"
	"skedit/pkg/middleware"
	"skedit/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type AppointmentHandler struct {
	service  service.AppointmentService
	notifier notify.Notifier
	verifier middleware.TokenVerifier
	log      *logger.Logger
}

func NewAppointmentHandler(service service.AppointmentService, notifier notify.Notifier, verifier middleware.TokenVerifier, log *logger.Logger) *AppointmentHandler {
	if notifier == nil {
		notifier = notify.Noop()
	}
	return &AppointmentHandler{
		service:  service,
		notifier: notifier,
		verifier: verifier,
		log:      log,
	}
}

func (h *AppointmentHandler) RegisterRoutes(router *httprouter.Router) {
	authn := middleware.Authenticate(h.verifier, h.log)

	router.GET("/api/v1/appointments/:id", middleware.Chain(h.GetByID, authn))
	router.PATCH("/api/v1/appointments/:id", middleware.Chain(h.Update, authn))
}

func (h *AppointmentHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	details, err := h.service.GetByID(r.Context(), ps.ByName("id"))
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetByID", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, details); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *AppointmentHandler) Update(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	principal, ok := auth.FromContext(r.Context())
	if !ok {
		if writeErr := httputil.WriteError(w, apperrors.Unauthorized("Authentication required")); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Update", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	var updates model.AppointmentUpdate
	if err := httputil.DecodeJSON(r, &updates, false); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Update", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	appointment, err := h.service.Update(r.Context(), ps.ByName("id"), principal.UserID, &updates)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Update", "operation", "WriteError", "error", writeErr)
		}
		return
	}
	h.notifier.ResourceUpdated(appointment.ID, principal.UserID, appointment)

	if err := httputil.WriteMessage(w, "Appointment updated successfully", appointment); err != nil {
		h.log.Error("failed to write success response", "handler", "Update", "operation", "WriteMessage", "error", err)
	}
}
