package handler

import (
	"net/http"

	"github.com/attendtrack/attendance-backend/internal/user/domain"
	"github.com/attendtrack/attendance-backend/internal/user/service"
	"github.com/attendtrack/attendance-backend/pkg/httputil"
	"github.com/attendtrack/attendance-backend/pkg/logger"
)

// ProfileHandler serves the caller's own account
type ProfileHandler struct {
	service *service.UserService
	logger  *logger.Logger
}

// NewProfileHandler creates a new profile handler
func NewProfileHandler(svc *service.UserService, log *logger.Logger) *ProfileHandler {
	return &ProfileHandler{
		service: svc,
		logger:  log,
	}
}

// Get returns the caller's profile
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.GetByID(r.Context(), httputil.GetUserID(r.Context()))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, user)
}

// Update changes name, phone or profile image
func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateProfileRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	user, err := h.service.UpdateProfile(r.Context(), httputil.GetUserID(r.Context()), &req)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, user)
}
