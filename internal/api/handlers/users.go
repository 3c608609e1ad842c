package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/auditbench/auditbench/internal/api/dto"
	"github.com/auditbench/auditbench/internal/api/middleware"
	"github.com/auditbench/auditbench/internal/auth"
)

type UserHandler struct {
	authService *auth.Service
	respond     Responder
}

func NewUserHandler(authService *auth.Service, respond Responder) *UserHandler {
	return &UserHandler{authService: authService, respond: respond}
}

func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	user := middleware.CurrentUser(r.Context())
	writeJSON(w, http.StatusOK, dto.NewUserDTO(user))
}

func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req dto.UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respond.BadBody(w)
		return
	}

	if errs := req.Validate(); len(errs) > 0 {
		h.respond.ValidationFailed(w, errs)
		return
	}

	update := auth.ProfileUpdate{Avatar: req.Avatar}
	if req.Name != nil {
		update.Name = *req.Name
	}
	if req.Email != nil {
		update.Email = *req.Email
	}

	user := middleware.CurrentUser(r.Context())
	updated, err := h.authService.UpdateProfile(r.Context(), user, update)
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.NewUserDTO(updated))
}
