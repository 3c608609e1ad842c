package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/auditbench/auditbench/internal/api/dto"
	"github.com/auditbench/auditbench/internal/api/middleware"
	"github.com/auditbench/auditbench/internal/database/models"
	"github.com/auditbench/auditbench/internal/projects"
)

type AdminHandler struct {
	db       *gorm.DB
	projects *projects.Service
	respond  Responder
}

func NewAdminHandler(db *gorm.DB, projectService *projects.Service, respond Responder) *AdminHandler {
	return &AdminHandler{db: db, projects: projectService, respond: respond}
}

type adminStats struct {
	Users    int64 `json:"users"`
	Active   int64 `json:"active_users"`
	Tools    int64 `json:"tools"`
	Projects int64 `json:"projects"`
}

func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	var stats adminStats
	db := h.db.WithContext(r.Context())

	if err := db.Model(&models.User{}).Count(&stats.Users).Error; err != nil {
		h.respond.Error(w, r, err)
		return
	}
	if err := db.Model(&models.User{}).Where("is_active = ?", true).Count(&stats.Active).Error; err != nil {
		h.respond.Error(w, r, err)
		return
	}
	if err := db.Model(&models.Tool{}).Count(&stats.Tools).Error; err != nil {
		h.respond.Error(w, r, err)
		return
	}
	if err := db.Model(&models.Project{}).Where("is_template = ?", false).Count(&stats.Projects).Error; err != nil {
		h.respond.Error(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	params := dto.PaginationParams{
		Page:    atoiDefault(r.URL.Query().Get("page"), 1),
		PerPage: atoiDefault(r.URL.Query().Get("per_page"), 20),
	}
	params.Normalize()

	query := h.db.WithContext(r.Context()).Model(&models.User{})
	if search := r.URL.Query().Get("search"); search != "" {
		pattern := "%" + search + "%"
		query = query.Where("name LIKE ? OR email LIKE ?", pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		h.respond.Error(w, r, err)
		return
	}

	var users []models.User
	err := query.
		Order("created_at DESC").
		Offset(params.Offset()).
		Limit(params.PerPage).
		Find(&users).Error
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}

	out := make([]dto.UserDTO, len(users))
	for i := range users {
		out[i] = dto.NewUserDTO(&users[i])
	}

	writeJSON(w, http.StatusOK, dto.PaginatedResponse{
		Data:       out,
		Total:      total,
		Page:       params.Page,
		PerPage:    params.PerPage,
		TotalPages: totalPages(total, params.PerPage),
	})
}

// UpdateUser changes a user's role or active flag. Admins cannot change
// their own role or deactivate themselves, so the system cannot lose
// its last administrator through this endpoint.
func (h *AdminHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	actor := middleware.CurrentUser(r.Context())

	id, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req dto.AdminUpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respond.BadBody(w)
		return
	}

	if errs := req.Validate(); len(errs) > 0 {
		h.respond.ValidationFailed(w, errs)
		return
	}

	if id == actor.ID {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{
			Error: "Cannot change your own role or status",
		})
		return
	}

	var user models.User
	if err := h.db.WithContext(r.Context()).First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "User not found"})
			return
		}
		h.respond.Error(w, r, err)
		return
	}

	if req.Role != nil {
		user.Role = *req.Role
	}
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}

	if err := h.db.WithContext(r.Context()).Save(&user).Error; err != nil {
		h.respond.Error(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.NewUserDTO(&user))
}

// DeleteUser removes the account and cascades through owned projects
// and share grants. Self-deletion is rejected.
func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	actor := middleware.CurrentUser(r.Context())

	id, ok := h.userID(w, r)
	if !ok {
		return
	}

	if id == actor.ID {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{
			Error: "Cannot delete your own account",
		})
		return
	}

	var user models.User
	if err := h.db.WithContext(r.Context()).First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "User not found"})
			return
		}
		h.respond.Error(w, r, err)
		return
	}

	if err := h.projects.DeleteUserCascade(r.Context(), id); err != nil {
		h.respond.Error(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "User deleted"})
}

// ListTools is the admin catalogue view: inactive and private tools
// included, full records always.
func (h *AdminHandler) ListTools(w http.ResponseWriter, r *http.Request) {
	var tools []models.Tool
	err := h.db.WithContext(r.Context()).
		Order("created_at DESC").
		Find(&tools).Error
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, tools)
}

func (h *AdminHandler) CreateTool(w http.ResponseWriter, r *http.Request) {
	actor := middleware.CurrentUser(r.Context())

	var req dto.CreateToolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respond.BadBody(w)
		return
	}

	if errs := req.Validate(); len(errs) > 0 {
		h.respond.ValidationFailed(w, errs)
		return
	}

	tool := models.Tool{
		Name:          req.Name,
		Description:   req.Description,
		Category:      models.ToolCategoryOther,
		HTMLPath:      req.HTMLPath,
		Icon:          req.Icon,
		AccessType:    models.ToolAccessIframe,
		Tags:          req.Tags,
		IsActive:      true,
		IsPublic:      true,
		Version:       "1.0.0",
		Documentation: req.Documentation,
		Configuration: req.Configuration,
		AddedByID:     actor.ID,
	}
	if req.Category != "" {
		tool.Category = models.ToolCategory(req.Category)
	}
	if req.AccessType != "" {
		tool.AccessType = models.ToolAccessType(req.AccessType)
	}
	if req.Version != "" {
		tool.Version = req.Version
	}
	if req.IsActive != nil {
		tool.IsActive = *req.IsActive
	}
	if req.IsPublic != nil {
		tool.IsPublic = *req.IsPublic
	}
	if req.Featured != nil {
		tool.Featured = *req.Featured
	}
	if tool.Configuration == "" {
		tool.Configuration = "{}"
	}

	if err := h.db.WithContext(r.Context()).Create(&tool).Error; err != nil {
		h.respond.Error(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, tool)
}

func (h *AdminHandler) UpdateTool(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid tool id"})
		return
	}

	var req dto.UpdateToolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respond.BadBody(w)
		return
	}

	if errs := req.Validate(); len(errs) > 0 {
		h.respond.ValidationFailed(w, errs)
		return
	}

	var tool models.Tool
	if err := h.db.WithContext(r.Context()).First(&tool, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Tool not found"})
			return
		}
		h.respond.Error(w, r, err)
		return
	}

	if req.Name != nil {
		tool.Name = *req.Name
	}
	if req.Description != nil {
		tool.Description = *req.Description
	}
	if req.Category != nil {
		tool.Category = models.ToolCategory(*req.Category)
	}
	if req.HTMLPath != nil {
		tool.HTMLPath = *req.HTMLPath
	}
	if req.Icon != nil {
		tool.Icon = *req.Icon
	}
	if req.AccessType != nil {
		tool.AccessType = models.ToolAccessType(*req.AccessType)
	}
	if req.Tags != nil {
		tool.Tags = req.Tags
	}
	if req.IsActive != nil {
		tool.IsActive = *req.IsActive
	}
	if req.IsPublic != nil {
		tool.IsPublic = *req.IsPublic
	}
	if req.Featured != nil {
		tool.Featured = *req.Featured
	}
	if req.Version != nil {
		tool.Version = *req.Version
	}
	if req.Documentation != nil {
		tool.Documentation = *req.Documentation
	}
	if req.Configuration != nil {
		tool.Configuration = *req.Configuration
	}

	if err := h.db.WithContext(r.Context()).Save(&tool).Error; err != nil {
		h.respond.Error(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, tool)
}

func (h *AdminHandler) userID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid user id"})
		return uuid.Nil, false
	}
	return id, true
}
