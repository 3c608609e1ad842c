package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/auditbench/auditbench/internal/api/dto"
	"github.com/auditbench/auditbench/internal/api/middleware"
	"github.com/auditbench/auditbench/internal/api/validation"
	"github.com/auditbench/auditbench/internal/database/models"
)

type ToolHandler struct {
	db      *gorm.DB
	respond Responder
}

func NewToolHandler(db *gorm.DB, respond Responder) *ToolHandler {
	return &ToolHandler{db: db, respond: respond}
}

// List serves the catalogue. Anonymous callers see public active tools
// without configuration or documentation; authenticated callers see the
// full records.
func (h *ToolHandler) List(w http.ResponseWriter, r *http.Request) {
	user := middleware.CurrentUser(r.Context())

	query := h.db.WithContext(r.Context()).
		Model(&models.Tool{}).
		Where("is_active = ?", true)
	if user == nil {
		query = query.Where("is_public = ?", true)
	}

	if category := r.URL.Query().Get("category"); category != "" {
		if !models.ValidToolCategory(category) {
			h.respond.ValidationFailed(w, map[string]string{"category": "Invalid category"})
			return
		}
		query = query.Where("category = ?", category)
	}
	if search := validation.TruncateString(r.URL.Query().Get("search"), maxSearchLen); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(description) LIKE ?", pattern, pattern)
	}
	if r.URL.Query().Get("featured") == "true" {
		query = query.Where("featured = ?", true)
	}

	params := dto.PaginationParams{
		Page:    atoiDefault(r.URL.Query().Get("page"), 1),
		PerPage: atoiDefault(r.URL.Query().Get("per_page"), 20),
	}
	params.Normalize()

	var total int64
	if err := query.Count(&total).Error; err != nil {
		h.respond.Error(w, r, err)
		return
	}

	var tools []models.Tool
	err := query.
		Order("featured DESC, usage_count DESC, name ASC").
		Offset(params.Offset()).
		Limit(params.PerPage).
		Find(&tools).Error
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.PaginatedResponse{
		Data:       dto.NewToolDTOs(tools, user != nil),
		Total:      total,
		Page:       params.Page,
		PerPage:    params.PerPage,
		TotalPages: totalPages(total, params.PerPage),
	})
}

func (h *ToolHandler) Featured(w http.ResponseWriter, r *http.Request) {
	user := middleware.CurrentUser(r.Context())

	query := h.db.WithContext(r.Context()).
		Where("is_active = ? AND featured = ?", true, true)
	if user == nil {
		query = query.Where("is_public = ?", true)
	}

	var tools []models.Tool
	if err := query.Order("usage_count DESC").Limit(10).Find(&tools).Error; err != nil {
		h.respond.Error(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.NewToolDTOs(tools, user != nil))
}

func (h *ToolHandler) Popular(w http.ResponseWriter, r *http.Request) {
	user := middleware.CurrentUser(r.Context())

	query := h.db.WithContext(r.Context()).
		Where("is_active = ?", true)
	if user == nil {
		query = query.Where("is_public = ?", true)
	}

	var tools []models.Tool
	if err := query.Order("usage_count DESC").Limit(10).Find(&tools).Error; err != nil {
		h.respond.Error(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.NewToolDTOs(tools, user != nil))
}

type categoryCount struct {
	Category string `json:"category"`
	Count    int64  `json:"count"`
}

func (h *ToolHandler) Categories(w http.ResponseWriter, r *http.Request) {
	user := middleware.CurrentUser(r.Context())

	query := h.db.WithContext(r.Context()).
		Model(&models.Tool{}).
		Where("is_active = ?", true)
	if user == nil {
		query = query.Where("is_public = ?", true)
	}

	var counts []categoryCount
	err := query.
		Select("category, COUNT(*) AS count").
		Group("category").
		Order("count DESC").
		Scan(&counts).Error
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, counts)
}

func (h *ToolHandler) Get(w http.ResponseWriter, r *http.Request) {
	user := middleware.CurrentUser(r.Context())

	tool, ok := h.loadVisible(w, r, user)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, dto.NewToolDTO(tool, user != nil))
}

type launchResponse struct {
	HTMLPath   string `json:"html_path"`
	AccessType string `json:"access_type"`
	Version    string `json:"version"`
}

// Launch records a use of the tool and returns what the client needs to
// open it. The counter increments atomically in SQL, not read-modify-
// write in Go.
func (h *ToolHandler) Launch(w http.ResponseWriter, r *http.Request) {
	user := middleware.CurrentUser(r.Context())

	tool, ok := h.loadVisible(w, r, user)
	if !ok {
		return
	}

	err := h.db.WithContext(r.Context()).
		Model(&models.Tool{}).
		Where("id = ?", tool.ID).
		UpdateColumn("usage_count", gorm.Expr("usage_count + 1")).Error
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, launchResponse{
		HTMLPath:   tool.HTMLPath,
		AccessType: string(tool.AccessType),
		Version:    tool.Version,
	})
}

func (h *ToolHandler) loadVisible(w http.ResponseWriter, r *http.Request, user *models.User) (*models.Tool, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid tool id"})
		return nil, false
	}

	query := h.db.WithContext(r.Context()).Where("is_active = ?", true)
	if user == nil {
		query = query.Where("is_public = ?", true)
	}

	var tool models.Tool
	if err := query.First(&tool, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Tool not found"})
			return nil, false
		}
		h.respond.Error(w, r, err)
		return nil, false
	}
	return &tool, true
}

func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func totalPages(total int64, perPage int) int {
	if perPage <= 0 {
		return 0
	}
	pages := int(total) / perPage
	if int(total)%perPage != 0 {
		pages++
	}
	return pages
}
