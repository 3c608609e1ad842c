package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/auditbench/auditbench/internal/api/dto"
	"github.com/auditbench/auditbench/internal/api/middleware"
	"github.com/auditbench/auditbench/internal/api/validation"
	"github.com/auditbench/auditbench/internal/database/models"
	"github.com/auditbench/auditbench/internal/projects"
)

// maxSearchLen caps free-text search input before it reaches a LIKE
// pattern.
const maxSearchLen = 100

type ProjectHandler struct {
	service *projects.Service
	respond Responder
}

func NewProjectHandler(service *projects.Service, respond Responder) *ProjectHandler {
	return &ProjectHandler{service: service, respond: respond}
}

func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	user := middleware.CurrentUser(r.Context())
	q := r.URL.Query()

	params := projects.ListParams{
		Page:      atoiDefault(q.Get("page"), 1),
		PerPage:   atoiDefault(q.Get("per_page"), 20),
		Status:    q.Get("status"),
		Search:    validation.TruncateString(q.Get("search"), maxSearchLen),
		Sort:      q.Get("sort"),
		Order:     q.Get("order"),
		OwnedOnly: q.Get("owned") == "true",
	}

	pagination := dto.PaginationParams{Page: params.Page, PerPage: params.PerPage}
	pagination.Normalize()
	params.Page = pagination.Page
	params.PerPage = pagination.PerPage

	if toolID := q.Get("tool_id"); toolID != "" {
		id, err := uuid.Parse(toolID)
		if err != nil {
			h.respond.ValidationFailed(w, map[string]string{"tool_id": "Invalid tool id"})
			return
		}
		params.ToolID = id
	}

	list, total, err := h.service.List(r.Context(), user, params)
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.PaginatedResponse{
		Data:       list,
		Total:      total,
		Page:       params.Page,
		PerPage:    params.PerPage,
		TotalPages: totalPages(total, params.PerPage),
	})
}

func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	user := middleware.CurrentUser(r.Context())

	id, ok := h.projectID(w, r)
	if !ok {
		return
	}

	project, err := h.service.Get(r.Context(), user, id)
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, project)
}

func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := middleware.CurrentUser(r.Context())

	var req dto.CreateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respond.BadBody(w)
		return
	}

	if errs := req.Validate(); len(errs) > 0 {
		h.respond.ValidationFailed(w, errs)
		return
	}

	toolID, _ := uuid.Parse(req.ToolID)
	project, err := h.service.Create(r.Context(), user, projects.CreateInput{
		Name:          req.Name,
		Description:   req.Description,
		ToolID:        toolID,
		Configuration: req.Configuration,
		InputData:     req.InputData,
		Tags:          req.Tags,
		Priority:      req.Priority,
	})
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, project)
}

func (h *ProjectHandler) Update(w http.ResponseWriter, r *http.Request) {
	user := middleware.CurrentUser(r.Context())

	id, ok := h.projectID(w, r)
	if !ok {
		return
	}

	var req dto.UpdateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respond.BadBody(w)
		return
	}

	if errs := req.Validate(); len(errs) > 0 {
		h.respond.ValidationFailed(w, errs)
		return
	}

	project, err := h.service.Update(r.Context(), user, id, projects.UpdateInput{
		Name:          req.Name,
		Description:   req.Description,
		Status:        req.Status,
		Priority:      req.Priority,
		Tags:          req.Tags,
		DueDate:       req.DueDate,
		Results:       req.Results,
		InputData:     req.InputData,
		Configuration: req.Configuration,
		Rating:        req.Rating,
		Feedback:      req.Feedback,
		IsPublic:      req.IsPublic,
	})
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, project)
}

func (h *ProjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user := middleware.CurrentUser(r.Context())

	id, ok := h.projectID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), user, id); err != nil {
		h.respond.Error(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Project deleted"})
}

func (h *ProjectHandler) Share(w http.ResponseWriter, r *http.Request) {
	user := middleware.CurrentUser(r.Context())

	id, ok := h.projectID(w, r)
	if !ok {
		return
	}

	var req dto.ShareProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respond.BadBody(w)
		return
	}

	if errs := req.Validate(); len(errs) > 0 {
		h.respond.ValidationFailed(w, errs)
		return
	}

	granteeID, _ := uuid.Parse(req.UserID)
	share, err := h.service.Share(r.Context(), user, id, granteeID, models.SharePermission(req.Permission))
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, share)
}

func (h *ProjectHandler) Unshare(w http.ResponseWriter, r *http.Request) {
	user := middleware.CurrentUser(r.Context())

	id, ok := h.projectID(w, r)
	if !ok {
		return
	}

	granteeID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid user id"})
		return
	}

	if err := h.service.Unshare(r.Context(), user, id, granteeID); err != nil {
		h.respond.Error(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Share removed"})
}

func (h *ProjectHandler) AddNote(w http.ResponseWriter, r *http.Request) {
	user := middleware.CurrentUser(r.Context())

	id, ok := h.projectID(w, r)
	if !ok {
		return
	}

	var req dto.AddNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respond.BadBody(w)
		return
	}

	if errs := req.Validate(); len(errs) > 0 {
		h.respond.ValidationFailed(w, errs)
		return
	}

	// Notes come back verbatim in the UI; strip nulls and stray control
	// characters before they are stored.
	note, err := h.service.AddNote(r.Context(), user, id, validation.SanitizeString(req.Content))
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, note)
}

func (h *ProjectHandler) Templates(w http.ResponseWriter, r *http.Request) {
	user := middleware.CurrentUser(r.Context())

	templates, err := h.service.Templates(r.Context(), user)
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, templates)
}

func (h *ProjectHandler) SaveAsTemplate(w http.ResponseWriter, r *http.Request) {
	user := middleware.CurrentUser(r.Context())

	id, ok := h.projectID(w, r)
	if !ok {
		return
	}

	var req dto.SaveTemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respond.BadBody(w)
		return
	}

	if errs := req.Validate(); len(errs) > 0 {
		h.respond.ValidationFailed(w, errs)
		return
	}

	template, err := h.service.SaveAsTemplate(r.Context(), user, id, req.Name, req.Description)
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, template)
}

func (h *ProjectHandler) projectID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid project id"})
		return uuid.Nil, false
	}
	return id, true
}
