// Package projects implements the owned-resource side of the system:
// listing, CRUD, the share list, notes, templates, and the cascade that
// runs when a user is removed.
package projects

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"gorm.io/gorm"

	"github.com/auditbench/auditbench/internal/apperrors"
	"github.com/auditbench/auditbench/internal/authz"
	"github.com/auditbench/auditbench/internal/database/models"
	"github.com/auditbench/auditbench/internal/tasks"
)

type Service struct {
	db     *gorm.DB
	queue  *asynq.Client // nil when Redis is unavailable
	logger *slog.Logger
}

func NewService(db *gorm.DB, queue *asynq.Client, logger *slog.Logger) *Service {
	return &Service{db: db, queue: queue, logger: logger}
}

type ListParams struct {
	Page      int
	PerPage   int
	Status    string
	ToolID    uuid.UUID
	Search    string
	Sort      string
	Order     string
	OwnedOnly bool
}

var sortColumns = map[string]string{
	"created_at": "created_at",
	"updated_at": "updated_at",
	"name":       "name",
	"status":     "status",
	"priority":   "priority",
	"due_date":   "due_date",
}

// List returns the actor's projects: owned ones plus, unless OwnedOnly,
// ones shared with them. Templates never appear here.
func (s *Service) List(ctx context.Context, actor *models.User, params ListParams) ([]models.Project, int64, error) {
	query := s.db.WithContext(ctx).
		Model(&models.Project{}).
		Where("is_template = ?", false)

	if params.OwnedOnly {
		query = query.Where("owner_id = ?", actor.ID)
	} else {
		shared := s.db.Model(&models.ProjectShare{}).
			Select("project_id").
			Where("user_id = ?", actor.ID)
		query = query.Where("owner_id = ? OR id IN (?)", actor.ID, shared)
	}

	if params.Status != "" {
		query = query.Where("status = ?", params.Status)
	}
	if params.ToolID != uuid.Nil {
		query = query.Where("tool_id = ?", params.ToolID)
	}
	if params.Search != "" {
		pattern := "%" + strings.ToLower(params.Search) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(description) LIKE ?", pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, apperrors.Internal(err)
	}

	column, ok := sortColumns[params.Sort]
	if !ok {
		column = "updated_at"
	}
	direction := "DESC"
	if strings.EqualFold(params.Order, "asc") {
		direction = "ASC"
	}

	var projects []models.Project
	err := query.
		Preload("Tool").
		Preload("Owner").
		Order(column + " " + direction).
		Offset((params.Page - 1) * params.PerPage).
		Limit(params.PerPage).
		Find(&projects).Error
	if err != nil {
		return nil, 0, apperrors.Internal(err)
	}

	return projects, total, nil
}

// Get loads a project the actor may read. A missing project is 404; an
// existing one the actor cannot access is 403 — the distinction between
// "absent" and "hidden from you" is deliberate and uniform.
func (s *Service) Get(ctx context.Context, actor *models.User, id uuid.UUID) (*models.Project, error) {
	project, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !authz.Can(actor, project, authz.ActionRead) {
		return nil, apperrors.Forbidden("Access denied")
	}
	return project, nil
}

type CreateInput struct {
	Name          string
	Description   string
	ToolID        uuid.UUID
	Configuration string
	InputData     string
	Tags          []string
	Priority      string
}

func (s *Service) Create(ctx context.Context, actor *models.User, input CreateInput) (*models.Project, error) {
	var tool models.Tool
	err := s.db.WithContext(ctx).First(&tool, "id = ?", input.ToolID).Error
	if err != nil || !tool.IsActive {
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.Internal(err)
		}
		return nil, apperrors.Validation("Invalid or inactive tool", map[string]string{
			"tool_id": "Tool does not exist or is inactive",
		})
	}

	priority := models.ProjectPriority(input.Priority)
	if input.Priority == "" {
		priority = models.PriorityMedium
	}

	project := models.Project{
		Name:          input.Name,
		Description:   input.Description,
		OwnerID:       actor.ID,
		ToolID:        tool.ID,
		ToolType:      tool.Name,
		Status:        models.ProjectStatusDraft,
		Priority:      priority,
		Tags:          normalizeTags(input.Tags),
		Configuration: orEmptyObject(input.Configuration),
		InputData:     orEmptyObject(input.InputData),
		Results:       "{}",
	}

	if err := s.db.WithContext(ctx).Create(&project).Error; err != nil {
		return nil, apperrors.Internal(err)
	}

	project.Tool = &tool
	return &project, nil
}

// UpdateInput uses pointers so "absent" and "set to zero value" stay
// distinguishable.
type UpdateInput struct {
	Name          *string
	Description   *string
	Status        *string
	Priority      *string
	Tags          []string
	DueDate       *time.Time
	Results       *string
	InputData     *string
	Configuration *string
	Rating        *float64
	Feedback      *string
	IsPublic      *bool
}

func (s *Service) Update(ctx context.Context, actor *models.User, id uuid.UUID, input UpdateInput) (*models.Project, error) {
	project, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !authz.Can(actor, project, authz.ActionUpdate) {
		return nil, apperrors.Forbidden("Update access denied")
	}

	ratingChanged := false

	if input.Name != nil {
		project.Name = *input.Name
	}
	if input.Description != nil {
		project.Description = *input.Description
	}
	if input.Status != nil {
		project.Status = models.ProjectStatus(*input.Status)
	}
	if input.Priority != nil {
		project.Priority = models.ProjectPriority(*input.Priority)
	}
	if input.Tags != nil {
		project.Tags = normalizeTags(input.Tags)
	}
	if input.DueDate != nil {
		project.DueDate = input.DueDate
	}
	if input.Results != nil {
		project.Results = orEmptyObject(*input.Results)
	}
	if input.InputData != nil {
		project.InputData = orEmptyObject(*input.InputData)
	}
	if input.Configuration != nil {
		project.Configuration = orEmptyObject(*input.Configuration)
	}
	if input.Rating != nil {
		project.Rating = input.Rating
		ratingChanged = true
	}
	if input.Feedback != nil {
		project.Feedback = *input.Feedback
	}
	if input.IsPublic != nil {
		project.IsPublic = *input.IsPublic
	}

	// Last write wins: no version check before the save. Concurrent
	// updates to the same project race at the storage layer.
	if err := s.db.WithContext(ctx).Save(project).Error; err != nil {
		return nil, apperrors.Internal(err)
	}

	if ratingChanged {
		s.enqueueRatingRollup(project.ToolID)
	}

	return project, nil
}

func (s *Service) Delete(ctx context.Context, actor *models.User, id uuid.UUID) error {
	project, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if !authz.Can(actor, project, authz.ActionDelete) {
		return apperrors.Forbidden("Delete access denied")
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("project_id = ?", id).Delete(&models.ProjectShare{}).Error; err != nil {
			return err
		}
		if err := tx.Where("project_id = ?", id).Delete(&models.ProjectNote{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Project{}, "id = ?", id).Error
	})
	if err != nil {
		return apperrors.Internal(err)
	}
	return nil
}

// Share grants or updates a user's access. Re-sharing an existing
// grantee updates the entry in place, so the call is idempotent and the
// share list never holds two entries for one user.
func (s *Service) Share(ctx context.Context, actor *models.User, projectID, granteeID uuid.UUID, permission models.SharePermission) (*models.ProjectShare, error) {
	project, err := s.load(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !authz.Can(actor, project, authz.ActionShare) {
		return nil, apperrors.Forbidden("Share access denied")
	}
	if granteeID == project.OwnerID {
		return nil, apperrors.Validation("Cannot share a project with its owner", nil)
	}

	var grantee models.User
	if err := s.db.WithContext(ctx).First(&grantee, "id = ?", granteeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("User")
		}
		return nil, apperrors.Internal(err)
	}
	if !grantee.IsActive {
		return nil, apperrors.Validation("Cannot share with an inactive user", nil)
	}

	share := models.ProjectShare{
		ProjectID:  projectID,
		UserID:     granteeID,
		Permission: permission,
		SharedByID: actor.ID,
		SharedAt:   time.Now(),
	}

	if existing := project.SharedEntry(granteeID); existing != nil {
		err = s.db.WithContext(ctx).
			Model(&models.ProjectShare{}).
			Where("project_id = ? AND user_id = ?", projectID, granteeID).
			Updates(map[string]interface{}{
				"permission":   permission,
				"shared_by_id": actor.ID,
				"shared_at":    share.SharedAt,
			}).Error
	} else {
		err = s.db.WithContext(ctx).Create(&share).Error
	}
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	return &share, nil
}

func (s *Service) Unshare(ctx context.Context, actor *models.User, projectID, granteeID uuid.UUID) error {
	project, err := s.load(ctx, projectID)
	if err != nil {
		return err
	}
	if !authz.Can(actor, project, authz.ActionShare) {
		return apperrors.Forbidden("Share access denied")
	}
	if project.SharedEntry(granteeID) == nil {
		return apperrors.NotFound("Share")
	}

	err = s.db.WithContext(ctx).
		Where("project_id = ? AND user_id = ?", projectID, granteeID).
		Delete(&models.ProjectShare{}).Error
	if err != nil {
		return apperrors.Internal(err)
	}
	return nil
}

func (s *Service) AddNote(ctx context.Context, actor *models.User, projectID uuid.UUID, content string) (*models.ProjectNote, error) {
	project, err := s.load(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !authz.Can(actor, project, authz.ActionAddNote) {
		return nil, apperrors.Forbidden("Access denied")
	}

	note := models.ProjectNote{
		ProjectID: projectID,
		AuthorID:  actor.ID,
		Content:   content,
	}
	if err := s.db.WithContext(ctx).Create(&note).Error; err != nil {
		return nil, apperrors.Internal(err)
	}

	note.Author = actor
	return &note, nil
}

// Templates lists the actor's own templates plus public ones.
func (s *Service) Templates(ctx context.Context, actor *models.User) ([]models.Project, error) {
	var templates []models.Project
	err := s.db.WithContext(ctx).
		Preload("Tool").
		Where("is_template = ?", true).
		Where("owner_id = ? OR is_public = ?", actor.ID, true).
		Order("updated_at DESC").
		Find(&templates).Error
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return templates, nil
}

// SaveAsTemplate copies a project's configuration into a new template
// owned by the actor.
func (s *Service) SaveAsTemplate(ctx context.Context, actor *models.User, projectID uuid.UUID, name, description string) (*models.Project, error) {
	project, err := s.Get(ctx, actor, projectID)
	if err != nil {
		return nil, err
	}

	if name == "" {
		name = project.Name
	}
	if description == "" {
		description = project.Description
	}

	template := models.Project{
		Name:                project.Name,
		Description:         project.Description,
		OwnerID:             actor.ID,
		ToolID:              project.ToolID,
		ToolType:            project.ToolType,
		Status:              models.ProjectStatusDraft,
		Priority:            project.Priority,
		Tags:                project.Tags,
		Configuration:       project.Configuration,
		Results:             "{}",
		InputData:           "{}",
		IsTemplate:          true,
		TemplateName:        name,
		TemplateDescription: description,
	}
	if err := s.db.WithContext(ctx).Create(&template).Error; err != nil {
		return nil, apperrors.Internal(err)
	}
	return &template, nil
}

// DeleteUserCascade removes a user and everything that references them:
// owned projects (with their shares and notes) and share entries on
// other users' projects. Runs in one transaction so callers observe the
// cascade atomically.
func (s *Service) DeleteUserCascade(ctx context.Context, userID uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ownedIDs []uuid.UUID
		if err := tx.Model(&models.Project{}).
			Where("owner_id = ?", userID).
			Pluck("id", &ownedIDs).Error; err != nil {
			return fmt.Errorf("list owned projects: %w", err)
		}

		if len(ownedIDs) > 0 {
			if err := tx.Where("project_id IN ?", ownedIDs).Delete(&models.ProjectShare{}).Error; err != nil {
				return fmt.Errorf("delete shares of owned projects: %w", err)
			}
			if err := tx.Where("project_id IN ?", ownedIDs).Delete(&models.ProjectNote{}).Error; err != nil {
				return fmt.Errorf("delete notes of owned projects: %w", err)
			}
			if err := tx.Where("owner_id = ?", userID).Delete(&models.Project{}).Error; err != nil {
				return fmt.Errorf("delete owned projects: %w", err)
			}
		}

		if err := tx.Where("user_id = ?", userID).Delete(&models.ProjectShare{}).Error; err != nil {
			return fmt.Errorf("delete share grants: %w", err)
		}

		// Hard delete: a soft-deleted row would keep the unique email
		// index occupied and block the address from ever registering
		// again.
		if err := tx.Unscoped().Delete(&models.User{}, "id = ?", userID).Error; err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
		return nil
	})
}

func (s *Service) load(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	var project models.Project
	err := s.db.WithContext(ctx).
		Preload("Tool").
		Preload("Owner").
		Preload("SharedWith").
		Preload("SharedWith.User").
		Preload("Notes").
		Preload("Notes.Author").
		First(&project, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("Project")
		}
		return nil, apperrors.Internal(err)
	}
	return &project, nil
}

func (s *Service) enqueueRatingRollup(toolID uuid.UUID) {
	if s.queue == nil {
		return
	}
	task, err := tasks.NewRatingRollupTask(tasks.RatingRollupPayload{ToolID: toolID})
	if err != nil {
		s.logger.Error("build rating rollup task", "error", err)
		return
	}
	if _, err := s.queue.Enqueue(task); err != nil {
		s.logger.Warn("enqueue rating rollup", "tool_id", toolID, "error", err)
	}
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag != "" {
			out = append(out, tag)
		}
	}
	return out
}

func orEmptyObject(s string) string {
	if strings.TrimSpace(s) == "" {
		return "{}"
	}
	return s
}
