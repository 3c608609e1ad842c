package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"gorm.io/gorm"

	"github.com/auditbench/auditbench/internal/database/models"
)

type Handler struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewHandler(db *gorm.DB, logger *slog.Logger) *Handler {
	return &Handler{db: db, logger: logger}
}

func (h *Handler) RegisterHandlers(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeEmailDelivery, h.HandleEmailDelivery)
	mux.HandleFunc(TypeToolRatingRollup, h.HandleRatingRollup)
}

// HandleEmailDelivery dispatches verification and password-reset mail.
// TODO: wire an SMTP transport once an outbound provider is provisioned;
// until then delivery is recorded in the log only.
func (h *Handler) HandleEmailDelivery(ctx context.Context, t *asynq.Task) error {
	var payload EmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	h.logger.Info("email dispatched",
		"kind", payload.Kind,
		"to", payload.To,
		"user_id", payload.UserID,
	)
	return nil
}

// HandleRatingRollup recomputes a tool's average rating and rating count
// from its rated, non-template projects.
func (h *Handler) HandleRatingRollup(ctx context.Context, t *asynq.Task) error {
	var payload RatingRollupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	type rollup struct {
		Avg   float64
		Count int64
	}
	var r rollup
	err := h.db.WithContext(ctx).
		Model(&models.Project{}).
		Select("COALESCE(AVG(rating), 0) AS avg, COUNT(rating) AS count").
		Where("tool_id = ? AND rating IS NOT NULL AND is_template = ?", payload.ToolID, false).
		Scan(&r).Error
	if err != nil {
		return fmt.Errorf("aggregate ratings: %w", err)
	}

	updates := map[string]interface{}{
		"average_rating": r.Avg,
		"rating_count":   r.Count,
	}
	if err := h.db.WithContext(ctx).
		Model(&models.Tool{}).
		Where("id = ?", payload.ToolID).
		Updates(updates).Error; err != nil {
		return fmt.Errorf("update tool rating: %w", err)
	}

	h.logger.Info("tool rating rolled up",
		"tool_id", payload.ToolID,
		"average", r.Avg,
		"count", r.Count,
	)
	return nil
}
