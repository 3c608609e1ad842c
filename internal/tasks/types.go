package tasks

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Task type names
const (
	TypeEmailDelivery    = "email:deliver"
	TypeToolRatingRollup = "tool:rating_rollup"
)

type EmailKind string

const (
	EmailKindVerification  EmailKind = "verification"
	EmailKindPasswordReset EmailKind = "password_reset"
)

// EmailPayload contains the data for an outbound mail task. TokenRef is
// the raw verification/reset token embedded in the mailed link.
type EmailPayload struct {
	To       string    `json:"to"`
	Kind     EmailKind `json:"kind"`
	UserID   uuid.UUID `json:"user_id"`
	TokenRef string    `json:"token_ref,omitempty"`
}

func NewEmailTask(payload EmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeEmailDelivery, data, asynq.Queue("critical")), nil
}

// RatingRollupPayload identifies the tool whose aggregate rating needs
// recomputing after a project rating changed.
type RatingRollupPayload struct {
	ToolID uuid.UUID `json:"tool_id"`
}

func NewRatingRollupTask(payload RatingRollupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeToolRatingRollup, data, asynq.Queue("low")), nil
}
