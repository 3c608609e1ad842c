package dto

import (
	"time"

	"github.com/auditbench/auditbench/internal/api/validation"
	"github.com/auditbench/auditbench/internal/database/models"
)

type CreateProjectRequest struct {
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	ToolID        string   `json:"tool_id"`
	Configuration string   `json:"configuration"`
	InputData     string   `json:"input_data"`
	Tags          []string `json:"tags"`
	Priority      string   `json:"priority"`
}

func (r CreateProjectRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.Name == "" {
		errors["name"] = "Name is required"
	} else if len(r.Name) > 200 {
		errors["name"] = "Name must be at most 200 characters"
	}
	if len(r.Description) > 2000 {
		errors["description"] = "Description must be at most 2000 characters"
	}
	if r.ToolID == "" {
		errors["tool_id"] = "Tool is required"
	} else if !validation.IsValidUUID(r.ToolID) {
		errors["tool_id"] = "Invalid tool id"
	}
	if r.Priority != "" && !models.ValidPriority(r.Priority) {
		errors["priority"] = "Invalid priority"
	}
	if ok, msg := validation.IsValidJSONPayload(r.Configuration); !ok {
		errors["configuration"] = msg
	}
	if ok, msg := validation.IsValidJSONPayload(r.InputData); !ok {
		errors["input_data"] = msg
	}

	return errors
}

type UpdateProjectRequest struct {
	Name          *string    `json:"name"`
	Description   *string    `json:"description"`
	Status        *string    `json:"status"`
	Priority      *string    `json:"priority"`
	Tags          []string   `json:"tags"`
	DueDate       *time.Time `json:"due_date"`
	Results       *string    `json:"results"`
	InputData     *string    `json:"input_data"`
	Configuration *string    `json:"configuration"`
	Rating        *float64   `json:"rating"`
	Feedback      *string    `json:"feedback"`
	IsPublic      *bool      `json:"is_public"`
}

func (r UpdateProjectRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.Name != nil {
		if *r.Name == "" {
			errors["name"] = "Name cannot be empty"
		} else if len(*r.Name) > 200 {
			errors["name"] = "Name must be at most 200 characters"
		}
	}
	if r.Status != nil && !models.ValidProjectStatus(*r.Status) {
		errors["status"] = "Invalid status"
	}
	if r.Priority != nil && !models.ValidPriority(*r.Priority) {
		errors["priority"] = "Invalid priority"
	}
	if r.Rating != nil && (*r.Rating < 0 || *r.Rating > 5) {
		errors["rating"] = "Rating must be between 0 and 5"
	}
	for field, value := range map[string]*string{
		"results":       r.Results,
		"input_data":    r.InputData,
		"configuration": r.Configuration,
	} {
		if value == nil {
			continue
		}
		if ok, msg := validation.IsValidJSONPayload(*value); !ok {
			errors[field] = msg
		}
	}

	return errors
}

type ShareProjectRequest struct {
	UserID     string `json:"user_id"`
	Permission string `json:"permission"`
}

func (r ShareProjectRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.UserID == "" {
		errors["user_id"] = "User is required"
	} else if !validation.IsValidUUID(r.UserID) {
		errors["user_id"] = "Invalid user id"
	}
	if r.Permission == "" {
		errors["permission"] = "Permission is required"
	} else if !models.ValidPermission(r.Permission) {
		errors["permission"] = "Permission must be view or edit"
	}

	return errors
}

type AddNoteRequest struct {
	Content string `json:"content"`
}

func (r AddNoteRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.Content == "" {
		errors["content"] = "Content is required"
	} else if len(r.Content) > 5000 {
		errors["content"] = "Content must be at most 5000 characters"
	}

	return errors
}

type SaveTemplateRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (r SaveTemplateRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if len(r.Name) > 200 {
		errors["name"] = "Name must be at most 200 characters"
	}
	if len(r.Description) > 2000 {
		errors["description"] = "Description must be at most 2000 characters"
	}

	return errors
}
