package models

import (
	"time"

	"github.com/google/uuid"
)

type ProjectStatus string

const (
	ProjectStatusDraft      ProjectStatus = "draft"
	ProjectStatusInProgress ProjectStatus = "in-progress"
	ProjectStatusCompleted  ProjectStatus = "completed"
	ProjectStatusArchived   ProjectStatus = "archived"
)

type ProjectPriority string

const (
	PriorityLow    ProjectPriority = "low"
	PriorityMedium ProjectPriority = "medium"
	PriorityHigh   ProjectPriority = "high"
	PriorityUrgent ProjectPriority = "urgent"
)

type SharePermission string

const (
	PermissionView SharePermission = "view"
	PermissionEdit SharePermission = "edit"
)

type Project struct {
	Base
	Name        string    `gorm:"not null" json:"name"`
	Description string    `json:"description,omitempty"`
	OwnerID     uuid.UUID `gorm:"type:uuid;index;not null" json:"owner_id"`
	ToolID      uuid.UUID `gorm:"type:uuid;index;not null" json:"tool_id"` // immutable after create
	ToolType    string    `gorm:"not null" json:"tool_type"`

	Status   ProjectStatus   `gorm:"not null;index;default:'draft'" json:"status"`
	Priority ProjectPriority `gorm:"default:'medium'" json:"priority"`
	Tags     []string        `gorm:"serializer:json" json:"tags,omitempty"`
	DueDate  *time.Time      `json:"due_date,omitempty"`

	// Schemaless tool payloads (JSON, capped at the DTO layer)
	Results       string `gorm:"type:jsonb;default:'{}'" json:"results,omitempty"`
	InputData     string `gorm:"type:jsonb;default:'{}'" json:"input_data,omitempty"`
	Configuration string `gorm:"type:jsonb;default:'{}'" json:"configuration,omitempty"`

	Rating   *float64 `json:"rating,omitempty"` // 0..5
	Feedback string   `json:"feedback,omitempty"`

	IsPublic            bool   `gorm:"default:false" json:"is_public"`
	IsTemplate          bool   `gorm:"default:false;index" json:"is_template"`
	TemplateName        string `json:"template_name,omitempty"`
	TemplateDescription string `json:"template_description,omitempty"`

	// Relationships
	Owner      *User          `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
	Tool       *Tool          `gorm:"foreignKey:ToolID" json:"tool,omitempty"`
	SharedWith []ProjectShare `gorm:"foreignKey:ProjectID" json:"shared_with,omitempty"`
	Notes      []ProjectNote  `gorm:"foreignKey:ProjectID" json:"notes,omitempty"`
}

func (Project) TableName() string {
	return "projects"
}

// SharedEntry returns the share entry for userID, if any.
func (p *Project) SharedEntry(userID uuid.UUID) *ProjectShare {
	for i := range p.SharedWith {
		if p.SharedWith[i].UserID == userID {
			return &p.SharedWith[i]
		}
	}
	return nil
}

// ProjectShare grants a non-owner access to a project. The composite
// primary key makes duplicate grants for the same user impossible.
type ProjectShare struct {
	ProjectID  uuid.UUID       `gorm:"type:uuid;primaryKey" json:"project_id"`
	UserID     uuid.UUID       `gorm:"type:uuid;primaryKey" json:"user_id"`
	Permission SharePermission `gorm:"not null;default:'view'" json:"permission"`
	SharedByID uuid.UUID       `gorm:"type:uuid" json:"shared_by_id"`
	SharedAt   time.Time       `json:"shared_at"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (ProjectShare) TableName() string {
	return "project_shares"
}

type ProjectNote struct {
	Base
	ProjectID uuid.UUID `gorm:"type:uuid;index;not null" json:"project_id"`
	AuthorID  uuid.UUID `gorm:"type:uuid;index;not null" json:"author_id"`
	Content   string    `gorm:"not null" json:"content"`

	Author *User `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
}

func (ProjectNote) TableName() string {
	return "project_notes"
}

func ValidProjectStatus(s string) bool {
	switch ProjectStatus(s) {
	case ProjectStatusDraft, ProjectStatusInProgress, ProjectStatusCompleted, ProjectStatusArchived:
		return true
	}
	return false
}

func ValidPriority(p string) bool {
	switch ProjectPriority(p) {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

func ValidPermission(p string) bool {
	switch SharePermission(p) {
	case PermissionView, PermissionEdit:
		return true
	}
	return false
}
