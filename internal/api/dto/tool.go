package dto

import (
	"github.com/auditbench/auditbench/internal/api/validation"
	"github.com/auditbench/auditbench/internal/database/models"
)

// ToolDTO is the catalogue view of a tool. Configuration and
// documentation are stripped for anonymous callers.
type ToolDTO struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	Category      string   `json:"category"`
	HTMLPath      string   `json:"html_path"`
	Icon          string   `json:"icon,omitempty"`
	AccessType    string   `json:"access_type"`
	Tags          []string `json:"tags,omitempty"`
	Featured      bool     `json:"featured"`
	UsageCount    int      `json:"usage_count"`
	AverageRating float64  `json:"average_rating"`
	RatingCount   int      `json:"rating_count"`
	Version       string   `json:"version"`
	Documentation string   `json:"documentation,omitempty"`
	Configuration string   `json:"configuration,omitempty"`
}

func NewToolDTO(t *models.Tool, authenticated bool) ToolDTO {
	dto := ToolDTO{
		ID:            t.ID.String(),
		Name:          t.Name,
		Description:   t.Description,
		Category:      string(t.Category),
		HTMLPath:      t.HTMLPath,
		Icon:          t.Icon,
		AccessType:    string(t.AccessType),
		Tags:          t.Tags,
		Featured:      t.Featured,
		UsageCount:    t.UsageCount,
		AverageRating: t.AverageRating,
		RatingCount:   t.RatingCount,
		Version:       t.Version,
	}
	if authenticated {
		dto.Documentation = t.Documentation
		dto.Configuration = t.Configuration
	}
	return dto
}

func NewToolDTOs(tools []models.Tool, authenticated bool) []ToolDTO {
	out := make([]ToolDTO, len(tools))
	for i := range tools {
		out[i] = NewToolDTO(&tools[i], authenticated)
	}
	return out
}

type CreateToolRequest struct {
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	Category      string   `json:"category"`
	HTMLPath      string   `json:"html_path"`
	Icon          string   `json:"icon"`
	AccessType    string   `json:"access_type"`
	Tags          []string `json:"tags"`
	IsActive      *bool    `json:"is_active"`
	IsPublic      *bool    `json:"is_public"`
	Featured      *bool    `json:"featured"`
	Version       string   `json:"version"`
	Documentation string   `json:"documentation"`
	Configuration string   `json:"configuration"`
}

func (r CreateToolRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.Name == "" {
		errors["name"] = "Name is required"
	} else if len(r.Name) > 200 {
		errors["name"] = "Name must be at most 200 characters"
	}
	if r.Description == "" {
		errors["description"] = "Description is required"
	}
	if r.Category != "" && !models.ValidToolCategory(r.Category) {
		errors["category"] = "Invalid category"
	}
	if r.HTMLPath == "" {
		errors["html_path"] = "HTML path is required"
	}
	if r.AccessType != "" && !models.ValidToolAccessType(r.AccessType) {
		errors["access_type"] = "Invalid access type"
	}
	if ok, msg := validation.IsValidJSONPayload(r.Configuration); !ok {
		errors["configuration"] = msg
	}

	return errors
}

type UpdateToolRequest struct {
	Name          *string  `json:"name"`
	Description   *string  `json:"description"`
	Category      *string  `json:"category"`
	HTMLPath      *string  `json:"html_path"`
	Icon          *string  `json:"icon"`
	AccessType    *string  `json:"access_type"`
	Tags          []string `json:"tags"`
	IsActive      *bool    `json:"is_active"`
	IsPublic      *bool    `json:"is_public"`
	Featured      *bool    `json:"featured"`
	Version       *string  `json:"version"`
	Documentation *string  `json:"documentation"`
	Configuration *string  `json:"configuration"`
}

func (r UpdateToolRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.Name != nil && *r.Name == "" {
		errors["name"] = "Name cannot be empty"
	}
	if r.Category != nil && !models.ValidToolCategory(*r.Category) {
		errors["category"] = "Invalid category"
	}
	if r.AccessType != nil && !models.ValidToolAccessType(*r.AccessType) {
		errors["access_type"] = "Invalid access type"
	}
	if r.Configuration != nil {
		if ok, msg := validation.IsValidJSONPayload(*r.Configuration); !ok {
			errors["configuration"] = msg
		}
	}

	return errors
}
