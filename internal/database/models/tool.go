package models

import "github.com/google/uuid"

type ToolCategory string

const (
	ToolCategorySecurity    ToolCategory = "security"
	ToolCategoryNetwork     ToolCategory = "network"
	ToolCategoryData        ToolCategory = "data"
	ToolCategoryCompliance  ToolCategory = "compliance"
	ToolCategoryPerformance ToolCategory = "performance"
	ToolCategoryCrypto      ToolCategory = "crypto"
	ToolCategoryForensics   ToolCategory = "forensics"
	ToolCategoryOther       ToolCategory = "other"
)

type ToolAccessType string

const (
	ToolAccessIframe     ToolAccessType = "iframe"
	ToolAccessNewTab     ToolAccessType = "new-tab"
	ToolAccessIntegrated ToolAccessType = "integrated"
)

type Tool struct {
	Base
	Name        string         `gorm:"not null" json:"name"`
	Description string         `gorm:"not null" json:"description"`
	Category    ToolCategory   `gorm:"not null;index;default:'other'" json:"category"`
	HTMLPath    string         `gorm:"not null" json:"html_path"`
	Icon        string         `json:"icon,omitempty"`
	AccessType  ToolAccessType `gorm:"default:'iframe'" json:"access_type"`
	Tags        []string       `gorm:"serializer:json" json:"tags,omitempty"`

	IsActive bool `gorm:"default:true;index" json:"is_active"`
	IsPublic bool `gorm:"default:true" json:"is_public"`
	Featured bool `gorm:"default:false;index" json:"featured"`

	UsageCount    int     `gorm:"default:0" json:"usage_count"`
	AverageRating float64 `gorm:"default:0" json:"average_rating"`
	RatingCount   int     `gorm:"default:0" json:"rating_count"`

	Version       string `gorm:"default:'1.0.0'" json:"version"`
	Documentation string `json:"documentation,omitempty"`

	// Configuration (JSON)
	Configuration string `gorm:"type:jsonb;default:'{}'" json:"configuration,omitempty"`

	AddedByID uuid.UUID `gorm:"type:uuid;index" json:"added_by_id"`

	// Relationships
	AddedBy  *User     `gorm:"foreignKey:AddedByID" json:"added_by,omitempty"`
	Projects []Project `gorm:"foreignKey:ToolID" json:"-"`
}

func (Tool) TableName() string {
	return "tools"
}

func ValidToolCategory(c string) bool {
	switch ToolCategory(c) {
	case ToolCategorySecurity, ToolCategoryNetwork, ToolCategoryData,
		ToolCategoryCompliance, ToolCategoryPerformance, ToolCategoryCrypto,
		ToolCategoryForensics, ToolCategoryOther:
		return true
	}
	return false
}

func ValidToolAccessType(a string) bool {
	switch ToolAccessType(a) {
	case ToolAccessIframe, ToolAccessNewTab, ToolAccessIntegrated:
		return true
	}
	return false
}
