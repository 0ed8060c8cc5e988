package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Regulation is a versioned house-rules document of a residence. At most
// one regulation per residence is active.
type Regulation struct {
	ID          snowflake.ID `json:"id" gorm:"primaryKey"`
	ResidenceID snowflake.ID `json:"residence_id" gorm:"not null;uniqueIndex:ux_regulations_residence_version,priority:1"`
	Version     string       `json:"version" gorm:"type:text;not null;uniqueIndex:ux_regulations_residence_version,priority:2"`
	IsActive    bool         `json:"is_active" gorm:"not null;default:false"`
	FileRef     string       `json:"file_ref" gorm:"type:text;not null"`
	PublishedAt *time.Time   `json:"published_at,omitempty"`
	CreatedBy   string       `json:"created_by" gorm:"type:text;not null"`
	CreatedAt   time.Time    `json:"created_at" gorm:"not null"`
	UpdatedAt   time.Time    `json:"updated_at" gorm:"not null"`
}

func (Regulation) TableName() string { return "regulations" }
