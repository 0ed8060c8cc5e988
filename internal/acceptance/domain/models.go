package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// RegulationAcceptance records that a student accepted a regulation version.
// Rows are never updated.
type RegulationAcceptance struct {
	ID                snowflake.ID `json:"id" gorm:"primaryKey"`
	StudentID         snowflake.ID `json:"student_id" gorm:"not null;uniqueIndex:ux_acceptances_student_regulation,priority:1;index:idx_acceptances_student_accepted,priority:1"`
	RegulationID      snowflake.ID `json:"regulation_id" gorm:"not null;uniqueIndex:ux_acceptances_student_regulation,priority:2"`
	RegulationVersion string       `json:"regulation_version" gorm:"type:text;not null"`
	ResidenceID       snowflake.ID `json:"residence_id" gorm:"not null"`
	AcceptedAt        time.Time    `json:"accepted_at" gorm:"not null;index:idx_acceptances_student_accepted,priority:2"`
	ClientIP          *string      `json:"client_ip,omitempty"`
	UserAgent         *string      `json:"user_agent,omitempty"`
}

func (RegulationAcceptance) TableName() string { return "regulation_acceptances" }
