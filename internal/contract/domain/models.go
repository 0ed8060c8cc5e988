package domain

import (
	"math"
	"time"

	"github.com/bwmarrin/snowflake"
)

type ContractStatus string

const (
	ContractStatusActive     ContractStatus = "active"
	ContractStatusTerminated ContractStatus = "terminated"
)

// ExpiringSoonDays is the window, in days before the end date, in which a
// contract is flagged as expiring soon.
const ExpiringSoonDays = 30

const millisPerDay = 86_400_000

// Contract binds a student to a room for a period. Student and residence
// names are copies taken when the contract is written.
type Contract struct {
	ID                snowflake.ID   `json:"id" gorm:"primaryKey"`
	StudentID         snowflake.ID   `json:"student_id" gorm:"not null;index"`
	StudentName       string         `json:"student_name" gorm:"type:text;not null"`
	StudentEmail      string         `json:"student_email" gorm:"type:text;not null"`
	ResidenceID       snowflake.ID   `json:"residence_id" gorm:"not null;index:idx_contracts_residence_room,priority:1"`
	ResidenceName     string         `json:"residence_name" gorm:"type:text"`
	RoomNumber        string         `json:"room_number" gorm:"type:text;not null;index:idx_contracts_residence_room,priority:2"`
	RoomTypeID        *snowflake.ID  `json:"room_type_id,omitempty"`
	StartDate         time.Time      `json:"start_date" gorm:"not null"`
	EndDate           time.Time      `json:"end_date" gorm:"not null"`
	MonthlyValue      float64        `json:"monthly_value" gorm:"not null"`
	MonthlyKwhLimit   float64        `json:"monthly_kwh_limit" gorm:"not null"`
	Status            ContractStatus `json:"status" gorm:"type:text;not null"`
	TerminatedAt      *time.Time     `json:"terminated_at,omitempty"`
	TerminationReason *string        `json:"termination_reason,omitempty"`
	CreatedBy         string         `json:"created_by" gorm:"type:text;not null"`
	UpdatedBy         string         `json:"updated_by" gorm:"type:text;not null"`
	CreatedAt         time.Time      `json:"created_at" gorm:"not null"`
	UpdatedAt         time.Time      `json:"updated_at" gorm:"not null"`
}

func (Contract) TableName() string { return "contracts" }

func (c Contract) IsActive() bool {
	return c.Status == ContractStatusActive
}

// ContractWithStatus adds the derived expiry fields shown to operators.
type ContractWithStatus struct {
	Contract
	DaysRemaining  int  `json:"days_remaining"`
	IsExpiringSoon bool `json:"is_expiring_soon"`
	IsExpired      bool `json:"is_expired"`
}

// Enrich derives the expiry fields of c as seen at now. It has no side
// effects; the same inputs always produce the same output.
func Enrich(c Contract, now time.Time) ContractWithStatus {
	diff := c.EndDate.Sub(now).Milliseconds()
	days := int(math.Ceil(float64(diff) / millisPerDay))
	return ContractWithStatus{
		Contract:       c,
		DaysRemaining:  days,
		IsExpiringSoon: days >= 0 && days <= ExpiringSoonDays,
		IsExpired:      days < 0,
	}
}
