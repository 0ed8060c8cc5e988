package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// ConsumptionRecord is a monthly meter reading for a room. Contract and
// student fields are copied when the record is created and never
// re-resolved.
type ConsumptionRecord struct {
	ID                   snowflake.ID  `json:"id" gorm:"primaryKey"`
	ResidenceID          snowflake.ID  `json:"residence_id" gorm:"not null;uniqueIndex:ux_consumption_room_period,priority:1"`
	RoomNumber           string        `json:"room_number" gorm:"type:text;not null;uniqueIndex:ux_consumption_room_period,priority:2"`
	BillingMonth         int           `json:"billing_month" gorm:"not null"`
	BillingYear          int           `json:"billing_year" gorm:"not null"`
	BillingPeriodKey     string        `json:"billing_period_key" gorm:"type:text;not null;uniqueIndex:ux_consumption_room_period,priority:3;index"`
	ConsumptionKwh       float64       `json:"consumption_kwh" gorm:"not null"`
	ContractID           *snowflake.ID `json:"contract_id,omitempty" gorm:"index"`
	StudentID            *snowflake.ID `json:"student_id,omitempty"`
	StudentName          *string       `json:"student_name,omitempty" gorm:"type:text"`
	StudentEmail         *string       `json:"student_email,omitempty" gorm:"type:text"`
	ContractMonthlyLimit *float64      `json:"contract_monthly_limit,omitempty"`
	ExceedsLimit         bool          `json:"exceeds_limit" gorm:"not null;default:false"`
	ExcessKwh            *float64      `json:"excess_kwh,omitempty"`
	NotificationSent     bool          `json:"notification_sent" gorm:"not null;default:false"`
	NotificationSentAt   *time.Time    `json:"notification_sent_at,omitempty"`
	CreatedBy            string        `json:"created_by" gorm:"type:text;not null"`
	CreatedAt            time.Time     `json:"created_at" gorm:"not null"`
}

func (ConsumptionRecord) TableName() string { return "consumption_records" }
