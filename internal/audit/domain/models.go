package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Action string

const (
	ActionRegulationCreated           Action = "regulation.created"
	ActionRegulationActivated         Action = "regulation.activated"
	ActionContractCreated             Action = "contract.created"
	ActionContractUpdated             Action = "contract.updated"
	ActionContractTerminated          Action = "contract.terminated"
	ActionConsumptionRecorded         Action = "consumption.recorded"
	ActionConsumptionNotificationSent Action = "consumption.notification_sent"
)

var knownActions = map[Action]struct{}{
	ActionRegulationCreated:           {},
	ActionRegulationActivated:         {},
	ActionContractCreated:             {},
	ActionContractUpdated:             {},
	ActionContractTerminated:          {},
	ActionConsumptionRecorded:         {},
	ActionConsumptionNotificationSent: {},
}

func (a Action) Valid() bool {
	_, ok := knownActions[a]
	return ok
}

// AuditLog is an append-only record of an administrative action.
type AuditLog struct {
	ID                  snowflake.ID      `json:"id" gorm:"primaryKey"`
	ResidenceID         snowflake.ID      `json:"residence_id" gorm:"not null;index:idx_audit_logs_residence_created,priority:1"`
	RegulationID        *snowflake.ID     `json:"regulation_id,omitempty" gorm:"index"`
	ContractID          *snowflake.ID     `json:"contract_id,omitempty" gorm:"index"`
	ConsumptionRecordID *snowflake.ID     `json:"consumption_record_id,omitempty"`
	Action              Action            `json:"action" gorm:"type:text;not null"`
	ActorID             string            `json:"actor_id" gorm:"type:text;not null"`
	Details             datatypes.JSONMap `json:"details,omitempty"`
	IPAddress           *string           `json:"ip_address,omitempty"`
	UserAgent           *string           `json:"user_agent,omitempty"`
	CreatedAt           time.Time         `json:"created_at" gorm:"not null;index:idx_audit_logs_residence_created,priority:2"`
}

func (AuditLog) TableName() string { return "audit_logs" }
