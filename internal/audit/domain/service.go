package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/residence/pkg/db/pagination"
	"github.com/smallbiznis/residence/pkg/domainerr"
	"gorm.io/gorm"
)

// Entry describes an action to append to the audit log.
type Entry struct {
	ResidenceID         snowflake.ID
	RegulationID        *snowflake.ID
	ContractID          *snowflake.ID
	ConsumptionRecordID *snowflake.ID
	Action              Action
	ActorID             string
	Details             map[string]any
}

type ListAuditLogRequest struct {
	pagination.Pagination
	ResidenceID  snowflake.ID
	RegulationID *snowflake.ID
	ContractID   *snowflake.ID
	Action       Action
}

type ListAuditLogResponse struct {
	pagination.PageInfo
	AuditLogs []AuditLog `json:"audit_logs"`
}

type ListFilter struct {
	ResidenceID  snowflake.ID
	RegulationID *snowflake.ID
	ContractID   *snowflake.ID
	Action       Action
	Cursor       *pagination.Position
	Limit        int
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *AuditLog) error
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*AuditLog, error)
}

type Service interface {
	// Record appends entry outside of any caller transaction.
	Record(ctx context.Context, entry Entry) error
	// RecordTx appends entry inside tx so it commits with the audited change.
	RecordTx(ctx context.Context, tx *gorm.DB, entry Entry) error
	List(ctx context.Context, req ListAuditLogRequest) (ListAuditLogResponse, error)
}

var (
	ErrInvalidResidence = domainerr.New(domainerr.ErrValidation, "invalid_residence")
	ErrInvalidAction    = domainerr.New(domainerr.ErrValidation, "invalid_action")
	ErrInvalidActor     = domainerr.New(domainerr.ErrValidation, "invalid_actor")
	ErrInvalidPageToken = domainerr.New(domainerr.ErrValidation, "invalid_page_token")
)
