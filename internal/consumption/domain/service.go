package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	contractdomain "github.com/smallbiznis/residence/internal/contract/domain"
	"github.com/smallbiznis/residence/pkg/db/pagination"
	"github.com/smallbiznis/residence/pkg/domainerr"
	"gorm.io/gorm"
)

type CreateRequest struct {
	Reading
	// ContractID pins the owning contract. When nil the active contract
	// of the room is used, if any.
	ContractID *snowflake.ID `json:"contract_id"`
	ActorID    string        `json:"-"`
}

type ListRequest struct {
	pagination.Pagination
	ResidenceID      snowflake.ID
	BillingPeriodKey string
	ExceedsOnly      bool
}

type ListResponse struct {
	pagination.PageInfo
	Records []ConsumptionRecord `json:"records"`
}

type ListFilter struct {
	ResidenceID      snowflake.ID
	BillingPeriodKey string
	ExceedsOnly      bool
	Cursor           *pagination.Position
	Limit            int
}

// ContractResolver finds the contract owning a reading.
type ContractResolver interface {
	Get(ctx context.Context, id snowflake.ID) (*contractdomain.Contract, error)
	GetActiveByRoom(ctx context.Context, residenceID snowflake.ID, roomNumber string) (*contractdomain.Contract, error)
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, record *ConsumptionRecord) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*ConsumptionRecord, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*ConsumptionRecord, error)
	// MarkNotified flips notification_sent only if it is still false and
	// reports whether this call did it.
	MarkNotified(ctx context.Context, db *gorm.DB, id snowflake.ID, sentAt time.Time) (bool, error)
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*ConsumptionRecord, error)
	Get(ctx context.Context, id snowflake.ID) (*ConsumptionRecord, error)
	List(ctx context.Context, req ListRequest) (ListResponse, error)
}

var (
	ErrInvalidResidence     = domainerr.New(domainerr.ErrValidation, "invalid_residence")
	ErrInvalidRoomNumber    = domainerr.New(domainerr.ErrValidation, "invalid_room_number")
	ErrInvalidBillingMonth  = domainerr.New(domainerr.ErrValidation, "invalid_billing_month")
	ErrInvalidBillingYear   = domainerr.New(domainerr.ErrValidation, "invalid_billing_year")
	ErrInvalidBillingPeriod = domainerr.New(domainerr.ErrValidation, "invalid_billing_period")
	ErrInvalidConsumption   = domainerr.New(domainerr.ErrValidation, "invalid_consumption_kwh")
	ErrInvalidLimit         = domainerr.New(domainerr.ErrValidation, "invalid_monthly_kwh_limit")
	ErrInvalidActor         = domainerr.New(domainerr.ErrValidation, "invalid_actor")
	ErrInvalidPageToken     = domainerr.New(domainerr.ErrValidation, "invalid_page_token")
	ErrContractMismatch     = domainerr.New(domainerr.ErrValidation, "contract_residence_mismatch")
	ErrContractNotFound     = domainerr.New(domainerr.ErrNotFound, "contract_not_found")
	ErrNotFound             = domainerr.New(domainerr.ErrNotFound, "consumption_record_not_found")
	ErrDuplicatePeriod      = domainerr.New(domainerr.ErrConflict, "duplicate_billing_period")
)
