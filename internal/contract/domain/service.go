package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/residence/pkg/db/pagination"
	"github.com/smallbiznis/residence/pkg/domainerr"
	"gorm.io/gorm"
)

type CreateRequest struct {
	StudentID       snowflake.ID  `json:"student_id"`
	StudentName     string        `json:"student_name"`
	StudentEmail    string        `json:"student_email"`
	ResidenceID     snowflake.ID  `json:"residence_id"`
	ResidenceName   string        `json:"residence_name"`
	RoomNumber      string        `json:"room_number"`
	RoomTypeID      *snowflake.ID `json:"room_type_id"`
	StartDate       time.Time     `json:"start_date"`
	EndDate         time.Time     `json:"end_date"`
	MonthlyValue    float64       `json:"monthly_value"`
	MonthlyKwhLimit float64       `json:"monthly_kwh_limit"`
	ActorID         string        `json:"-"`
}

// UpdateRequest carries the fields to change; nil fields are left as is.
type UpdateRequest struct {
	StudentName     *string       `json:"student_name"`
	StudentEmail    *string       `json:"student_email"`
	RoomNumber      *string       `json:"room_number"`
	RoomTypeID      *snowflake.ID `json:"room_type_id"`
	StartDate       *time.Time    `json:"start_date"`
	EndDate         *time.Time    `json:"end_date"`
	MonthlyValue    *float64      `json:"monthly_value"`
	MonthlyKwhLimit *float64      `json:"monthly_kwh_limit"`
	ActorID         string        `json:"-"`
}

type TerminateRequest struct {
	Reason  string `json:"reason"`
	ActorID string `json:"-"`
}

// TerminateResult reports whether the contract was already terminated
// before the call.
type TerminateResult struct {
	Contract          Contract `json:"contract"`
	AlreadyTerminated bool     `json:"already_terminated"`
}

type ListRequest struct {
	pagination.Pagination
	ResidenceID snowflake.ID
	Status      ContractStatus
}

type ListResponse struct {
	pagination.PageInfo
	Contracts []ContractWithStatus `json:"contracts"`
}

type ListFilter struct {
	ResidenceID snowflake.ID
	Status      ContractStatus
	Cursor      *pagination.Position
	Limit       int
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, contract *Contract) error
	Update(ctx context.Context, db *gorm.DB, contract *Contract) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Contract, error)
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Contract, error)
	FindActiveByStudent(ctx context.Context, db *gorm.DB, studentID snowflake.ID) (*Contract, error)
	FindActiveByRoom(ctx context.Context, db *gorm.DB, residenceID snowflake.ID, roomNumber string) (*Contract, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*Contract, error)
}

type Service interface {
	CreateActive(ctx context.Context, req CreateRequest) (*Contract, error)
	Update(ctx context.Context, id snowflake.ID, req UpdateRequest) (*Contract, error)
	Terminate(ctx context.Context, id snowflake.ID, req TerminateRequest) (TerminateResult, error)
	Get(ctx context.Context, id snowflake.ID) (*Contract, error)
	// GetActiveByStudent returns nil when the student has no active contract.
	GetActiveByStudent(ctx context.Context, studentID snowflake.ID) (*Contract, error)
	// GetActiveByRoom returns nil when no active contract occupies the room.
	GetActiveByRoom(ctx context.Context, residenceID snowflake.ID, roomNumber string) (*Contract, error)
	List(ctx context.Context, req ListRequest) (ListResponse, error)
	// Enrich derives expiry fields using the service clock.
	Enrich(contract Contract) ContractWithStatus
}

var (
	ErrInvalidStudent       = domainerr.New(domainerr.ErrValidation, "invalid_student")
	ErrInvalidStudentName   = domainerr.New(domainerr.ErrValidation, "invalid_student_name")
	ErrInvalidStudentEmail  = domainerr.New(domainerr.ErrValidation, "invalid_student_email")
	ErrInvalidResidence     = domainerr.New(domainerr.ErrValidation, "invalid_residence")
	ErrInvalidRoomNumber    = domainerr.New(domainerr.ErrValidation, "invalid_room_number")
	ErrInvalidPeriod        = domainerr.New(domainerr.ErrValidation, "invalid_period")
	ErrInvalidMonthlyValue  = domainerr.New(domainerr.ErrValidation, "invalid_monthly_value")
	ErrInvalidKwhLimit      = domainerr.New(domainerr.ErrValidation, "invalid_monthly_kwh_limit")
	ErrInvalidStatus        = domainerr.New(domainerr.ErrValidation, "invalid_status")
	ErrInvalidActor         = domainerr.New(domainerr.ErrValidation, "invalid_actor")
	ErrInvalidPageToken     = domainerr.New(domainerr.ErrValidation, "invalid_page_token")
	ErrNotFound             = domainerr.New(domainerr.ErrNotFound, "contract_not_found")
	ErrActiveContractExists = domainerr.New(domainerr.ErrConflict, "active_contract_exists")
	ErrContractNotActive    = domainerr.New(domainerr.ErrConflict, "contract_not_active")
)
