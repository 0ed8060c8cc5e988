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
	ResidenceID snowflake.ID `json:"-"`
	Version     string       `json:"version"`
	FileRef     string       `json:"file_ref"`
	IsActive    bool         `json:"is_active"`
	ActorID     string       `json:"-"`
}

type ListRequest struct {
	pagination.Pagination
	ResidenceID snowflake.ID
}

type ListResponse struct {
	pagination.PageInfo
	Regulations []Regulation `json:"regulations"`
}

type ListFilter struct {
	ResidenceID snowflake.ID
	Cursor      *pagination.Position
	Limit       int
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, regulation *Regulation) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Regulation, error)
	FindActive(ctx context.Context, db *gorm.DB, residenceID snowflake.ID) (*Regulation, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*Regulation, error)
	// LockResidence row-locks every regulation of the residence for the
	// rest of the transaction.
	LockResidence(ctx context.Context, db *gorm.DB, residenceID snowflake.ID) error
	// ListActiveIDs returns ids of active regulations of the residence other than exclude.
	ListActiveIDs(ctx context.Context, db *gorm.DB, residenceID, exclude snowflake.ID) ([]snowflake.ID, error)
	DeactivateOthers(ctx context.Context, db *gorm.DB, residenceID, keep snowflake.ID, now time.Time) (int64, error)
	Activate(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) (int64, error)
	CountActive(ctx context.Context, db *gorm.DB, residenceID snowflake.ID) (int64, error)
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Regulation, error)
	// SetActive makes regulationID the only active regulation of its residence.
	SetActive(ctx context.Context, regulationID snowflake.ID, actorID string) (*Regulation, error)
	// GetActive returns nil when the residence has no active regulation.
	GetActive(ctx context.Context, residenceID snowflake.ID) (*Regulation, error)
	Get(ctx context.Context, regulationID snowflake.ID) (*Regulation, error)
	List(ctx context.Context, req ListRequest) (ListResponse, error)
}

var (
	ErrInvalidResidence  = domainerr.New(domainerr.ErrValidation, "invalid_residence")
	ErrInvalidVersion    = domainerr.New(domainerr.ErrValidation, "invalid_version")
	ErrInvalidActor      = domainerr.New(domainerr.ErrValidation, "invalid_actor")
	ErrInvalidPageToken  = domainerr.New(domainerr.ErrValidation, "invalid_page_token")
	ErrNotFound          = domainerr.New(domainerr.ErrNotFound, "regulation_not_found")
	ErrVersionExists     = domainerr.New(domainerr.ErrConflict, "regulation_version_exists")
	ErrInconsistentState = domainerr.New(domainerr.ErrInconsistentState, "regulation_activation_inconsistent")
)
