package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/residence/pkg/domainerr"
	"gorm.io/gorm"
)

type RecordRequest struct {
	StudentID         snowflake.ID
	RegulationID      snowflake.ID
	RegulationVersion string
	ResidenceID       snowflake.ID
	ClientIP          string
	UserAgent         string
}

type Repository interface {
	// InsertIfAbsent inserts acceptance unless the (student, regulation)
	// pair already exists and reports whether a row was written.
	InsertIfAbsent(ctx context.Context, db *gorm.DB, acceptance *RegulationAcceptance) (bool, error)
	Find(ctx context.Context, db *gorm.DB, studentID, regulationID snowflake.ID) (*RegulationAcceptance, error)
	ListByStudent(ctx context.Context, db *gorm.DB, studentID snowflake.ID) ([]RegulationAcceptance, error)
}

type Service interface {
	HasAccepted(ctx context.Context, studentID, regulationID snowflake.ID) (bool, error)
	// Record is idempotent: accepting the same regulation again returns the
	// original acceptance unchanged.
	Record(ctx context.Context, req RecordRequest) (*RegulationAcceptance, error)
	Get(ctx context.Context, studentID, regulationID snowflake.ID) (*RegulationAcceptance, error)
	// History lists the student's acceptances, most recent first.
	History(ctx context.Context, studentID snowflake.ID) ([]RegulationAcceptance, error)
}

var (
	ErrInvalidStudent    = domainerr.New(domainerr.ErrValidation, "invalid_student")
	ErrInvalidRegulation = domainerr.New(domainerr.ErrValidation, "invalid_regulation")
	ErrInvalidVersion    = domainerr.New(domainerr.ErrValidation, "invalid_regulation_version")
	ErrInvalidResidence  = domainerr.New(domainerr.ErrValidation, "invalid_residence")
	ErrNotFound          = domainerr.New(domainerr.ErrNotFound, "acceptance_not_found")
)
