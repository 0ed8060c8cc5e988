package domain

import (
	"context"
	"io"

	"github.com/bwmarrin/snowflake"
	acceptancedomain "github.com/smallbiznis/residence/internal/acceptance/domain"
	regulationdomain "github.com/smallbiznis/residence/internal/regulation/domain"
	"github.com/smallbiznis/residence/pkg/domainerr"
)

// Status is the gate decision for a student in a residence that has an
// active regulation.
type Status struct {
	Regulation  regulationdomain.Regulation `json:"regulation"`
	DocumentURL string                      `json:"document_url,omitempty"`
	HasAccepted bool                        `json:"has_accepted"`
}

type AcceptRequest struct {
	StudentID    snowflake.ID
	RegulationID snowflake.ID
	ClientIP     string
	UserAgent    string
}

type CertificateRequest struct {
	StudentID    snowflake.ID
	StudentName  string
	RegulationID snowflake.ID
}

type Service interface {
	// Check returns nil when the residence has no active regulation. It
	// always reads the store.
	Check(ctx context.Context, studentID, residenceID snowflake.ID) (*Status, error)
	// Accept records acceptance of the residence's active regulation.
	Accept(ctx context.Context, req AcceptRequest) (*acceptancedomain.RegulationAcceptance, error)
	// Certificate renders a PDF for an existing acceptance.
	Certificate(ctx context.Context, req CertificateRequest) (io.Reader, error)
}

var (
	ErrInvalidStudent      = domainerr.New(domainerr.ErrValidation, "invalid_student")
	ErrInvalidResidence    = domainerr.New(domainerr.ErrValidation, "invalid_residence")
	ErrInvalidRegulation   = domainerr.New(domainerr.ErrValidation, "invalid_regulation")
	ErrRegulationNotActive = domainerr.New(domainerr.ErrConflict, "regulation_not_active")
	ErrNotAccepted         = domainerr.New(domainerr.ErrNotFound, "acceptance_not_found")
)
