package domain

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	consumptiondomain "github.com/smallbiznis/residence/internal/consumption/domain"
	"github.com/smallbiznis/residence/pkg/domainerr"
)

// State is the delivery state of a consumption notification.
// Unsent -> Sending -> Sent | Failed; Failed may be retried.
type State string

const (
	StateUnsent  State = "unsent"
	StateSending State = "sending"
	StateSent    State = "sent"
	StateFailed  State = "failed"
)

type SendRequest struct {
	RecordID snowflake.ID `json:"-"`
	ActorID  string       `json:"-"`
	// PreviousAttempts is the number of failed sends the caller has
	// already seen for this record.
	PreviousAttempts int `json:"previous_attempts"`
}

type SendResult struct {
	State         State                               `json:"state"`
	Record        consumptiondomain.ConsumptionRecord `json:"record"`
	AlreadySent   bool                                `json:"already_sent"`
	RetryCount    int                                 `json:"retry_count"`
	Error         string                              `json:"error,omitempty"`
	CorrelationID string                              `json:"correlation_id"`
}

type Service interface {
	// Send delivers the consumption email for a record at most once. A
	// delivery failure is reported in the result, not as an error.
	Send(ctx context.Context, req SendRequest) (SendResult, error)
}

// StateOf reports the persisted state of record.
func StateOf(record consumptiondomain.ConsumptionRecord) State {
	if record.NotificationSent {
		return StateSent
	}
	return StateUnsent
}

// LockKey names the lease held while a record is in the Sending state.
func LockKey(recordID snowflake.ID) string {
	return fmt.Sprintf("consumption:notify:%s", recordID)
}

var (
	ErrInvalidRecord   = domainerr.New(domainerr.ErrValidation, "invalid_record")
	ErrInvalidActor    = domainerr.New(domainerr.ErrValidation, "invalid_actor")
	ErrInvalidAttempts = domainerr.New(domainerr.ErrValidation, "invalid_previous_attempts")
	ErrMissingContact  = domainerr.New(domainerr.ErrValidation, "missing_student_contact")
	ErrNotFound        = domainerr.New(domainerr.ErrNotFound, "consumption_record_not_found")
	ErrSendInProgress  = domainerr.New(domainerr.ErrConflict, "notification_in_progress")
)
