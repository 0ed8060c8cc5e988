package authorization

import (
	"context"
	"errors"
)

const (
	RoleAdmin   = "admin"
	RoleStudent = "student"
	RoleMeter   = "meter"
)

const (
	ObjectRegulation  = "regulation"
	ObjectAcceptance  = "acceptance"
	ObjectContract    = "contract"
	ObjectConsumption = "consumption_record"
	ObjectAuditLog    = "audit_log"
	ObjectCompliance  = "compliance"
)

const (
	ActionRegulationView     = "regulation.view"
	ActionRegulationCreate   = "regulation.create"
	ActionRegulationActivate = "regulation.activate"
	ActionRegulationAccept   = "regulation.accept"

	ActionAcceptanceView        = "acceptance.view"
	ActionAcceptanceCertificate = "acceptance.certificate"

	ActionContractView      = "contract.view"
	ActionContractViewOwn   = "contract.view_own"
	ActionContractCreate    = "contract.create"
	ActionContractUpdate    = "contract.update"
	ActionContractTerminate = "contract.terminate"

	ActionConsumptionView   = "consumption.view"
	ActionConsumptionCreate = "consumption.create"
	ActionConsumptionNotify = "consumption.notify"

	ActionAuditLogView = "audit_log.view"

	ActionComplianceCheck = "compliance.check"
)

var (
	ErrInvalidActor  = errors.New("invalid_actor")
	ErrInvalidObject = errors.New("invalid_object")
	ErrInvalidAction = errors.New("invalid_action")
	ErrForbidden     = errors.New("forbidden")
)

// Actor is the caller identity asserted by the upstream gateway.
type Actor struct {
	ID   string
	Role string
}

// Subject is the casbin subject for the actor.
func (a Actor) Subject() string {
	return a.Role + ":" + a.ID
}

type Service interface {
	Authorize(ctx context.Context, actor Actor, object string, action string) error
}
