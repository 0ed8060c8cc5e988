package authorization

import (
	"context"
	"testing"

	"github.com/smallbiznis/residence/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newService(t *testing.T) Service {
	t.Helper()
	enforcer, err := NewEnforcer(dbtest.Open(t))
	require.NoError(t, err)
	return NewService(Params{Log: zap.NewNop(), Enforcer: enforcer})
}

func TestAuthorizeByRole(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	admin := Actor{ID: "1", Role: RoleAdmin}
	student := Actor{ID: "42", Role: RoleStudent}
	meter := Actor{ID: "gateway", Role: RoleMeter}

	assert.NoError(t, svc.Authorize(ctx, admin, ObjectRegulation, ActionRegulationActivate))
	assert.NoError(t, svc.Authorize(ctx, admin, ObjectAuditLog, ActionAuditLogView))
	assert.ErrorIs(t, svc.Authorize(ctx, admin, ObjectRegulation, ActionRegulationAccept), ErrForbidden)

	assert.NoError(t, svc.Authorize(ctx, student, ObjectRegulation, ActionRegulationAccept))
	assert.NoError(t, svc.Authorize(ctx, student, ObjectCompliance, ActionComplianceCheck))
	assert.ErrorIs(t, svc.Authorize(ctx, student, ObjectContract, ActionContractCreate), ErrForbidden)
	assert.ErrorIs(t, svc.Authorize(ctx, student, ObjectAuditLog, ActionAuditLogView), ErrForbidden)

	assert.NoError(t, svc.Authorize(ctx, meter, ObjectConsumption, ActionConsumptionCreate))
	assert.ErrorIs(t, svc.Authorize(ctx, meter, ObjectConsumption, ActionConsumptionNotify), ErrForbidden)
}

func TestAuthorizeSameIDDifferentRoles(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	require.NoError(t, svc.Authorize(ctx, Actor{ID: "7", Role: RoleAdmin}, ObjectContract, ActionContractCreate))
	assert.ErrorIs(t, svc.Authorize(ctx, Actor{ID: "7", Role: RoleStudent}, ObjectContract, ActionContractCreate), ErrForbidden)
}

func TestAuthorizeValidation(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	assert.ErrorIs(t, svc.Authorize(ctx, Actor{Role: RoleAdmin}, ObjectContract, ActionContractView), ErrInvalidActor)
	assert.ErrorIs(t, svc.Authorize(ctx, Actor{ID: "1", Role: "root"}, ObjectContract, ActionContractView), ErrInvalidActor)
	assert.ErrorIs(t, svc.Authorize(ctx, Actor{ID: "1", Role: RoleAdmin}, "", ActionContractView), ErrInvalidObject)
	assert.ErrorIs(t, svc.Authorize(ctx, Actor{ID: "1", Role: RoleAdmin}, ObjectContract, " "), ErrInvalidAction)
}
