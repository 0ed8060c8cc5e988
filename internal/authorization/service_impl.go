package authorization

import (
	"context"
	_ "embed"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

var knownRoles = map[string]struct{}{
	RoleAdmin:   {},
	RoleStudent: {},
	RoleMeter:   {},
}

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
}

type ServiceImpl struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
}

func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	enforcer.BuildRoleLinks()
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, actor Actor, object string, action string) error {
	actor.ID = strings.TrimSpace(actor.ID)
	actor.Role = strings.ToLower(strings.TrimSpace(actor.Role))
	if actor.ID == "" {
		return ErrInvalidActor
	}
	if _, ok := knownRoles[actor.Role]; !ok {
		return ErrInvalidActor
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	subject := actor.Subject()
	if err := s.ensureGrouping(subject, roleName(actor.Role)); err != nil {
		return err
	}

	allowed, err := s.enforcer.Enforce(subject, object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.log.Warn("authorization denied",
			zap.String("subject", subject),
			zap.String("object", object),
			zap.String("action", action),
		)
		return ErrForbidden
	}
	return nil
}

func (s *ServiceImpl) ensureGrouping(subject string, role string) error {
	has, err := s.enforcer.HasGroupingPolicy(subject, role)
	if err != nil {
		return err
	}
	if has {
		return nil
	}
	_, err = s.enforcer.AddGroupingPolicy(subject, role)
	return err
}

func roleName(role string) string {
	return "role:" + role
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	admin, student, meter := roleName(RoleAdmin), roleName(RoleStudent), roleName(RoleMeter)
	policies := [][]string{
		// Admin permissions
		{admin, ObjectRegulation, ActionRegulationView},
		{admin, ObjectRegulation, ActionRegulationCreate},
		{admin, ObjectRegulation, ActionRegulationActivate},
		{admin, ObjectContract, ActionContractView},
		{admin, ObjectContract, ActionContractCreate},
		{admin, ObjectContract, ActionContractUpdate},
		{admin, ObjectContract, ActionContractTerminate},
		{admin, ObjectConsumption, ActionConsumptionView},
		{admin, ObjectConsumption, ActionConsumptionCreate},
		{admin, ObjectConsumption, ActionConsumptionNotify},
		{admin, ObjectAuditLog, ActionAuditLogView},

		// Student permissions
		{student, ObjectCompliance, ActionComplianceCheck},
		{student, ObjectRegulation, ActionRegulationAccept},
		{student, ObjectAcceptance, ActionAcceptanceView},
		{student, ObjectAcceptance, ActionAcceptanceCertificate},
		{student, ObjectContract, ActionContractViewOwn},

		// Meter integrations only push readings
		{meter, ObjectConsumption, ActionConsumptionCreate},
	}

	for _, policy := range policies {
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}
	return nil
}
