package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/residence/internal/audit/domain"
	"github.com/smallbiznis/residence/internal/audit/masking"
	"github.com/smallbiznis/residence/internal/clock"
	obscontext "github.com/smallbiznis/residence/internal/observability/context"
	"github.com/smallbiznis/residence/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  auditdomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  auditdomain.Repository
}

func NewService(p Params) auditdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("audit.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Record(ctx context.Context, entry auditdomain.Entry) error {
	return s.RecordTx(ctx, s.db, entry)
}

func (s *Service) RecordTx(ctx context.Context, tx *gorm.DB, entry auditdomain.Entry) error {
	if tx == nil {
		tx = s.db
	}
	if entry.ResidenceID == 0 {
		return auditdomain.ErrInvalidResidence
	}
	if !entry.Action.Valid() {
		return auditdomain.ErrInvalidAction
	}
	actorID := strings.TrimSpace(entry.ActorID)
	if actorID == "" {
		return auditdomain.ErrInvalidActor
	}

	details := masking.MaskDetails(entry.Details)
	if details == nil {
		details = map[string]any{}
	}
	if requestID := obscontext.RequestIDFromContext(ctx); requestID != "" {
		details["request_id"] = requestID
	}

	log := auditdomain.AuditLog{
		ID:                  s.genID.Generate(),
		ResidenceID:         entry.ResidenceID,
		RegulationID:        entry.RegulationID,
		ContractID:          entry.ContractID,
		ConsumptionRecordID: entry.ConsumptionRecordID,
		Action:              entry.Action,
		ActorID:             actorID,
		Details:             datatypes.JSONMap(details),
		CreatedAt:           s.clock.Now().UTC(),
	}
	client := obscontext.ClientFromContext(ctx)
	if ip := strings.TrimSpace(client.IPAddress); ip != "" {
		log.IPAddress = &ip
	}
	if ua := strings.TrimSpace(client.UserAgent); ua != "" {
		log.UserAgent = &ua
	}

	if err := s.repo.Insert(ctx, tx, &log); err != nil {
		s.log.Warn("failed to write audit log",
			zap.String("action", string(entry.Action)),
			zap.String("residence_id", entry.ResidenceID.String()),
			zap.Error(err),
		)
		return err
	}
	return nil
}

func (s *Service) List(ctx context.Context, req auditdomain.ListAuditLogRequest) (auditdomain.ListAuditLogResponse, error) {
	if req.ResidenceID == 0 {
		return auditdomain.ListAuditLogResponse{}, auditdomain.ErrInvalidResidence
	}
	if req.Action != "" && !req.Action.Valid() {
		return auditdomain.ListAuditLogResponse{}, auditdomain.ErrInvalidAction
	}

	cursor, err := pagination.DecodePosition(req.PageToken)
	if err != nil {
		return auditdomain.ListAuditLogResponse{}, auditdomain.ErrInvalidPageToken
	}

	limit := req.Limit()
	items, err := s.repo.List(ctx, s.db, auditdomain.ListFilter{
		ResidenceID:  req.ResidenceID,
		RegulationID: req.RegulationID,
		ContractID:   req.ContractID,
		Action:       req.Action,
		Cursor:       cursor,
		Limit:        limit,
	})
	if err != nil {
		return auditdomain.ListAuditLogResponse{}, err
	}

	items, pageInfo := pagination.Page(items, limit, func(item *auditdomain.AuditLog) (snowflake.ID, time.Time) {
		return item.ID, item.CreatedAt
	})

	logs := make([]auditdomain.AuditLog, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		logs = append(logs, *item)
	}

	return auditdomain.ListAuditLogResponse{PageInfo: pageInfo, AuditLogs: logs}, nil
}
