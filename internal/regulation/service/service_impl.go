package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	auditdomain "github.com/smallbiznis/residence/internal/audit/domain"
	"github.com/smallbiznis/residence/internal/clock"
	obsmetrics "github.com/smallbiznis/residence/internal/observability/metrics"
	regulationdomain "github.com/smallbiznis/residence/internal/regulation/domain"
	"github.com/smallbiznis/residence/pkg/db"
	"github.com/smallbiznis/residence/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     regulationdomain.Repository
	AuditSvc auditdomain.Service
	Metrics  *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     regulationdomain.Repository
	auditSvc auditdomain.Service
	metrics  *obsmetrics.Metrics
}

func NewService(p Params) regulationdomain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("regulation.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		auditSvc: p.AuditSvc,
		metrics:  p.Metrics,
	}
}

func (s *Service) Create(ctx context.Context, req regulationdomain.CreateRequest) (*regulationdomain.Regulation, error) {
	if req.ResidenceID == 0 {
		return nil, regulationdomain.ErrInvalidResidence
	}
	version := strings.TrimSpace(req.Version)
	if version == "" {
		return nil, regulationdomain.ErrInvalidVersion
	}
	actorID := strings.TrimSpace(req.ActorID)
	if actorID == "" {
		return nil, regulationdomain.ErrInvalidActor
	}

	fileRef := strings.TrimSpace(req.FileRef)
	if fileRef == "" {
		fileRef = FileRef(req.ResidenceID, version)
	}

	now := s.clock.Now()
	regulation := &regulationdomain.Regulation{
		ID:          s.genID.Generate(),
		ResidenceID: req.ResidenceID,
		Version:     version,
		FileRef:     fileRef,
		CreatedBy:   actorID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	var deactivated []snowflake.ID
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, regulation); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return regulationdomain.ErrVersionExists
			}
			return err
		}

		if err := s.auditSvc.RecordTx(ctx, tx, auditdomain.Entry{
			ResidenceID:  regulation.ResidenceID,
			RegulationID: &regulation.ID,
			Action:       auditdomain.ActionRegulationCreated,
			ActorID:      actorID,
			Details: map[string]any{
				"version":  regulation.Version,
				"file_ref": regulation.FileRef,
			},
		}); err != nil {
			return err
		}

		if !req.IsActive {
			return nil
		}
		if err := s.repo.LockResidence(ctx, tx, regulation.ResidenceID); err != nil {
			return err
		}
		activated, ids, err := s.activate(ctx, tx, regulation, actorID, now)
		if err != nil {
			return err
		}
		regulation = activated
		deactivated = ids
		return nil
	})
	if err != nil {
		return nil, err
	}

	if req.IsActive {
		s.logActivation(ctx, regulation, deactivated)
	}
	return regulation, nil
}

func (s *Service) SetActive(ctx context.Context, regulationID snowflake.ID, actorID string) (*regulationdomain.Regulation, error) {
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return nil, regulationdomain.ErrInvalidActor
	}

	var (
		result      *regulationdomain.Regulation
		deactivated []snowflake.ID
		changed     bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		target, err := s.repo.FindByID(ctx, tx, regulationID)
		if err != nil {
			return err
		}
		if target == nil {
			return regulationdomain.ErrNotFound
		}
		if err := s.repo.LockResidence(ctx, tx, target.ResidenceID); err != nil {
			return err
		}
		// re-read under the lock, a concurrent activation may have committed
		target, err = s.repo.FindByID(ctx, tx, regulationID)
		if err != nil {
			return err
		}
		if target == nil {
			return regulationdomain.ErrNotFound
		}

		others, err := s.repo.ListActiveIDs(ctx, tx, target.ResidenceID, target.ID)
		if err != nil {
			return err
		}
		if target.IsActive && len(others) == 0 {
			result = target
			return nil
		}

		activated, ids, err := s.activate(ctx, tx, target, actorID, s.clock.Now())
		if err != nil {
			return err
		}
		result = activated
		deactivated = ids
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.logActivation(ctx, result, deactivated)
	}
	return result, nil
}

// activate deactivates every other active regulation of target's residence,
// activates target and verifies exactly one active regulation remains.
// Any deviation aborts the caller's transaction.
func (s *Service) activate(ctx context.Context, tx *gorm.DB, target *regulationdomain.Regulation, actorID string, now time.Time) (*regulationdomain.Regulation, []snowflake.ID, error) {
	previous, err := s.repo.ListActiveIDs(ctx, tx, target.ResidenceID, target.ID)
	if err != nil {
		return nil, nil, err
	}
	if _, err := s.repo.DeactivateOthers(ctx, tx, target.ResidenceID, target.ID, now); err != nil {
		return nil, nil, err
	}

	affected, err := s.repo.Activate(ctx, tx, target.ID, now)
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, nil, fmt.Errorf("%w: another regulation was activated concurrently", regulationdomain.ErrInconsistentState)
		}
		return nil, nil, err
	}
	if affected != 1 {
		return nil, nil, fmt.Errorf("%w: activate updated %d rows", regulationdomain.ErrInconsistentState, affected)
	}

	active, err := s.repo.CountActive(ctx, tx, target.ResidenceID)
	if err != nil {
		return nil, nil, err
	}
	if active != 1 {
		return nil, nil, fmt.Errorf("%w: residence has %d active regulations", regulationdomain.ErrInconsistentState, active)
	}

	previousIDs := make([]string, 0, len(previous))
	for _, id := range previous {
		previousIDs = append(previousIDs, id.String())
	}
	if err := s.auditSvc.RecordTx(ctx, tx, auditdomain.Entry{
		ResidenceID:  target.ResidenceID,
		RegulationID: &target.ID,
		Action:       auditdomain.ActionRegulationActivated,
		ActorID:      actorID,
		Details: map[string]any{
			"version":     target.Version,
			"deactivated": previousIDs,
		},
	}); err != nil {
		return nil, nil, err
	}

	updated, err := s.repo.FindByID(ctx, tx, target.ID)
	if err != nil {
		return nil, nil, err
	}
	if updated == nil {
		return nil, nil, fmt.Errorf("%w: regulation vanished after activation", regulationdomain.ErrInconsistentState)
	}
	return updated, previous, nil
}

func (s *Service) logActivation(ctx context.Context, regulation *regulationdomain.Regulation, deactivated []snowflake.ID) {
	s.metrics.RecordRegulationActivation(ctx)
	s.log.Info("regulation activated",
		zap.String("regulation_id", regulation.ID.String()),
		zap.String("residence_id", regulation.ResidenceID.String()),
		zap.String("version", regulation.Version),
		zap.Int("deactivated", len(deactivated)),
	)
}

func (s *Service) GetActive(ctx context.Context, residenceID snowflake.ID) (*regulationdomain.Regulation, error) {
	if residenceID == 0 {
		return nil, regulationdomain.ErrInvalidResidence
	}
	return s.repo.FindActive(ctx, s.db, residenceID)
}

func (s *Service) Get(ctx context.Context, regulationID snowflake.ID) (*regulationdomain.Regulation, error) {
	regulation, err := s.repo.FindByID(ctx, s.db, regulationID)
	if err != nil {
		return nil, err
	}
	if regulation == nil {
		return nil, regulationdomain.ErrNotFound
	}
	return regulation, nil
}

func (s *Service) List(ctx context.Context, req regulationdomain.ListRequest) (regulationdomain.ListResponse, error) {
	if req.ResidenceID == 0 {
		return regulationdomain.ListResponse{}, regulationdomain.ErrInvalidResidence
	}
	cursor, err := pagination.DecodePosition(req.PageToken)
	if err != nil {
		return regulationdomain.ListResponse{}, regulationdomain.ErrInvalidPageToken
	}

	limit := req.Limit()
	items, err := s.repo.List(ctx, s.db, regulationdomain.ListFilter{
		ResidenceID: req.ResidenceID,
		Cursor:      cursor,
		Limit:       limit,
	})
	if err != nil {
		return regulationdomain.ListResponse{}, err
	}

	items, pageInfo := pagination.Page(items, limit, func(item *regulationdomain.Regulation) (snowflake.ID, time.Time) {
		return item.ID, item.CreatedAt
	})
	regulations := make([]regulationdomain.Regulation, 0, len(items))
	for _, item := range items {
		regulations = append(regulations, *item)
	}
	return regulationdomain.ListResponse{PageInfo: pageInfo, Regulations: regulations}, nil
}

// FileRef is the storage path of a regulation document.
func FileRef(residenceID snowflake.ID, version string) string {
	return fmt.Sprintf("regulations/%s/%s.pdf", residenceID.String(), slug.Make(version))
}
