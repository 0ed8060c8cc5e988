package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	acceptancedomain "github.com/smallbiznis/residence/internal/acceptance/domain"
	"github.com/smallbiznis/residence/internal/clock"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  acceptancedomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  acceptancedomain.Repository
}

func NewService(p Params) acceptancedomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("acceptance.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) HasAccepted(ctx context.Context, studentID, regulationID snowflake.ID) (bool, error) {
	if studentID == 0 {
		return false, acceptancedomain.ErrInvalidStudent
	}
	if regulationID == 0 {
		return false, acceptancedomain.ErrInvalidRegulation
	}
	acceptance, err := s.repo.Find(ctx, s.db, studentID, regulationID)
	if err != nil {
		return false, err
	}
	return acceptance != nil, nil
}

func (s *Service) Record(ctx context.Context, req acceptancedomain.RecordRequest) (*acceptancedomain.RegulationAcceptance, error) {
	if err := validateRecord(req); err != nil {
		return nil, err
	}

	acceptance := &acceptancedomain.RegulationAcceptance{
		ID:                s.genID.Generate(),
		StudentID:         req.StudentID,
		RegulationID:      req.RegulationID,
		RegulationVersion: strings.TrimSpace(req.RegulationVersion),
		ResidenceID:       req.ResidenceID,
		AcceptedAt:        s.clock.Now(),
		ClientIP:          optional(req.ClientIP),
		UserAgent:         optional(req.UserAgent),
	}

	inserted, err := s.repo.InsertIfAbsent(ctx, s.db, acceptance)
	if err != nil {
		return nil, err
	}
	if inserted {
		s.log.Info("regulation accepted",
			zap.String("student_id", req.StudentID.String()),
			zap.String("regulation_id", req.RegulationID.String()),
			zap.String("version", acceptance.RegulationVersion),
		)
		return acceptance, nil
	}

	existing, err := s.repo.Find(ctx, s.db, req.StudentID, req.RegulationID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, acceptancedomain.ErrNotFound
	}
	return existing, nil
}

func (s *Service) Get(ctx context.Context, studentID, regulationID snowflake.ID) (*acceptancedomain.RegulationAcceptance, error) {
	acceptance, err := s.repo.Find(ctx, s.db, studentID, regulationID)
	if err != nil {
		return nil, err
	}
	if acceptance == nil {
		return nil, acceptancedomain.ErrNotFound
	}
	return acceptance, nil
}

func (s *Service) History(ctx context.Context, studentID snowflake.ID) ([]acceptancedomain.RegulationAcceptance, error) {
	if studentID == 0 {
		return nil, acceptancedomain.ErrInvalidStudent
	}
	items, err := s.repo.ListByStudent(ctx, s.db, studentID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []acceptancedomain.RegulationAcceptance{}
	}
	return items, nil
}

func validateRecord(req acceptancedomain.RecordRequest) error {
	switch {
	case req.StudentID == 0:
		return acceptancedomain.ErrInvalidStudent
	case req.RegulationID == 0:
		return acceptancedomain.ErrInvalidRegulation
	case strings.TrimSpace(req.RegulationVersion) == "":
		return acceptancedomain.ErrInvalidVersion
	case req.ResidenceID == 0:
		return acceptancedomain.ErrInvalidResidence
	}
	return nil
}

func optional(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
