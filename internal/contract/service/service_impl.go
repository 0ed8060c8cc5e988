package service

import (
	"context"
	"math"
	"net/mail"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/residence/internal/audit/domain"
	"github.com/smallbiznis/residence/internal/clock"
	contractdomain "github.com/smallbiznis/residence/internal/contract/domain"
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
	Repo     contractdomain.Repository
	AuditSvc auditdomain.Service
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     contractdomain.Repository
	auditSvc auditdomain.Service
}

func NewService(p Params) contractdomain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("contract.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		auditSvc: p.AuditSvc,
	}
}

func (s *Service) CreateActive(ctx context.Context, req contractdomain.CreateRequest) (*contractdomain.Contract, error) {
	actorID := strings.TrimSpace(req.ActorID)
	if actorID == "" {
		return nil, contractdomain.ErrInvalidActor
	}

	now := s.clock.Now()
	contract := &contractdomain.Contract{
		ID:              s.genID.Generate(),
		StudentID:       req.StudentID,
		StudentName:     strings.TrimSpace(req.StudentName),
		StudentEmail:    strings.TrimSpace(req.StudentEmail),
		ResidenceID:     req.ResidenceID,
		ResidenceName:   strings.TrimSpace(req.ResidenceName),
		RoomNumber:      strings.TrimSpace(req.RoomNumber),
		RoomTypeID:      req.RoomTypeID,
		StartDate:       req.StartDate.UTC(),
		EndDate:         req.EndDate.UTC(),
		MonthlyValue:    req.MonthlyValue,
		MonthlyKwhLimit: req.MonthlyKwhLimit,
		Status:          contractdomain.ContractStatusActive,
		CreatedBy:       actorID,
		UpdatedBy:       actorID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := validateContract(contract); err != nil {
		return nil, err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.repo.FindActiveByStudent(ctx, tx, contract.StudentID)
		if err != nil {
			return err
		}
		if existing != nil {
			return contractdomain.ErrActiveContractExists
		}

		if err := s.repo.Insert(ctx, tx, contract); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return contractdomain.ErrActiveContractExists
			}
			return err
		}

		return s.auditSvc.RecordTx(ctx, tx, auditdomain.Entry{
			ResidenceID: contract.ResidenceID,
			ContractID:  &contract.ID,
			Action:      auditdomain.ActionContractCreated,
			ActorID:     actorID,
			Details: map[string]any{
				"student_id":        contract.StudentID.String(),
				"student_email":     contract.StudentEmail,
				"room_number":       contract.RoomNumber,
				"start_date":        contract.StartDate.Format(time.DateOnly),
				"end_date":          contract.EndDate.Format(time.DateOnly),
				"monthly_kwh_limit": contract.MonthlyKwhLimit,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("contract created",
		zap.String("contract_id", contract.ID.String()),
		zap.String("student_id", contract.StudentID.String()),
		zap.String("residence_id", contract.ResidenceID.String()),
	)
	return contract, nil
}

func (s *Service) Update(ctx context.Context, id snowflake.ID, req contractdomain.UpdateRequest) (*contractdomain.Contract, error) {
	actorID := strings.TrimSpace(req.ActorID)
	if actorID == "" {
		return nil, contractdomain.ErrInvalidActor
	}

	var updated *contractdomain.Contract
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.repo.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if current == nil {
			return contractdomain.ErrNotFound
		}
		if !current.IsActive() {
			return contractdomain.ErrContractNotActive
		}

		next, changed := applyUpdate(*current, req)
		if len(changed) == 0 {
			updated = current
			return nil
		}
		if err := validateContract(&next); err != nil {
			return err
		}
		next.UpdatedBy = actorID
		next.UpdatedAt = s.clock.Now()

		if err := s.repo.Update(ctx, tx, &next); err != nil {
			return err
		}
		if err := s.auditSvc.RecordTx(ctx, tx, auditdomain.Entry{
			ResidenceID: next.ResidenceID,
			ContractID:  &next.ID,
			Action:      auditdomain.ActionContractUpdated,
			ActorID:     actorID,
			Details:     map[string]any{"changed": changed},
		}); err != nil {
			return err
		}
		updated = &next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Service) Terminate(ctx context.Context, id snowflake.ID, req contractdomain.TerminateRequest) (contractdomain.TerminateResult, error) {
	actorID := strings.TrimSpace(req.ActorID)
	if actorID == "" {
		return contractdomain.TerminateResult{}, contractdomain.ErrInvalidActor
	}

	var result contractdomain.TerminateResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.repo.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if current == nil {
			return contractdomain.ErrNotFound
		}
		if !current.IsActive() {
			result = contractdomain.TerminateResult{Contract: *current, AlreadyTerminated: true}
			return nil
		}

		now := s.clock.Now()
		next := *current
		next.Status = contractdomain.ContractStatusTerminated
		next.TerminatedAt = &now
		if reason := strings.TrimSpace(req.Reason); reason != "" {
			next.TerminationReason = &reason
		}
		next.UpdatedBy = actorID
		next.UpdatedAt = now

		if err := s.repo.Update(ctx, tx, &next); err != nil {
			return err
		}
		details := map[string]any{}
		if next.TerminationReason != nil {
			details["reason"] = *next.TerminationReason
		}
		if err := s.auditSvc.RecordTx(ctx, tx, auditdomain.Entry{
			ResidenceID: next.ResidenceID,
			ContractID:  &next.ID,
			Action:      auditdomain.ActionContractTerminated,
			ActorID:     actorID,
			Details:     details,
		}); err != nil {
			return err
		}
		result = contractdomain.TerminateResult{Contract: next}
		return nil
	})
	if err != nil {
		return contractdomain.TerminateResult{}, err
	}

	if result.AlreadyTerminated {
		s.log.Info("contract already terminated", zap.String("contract_id", id.String()))
	} else {
		s.log.Info("contract terminated", zap.String("contract_id", id.String()))
	}
	return result, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*contractdomain.Contract, error) {
	contract, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if contract == nil {
		return nil, contractdomain.ErrNotFound
	}
	return contract, nil
}

func (s *Service) GetActiveByStudent(ctx context.Context, studentID snowflake.ID) (*contractdomain.Contract, error) {
	if studentID == 0 {
		return nil, contractdomain.ErrInvalidStudent
	}
	return s.repo.FindActiveByStudent(ctx, s.db, studentID)
}

func (s *Service) GetActiveByRoom(ctx context.Context, residenceID snowflake.ID, roomNumber string) (*contractdomain.Contract, error) {
	if residenceID == 0 {
		return nil, contractdomain.ErrInvalidResidence
	}
	roomNumber = strings.TrimSpace(roomNumber)
	if roomNumber == "" {
		return nil, contractdomain.ErrInvalidRoomNumber
	}
	return s.repo.FindActiveByRoom(ctx, s.db, residenceID, roomNumber)
}

func (s *Service) List(ctx context.Context, req contractdomain.ListRequest) (contractdomain.ListResponse, error) {
	if req.ResidenceID == 0 {
		return contractdomain.ListResponse{}, contractdomain.ErrInvalidResidence
	}
	switch req.Status {
	case "", contractdomain.ContractStatusActive, contractdomain.ContractStatusTerminated:
	default:
		return contractdomain.ListResponse{}, contractdomain.ErrInvalidStatus
	}
	cursor, err := pagination.DecodePosition(req.PageToken)
	if err != nil {
		return contractdomain.ListResponse{}, contractdomain.ErrInvalidPageToken
	}

	limit := req.Limit()
	items, err := s.repo.List(ctx, s.db, contractdomain.ListFilter{
		ResidenceID: req.ResidenceID,
		Status:      req.Status,
		Cursor:      cursor,
		Limit:       limit,
	})
	if err != nil {
		return contractdomain.ListResponse{}, err
	}

	items, pageInfo := pagination.Page(items, limit, func(item *contractdomain.Contract) (snowflake.ID, time.Time) {
		return item.ID, item.CreatedAt
	})
	now := s.clock.Now()
	contracts := make([]contractdomain.ContractWithStatus, 0, len(items))
	for _, item := range items {
		contracts = append(contracts, contractdomain.Enrich(*item, now))
	}
	return contractdomain.ListResponse{PageInfo: pageInfo, Contracts: contracts}, nil
}

func (s *Service) Enrich(contract contractdomain.Contract) contractdomain.ContractWithStatus {
	return contractdomain.Enrich(contract, s.clock.Now())
}

func applyUpdate(c contractdomain.Contract, req contractdomain.UpdateRequest) (contractdomain.Contract, []string) {
	var changed []string
	if req.StudentName != nil && strings.TrimSpace(*req.StudentName) != c.StudentName {
		c.StudentName = strings.TrimSpace(*req.StudentName)
		changed = append(changed, "student_name")
	}
	if req.StudentEmail != nil && strings.TrimSpace(*req.StudentEmail) != c.StudentEmail {
		c.StudentEmail = strings.TrimSpace(*req.StudentEmail)
		changed = append(changed, "student_email")
	}
	if req.RoomNumber != nil && strings.TrimSpace(*req.RoomNumber) != c.RoomNumber {
		c.RoomNumber = strings.TrimSpace(*req.RoomNumber)
		changed = append(changed, "room_number")
	}
	if req.RoomTypeID != nil && (c.RoomTypeID == nil || *c.RoomTypeID != *req.RoomTypeID) {
		id := *req.RoomTypeID
		c.RoomTypeID = &id
		changed = append(changed, "room_type_id")
	}
	if req.StartDate != nil && !req.StartDate.Equal(c.StartDate) {
		c.StartDate = req.StartDate.UTC()
		changed = append(changed, "start_date")
	}
	if req.EndDate != nil && !req.EndDate.Equal(c.EndDate) {
		c.EndDate = req.EndDate.UTC()
		changed = append(changed, "end_date")
	}
	if req.MonthlyValue != nil && *req.MonthlyValue != c.MonthlyValue {
		c.MonthlyValue = *req.MonthlyValue
		changed = append(changed, "monthly_value")
	}
	if req.MonthlyKwhLimit != nil && *req.MonthlyKwhLimit != c.MonthlyKwhLimit {
		c.MonthlyKwhLimit = *req.MonthlyKwhLimit
		changed = append(changed, "monthly_kwh_limit")
	}
	return c, changed
}

func validateContract(c *contractdomain.Contract) error {
	switch {
	case c.StudentID == 0:
		return contractdomain.ErrInvalidStudent
	case c.StudentName == "":
		return contractdomain.ErrInvalidStudentName
	case !validEmail(c.StudentEmail):
		return contractdomain.ErrInvalidStudentEmail
	case c.ResidenceID == 0:
		return contractdomain.ErrInvalidResidence
	case c.RoomNumber == "":
		return contractdomain.ErrInvalidRoomNumber
	case c.StartDate.IsZero() || c.EndDate.IsZero() || !c.EndDate.After(c.StartDate):
		return contractdomain.ErrInvalidPeriod
	case !validAmount(c.MonthlyValue):
		return contractdomain.ErrInvalidMonthlyValue
	case !validAmount(c.MonthlyKwhLimit):
		return contractdomain.ErrInvalidKwhLimit
	}
	return nil
}

func validEmail(value string) bool {
	if value == "" {
		return false
	}
	addr, err := mail.ParseAddress(value)
	return err == nil && addr.Address == value
}

func validAmount(v float64) bool {
	return v >= 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}
