package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/residence/internal/audit/domain"
	"github.com/smallbiznis/residence/internal/clock"
	consumptiondomain "github.com/smallbiznis/residence/internal/consumption/domain"
	contractdomain "github.com/smallbiznis/residence/internal/contract/domain"
	obsmetrics "github.com/smallbiznis/residence/internal/observability/metrics"
	"github.com/smallbiznis/residence/pkg/db"
	"github.com/smallbiznis/residence/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Repo      consumptiondomain.Repository
	Contracts consumptiondomain.ContractResolver
	AuditSvc  auditdomain.Service
	Metrics   *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	repo      consumptiondomain.Repository
	contracts consumptiondomain.ContractResolver
	auditSvc  auditdomain.Service
	metrics   *obsmetrics.Metrics
}

func NewService(p Params) consumptiondomain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("consumption.service"),
		genID:     p.GenID,
		clock:     p.Clock,
		repo:      p.Repo,
		contracts: p.Contracts,
		auditSvc:  p.AuditSvc,
		metrics:   p.Metrics,
	}
}

// NewContractResolver exposes the contract service to the evaluator.
func NewContractResolver(svc contractdomain.Service) consumptiondomain.ContractResolver {
	return svc
}

func (s *Service) Create(ctx context.Context, req consumptiondomain.CreateRequest) (*consumptiondomain.ConsumptionRecord, error) {
	actorID := strings.TrimSpace(req.ActorID)
	if actorID == "" {
		return nil, consumptiondomain.ErrInvalidActor
	}
	if req.ResidenceID == 0 {
		return nil, consumptiondomain.ErrInvalidResidence
	}
	reading := req.Reading
	reading.RoomNumber = strings.TrimSpace(reading.RoomNumber)
	if reading.RoomNumber == "" {
		return nil, consumptiondomain.ErrInvalidRoomNumber
	}

	// Range checks run before the contract lookup.
	if _, err := consumptiondomain.Evaluate(reading, nil); err != nil {
		return nil, err
	}

	info, err := s.resolveContract(ctx, reading, req.ContractID)
	if err != nil {
		return nil, err
	}
	eval, err := consumptiondomain.Evaluate(reading, info)
	if err != nil {
		return nil, err
	}

	record := &consumptiondomain.ConsumptionRecord{
		ID:                   s.genID.Generate(),
		ResidenceID:          reading.ResidenceID,
		RoomNumber:           reading.RoomNumber,
		BillingMonth:         reading.BillingMonth,
		BillingYear:          reading.BillingYear,
		BillingPeriodKey:     eval.BillingPeriodKey,
		ConsumptionKwh:       eval.ConsumptionKwh,
		ContractMonthlyLimit: eval.ContractMonthlyLimit,
		ExceedsLimit:         eval.ExceedsLimit,
		ExcessKwh:            eval.ExcessKwh,
		CreatedBy:            actorID,
		CreatedAt:            s.clock.Now(),
	}
	if info != nil {
		record.ContractID = &info.ContractID
		record.StudentID = &info.StudentID
		record.StudentName = optional(info.StudentName)
		record.StudentEmail = optional(info.StudentEmail)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, record); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return consumptiondomain.ErrDuplicatePeriod
			}
			return err
		}

		details := map[string]any{
			"room_number":        record.RoomNumber,
			"billing_period_key": record.BillingPeriodKey,
			"consumption_kwh":    record.ConsumptionKwh,
			"exceeds_limit":      record.ExceedsLimit,
		}
		if record.ExcessKwh != nil {
			details["excess_kwh"] = *record.ExcessKwh
		}
		if record.ContractMonthlyLimit != nil {
			details["contract_monthly_limit"] = *record.ContractMonthlyLimit
		}
		return s.auditSvc.RecordTx(ctx, tx, auditdomain.Entry{
			ResidenceID:         record.ResidenceID,
			ContractID:          record.ContractID,
			ConsumptionRecordID: &record.ID,
			Action:              auditdomain.ActionConsumptionRecorded,
			ActorID:             actorID,
			Details:             details,
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordConsumption(ctx, record.ExceedsLimit)
	s.log.Info("consumption recorded",
		zap.String("record_id", record.ID.String()),
		zap.String("residence_id", record.ResidenceID.String()),
		zap.String("billing_period_key", record.BillingPeriodKey),
		zap.Bool("exceeds_limit", record.ExceedsLimit),
	)
	return record, nil
}

func (s *Service) resolveContract(ctx context.Context, reading consumptiondomain.Reading, contractID *snowflake.ID) (*consumptiondomain.ContractInfo, error) {
	var contract *contractdomain.Contract
	if contractID != nil {
		found, err := s.contracts.Get(ctx, *contractID)
		if err != nil {
			if errors.Is(err, contractdomain.ErrNotFound) {
				return nil, consumptiondomain.ErrContractNotFound
			}
			return nil, err
		}
		if found.ResidenceID != reading.ResidenceID {
			return nil, consumptiondomain.ErrContractMismatch
		}
		contract = found
	} else {
		found, err := s.contracts.GetActiveByRoom(ctx, reading.ResidenceID, reading.RoomNumber)
		if err != nil {
			return nil, err
		}
		contract = found
	}
	if contract == nil {
		return nil, nil
	}
	return &consumptiondomain.ContractInfo{
		ContractID:      contract.ID,
		StudentID:       contract.StudentID,
		StudentName:     contract.StudentName,
		StudentEmail:    contract.StudentEmail,
		MonthlyKwhLimit: contract.MonthlyKwhLimit,
	}, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*consumptiondomain.ConsumptionRecord, error) {
	record, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, consumptiondomain.ErrNotFound
	}
	return record, nil
}

func (s *Service) List(ctx context.Context, req consumptiondomain.ListRequest) (consumptiondomain.ListResponse, error) {
	if req.ResidenceID == 0 {
		return consumptiondomain.ListResponse{}, consumptiondomain.ErrInvalidResidence
	}
	periodKey := strings.TrimSpace(req.BillingPeriodKey)
	if periodKey != "" {
		if _, _, err := consumptiondomain.ParsePeriodKey(periodKey); err != nil {
			return consumptiondomain.ListResponse{}, err
		}
	}
	cursor, err := pagination.DecodePosition(req.PageToken)
	if err != nil {
		return consumptiondomain.ListResponse{}, consumptiondomain.ErrInvalidPageToken
	}

	limit := req.Limit()
	items, err := s.repo.List(ctx, s.db, consumptiondomain.ListFilter{
		ResidenceID:      req.ResidenceID,
		BillingPeriodKey: periodKey,
		ExceedsOnly:      req.ExceedsOnly,
		Cursor:           cursor,
		Limit:            limit,
	})
	if err != nil {
		return consumptiondomain.ListResponse{}, err
	}

	items, pageInfo := pagination.Page(items, limit, func(item *consumptiondomain.ConsumptionRecord) (snowflake.ID, time.Time) {
		return item.ID, item.CreatedAt
	})
	records := make([]consumptiondomain.ConsumptionRecord, 0, len(items))
	for _, item := range items {
		records = append(records, *item)
	}
	return consumptiondomain.ListResponse{PageInfo: pageInfo, Records: records}, nil
}

func optional(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}
