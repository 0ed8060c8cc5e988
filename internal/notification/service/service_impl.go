package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	auditdomain "github.com/smallbiznis/residence/internal/audit/domain"
	"github.com/smallbiznis/residence/internal/clock"
	"github.com/smallbiznis/residence/internal/config"
	consumptiondomain "github.com/smallbiznis/residence/internal/consumption/domain"
	"github.com/smallbiznis/residence/internal/locker"
	notificationdomain "github.com/smallbiznis/residence/internal/notification/domain"
	obsmetrics "github.com/smallbiznis/residence/internal/observability/metrics"
	"github.com/smallbiznis/residence/internal/providers/email"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// sendLockTTL bounds the Sending state if the process dies mid-send.
const sendLockTTL = 2 * time.Minute

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Clock    clock.Clock
	Repo     consumptiondomain.Repository
	AuditSvc auditdomain.Service
	Locker   locker.Locker
	Email    email.Provider
	Config   *config.NotificationConfigHolder
	Metrics  *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	clock    clock.Clock
	repo     consumptiondomain.Repository
	auditSvc auditdomain.Service
	locker   locker.Locker
	email    email.Provider
	config   *config.NotificationConfigHolder
	metrics  *obsmetrics.Metrics
}

func NewService(p Params) notificationdomain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("notification.service"),
		clock:    p.Clock,
		repo:     p.Repo,
		auditSvc: p.AuditSvc,
		locker:   p.Locker,
		email:    p.Email,
		config:   p.Config,
		metrics:  p.Metrics,
	}
}

func (s *Service) Send(ctx context.Context, req notificationdomain.SendRequest) (notificationdomain.SendResult, error) {
	if req.RecordID == 0 {
		return notificationdomain.SendResult{}, notificationdomain.ErrInvalidRecord
	}
	actorID := strings.TrimSpace(req.ActorID)
	if actorID == "" {
		return notificationdomain.SendResult{}, notificationdomain.ErrInvalidActor
	}
	if req.PreviousAttempts < 0 {
		return notificationdomain.SendResult{}, notificationdomain.ErrInvalidAttempts
	}

	correlationID := ulid.Make().String()
	log := s.log.With(
		zap.String("record_id", req.RecordID.String()),
		zap.String("correlation_id", correlationID),
	)

	record, err := s.load(ctx, req.RecordID)
	if err != nil {
		return notificationdomain.SendResult{}, err
	}
	if record.NotificationSent {
		return s.alreadySent(ctx, record, req, correlationID), nil
	}
	if contactOf(record) == nil {
		return notificationdomain.SendResult{}, notificationdomain.ErrMissingContact
	}

	key := notificationdomain.LockKey(record.ID)
	token, ok, err := s.locker.TryLock(ctx, key, sendLockTTL)
	if err != nil {
		return notificationdomain.SendResult{}, err
	}
	if !ok {
		return notificationdomain.SendResult{}, notificationdomain.ErrSendInProgress
	}
	defer func() {
		if err := s.locker.Release(context.WithoutCancel(ctx), key, token); err != nil {
			log.Warn("release send lock", zap.Error(err))
		}
	}()

	// A concurrent sender may have finished between the first read and the lock.
	record, err = s.load(ctx, req.RecordID)
	if err != nil {
		return notificationdomain.SendResult{}, err
	}
	if record.NotificationSent {
		return s.alreadySent(ctx, record, req, correlationID), nil
	}
	contact := contactOf(record)
	if contact == nil {
		return notificationdomain.SendResult{}, notificationdomain.ErrMissingContact
	}

	cfg := s.config.Get()
	result := s.email.SendTemplate(ctx,
		[]string{contact.email},
		cfg.SubjectFor(record.BillingPeriodKey, record.ExceedsLimit),
		cfg.TemplateName,
		email.ConsumptionNotice{
			BrandName:      cfg.BrandName,
			StudentName:    contact.name,
			RoomNumber:     record.RoomNumber,
			Period:         record.BillingPeriodKey,
			ConsumptionKwh: record.ConsumptionKwh,
			LimitKwh:       record.ContractMonthlyLimit,
			ExcessKwh:      record.ExcessKwh,
			ExceedsLimit:   record.ExceedsLimit,
			SupportEmail:   cfg.SupportEmail,
			PortalURL:      cfg.PortalURL,
		},
	)
	retryCount := req.PreviousAttempts + 1
	if !result.Success {
		s.metrics.RecordNotification(ctx, string(notificationdomain.StateFailed))
		log.Warn("consumption notification failed",
			zap.Int("retry_count", retryCount),
			zap.String("reason", result.Error),
		)
		return notificationdomain.SendResult{
			State:         notificationdomain.StateFailed,
			Record:        *record,
			RetryCount:    retryCount,
			Error:         result.Error,
			CorrelationID: correlationID,
		}, nil
	}

	var marked bool
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		marked, err = s.repo.MarkNotified(ctx, tx, record.ID, s.clock.Now())
		if err != nil {
			return err
		}
		if marked {
			if err := s.auditSvc.RecordTx(ctx, tx, auditdomain.Entry{
				ResidenceID:         record.ResidenceID,
				ContractID:          record.ContractID,
				ConsumptionRecordID: &record.ID,
				Action:              auditdomain.ActionConsumptionNotificationSent,
				ActorID:             actorID,
				Details: map[string]any{
					"correlation_id":     correlationID,
					"attempt":            retryCount,
					"recipient_email":    contact.email,
					"billing_period_key": record.BillingPeriodKey,
				},
			}); err != nil {
				return err
			}
		}
		updated, err := s.repo.FindByID(ctx, tx, record.ID)
		if err != nil {
			return err
		}
		if updated != nil {
			record = updated
		}
		return nil
	})
	if err != nil {
		log.Error("email delivered but record not marked", zap.Error(err))
		return notificationdomain.SendResult{}, err
	}

	s.metrics.RecordNotification(ctx, string(notificationdomain.StateSent))
	log.Info("consumption notification sent", zap.Int("attempt", retryCount))
	return notificationdomain.SendResult{
		State:         notificationdomain.StateSent,
		Record:        *record,
		AlreadySent:   !marked,
		RetryCount:    retryCount,
		CorrelationID: correlationID,
	}, nil
}

func (s *Service) load(ctx context.Context, id snowflake.ID) (*consumptiondomain.ConsumptionRecord, error) {
	record, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, notificationdomain.ErrNotFound
	}
	return record, nil
}

func (s *Service) alreadySent(ctx context.Context, record *consumptiondomain.ConsumptionRecord, req notificationdomain.SendRequest, correlationID string) notificationdomain.SendResult {
	s.metrics.RecordNotification(ctx, "already_sent")
	return notificationdomain.SendResult{
		State:         notificationdomain.StateSent,
		Record:        *record,
		AlreadySent:   true,
		RetryCount:    req.PreviousAttempts,
		CorrelationID: correlationID,
	}
}

type contact struct {
	name  string
	email string
}

func contactOf(record *consumptiondomain.ConsumptionRecord) *contact {
	if record.StudentName == nil || record.StudentEmail == nil {
		return nil
	}
	c := contact{
		name:  strings.TrimSpace(*record.StudentName),
		email: strings.TrimSpace(*record.StudentEmail),
	}
	if c.name == "" || c.email == "" {
		return nil
	}
	return &c
}
