package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/residence/internal/consumption/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, record *domain.ConsumptionRecord) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO consumption_records (
			id, residence_id, room_number, billing_month, billing_year, billing_period_key,
			consumption_kwh, contract_id, student_id, student_name, student_email,
			contract_monthly_limit, exceeds_limit, excess_kwh, notification_sent,
			notification_sent_at, created_by, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.ResidenceID,
		record.RoomNumber,
		record.BillingMonth,
		record.BillingYear,
		record.BillingPeriodKey,
		record.ConsumptionKwh,
		record.ContractID,
		record.StudentID,
		record.StudentName,
		record.StudentEmail,
		record.ContractMonthlyLimit,
		record.ExceedsLimit,
		record.ExcessKwh,
		record.NotificationSent,
		record.NotificationSentAt,
		record.CreatedBy,
		record.CreatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.ConsumptionRecord, error) {
	var record domain.ConsumptionRecord
	err := db.WithContext(ctx).Where("id = ?", id).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]*domain.ConsumptionRecord, error) {
	var records []*domain.ConsumptionRecord
	stmt := db.WithContext(ctx).Model(&domain.ConsumptionRecord{}).
		Where("residence_id = ?", filter.ResidenceID)
	if filter.BillingPeriodKey != "" {
		stmt = stmt.Where("billing_period_key = ?", filter.BillingPeriodKey)
	}
	if filter.ExceedsOnly {
		stmt = stmt.Where("exceeds_limit = ?", true)
	}
	if filter.Cursor != nil {
		stmt = stmt.Where("((created_at < ?) OR (created_at = ? AND id < ?))",
			filter.Cursor.CreatedAt,
			filter.Cursor.CreatedAt,
			filter.Cursor.ID,
		)
	}
	stmt = stmt.Order("created_at desc, id desc")
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit + 1)
	}
	if err := stmt.Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (r *repo) MarkNotified(ctx context.Context, db *gorm.DB, id snowflake.ID, sentAt time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE consumption_records
		 SET notification_sent = ?, notification_sent_at = ?
		 WHERE id = ? AND notification_sent = ?`,
		true, sentAt, id, false,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
