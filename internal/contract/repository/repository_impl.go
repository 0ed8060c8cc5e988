package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/residence/internal/contract/domain"
	pkgdb "github.com/smallbiznis/residence/pkg/db"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, contract *domain.Contract) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO contracts (
			id, student_id, student_name, student_email, residence_id, residence_name,
			room_number, room_type_id, start_date, end_date, monthly_value, monthly_kwh_limit,
			status, terminated_at, termination_reason, created_by, updated_by, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		contract.ID,
		contract.StudentID,
		contract.StudentName,
		contract.StudentEmail,
		contract.ResidenceID,
		contract.ResidenceName,
		contract.RoomNumber,
		contract.RoomTypeID,
		contract.StartDate,
		contract.EndDate,
		contract.MonthlyValue,
		contract.MonthlyKwhLimit,
		contract.Status,
		contract.TerminatedAt,
		contract.TerminationReason,
		contract.CreatedBy,
		contract.UpdatedBy,
		contract.CreatedAt,
		contract.UpdatedAt,
	).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, contract *domain.Contract) error {
	return db.WithContext(ctx).Exec(
		`UPDATE contracts SET
			student_name = ?, student_email = ?, room_number = ?, room_type_id = ?,
			start_date = ?, end_date = ?, monthly_value = ?, monthly_kwh_limit = ?,
			status = ?, terminated_at = ?, termination_reason = ?, updated_by = ?, updated_at = ?
		 WHERE id = ?`,
		contract.StudentName,
		contract.StudentEmail,
		contract.RoomNumber,
		contract.RoomTypeID,
		contract.StartDate,
		contract.EndDate,
		contract.MonthlyValue,
		contract.MonthlyKwhLimit,
		contract.Status,
		contract.TerminatedAt,
		contract.TerminationReason,
		contract.UpdatedBy,
		contract.UpdatedAt,
		contract.ID,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Contract, error) {
	return first(db.WithContext(ctx).Where("id = ?", id))
}

func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Contract, error) {
	return first(pkgdb.ForUpdate(db.WithContext(ctx)).Where("id = ?", id))
}

func (r *repo) FindActiveByStudent(ctx context.Context, db *gorm.DB, studentID snowflake.ID) (*domain.Contract, error) {
	return first(db.WithContext(ctx).
		Where("student_id = ? AND status = ?", studentID, domain.ContractStatusActive).
		Order("start_date desc, id desc"))
}

func (r *repo) FindActiveByRoom(ctx context.Context, db *gorm.DB, residenceID snowflake.ID, roomNumber string) (*domain.Contract, error) {
	return first(db.WithContext(ctx).
		Where("residence_id = ? AND room_number = ? AND status = ?", residenceID, roomNumber, domain.ContractStatusActive).
		Order("start_date desc, id desc"))
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]*domain.Contract, error) {
	var contracts []*domain.Contract
	stmt := db.WithContext(ctx).Model(&domain.Contract{}).
		Where("residence_id = ?", filter.ResidenceID)
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
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
	if err := stmt.Find(&contracts).Error; err != nil {
		return nil, err
	}
	return contracts, nil
}

func first(stmt *gorm.DB) (*domain.Contract, error) {
	var contract domain.Contract
	if err := stmt.First(&contract).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &contract, nil
}
