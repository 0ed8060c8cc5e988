package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/residence/internal/regulation/domain"
	pkgdb "github.com/smallbiznis/residence/pkg/db"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const selectColumns = `SELECT id, residence_id, version, is_active, file_ref, published_at,
	created_by, created_at, updated_at FROM regulations`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, regulation *domain.Regulation) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO regulations (
			id, residence_id, version, is_active, file_ref, published_at,
			created_by, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		regulation.ID,
		regulation.ResidenceID,
		regulation.Version,
		regulation.IsActive,
		regulation.FileRef,
		regulation.PublishedAt,
		regulation.CreatedBy,
		regulation.CreatedAt,
		regulation.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Regulation, error) {
	var regulation domain.Regulation
	err := db.WithContext(ctx).Raw(selectColumns+` WHERE id = ?`, id).Scan(&regulation).Error
	if err != nil {
		return nil, err
	}
	if regulation.ID == 0 {
		return nil, nil
	}
	return &regulation, nil
}

func (r *repo) FindActive(ctx context.Context, db *gorm.DB, residenceID snowflake.ID) (*domain.Regulation, error) {
	var regulation domain.Regulation
	err := db.WithContext(ctx).Raw(
		selectColumns+` WHERE residence_id = ? AND is_active = ?
		 ORDER BY published_at DESC, id DESC
		 LIMIT 1`,
		residenceID,
		true,
	).Scan(&regulation).Error
	if err != nil {
		return nil, err
	}
	if regulation.ID == 0 {
		return nil, nil
	}
	return &regulation, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]*domain.Regulation, error) {
	var regulations []*domain.Regulation
	stmt := db.WithContext(ctx).Model(&domain.Regulation{}).
		Where("residence_id = ?", filter.ResidenceID)
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
	if err := stmt.Find(&regulations).Error; err != nil {
		return nil, err
	}
	return regulations, nil
}

func (r *repo) LockResidence(ctx context.Context, db *gorm.DB, residenceID snowflake.ID) error {
	var ids []snowflake.ID
	return pkgdb.ForUpdate(db.WithContext(ctx).Model(&domain.Regulation{})).
		Where("residence_id = ?", residenceID).
		Order("id").
		Pluck("id", &ids).Error
}

func (r *repo) ListActiveIDs(ctx context.Context, db *gorm.DB, residenceID, exclude snowflake.ID) ([]snowflake.ID, error) {
	var ids []snowflake.ID
	err := db.WithContext(ctx).Raw(
		`SELECT id FROM regulations WHERE residence_id = ? AND is_active = ? AND id <> ? ORDER BY id`,
		residenceID,
		true,
		exclude,
	).Scan(&ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *repo) DeactivateOthers(ctx context.Context, db *gorm.DB, residenceID, keep snowflake.ID, now time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE regulations SET is_active = ?, updated_at = ?
		 WHERE residence_id = ? AND is_active = ? AND id <> ?`,
		false,
		now,
		residenceID,
		true,
		keep,
	)
	return result.RowsAffected, result.Error
}

func (r *repo) Activate(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE regulations
		 SET is_active = ?, published_at = COALESCE(published_at, ?), updated_at = ?
		 WHERE id = ?`,
		true,
		now,
		now,
		id,
	)
	return result.RowsAffected, result.Error
}

func (r *repo) CountActive(ctx context.Context, db *gorm.DB, residenceID snowflake.ID) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(*) FROM regulations WHERE residence_id = ? AND is_active = ?`,
		residenceID,
		true,
	).Scan(&count).Error
	return count, err
}
