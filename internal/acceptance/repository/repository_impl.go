package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/residence/internal/acceptance/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertIfAbsent(ctx context.Context, db *gorm.DB, acceptance *domain.RegulationAcceptance) (bool, error) {
	result := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "student_id"}, {Name: "regulation_id"}},
			DoNothing: true,
		}).
		Create(acceptance)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repo) Find(ctx context.Context, db *gorm.DB, studentID, regulationID snowflake.ID) (*domain.RegulationAcceptance, error) {
	var acceptance domain.RegulationAcceptance
	err := db.WithContext(ctx).Raw(
		`SELECT id, student_id, regulation_id, regulation_version, residence_id,
		 accepted_at, client_ip, user_agent
		 FROM regulation_acceptances
		 WHERE student_id = ? AND regulation_id = ?`,
		studentID,
		regulationID,
	).Scan(&acceptance).Error
	if err != nil {
		return nil, err
	}
	if acceptance.ID == 0 {
		return nil, nil
	}
	return &acceptance, nil
}

func (r *repo) ListByStudent(ctx context.Context, db *gorm.DB, studentID snowflake.ID) ([]domain.RegulationAcceptance, error) {
	var acceptances []domain.RegulationAcceptance
	err := db.WithContext(ctx).Raw(
		`SELECT id, student_id, regulation_id, regulation_version, residence_id,
		 accepted_at, client_ip, user_agent
		 FROM regulation_acceptances
		 WHERE student_id = ?
		 ORDER BY accepted_at DESC, id DESC`,
		studentID,
	).Scan(&acceptances).Error
	if err != nil {
		return nil, err
	}
	return acceptances, nil
}
