package postgres

import (
	"context"

	"furusatoReco/business/ranking"
	"furusatoReco/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type JudgmentModuleRepository struct {
	DB *gorm.DB
}

var _ ranking.ModuleRepository = (*JudgmentModuleRepository)(nil)

func NewJudgmentModuleRepository(db *gorm.DB) *JudgmentModuleRepository {
	return &JudgmentModuleRepository{DB: db}
}

func (r *JudgmentModuleRepository) ListModules(ctx context.Context) ([]domain.JudgmentModule, error) {
	var rows []domain.JudgmentModule
	err := r.DB.WithContext(ctx).
		Order("priority ASC, name ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *JudgmentModuleRepository) UpsertModule(ctx context.Context, m domain.JudgmentModule) error {
	return r.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"enabled", "priority", "weight", "updated_at"}),
		}).
		Create(&m).Error
}
