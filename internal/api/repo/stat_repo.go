package repo

import (
	"context"
	"time"

	"studio"
	"studio/internal/api/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type StatRepository struct {
	Db *gorm.DB
}

func NewStatRepository() *StatRepository {
	return &StatRepository{Db: studio.DB}
}

// Increment adds one to the usage count of each item, creating missing rows.
// All items are applied in one transaction.
func (slf *StatRepository) Increment(ctx context.Context, items []models.UsageItem) error {
	return slf.Db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, item := range items {
			row := models.NodeParameterStat{ClassType: item.ClassType, Field: item.Field, Count: 1, UpdatedAt: time.Now()}
			err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "class_type"}, {Name: "field"}},
				DoUpdates: clause.Assignments(map[string]any{
					"count":      gorm.Expr("node_parameter_stat.count + 1"),
					"updated_at": row.UpdatedAt,
				}),
			}).Create(&row).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// TopFields returns the most exposed fields of classType, most frequent first.
func (slf *StatRepository) TopFields(ctx context.Context, classType string, limit int) ([]models.NodeParameterStat, error) {
	var rows []models.NodeParameterStat
	err := slf.Db.WithContext(ctx).
		Where("class_type = ?", classType).
		Order("count DESC").
		Order("field ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (slf *StatRepository) DeleteByClassType(classType string) error {
	return slf.Db.Where("class_type = ?", classType).Delete(&models.NodeParameterStat{}).Error
}
