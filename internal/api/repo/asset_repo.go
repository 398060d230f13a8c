package repo

import (
	"context"

	"studio"
	"studio/internal/api/models"

	"gorm.io/gorm"
)

type AssetRepository struct {
	Db *gorm.DB
}

func NewAssetRepository() *AssetRepository {
	return &AssetRepository{Db: studio.DB}
}

func (slf *AssetRepository) FindByID(ctx context.Context, id uint) (models.Asset, error) {
	var asset models.Asset
	err := slf.Db.WithContext(ctx).First(&asset, id).Error
	return asset, err
}

// FindAll lists assets, newest first. An empty assetType lists every type.
func (slf *AssetRepository) FindAll(ctx context.Context, assetType models.AssetType) ([]models.Asset, error) {
	var assets []models.Asset
	query := slf.Db.WithContext(ctx).Order("id DESC")
	if assetType != "" {
		query = query.Where("type = ?", assetType)
	}
	err := query.Find(&assets).Error
	return assets, err
}

func (slf *AssetRepository) Create(ctx context.Context, asset *models.Asset) error {
	return slf.Db.WithContext(ctx).Create(asset).Error
}

func (slf *AssetRepository) Delete(id uint) error {
	return slf.Db.Delete(&models.Asset{}, id).Error
}
