package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"studio"
	"studio/internal/api/handler/mapper"
	"studio/internal/api/models"
	"studio/internal/api/repo"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

var ErrInvalidAsset = errors.New("invalid asset")

// AssetService stores versioned assets. Updating an asset never overwrites it:
// a new row is stored with the next version number and a link to its parent.
type AssetService struct {
	logger      zerolog.Logger
	assetRepo   repo.AssetRepository
	assetMapper mapper.AssetMapper
}

func NewAssetService() *AssetService {
	return &AssetService{
		logger:      studio.Logger,
		assetRepo:   *repo.NewAssetRepository(),
		assetMapper: mapper.NewAssetMapper(),
	}
}

func (s *AssetService) Get(ctx context.Context, id models.AssetID) (models.AssetEnvelope, error) {
	asset, err := s.find(ctx, id)
	if err != nil {
		return models.AssetEnvelope{}, err
	}
	return s.assetMapper.ToEnvelope(asset), nil
}

func (s *AssetService) List(ctx context.Context, assetType models.AssetType) ([]models.AssetEnvelope, error) {
	assets, err := s.assetRepo.FindAll(ctx, assetType)
	if err != nil {
		s.logger.Error().Err(err).Str("type", string(assetType)).Msg("Failed to list assets")
		return nil, err
	}
	return s.assetMapper.ToEnvelopes(assets), nil
}

func (s *AssetService) Create(ctx context.Context, env models.AssetEnvelope) (models.AssetEnvelope, error) {
	if err := validateEnvelope(env); err != nil {
		return models.AssetEnvelope{}, err
	}
	asset, err := s.assetMapper.FromEnvelope(env)
	if err != nil {
		return models.AssetEnvelope{}, err
	}
	if err := s.assetRepo.Create(ctx, &asset); err != nil {
		s.logger.Error().Err(err).Str("name", env.Name).Msg("Failed to create asset")
		return models.AssetEnvelope{}, err
	}
	return s.assetMapper.ToEnvelope(asset), nil
}

// Update stores env as the next version of asset id and returns the new version.
func (s *AssetService) Update(ctx context.Context, id models.AssetID, env models.AssetEnvelope) (models.AssetEnvelope, error) {
	parent, err := s.find(ctx, id)
	if err != nil {
		return models.AssetEnvelope{}, err
	}
	if env.Type == "" {
		env.Type = parent.Type
	}
	if strings.TrimSpace(env.Name) == "" {
		env.Name = parent.Name
	}
	if err := validateEnvelope(env); err != nil {
		return models.AssetEnvelope{}, err
	}

	next, err := s.assetMapper.FromEnvelope(env)
	if err != nil {
		return models.AssetEnvelope{}, err
	}
	next.Version = parent.Version + 1
	next.ParentID = &parent.ID
	if err := s.assetRepo.Create(ctx, &next); err != nil {
		s.logger.Error().Err(err).Uint("parent", parent.ID).Msg("Failed to store asset version")
		return models.AssetEnvelope{}, err
	}
	return s.assetMapper.ToEnvelope(next), nil
}

func (s *AssetService) find(ctx context.Context, id models.AssetID) (models.Asset, error) {
	n, err := id.Uint()
	if err != nil {
		return models.Asset{}, fmt.Errorf("asset %s: %w", id, models.ErrNotFound)
	}
	asset, err := s.assetRepo.FindByID(ctx, n)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Asset{}, fmt.Errorf("asset %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		s.logger.Error().Err(err).Uint("id", n).Msg("Failed to load asset")
		return models.Asset{}, err
	}
	return asset, nil
}

func validateEnvelope(env models.AssetEnvelope) error {
	if strings.TrimSpace(env.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidAsset)
	}
	switch env.Type {
	case models.AssetTypeWorkflow:
		data, err := env.WorkflowData()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidAsset, err)
		}
		if err := data.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidAsset, err)
		}
	case models.AssetTypePrompt, models.AssetTypeImage, models.AssetTypeVideo, models.AssetTypeCharacter:
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidAsset, env.Type)
	}
	return nil
}
