package mapper

import (
	"encoding/json"
	"strconv"

	"studio/internal/api/models"

	"gorm.io/datatypes"
)

// AssetMapper converts between stored assets and their wire envelope.
type AssetMapper interface {
	ToEnvelope(asset models.Asset) models.AssetEnvelope
	ToEnvelopes(assets []models.Asset) []models.AssetEnvelope
	FromEnvelope(env models.AssetEnvelope) (models.Asset, error)
}

type AssetMapperImpl struct{}

func NewAssetMapper() AssetMapper {
	return &AssetMapperImpl{}
}

func (m *AssetMapperImpl) ToEnvelope(asset models.Asset) models.AssetEnvelope {
	tags := []string{}
	if len(asset.Tags) > 0 {
		_ = json.Unmarshal(asset.Tags, &tags)
	}
	data := json.RawMessage(asset.Data)
	if len(data) == 0 {
		data = json.RawMessage("{}")
	}
	return models.AssetEnvelope{
		ID:          models.AssetID(strconv.FormatUint(uint64(asset.ID), 10)),
		Type:        asset.Type,
		Name:        asset.Name,
		Description: asset.Description,
		Tags:        tags,
		Data:        data,
		Version:     asset.Version,
	}
}

func (m *AssetMapperImpl) ToEnvelopes(assets []models.Asset) []models.AssetEnvelope {
	out := make([]models.AssetEnvelope, len(assets))
	for i, a := range assets {
		out[i] = m.ToEnvelope(a)
	}
	return out
}

// FromEnvelope builds a new, unsaved asset row.
func (m *AssetMapperImpl) FromEnvelope(env models.AssetEnvelope) (models.Asset, error) {
	tags := env.Tags
	if tags == nil {
		tags = []string{}
	}
	rawTags, err := json.Marshal(tags)
	if err != nil {
		return models.Asset{}, err
	}
	data := env.Data
	if len(data) == 0 {
		data = json.RawMessage("{}")
	}
	return models.Asset{
		Type:        env.Type,
		Name:        env.Name,
		Description: env.Description,
		Tags:        datatypes.JSON(rawTags),
		Data:        datatypes.JSON(data),
		Version:     1,
	}, nil
}
