package client

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"studio/internal/api/models"
)

// AssetClient talks to a remote asset store exposing /assets.
type AssetClient struct {
	api jsonClient
}

// NewAssetClient expects baseURL to include the API prefix, e.g. http://host:8000/api.
func NewAssetClient(baseURL string, timeout time.Duration) *AssetClient {
	return &AssetClient{api: newJSONClient(baseURL, timeout)}
}

func (slf *AssetClient) Get(ctx context.Context, id models.AssetID) (models.AssetEnvelope, error) {
	var asset models.AssetEnvelope
	err := slf.api.do(ctx, http.MethodGet, "/assets/"+url.PathEscape(string(id)), nil, &asset)
	return asset, err
}

func (slf *AssetClient) Create(ctx context.Context, asset models.AssetEnvelope) (models.AssetEnvelope, error) {
	var created models.AssetEnvelope
	err := slf.api.do(ctx, http.MethodPost, "/assets/", asset, &created)
	return created, err
}

// Update stores a new version of the asset and returns it. The returned id is
// the id of the new version.
func (slf *AssetClient) Update(ctx context.Context, id models.AssetID, asset models.AssetEnvelope) (models.AssetEnvelope, error) {
	var updated models.AssetEnvelope
	err := slf.api.do(ctx, http.MethodPut, "/assets/"+url.PathEscape(string(id)), asset, &updated)
	return updated, err
}
