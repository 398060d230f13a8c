package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"studio/internal/api/models"

	"golang.org/x/time/rate"
)

// StatsClient talks to the remote usage statistics service.
// Lookups are rate limited; reports are not.
type StatsClient struct {
	api     jsonClient
	limiter *rate.Limiter
}

// NewStatsClient allows perSecond lookups per second with an equal burst. A
// value <= 0 disables the limit.
func NewStatsClient(baseURL string, timeout time.Duration, perSecond int) *StatsClient {
	limiter := rate.NewLimiter(rate.Inf, 0)
	if perSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(perSecond), perSecond)
	}
	return &StatsClient{api: newJSONClient(baseURL, timeout), limiter: limiter}
}

func (slf *StatsClient) Recommend(ctx context.Context, classType string, limit int) ([]models.FieldStat, error) {
	if err := slf.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	query := url.Values{}
	query.Set("class_type", classType)
	query.Set("limit", strconv.Itoa(limit))

	stats := []models.FieldStat{}
	if err := slf.api.do(ctx, http.MethodGet, "/suggestions/recommend?"+query.Encode(), nil, &stats); err != nil {
		return nil, err
	}
	return stats, nil
}

type reportBody struct {
	Items []models.UsageItem `json:"items"`
}

func (slf *StatsClient) Report(ctx context.Context, items []models.UsageItem) error {
	return slf.api.do(ctx, http.MethodPost, "/suggestions/report", reportBody{Items: items}, nil)
}
