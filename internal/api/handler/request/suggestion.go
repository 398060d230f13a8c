package request

import "studio/internal/api/models"

type ReportUsage struct {
	Items []models.UsageItem `json:"items" validate:"dive"`
}

type Recommend struct {
	ClassType string `form:"class_type" validate:"required"`
	Limit     int    `form:"limit" validate:"gte=0,lte=100"`
}
