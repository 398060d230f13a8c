package models

import "time"

// NodeParameterStat counts how often a field of a node type was bound as a parameter.
type NodeParameterStat struct {
	ID        uint   `gorm:"primaryKey"`
	ClassType string `gorm:"size:200;not null;uniqueIndex:idx_class_field"`
	Field     string `gorm:"size:100;not null;uniqueIndex:idx_class_field"`
	Count     int    `gorm:"not null;default:0"`
	UpdatedAt time.Time
}
