package model

import "time"

type MarkingCycle struct {
	ID              uint64    `gorm:"column:id;primaryKey;autoIncrement"`
	Year            int       `gorm:"column:year;not null;index"`
	Status          string    `gorm:"column:status;type:varchar(16);not null;default:OPEN"`
	TotalRequired   int       `gorm:"column:total_required;not null"`
	ExperienceRatio float64   `gorm:"column:experience_ratio;not null"`
	CreatedAt       time.Time `gorm:"column:created_at;not null"`
	UpdatedAt       time.Time `gorm:"column:updated_at;not null"`
}

func (MarkingCycle) TableName() string {
	return "marking_cycles"
}
