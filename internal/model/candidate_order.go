package model

import "time"

// CandidateOrder is an order imported from the ERP feed that has not been
// committed as a fabrication order yet. SapID deduplicates re-imports.
type CandidateOrder struct {
	SapID              string    `gorm:"primaryKey;size:64"`
	Customer           string    `gorm:"size:256;not null"`
	Priority           int       `gorm:"not null"`
	EstimatedHours     float64   `gorm:"not null"`
	RequiredCapacity   int       `gorm:"not null"`
	MaterialsAvailable bool      `gorm:"not null"`
	ImportedAt         time.Time `gorm:"not null;index"`
	UpdatedAt          time.Time `gorm:"not null"`
}
