package model

import "time"

// Line statuses. Only active lines take part in sequencing.
const (
	LineStatusActive      = "active"
	LineStatusInactive    = "inactive"
	LineStatusMaintenance = "maintenance"
)

// ProductionLine represents a line with a finite number of order slots.
type ProductionLine struct {
	ID        string    `gorm:"primaryKey;size:64"`
	Name      string    `gorm:"size:128;not null"`
	Capacity  int       `gorm:"not null;default:0"`
	Status    string    `gorm:"size:32;not null;default:active;index"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`

	// Associations
	Orders []FabricationOrder `gorm:"foreignKey:LineID"`
}
