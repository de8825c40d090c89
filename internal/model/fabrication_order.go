package model

import "time"

// Fabrication order statuses. Pending and in-progress orders occupy a line slot.
const (
	OrderStatusPending    = "pending"
	OrderStatusInProgress = "in_progress"
	OrderStatusCompleted  = "completed"
	OrderStatusCancelled  = "cancelled"
)

// ActiveOrderStatuses are the statuses counted as current line load.
var ActiveOrderStatuses = []string{OrderStatusPending, OrderStatusInProgress}

// FabricationOrder is a committed production order (OF).
type FabricationOrder struct {
	ID        string  `gorm:"primaryKey;size:64"`
	Customer  string  `gorm:"size:256;not null"`
	Priority  int     `gorm:"not null"`
	LineID    *string `gorm:"size:64;index"`
	Status    string  `gorm:"size:32;not null;index"`
	SapID     string  `gorm:"size:64;index"`
	CreatedAt time.Time
	UpdatedAt time.Time

	// Associations
	Line *ProductionLine `gorm:"constraint:OnDelete:SET NULL"`
}
