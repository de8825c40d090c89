package store

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"production-ops-backend/internal/model"
	"production-ops-backend/internal/parse"
	"production-ops-backend/internal/sequencer"
)

// Store defines the interface for all database operations.
type Store interface {
	sequencer.SnapshotLoader
	sequencer.Committer

	UpsertCandidates(ctx context.Context, now time.Time, items []ErpItem) error
	PendingCandidates(ctx context.Context) ([]sequencer.Order, error)
	DB() *gorm.DB
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

// DB exposes the underlying connection for handlers that work on plain records.
func (s *gormStore) DB() *gorm.DB {
	return s.db
}

// LoadSnapshot reads the active lines and the number of pending or in-progress
// orders currently sitting on each of them.
func (s *gormStore) LoadSnapshot(ctx context.Context) (sequencer.Snapshot, error) {
	var lines []model.ProductionLine
	if err := s.db.WithContext(ctx).
		Where("status = ?", model.LineStatusActive).
		Order("name").Order("id").
		Find(&lines).Error; err != nil {
		return sequencer.Snapshot{}, fmt.Errorf("failed to fetch active lines: %w", err)
	}

	loads, err := s.fetchLineLoads(ctx)
	if err != nil {
		return sequencer.Snapshot{}, fmt.Errorf("failed to aggregate line loads: %w", err)
	}

	snap := sequencer.Snapshot{
		Lines:   make([]sequencer.Line, 0, len(lines)),
		TakenAt: time.Now().UTC(),
	}
	for _, l := range lines {
		snap.Lines = append(snap.Lines, sequencer.Line{
			ID:          l.ID,
			Name:        l.Name,
			Capacity:    l.Capacity,
			CurrentLoad: loads[l.ID], // 不存在时为 0
		})
	}
	return snap, nil
}

func (s *gormStore) fetchLineLoads(ctx context.Context) (map[string]int, error) {
	type loadRow struct {
		LineID string
		Orders int
	}
	var rows []loadRow
	if err := s.db.WithContext(ctx).
		Model(&model.FabricationOrder{}).
		Select("line_id, COUNT(*) as orders").
		Where("status IN ? AND line_id IS NOT NULL", model.ActiveOrderStatuses).
		Group("line_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	loads := make(map[string]int, len(rows))
	for _, r := range rows {
		loads[r.LineID] = r.Orders
	}
	return loads, nil
}

// CreateOrder persists one fabrication order for a placement.
func (s *gormStore) CreateOrder(ctx context.Context, rec sequencer.OrderRecord) error {
	lineID := rec.LineID
	order := model.FabricationOrder{
		ID:       uuid.NewString(),
		Customer: rec.Customer,
		Priority: rec.Priority,
		LineID:   &lineID,
		Status:   rec.Status,
		SapID:    rec.SapID,
	}
	if err := s.db.WithContext(ctx).Create(&order).Error; err != nil {
		return fmt.Errorf("failed to create fabrication order on line %s: %w", rec.LineID, err)
	}
	return nil
}

// UpsertCandidates stores ERP orders keyed by SAP id. Re-imported orders keep
// their original import time so the pending queue order is stable.
func (s *gormStore) UpsertCandidates(ctx context.Context, now time.Time, items []ErpItem) error {
	candidates := make([]model.CandidateOrder, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		if item.SapID == "" {
			log.Printf("Skipping ERP item without sap_id (customer %q)", item.Customer)
			continue
		}
		if _, dup := seen[item.SapID]; dup {
			continue
		}
		seen[item.SapID] = struct{}{}
		candidates = append(candidates, prepareCandidate(item, now))
	}

	if len(candidates) == 0 {
		return nil
	}

	log.Printf("Batch upserting %d candidate orders...", len(candidates))
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "sap_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"customer", "priority", "estimated_hours", "required_capacity", "materials_available", "updated_at"}),
	}).Create(&candidates).Error
}

func prepareCandidate(item ErpItem, now time.Time) model.CandidateOrder {
	required := item.RequiredCapacity
	if required <= 0 {
		required = 1
	}
	return model.CandidateOrder{
		SapID:              item.SapID,
		Customer:           item.Customer,
		Priority:           parse.Priority(item.Priority),
		EstimatedHours:     item.DurationHours,
		RequiredCapacity:   required,
		MaterialsAvailable: item.MaterialsAvailable,
		ImportedAt:         now,
		UpdatedAt:          now,
	}
}

// PendingCandidates returns imported orders that no fabrication order refers to yet,
// oldest import first.
func (s *gormStore) PendingCandidates(ctx context.Context) ([]sequencer.Order, error) {
	committed := s.db.Model(&model.FabricationOrder{}).Select("sap_id").Where("sap_id <> ''")

	var rows []model.CandidateOrder
	if err := s.db.WithContext(ctx).
		Where("sap_id NOT IN (?)", committed).
		Order("imported_at").Order("sap_id").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch pending candidates: %w", err)
	}

	orders := make([]sequencer.Order, 0, len(rows))
	for _, r := range rows {
		orders = append(orders, sequencer.Order{
			ID:                 r.SapID,
			Customer:           r.Customer,
			Priority:           r.Priority,
			EstimatedHours:     r.EstimatedHours,
			RequiredCapacity:   r.RequiredCapacity,
			MaterialsAvailable: r.MaterialsAvailable,
			SapID:              r.SapID,
		})
	}
	return orders, nil
}
