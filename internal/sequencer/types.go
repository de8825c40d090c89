package sequencer

import (
	"context"
	"time"
)

// Order is a candidate fabrication order awaiting a line.
type Order struct {
	ID                 string  `json:"id"`
	Customer           string  `json:"customer"`
	Priority           int     `json:"priority"`
	EstimatedHours     float64 `json:"estimated_hours"`
	RequiredCapacity   int     `json:"required_capacity"`
	MaterialsAvailable bool    `json:"materials_available"`
	SapID              string  `json:"sap_id,omitempty"`
}

// Line is one active production line as seen by the snapshot.
type Line struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Capacity    int    `json:"capacity"`
	CurrentLoad int    `json:"current_load"`
}

// Snapshot is the read-once view of line capacity used for a single run.
type Snapshot struct {
	Lines   []Line
	TakenAt time.Time
}

// SnapshotLoader supplies the capacity snapshot.
type SnapshotLoader interface {
	LoadSnapshot(ctx context.Context) (Snapshot, error)
}

// OrderRecord is what gets persisted for a committed placement.
type OrderRecord struct {
	Customer string
	Priority int
	LineID   string
	Status   string
	SapID    string
}

// Committer persists a fabrication order for a placement.
type Committer interface {
	CreateOrder(ctx context.Context, rec OrderRecord) error
}

// AssignmentEntry is one scheduled placement.
type AssignmentEntry struct {
	OrderID        string    `json:"order_id"`
	LineID         string    `json:"line_id"`
	Position       int       `json:"position"`
	EstimatedStart time.Time `json:"estimated_start"`
	EstimatedEnd   time.Time `json:"estimated_end"`
}

// ConflictType classifies why an order was not (fully) placed.
type ConflictType string

const (
	ConflictMaterialsUnavailable ConflictType = "MATERIALS_UNAVAILABLE"
	ConflictCapacityExceeded     ConflictType = "CAPACITY_EXCEEDED"
	ConflictNoLineAvailable      ConflictType = "NO_LINE_AVAILABLE"
	ConflictOFCreationFailed     ConflictType = "OF_CREATION_FAILED"
	ConflictInvalidOrder         ConflictType = "INVALID_ORDER"
)

// Severity is advisory metadata for the caller.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// Conflict records a placement problem or a failed commit.
type Conflict struct {
	Type           ConflictType `json:"type"`
	Severity       Severity     `json:"severity"`
	Message        string       `json:"message"`
	AffectedOrders []string     `json:"affected_orders"`
}

// Metrics summarises one run.
type Metrics struct {
	TotalOrders         int       `json:"total_orders"`
	AvgWaitTime         float64   `json:"avg_wait_time"`
	CapacityUtilization float64   `json:"capacity_utilization"`
	EstimatedCompletion time.Time `json:"estimated_completion"`
}

// Result is the outcome of a sequencing run.
type Result struct {
	Sequence  []AssignmentEntry `json:"sequence"`
	Conflicts []Conflict        `json:"conflicts"`
	Metrics   Metrics           `json:"metrics"`
}

// Committed returns the entries whose order record was persisted,
// i.e. entries not named by an OF_CREATION_FAILED conflict.
func (r *Result) Committed() []AssignmentEntry {
	failed := make(map[string]struct{})
	for _, c := range r.Conflicts {
		if c.Type != ConflictOFCreationFailed {
			continue
		}
		for _, id := range c.AffectedOrders {
			failed[id] = struct{}{}
		}
	}
	var out []AssignmentEntry
	for _, e := range r.Sequence {
		if _, ok := failed[e.OrderID]; !ok {
			out = append(out, e)
		}
	}
	return out
}
