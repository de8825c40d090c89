package sequencer

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"slices"
	"time"
)

// StatusPending is the status given to committed fabrication orders.
const StatusPending = "pending"

// maxSlotHours is the largest offset from now, in hours, a time.Duration can hold.
const maxSlotHours = float64(math.MaxInt64) / float64(time.Hour)

// Sequencer assigns candidate orders to production lines.
type Sequencer struct {
	loader    SnapshotLoader
	committer Committer
	now       func() time.Time
}

// Option configures a Sequencer.
type Option func(*Sequencer)

// WithClock overrides the time source used for "now".
func WithClock(now func() time.Time) Option {
	return func(s *Sequencer) {
		s.now = now
	}
}

// New creates a Sequencer. The committer may be nil when runs never auto-commit.
func New(loader SnapshotLoader, committer Committer, opts ...Option) *Sequencer {
	s := &Sequencer{
		loader:    loader,
		committer: committer,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run reads the capacity snapshot once and sequences the candidates against it.
// The only error it returns is a snapshot failure.
func (s *Sequencer) Run(ctx context.Context, candidates []Order, autoCommit bool) (*Result, error) {
	snap, err := s.loader.LoadSnapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load capacity snapshot: %w", err)
	}
	return s.Sequence(ctx, candidates, snap.Lines, autoCommit), nil
}

// Sequence places the candidates on the given lines and, when autoCommit is set,
// persists every placement through the committer one at a time.
func (s *Sequencer) Sequence(ctx context.Context, candidates []Order, lines []Line, autoCommit bool) *Result {
	now := s.now()

	p := place(now, candidates, lines)
	if autoCommit {
		p.conflicts = append(p.conflicts, s.commit(ctx, p)...)
	}

	return &Result{
		Sequence:  p.sequence,
		Conflicts: p.conflicts,
		Metrics:   computeMetrics(now, len(candidates), p.sequence, lines, p.load),
	}
}

// placement is the outcome of the greedy pass. orders[i] is the order placed by sequence[i];
// load is the tracked load per line, indexed like the snapshot lines.
type placement struct {
	sequence  []AssignmentEntry
	orders    []Order
	conflicts []Conflict
	load      []int
}

// place is the greedy single pass over candidates in priority order.
func place(now time.Time, candidates []Order, lines []Line) placement {
	ordered := slices.Clone(candidates)
	slices.SortStableFunc(ordered, func(a, b Order) int {
		return cmp.Compare(b.Priority, a.Priority)
	})

	load := make([]int, len(lines))
	for i, l := range lines {
		load[i] = l.CurrentLoad
	}

	sequence := []AssignmentEntry{}
	var placed []Order
	conflicts := []Conflict{}
	seen := make(map[string]struct{}, len(ordered))

	for _, o := range ordered {
		c, ok := checkOrder(o, seen)
		if o.ID != "" {
			seen[o.ID] = struct{}{}
		}
		if !ok {
			conflicts = append(conflicts, c)
			continue
		}

		if !o.MaterialsAvailable {
			conflicts = append(conflicts, Conflict{
				Type:           ConflictMaterialsUnavailable,
				Severity:       SeverityCritical,
				Message:        fmt.Sprintf("Materials not available for order %s (%s)", o.ID, o.Customer),
				AffectedOrders: []string{o.ID},
			})
			continue
		}

		best := -1
		for i, l := range lines {
			if load[i] >= l.Capacity {
				conflicts = append(conflicts, Conflict{
					Type:           ConflictCapacityExceeded,
					Severity:       SeverityWarning,
					Message:        fmt.Sprintf("Line %s is at full capacity (%d/%d)", lineLabel(l), load[i], l.Capacity),
					AffectedOrders: []string{o.ID},
				})
				continue
			}
			if best == -1 || load[i] < load[best] {
				best = i
			}
		}

		if best == -1 {
			conflicts = append(conflicts, Conflict{
				Type:           ConflictNoLineAvailable,
				Severity:       SeverityCritical,
				Message:        fmt.Sprintf("No production line available for order %s (%s)", o.ID, o.Customer),
				AffectedOrders: []string{o.ID},
			})
			continue
		}

		// Every slot ahead on the line is assumed to take as long as this order.
		ahead := load[best]
		if span := float64(ahead+1) * math.Abs(o.EstimatedHours); !(span < maxSlotHours) {
			conflicts = append(conflicts, Conflict{
				Type:           ConflictInvalidOrder,
				Severity:       SeverityCritical,
				Message:        fmt.Sprintf("Order %s has an estimated duration of %g hours, too long to schedule on line %s", o.ID, o.EstimatedHours, lineLabel(lines[best])),
				AffectedOrders: []string{o.ID},
			})
			continue
		}
		start := now.Add(hoursToDuration(float64(ahead) * o.EstimatedHours))
		sequence = append(sequence, AssignmentEntry{
			OrderID:        o.ID,
			LineID:         lines[best].ID,
			Position:       ahead + 1,
			EstimatedStart: start,
			EstimatedEnd:   start.Add(hoursToDuration(o.EstimatedHours)),
		})
		placed = append(placed, o)
		load[best]++
	}

	return placement{sequence: sequence, orders: placed, conflicts: conflicts, load: load}
}

// checkOrder rejects orders that cannot be identified or labelled.
func checkOrder(o Order, seen map[string]struct{}) (Conflict, bool) {
	var msg string
	switch {
	case o.ID == "":
		msg = fmt.Sprintf("Order for customer %q has no id", o.Customer)
	case o.Customer == "":
		msg = fmt.Sprintf("Order %s has no customer", o.ID)
	default:
		if _, dup := seen[o.ID]; dup {
			msg = fmt.Sprintf("Order %s appears more than once in the batch", o.ID)
		}
	}
	if msg == "" {
		return Conflict{}, true
	}
	return Conflict{
		Type:           ConflictInvalidOrder,
		Severity:       SeverityCritical,
		Message:        msg,
		AffectedOrders: []string{o.ID},
	}, false
}

// commit writes placements through sequentially so conflict order is reproducible.
func (s *Sequencer) commit(ctx context.Context, p placement) []Conflict {
	var conflicts []Conflict
	for i, e := range p.sequence {
		o := p.orders[i]
		err := errNoCommitter
		if s.committer != nil {
			err = s.committer.CreateOrder(ctx, OrderRecord{
				Customer: o.Customer,
				Priority: o.Priority,
				LineID:   e.LineID,
				Status:   StatusPending,
				SapID:    o.SapID,
			})
		}
		if err != nil {
			log.Printf("Failed to create fabrication order for %s on line %s: %v", o.ID, e.LineID, err)
			conflicts = append(conflicts, Conflict{
				Type:           ConflictOFCreationFailed,
				Severity:       SeverityWarning,
				Message:        fmt.Sprintf("Failed to create fabrication order for %s: %v", o.ID, err),
				AffectedOrders: []string{o.ID},
			})
		}
	}
	return conflicts
}

var errNoCommitter = errors.New("no order store configured")

func lineLabel(l Line) string {
	if l.Name != "" {
		return l.Name
	}
	return l.ID
}

func hoursToDuration(h float64) time.Duration {
	return time.Duration(h * float64(time.Hour))
}
