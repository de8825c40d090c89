package sequencer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

// fakeCommitter records every commit and fails for the configured order ids (by SapID).
type fakeCommitter struct {
	failFor map[string]bool
	records []OrderRecord
}

func (f *fakeCommitter) CreateOrder(ctx context.Context, rec OrderRecord) error {
	f.records = append(f.records, rec)
	if f.failFor[rec.SapID] {
		return errors.New("insert failed")
	}
	return nil
}

type fakeLoader struct {
	snap  Snapshot
	err   error
	calls int
}

func (f *fakeLoader) LoadSnapshot(ctx context.Context) (Snapshot, error) {
	f.calls++
	return f.snap, f.err
}

func newTestSequencer(c Committer) *Sequencer {
	return New(&fakeLoader{}, c, WithClock(func() time.Time { return testNow }))
}

func order(id string, priority int, hours float64) Order {
	return Order{ID: id, Customer: "ACME " + id, Priority: priority, EstimatedHours: hours, MaterialsAvailable: true, SapID: "SAP-" + id}
}

func TestSequence_PriorityOrderOnSingleLine(t *testing.T) {
	s := newTestSequencer(nil)
	lines := []Line{{ID: "L1", Name: "Line 1", Capacity: 2}}

	res := s.Sequence(context.Background(), []Order{order("A", 5, 4), order("B", 8, 4)}, lines, false)

	require.Len(t, res.Sequence, 2)
	assert.Empty(t, res.Conflicts)

	assert.Equal(t, AssignmentEntry{OrderID: "B", LineID: "L1", Position: 1, EstimatedStart: testNow, EstimatedEnd: testNow.Add(4 * time.Hour)}, res.Sequence[0])
	assert.Equal(t, AssignmentEntry{OrderID: "A", LineID: "L1", Position: 2, EstimatedStart: testNow.Add(4 * time.Hour), EstimatedEnd: testNow.Add(8 * time.Hour)}, res.Sequence[1])

	assert.Equal(t, Metrics{
		TotalOrders:         2,
		AvgWaitTime:         2.0,
		CapacityUtilization: 100.0,
		EstimatedCompletion: testNow.Add(8 * time.Hour),
	}, res.Metrics)
}

func TestSequence_ConflictScenarios(t *testing.T) {
	testCases := []struct {
		name              string
		orders            []Order
		lines             []Line
		expectedSequence  []string
		expectedConflicts []Conflict
	}{
		{
			name:             "Line already full, no line available",
			orders:           []Order{order("A", 5, 2)},
			lines:            []Line{{ID: "L1", Name: "Line 1", Capacity: 1, CurrentLoad: 1}},
			expectedSequence: nil,
			expectedConflicts: []Conflict{
				{Type: ConflictCapacityExceeded, Severity: SeverityWarning, Message: "Line Line 1 is at full capacity (1/1)", AffectedOrders: []string{"A"}},
				{Type: ConflictNoLineAvailable, Severity: SeverityCritical, Message: "No production line available for order A (ACME A)", AffectedOrders: []string{"A"}},
			},
		},
		{
			name: "Materials unavailable skips the line scan",
			orders: []Order{
				{ID: "A", Customer: "ACME", Priority: 3, EstimatedHours: 2, MaterialsAvailable: false},
			},
			lines:            []Line{{ID: "L1", Capacity: 0}},
			expectedSequence: nil,
			expectedConflicts: []Conflict{
				{Type: ConflictMaterialsUnavailable, Severity: SeverityCritical, Message: "Materials not available for order A (ACME)", AffectedOrders: []string{"A"}},
			},
		},
		{
			name:             "One capacity warning per full line per order",
			orders:           []Order{order("A", 2, 1), order("B", 1, 1)},
			lines:            []Line{{ID: "L1", Capacity: 1}, {ID: "L2", Capacity: 1, CurrentLoad: 1}},
			expectedSequence: []string{"A"},
			expectedConflicts: []Conflict{
				{Type: ConflictCapacityExceeded, Severity: SeverityWarning, Message: "Line L2 is at full capacity (1/1)", AffectedOrders: []string{"A"}},
				{Type: ConflictCapacityExceeded, Severity: SeverityWarning, Message: "Line L1 is at full capacity (1/1)", AffectedOrders: []string{"B"}},
				{Type: ConflictCapacityExceeded, Severity: SeverityWarning, Message: "Line L2 is at full capacity (1/1)", AffectedOrders: []string{"B"}},
				{Type: ConflictNoLineAvailable, Severity: SeverityCritical, Message: "No production line available for order B (ACME B)", AffectedOrders: []string{"B"}},
			},
		},
		{
			name: "Invalid orders are reported and skipped",
			orders: []Order{
				{ID: "", Customer: "Nobody", Priority: 9, EstimatedHours: 1, MaterialsAvailable: true},
				{ID: "X", Customer: "", Priority: 8, EstimatedHours: 1, MaterialsAvailable: true},
				order("A", 7, 1),
				order("A", 6, 1),
			},
			lines:            []Line{{ID: "L1", Capacity: 5}},
			expectedSequence: []string{"A"},
			expectedConflicts: []Conflict{
				{Type: ConflictInvalidOrder, Severity: SeverityCritical, Message: `Order for customer "Nobody" has no id`, AffectedOrders: []string{""}},
				{Type: ConflictInvalidOrder, Severity: SeverityCritical, Message: "Order X has no customer", AffectedOrders: []string{"X"}},
				{Type: ConflictInvalidOrder, Severity: SeverityCritical, Message: "Order A appears more than once in the batch", AffectedOrders: []string{"A"}},
			},
		},
		{
			name: "Duration beyond the schedulable horizon",
			orders: []Order{
				order("A", 5, 3e6),
				order("B", 4, 1),
			},
			lines:            []Line{{ID: "L1", Name: "Line 1", Capacity: 5, CurrentLoad: 1}},
			expectedSequence: []string{"B"},
			expectedConflicts: []Conflict{
				{Type: ConflictInvalidOrder, Severity: SeverityCritical, Message: "Order A has an estimated duration of 3e+06 hours, too long to schedule on line Line 1", AffectedOrders: []string{"A"}},
			},
		},
		{
			name:              "No lines at all",
			orders:            []Order{order("A", 1, 1)},
			lines:             nil,
			expectedSequence:  nil,
			expectedConflicts: []Conflict{{Type: ConflictNoLineAvailable, Severity: SeverityCritical, Message: "No production line available for order A (ACME A)", AffectedOrders: []string{"A"}}},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestSequencer(nil)
			res := s.Sequence(context.Background(), tc.orders, tc.lines, false)

			var ids []string
			for _, e := range res.Sequence {
				ids = append(ids, e.OrderID)
			}
			assert.Equal(t, tc.expectedSequence, ids)
			assert.Equal(t, tc.expectedConflicts, res.Conflicts)
		})
	}
}

func TestSequence_LeastLoadedLine(t *testing.T) {
	s := newTestSequencer(nil)
	lines := []Line{
		{ID: "L1", Capacity: 5, CurrentLoad: 2},
		{ID: "L2", Capacity: 5, CurrentLoad: 1},
		{ID: "L3", Capacity: 5, CurrentLoad: 1},
	}

	res := s.Sequence(context.Background(), []Order{order("A", 1, 3), order("B", 1, 3), order("C", 1, 3)}, lines, false)
	require.Len(t, res.Sequence, 3)

	// Ties go to the first line in snapshot order.
	assert.Equal(t, "L2", res.Sequence[0].LineID)
	assert.Equal(t, 2, res.Sequence[0].Position)
	assert.Equal(t, testNow.Add(3*time.Hour), res.Sequence[0].EstimatedStart)

	assert.Equal(t, "L3", res.Sequence[1].LineID)
	assert.Equal(t, 2, res.Sequence[1].Position)

	assert.Equal(t, "L1", res.Sequence[2].LineID)
	assert.Equal(t, 3, res.Sequence[2].Position)
	assert.Equal(t, testNow.Add(6*time.Hour), res.Sequence[2].EstimatedStart)

	assert.Equal(t, 46.7, res.Metrics.CapacityUtilization)
}

func TestSequence_StableTieBreak(t *testing.T) {
	s := newTestSequencer(nil)
	lines := []Line{{ID: "L1", Capacity: 10}}
	orders := []Order{order("A", 1, 1), order("B", 5, 1), order("C", 1, 1), order("D", 5, 1), order("E", 3, 1)}

	res := s.Sequence(context.Background(), orders, lines, false)

	var ids []string
	for _, e := range res.Sequence {
		ids = append(ids, e.OrderID)
	}
	assert.Equal(t, []string{"B", "D", "E", "A", "C"}, ids)
	// The caller's slice is left untouched.
	assert.Equal(t, "A", orders[0].ID)
}

func TestSequence_Properties(t *testing.T) {
	lines := []Line{
		{ID: "L1", Capacity: 3, CurrentLoad: 1},
		{ID: "L2", Capacity: 2, CurrentLoad: 0},
		{ID: "L3", Capacity: 0},
	}
	orders := []Order{
		order("o1", 3, 2.5),
		order("o2", 9, 1),
		{ID: "o3", Customer: "Late Materials", Priority: 10, EstimatedHours: 4},
		order("o4", 3, 6),
		order("o5", 0, 1.5),
		order("o6", 7, 2),
	}

	s := newTestSequencer(nil)
	res := s.Sequence(context.Background(), orders, lines, false)

	t.Run("every order is placed or named by a conflict", func(t *testing.T) {
		placed := make(map[string]int)
		for _, e := range res.Sequence {
			placed[e.OrderID]++
		}
		named := make(map[string]bool)
		for _, c := range res.Conflicts {
			require.NotEmpty(t, c.AffectedOrders)
			for _, id := range c.AffectedOrders {
				named[id] = true
			}
		}
		for _, o := range orders {
			assert.LessOrEqual(t, placed[o.ID], 1, "order %s placed more than once", o.ID)
			assert.True(t, placed[o.ID] == 1 || named[o.ID], "order %s silently dropped", o.ID)
		}
	})

	t.Run("positions are contiguous per line from current load", func(t *testing.T) {
		next := map[string]int{"L1": 2, "L2": 1, "L3": 1}
		for _, e := range res.Sequence {
			assert.Equal(t, next[e.LineID], e.Position, "order %s", e.OrderID)
			next[e.LineID]++
		}
	})

	t.Run("placements follow priority", func(t *testing.T) {
		byID := make(map[string]Order)
		for _, o := range orders {
			byID[o.ID] = o
		}
		for i := 1; i < len(res.Sequence); i++ {
			assert.GreaterOrEqual(t, byID[res.Sequence[i-1].OrderID].Priority, byID[res.Sequence[i].OrderID].Priority)
		}
	})

	t.Run("duration matches estimated hours", func(t *testing.T) {
		byID := make(map[string]Order)
		for _, o := range orders {
			byID[o.ID] = o
		}
		for _, e := range res.Sequence {
			assert.Equal(t, byID[e.OrderID].EstimatedHours, e.EstimatedEnd.Sub(e.EstimatedStart).Hours())
		}
	})

	t.Run("utilization within range", func(t *testing.T) {
		assert.GreaterOrEqual(t, res.Metrics.CapacityUtilization, 0.0)
		assert.LessOrEqual(t, res.Metrics.CapacityUtilization, 100.0)
	})

	t.Run("identical inputs give identical results", func(t *testing.T) {
		again := s.Sequence(context.Background(), orders, lines, false)
		assert.Equal(t, res, again)
	})
}

func TestSequence_NonPositiveHoursAreNotGated(t *testing.T) {
	s := newTestSequencer(nil)
	lines := []Line{{ID: "L1", Name: "Line 1", Capacity: 5, CurrentLoad: 2}}

	res := s.Sequence(context.Background(), []Order{order("Z", 5, 0), order("N", 4, -1)}, lines, false)

	assert.Empty(t, res.Conflicts)
	require.Len(t, res.Sequence, 2)

	zero, negative := res.Sequence[0], res.Sequence[1]
	assert.Equal(t, "Z", zero.OrderID)
	assert.Equal(t, 3, zero.Position)
	assert.Equal(t, testNow, zero.EstimatedStart)
	assert.Equal(t, zero.EstimatedStart, zero.EstimatedEnd)

	assert.Equal(t, "N", negative.OrderID)
	assert.Equal(t, 4, negative.Position)
	assert.Equal(t, testNow.Add(-3*time.Hour), negative.EstimatedStart)
	assert.Equal(t, -time.Hour, negative.EstimatedEnd.Sub(negative.EstimatedStart))
}

func TestSequence_AutoCommit(t *testing.T) {
	committer := &fakeCommitter{failFor: map[string]bool{"SAP-B": true}}
	s := newTestSequencer(committer)
	lines := []Line{{ID: "L1", Capacity: 5}}

	res := s.Sequence(context.Background(), []Order{order("A", 2, 1), order("B", 1, 1)}, lines, true)

	require.Len(t, res.Sequence, 2, "placements stand even when the write fails")
	assert.Equal(t, []Conflict{{
		Type:           ConflictOFCreationFailed,
		Severity:       SeverityWarning,
		Message:        "Failed to create fabrication order for B: insert failed",
		AffectedOrders: []string{"B"},
	}}, res.Conflicts)

	assert.Equal(t, []OrderRecord{
		{Customer: "ACME A", Priority: 2, LineID: "L1", Status: StatusPending, SapID: "SAP-A"},
		{Customer: "ACME B", Priority: 1, LineID: "L1", Status: StatusPending, SapID: "SAP-B"},
	}, committer.records)

	committed := res.Committed()
	require.Len(t, committed, 1)
	assert.Equal(t, "A", committed[0].OrderID)
}

func TestSequence_AutoCommitWithoutCommitter(t *testing.T) {
	s := newTestSequencer(nil)
	res := s.Sequence(context.Background(), []Order{order("A", 1, 1)}, []Line{{ID: "L1", Capacity: 1}}, true)

	require.Len(t, res.Sequence, 1)
	require.Len(t, res.Conflicts, 1)
	assert.Equal(t, ConflictOFCreationFailed, res.Conflicts[0].Type)
}

func TestSequence_NoCandidates(t *testing.T) {
	s := newTestSequencer(nil)

	res := s.Sequence(context.Background(), nil, []Line{{ID: "L1", Capacity: 4, CurrentLoad: 1}}, false)

	assert.NotNil(t, res.Sequence)
	assert.NotNil(t, res.Conflicts)
	assert.Empty(t, res.Sequence)
	assert.Empty(t, res.Conflicts)
	assert.Equal(t, Metrics{TotalOrders: 0, AvgWaitTime: 0, CapacityUtilization: 25.0, EstimatedCompletion: testNow}, res.Metrics)

	res = s.Sequence(context.Background(), nil, nil, false)
	assert.Equal(t, Metrics{EstimatedCompletion: testNow}, res.Metrics)
}

func TestSequence_MetricsRounding(t *testing.T) {
	s := newTestSequencer(nil)
	lines := []Line{{ID: "L1", Capacity: 3}, {ID: "L2", Capacity: 3}, {ID: "L3", Capacity: 3}}

	// Waits: 0h, 0h, 0h, 1h -> 0.25 -> 0.3; utilization 4/9 -> 44.4
	res := s.Sequence(context.Background(), []Order{order("A", 1, 1), order("B", 1, 1), order("C", 1, 1), order("D", 1, 1)}, lines, false)

	assert.Equal(t, 0.3, res.Metrics.AvgWaitTime)
	assert.Equal(t, 44.4, res.Metrics.CapacityUtilization)
	assert.Equal(t, testNow.Add(2*time.Hour), res.Metrics.EstimatedCompletion)
}

func TestSequence_UtilizationClamped(t *testing.T) {
	s := newTestSequencer(nil)
	res := s.Sequence(context.Background(), nil, []Line{{ID: "L1", Capacity: 2, CurrentLoad: 5}}, false)
	assert.Equal(t, 100.0, res.Metrics.CapacityUtilization)
}

func TestRun(t *testing.T) {
	t.Run("reads the snapshot once", func(t *testing.T) {
		loader := &fakeLoader{snap: Snapshot{Lines: []Line{{ID: "L1", Capacity: 2}}}}
		s := New(loader, nil, WithClock(func() time.Time { return testNow }))

		res, err := s.Run(context.Background(), []Order{order("A", 1, 2), order("B", 1, 2)}, false)
		require.NoError(t, err)
		assert.Len(t, res.Sequence, 2)
		assert.Equal(t, 1, loader.calls)
	})

	t.Run("snapshot failure is fatal", func(t *testing.T) {
		loader := &fakeLoader{err: errors.New("connection refused")}
		s := New(loader, nil)

		res, err := s.Run(context.Background(), []Order{order("A", 1, 2)}, false)
		assert.Nil(t, res)
		assert.ErrorContains(t, err, "connection refused")
	})
}
