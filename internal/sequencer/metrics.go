package sequencer

import (
	"time"

	"github.com/shopspring/decimal"
)

func computeMetrics(now time.Time, total int, sequence []AssignmentEntry, lines []Line, load []int) Metrics {
	m := Metrics{
		TotalOrders:         total,
		EstimatedCompletion: now,
	}

	if len(sequence) > 0 {
		var waitHours float64
		completion := sequence[0].EstimatedEnd
		for _, e := range sequence {
			waitHours += e.EstimatedStart.Sub(now).Hours()
			if e.EstimatedEnd.After(completion) {
				completion = e.EstimatedEnd
			}
		}
		m.AvgWaitTime = round1(waitHours / float64(len(sequence)))
		m.EstimatedCompletion = completion
	}

	var used, capacity int
	for i, l := range lines {
		used += load[i]
		capacity += l.Capacity
	}
	if capacity > 0 {
		u := 100 * float64(used) / float64(capacity)
		if u > 100 {
			u = 100
		} else if u < 0 {
			u = 0
		}
		m.CapacityUtilization = round1(u)
	}

	return m
}

// round1 rounds half away from zero to one decimal place.
func round1(v float64) float64 {
	return decimal.NewFromFloat(v).Round(1).InexactFloat64()
}
