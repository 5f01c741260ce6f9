// Package stats derives read-only attendance statistics from a ticket
// snapshot. Everything here is pure; callers bring their own ticket set.
package stats

import (
	"math"
	"sort"

	"passaro/internal/models"
)

type Summary struct {
	Stats   Stats
	ByHour  []models.HourBucket
	ByBatch []models.BatchBreakdown
}

type Stats struct {
	Total          int
	CheckedIn      int
	Pending        int
	AttendanceRate int
}

// percentage rounds part/total to a whole percent; 0 when total is 0.
func percentage(part, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(part) / float64(total) * 100))
}

// Aggregate computes totals, per-hour redemption counts and per-batch
// attendance. Hour buckets cover only redeemed tickets and come back sorted
// by hour ascending; batches are sorted by batch id for determinism.
func Aggregate(tickets []models.Ticket) Summary {
	summary := Summary{
		ByHour:  []models.HourBucket{},
		ByBatch: []models.BatchBreakdown{},
	}

	byHour := make(map[int]int)
	batchTotals := make(map[string]int)
	batchChecked := make(map[string]int)

	for _, t := range tickets {
		summary.Stats.Total++
		batchTotals[t.BatchID]++

		if t.Used {
			summary.Stats.CheckedIn++
			batchChecked[t.BatchID]++
			if t.CheckInTime != nil {
				byHour[t.CheckInTime.Hour()]++
			}
		}
	}

	summary.Stats.Pending = summary.Stats.Total - summary.Stats.CheckedIn
	summary.Stats.AttendanceRate = percentage(summary.Stats.CheckedIn, summary.Stats.Total)

	for hour, count := range byHour {
		summary.ByHour = append(summary.ByHour, models.HourBucket{Hour: hour, Count: count})
	}
	sort.Slice(summary.ByHour, func(i, j int) bool {
		return summary.ByHour[i].Hour < summary.ByHour[j].Hour
	})

	for batchID, total := range batchTotals {
		summary.ByBatch = append(summary.ByBatch, models.BatchBreakdown{
			BatchID:    batchID,
			Total:      total,
			CheckedIn:  batchChecked[batchID],
			Percentage: percentage(batchChecked[batchID], total),
		})
	}
	sort.Slice(summary.ByBatch, func(i, j int) bool {
		return summary.ByBatch[i].BatchID < summary.ByBatch[j].BatchID
	})

	return summary
}
