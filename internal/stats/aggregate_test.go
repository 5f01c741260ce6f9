package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"passaro/internal/models"
)

func ticketAt(batchID string, checkIn *time.Time) models.Ticket {
	t := models.Ticket{
		ID:      "t-" + batchID,
		BatchID: batchID,
	}
	if checkIn != nil {
		operator := "op-1"
		t.Used = true
		t.CheckInTime = checkIn
		t.CheckedInBy = &operator
	}
	return t
}

func TestAggregateEmpty(t *testing.T) {
	summary := Aggregate(nil)

	assert.Equal(t, 0, summary.Stats.Total)
	assert.Equal(t, 0, summary.Stats.CheckedIn)
	assert.Equal(t, 0, summary.Stats.Pending)
	assert.Equal(t, 0, summary.Stats.AttendanceRate)
	assert.Empty(t, summary.ByHour)
	assert.Empty(t, summary.ByBatch)
}

func TestAggregateTotalsAndRate(t *testing.T) {
	at := time.Date(2026, 8, 29, 19, 30, 0, 0, time.UTC)

	var tickets []models.Ticket
	for i := 0; i < 4; i++ {
		tickets = append(tickets, ticketAt("lote-1", &at))
	}
	for i := 0; i < 6; i++ {
		tickets = append(tickets, ticketAt("lote-1", nil))
	}

	summary := Aggregate(tickets)

	assert.Equal(t, 10, summary.Stats.Total)
	assert.Equal(t, 4, summary.Stats.CheckedIn)
	assert.Equal(t, 6, summary.Stats.Pending)
	assert.Equal(t, 40, summary.Stats.AttendanceRate)
}

func TestAggregateRateRounds(t *testing.T) {
	at := time.Date(2026, 8, 29, 20, 0, 0, 0, time.UTC)

	tickets := []models.Ticket{
		ticketAt("lote-1", &at),
		ticketAt("lote-1", nil),
		ticketAt("lote-1", nil),
	}

	summary := Aggregate(tickets)

	// 1/3 rounds to 33
	assert.Equal(t, 33, summary.Stats.AttendanceRate)
}

func TestAggregateHourBucketsSorted(t *testing.T) {
	h18 := time.Date(2026, 8, 29, 18, 5, 0, 0, time.UTC)
	h19 := time.Date(2026, 8, 29, 19, 45, 0, 0, time.UTC)
	h20 := time.Date(2026, 8, 29, 20, 10, 0, 0, time.UTC)

	tickets := []models.Ticket{
		ticketAt("lote-1", &h20),
		ticketAt("lote-1", &h18),
		ticketAt("lote-1", &h19),
		ticketAt("lote-1", &h19),
		ticketAt("lote-1", nil),
	}

	summary := Aggregate(tickets)

	assert.Equal(t, []models.HourBucket{
		{Hour: 18, Count: 1},
		{Hour: 19, Count: 2},
		{Hour: 20, Count: 1},
	}, summary.ByHour)
}

func TestAggregateBatchBreakdown(t *testing.T) {
	at := time.Date(2026, 8, 29, 19, 0, 0, 0, time.UTC)

	tickets := []models.Ticket{
		ticketAt("lote-2", &at),
		ticketAt("lote-2", nil),
		ticketAt("lote-1", &at),
		ticketAt("lote-1", &at),
		ticketAt("lote-1", nil),
		ticketAt("lote-1", nil),
	}

	summary := Aggregate(tickets)

	assert.Equal(t, []models.BatchBreakdown{
		{BatchID: "lote-1", Total: 4, CheckedIn: 2, Percentage: 50},
		{BatchID: "lote-2", Total: 2, CheckedIn: 1, Percentage: 50},
	}, summary.ByBatch)
}
