package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chicago(y int, m time.Month, d, h, min, s, ms int) time.Time {
	return time.Date(y, m, d, h, min, s, ms*int(time.Millisecond), BatchLocation)
}

func TestComputeBatchWindow_Boundaries(t *testing.T) {
	tests := []struct {
		name string
		at   time.Time
		want string
	}{
		{"morning", chicago(2024, 3, 4, 9, 30, 0, 0), "20240304AM"},
		{"just before afternoon cut", chicago(2024, 3, 4, 14, 59, 59, 999), "20240304AM"},
		{"afternoon cut", chicago(2024, 3, 4, 15, 0, 0, 0), "20240304PM"},
		{"just before night cut", chicago(2024, 3, 4, 21, 59, 59, 999), "20240304PM"},
		{"night cut rolls to next day", chicago(2024, 3, 4, 22, 0, 0, 0), "20240305AM"},
		{"month end rolls over", chicago(2024, 1, 31, 23, 15, 0, 0), "20240201AM"},
		{"midnight", chicago(2024, 3, 5, 0, 0, 0, 0), "20240305AM"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ComputeBatchWindow(tc.at).BatchNumber())
		})
	}
}

func TestComputeBatchWindow_UsesChicagoTime(t *testing.T) {
	// 03:30 UTC on the 5th is 21:30 CST on the 4th.
	at := time.Date(2024, 1, 5, 3, 30, 0, 0, time.UTC)
	assert.Equal(t, "20240104PM", ComputeBatchWindow(at).BatchNumber())
}

func TestBatchWindow_ScheduledDateTime(t *testing.T) {
	am := ComputeBatchWindow(chicago(2024, 3, 4, 8, 0, 0, 0))
	pm := ComputeBatchWindow(chicago(2024, 3, 4, 16, 0, 0, 0))

	assert.Equal(t, chicago(2024, 3, 4, 10, 0, 0, 0), am.ScheduledDateTime())
	assert.Equal(t, chicago(2024, 3, 4, 17, 0, 0, 0), pm.ScheduledDateTime())
}

func TestBatchWindow_Next(t *testing.T) {
	am := BatchWindow{Date: chicago(2024, 12, 31, 0, 0, 0, 0), Period: PeriodAM}

	pm := am.Next()
	assert.Equal(t, "20241231PM", pm.BatchNumber())
	assert.Equal(t, "20250101AM", pm.Next().BatchNumber())
}

func TestBatchWindowFor_DaysOffset(t *testing.T) {
	now := chicago(2024, 3, 4, 16, 0, 0, 0)
	assert.Equal(t, "20240304PM", BatchWindowFor(now, 0).BatchNumber())
	assert.Equal(t, "20240305PM", BatchWindowFor(now, 1).BatchNumber())
}

func TestParseBatchNumber(t *testing.T) {
	w, err := ParseBatchNumber("20240304PM")
	require.NoError(t, err)
	assert.Equal(t, PeriodPM, w.Period)
	assert.Equal(t, "20240304PM", w.BatchNumber())

	_, err = ParseBatchNumber("20240304XX")
	assert.Error(t, err)
	_, err = ParseBatchNumber("2024")
	assert.Error(t, err)
}
