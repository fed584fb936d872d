package statistics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farreladriann/slc-backend/core/model"
	"github.com/farreladriann/slc-backend/core/store"
)

func TestParsePeriod(t *testing.T) {
	p, err := ParsePeriod("")
	require.NoError(t, err)
	assert.Equal(t, Daily, p)
	p, err = ParsePeriod("Monthly")
	require.NoError(t, err)
	assert.Equal(t, Monthly, p)
	_, err = ParsePeriod("hourly")
	assert.Error(t, err)
}

func TestWindow(t *testing.T) {
	now := time.Date(2024, 3, 10, 15, 4, 0, 0, time.UTC)
	start, n := Window(Daily, now)
	assert.Equal(t, time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, 7, n)
	start, n = Window(Monthly, now)
	assert.Equal(t, time.Date(2023, 4, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, 12, n)
	start, n = Window(Yearly, now)
	assert.Equal(t, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, 5, n)
}

func TestComputeDaily(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	readings := []model.PowerReading{
		// 3600 W sampled every 10 s for one sample = 0.01 kWh
		{TerminalID: "terminal_1", PowerW: 3600, Timestamp: now.Add(-time.Hour)},
		{TerminalID: "terminal_1", PowerW: 3600, Timestamp: now.Add(-26 * time.Hour)},
		{TerminalID: "terminal_2", PowerW: 1800, Timestamp: now.Add(-time.Hour)},
		// outside the window
		{TerminalID: "terminal_2", PowerW: 1e6, Timestamp: now.AddDate(0, 0, -10)},
		{TerminalID: "terminal_2", PowerW: 1e6, Timestamp: now.Add(time.Hour)},
	}
	rep := Compute(readings, Daily, now, Config{})
	require.Len(t, rep.Terminals, 2)
	assert.Equal(t, TerminalUsage{TerminalID: "terminal_1", KWh: 0.02}, rep.Terminals[0])
	assert.Equal(t, TerminalUsage{TerminalID: "terminal_2", KWh: 0.005}, rep.Terminals[1])
	assert.InDelta(t, 0.025, rep.TotalKWh, 1e-9)
	assert.InDelta(t, 37.5, rep.TotalCost, 1e-9)

	require.Len(t, rep.Series, 7)
	assert.Equal(t, "2024-03-04", rep.Series[0].Label)
	assert.Equal(t, "2024-03-10", rep.Series[6].Label)
	assert.InDelta(t, 0.015, rep.Series[6].Value, 1e-9)
	assert.InDelta(t, 0.01, rep.Series[5].Value, 1e-9)
	assert.Zero(t, rep.Series[0].Value)
	assert.Equal(t, "day", rep.Meta.PeriodUnit)
}

func TestServiceReport(t *testing.T) {
	st := store.NewMemoryStore()
	now := time.Date(2024, 7, 15, 8, 0, 0, 0, time.UTC)
	require.NoError(t, st.InsertReading(context.Background(), model.PowerReading{TerminalID: "t", PowerW: 360, Timestamp: now}))
	require.NoError(t, st.InsertReading(context.Background(), model.PowerReading{TerminalID: "t", PowerW: 360, Timestamp: now.AddDate(0, -2, 0)}))
	svc := NewService(st, Config{SampleSeconds: 100})
	svc.now = func() time.Time { return now }

	rep, err := svc.Report(context.Background(), Monthly)
	require.NoError(t, err)
	require.Len(t, rep.Series, 12)
	assert.Equal(t, "2024-07", rep.Series[11].Label)
	assert.InDelta(t, 0.01, rep.Series[11].Value, 1e-9)
	assert.InDelta(t, 0.01, rep.Series[9].Value, 1e-9)
	assert.InDelta(t, 0.02, rep.TotalKWh, 1e-9)
}
