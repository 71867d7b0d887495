package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gcal "google.golang.org/api/calendar/v3"
)

func TestParsePeriods(t *testing.T) {
	got, err := parsePeriods([]*gcal.TimePeriod{
		{Start: "2026-03-02T09:00:00-05:00", End: "2026-03-02T11:00:00-05:00"},
		nil,
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].Start.Equal(time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC)))
	assert.Equal(t, 2*time.Hour, got[0].End.Sub(got[0].Start))

	_, err = parsePeriods([]*gcal.TimePeriod{{Start: "yesterday", End: "2026-03-02T11:00:00Z"}})
	assert.Error(t, err)
}
