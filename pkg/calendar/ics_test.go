package calendar

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender_SingleEventWithAlarm(t *testing.T) {
	start := time.Date(2026, 3, 10, 17, 0, 0, 0, time.UTC)
	out := Render([]Event{{
		UID:         "item-1@meetnote",
		Title:       "Send budget proposal",
		Description: "Follow up from Monday's planning call",
		Start:       start,
		Lead:        15 * time.Minute,
	}})

	require.Contains(t, out, "BEGIN:VCALENDAR")
	assert.Contains(t, out, "BEGIN:VEVENT")
	assert.Contains(t, out, "UID:item-1@meetnote")
	assert.Contains(t, out, "SUMMARY:Send budget proposal")
	assert.Contains(t, out, "DTSTART:20260310T170000Z")
	assert.Contains(t, out, "BEGIN:VALARM")
	assert.Contains(t, out, "TRIGGER:-PT15M")
	assert.Contains(t, out, "ACTION:DISPLAY")
	assert.Contains(t, out, "END:VCALENDAR")
}

func TestRender_TravelBufferWidensAlarm(t *testing.T) {
	start := time.Date(2026, 3, 12, 9, 0, 0, 0, time.UTC)
	out := Render([]Event{{
		UID:          "item-2@meetnote",
		Title:        "Client visit downtown",
		Start:        start,
		Lead:         15 * time.Minute,
		TravelBuffer: 30 * time.Minute,
	}})

	// 15m lead + 30m travel = 45 minutes before start
	assert.Contains(t, out, "TRIGGER:-PT45M")
}

func TestRender_MultipleEvents(t *testing.T) {
	start := time.Date(2026, 3, 12, 9, 0, 0, 0, time.UTC)
	out := Render([]Event{
		{UID: "a@meetnote", Title: "First", Start: start, Lead: 15 * time.Minute},
		{UID: "b@meetnote", Title: "Second", Start: start.Add(time.Hour), Lead: 15 * time.Minute},
	})

	assert.Equal(t, 2, strings.Count(out, "BEGIN:VEVENT"))
	assert.Contains(t, out, "UID:a@meetnote")
	assert.Contains(t, out, "UID:b@meetnote")
}

func TestTrigger_Formats(t *testing.T) {
	assert.Equal(t, "-PT15M", trigger(15*time.Minute))
	assert.Equal(t, "-PT1H", trigger(time.Hour))
	assert.Equal(t, "-PT1H30M", trigger(90*time.Minute))
	assert.Equal(t, "-PT15M", trigger(0))
}
