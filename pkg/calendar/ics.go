package calendar

import (
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"
)

// Event describes a single reminder entry to render.
type Event struct {
	UID         string
	Title       string
	Description string
	Start       time.Time
	Duration    time.Duration
	Lead        time.Duration
	// TravelBuffer widens the alarm window for items that need travel.
	// Zero means no travel.
	TravelBuffer time.Duration
}

// Render produces an iCalendar document containing the given events, each
// carrying a display alarm that fires Lead (+TravelBuffer) before the start.
func Render(events []Event) string {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//meetnote//reminder//EN")

	now := time.Now().UTC()
	for _, e := range events {
		ev := cal.AddEvent(e.UID)
		ev.SetCreatedTime(now)
		ev.SetDtStampTime(now)
		ev.SetStartAt(e.Start.UTC())

		dur := e.Duration
		if dur <= 0 {
			dur = 30 * time.Minute
		}
		ev.SetEndAt(e.Start.UTC().Add(dur))
		ev.SetSummary(e.Title)
		if e.Description != "" {
			ev.SetDescription(e.Description)
		}

		alarm := ev.AddAlarm()
		alarm.SetAction(ics.ActionDisplay)
		alarm.SetTrigger(trigger(e.Lead + e.TravelBuffer))
		alarm.SetProperty(ics.ComponentPropertyDescription, e.Title)
	}

	return cal.Serialize()
}

// trigger renders a negative RFC 5545 duration (alarm before the event).
func trigger(lead time.Duration) string {
	if lead <= 0 {
		lead = 15 * time.Minute
	}
	total := int(lead.Minutes())
	hours := total / 60
	minutes := total % 60

	switch {
	case hours > 0 && minutes > 0:
		return fmt.Sprintf("-PT%dH%dM", hours, minutes)
	case hours > 0:
		return fmt.Sprintf("-PT%dH", hours)
	default:
		return fmt.Sprintf("-PT%dM", minutes)
	}
}
