// Package event classifies scheduled macro events against a setup's
// timeframe and proposes execution adjustments when an event lands inside
// the critical window.
package event

import (
	"fmt"
	"sort"
	"time"
)

// Classification buckets.
const (
	ClassNone              = "none"
	ClassAwarenessOnly     = "awareness_only"
	ClassExecutionCritical = "execution_critical"
)

const (
	// Events at or above this impact rank can force the critical class.
	criticalImpactFloor = 3

	// Minutes-to-event window for the critical class.
	criticalWindowMinutes = 60

	// Look-ahead horizon for awareness listing.
	awarenessHorizon = 48 * time.Hour
)

// ScheduledEvent is one upcoming calendar entry.
type ScheduledEvent struct {
	Name     string    `json:"name"`
	Impact   int       `json:"impact"`
	At       time.Time `json:"at"`
	Currency string    `json:"currency,omitempty"`
}

// Context is the classified event environment for one setup.
type Context struct {
	Class                string   `json:"class"`
	Rationale            string   `json:"rationale"`
	UpcomingEvents       []string `json:"upcomingEvents"`
	MinutesToNext        int      `json:"minutesToNext"`
	ExecutionAdjustments []string `json:"executionAdjustments"`
	Quality              string   `json:"quality"`
}

// Classify evaluates events relative to now. Events already past are
// ignored. Quality reports whether any calendar data was supplied at all.
func Classify(now time.Time, events []ScheduledEvent) Context {
	if len(events) == 0 {
		return Context{
			Class:         ClassNone,
			Rationale:     "no scheduled events supplied",
			MinutesToNext: -1,
			Quality:       "missing",
		}
	}

	upcoming := make([]ScheduledEvent, 0, len(events))
	for _, ev := range events {
		if ev.At.Before(now) {
			continue
		}
		if ev.At.Sub(now) > awarenessHorizon {
			continue
		}
		upcoming = append(upcoming, ev)
	}
	if len(upcoming) == 0 {
		return Context{
			Class:         ClassNone,
			Rationale:     "no events inside the 48h horizon",
			MinutesToNext: -1,
			Quality:       "ok",
		}
	}
	sort.Slice(upcoming, func(i, j int) bool { return upcoming[i].At.Before(upcoming[j].At) })

	names := make([]string, 0, len(upcoming))
	critical := false
	var criticalName string
	for _, ev := range upcoming {
		minutes := int(ev.At.Sub(now).Minutes())
		names = append(names, fmt.Sprintf("%s (impact %d, %dm)", ev.Name, ev.Impact, minutes))
		if !critical && ev.Impact >= criticalImpactFloor && minutes >= 0 && minutes <= criticalWindowMinutes {
			critical = true
			criticalName = ev.Name
		}
	}
	minutesToNext := int(upcoming[0].At.Sub(now).Minutes())

	if critical {
		return Context{
			Class:          ClassExecutionCritical,
			Rationale:      fmt.Sprintf("high-impact event %q within %d minutes", criticalName, criticalWindowMinutes),
			UpcomingEvents: names,
			MinutesToNext:  minutesToNext,
			ExecutionAdjustments: []string{
				"halve position size",
				"widen stop beyond the event spike range",
				"defer new entries until the release prints",
			},
			Quality: "ok",
		}
	}
	return Context{
		Class:          ClassAwarenessOnly,
		Rationale:      fmt.Sprintf("%d event(s) inside the horizon, none execution critical", len(upcoming)),
		UpcomingEvents: names,
		MinutesToNext:  minutesToNext,
		Quality:        "ok",
	}
}
