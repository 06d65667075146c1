// Package effect defines the pure stateful rendering capability a Site
// selects from, and the time-of-day/day-of-week activation window that
// turns a bare Effect into a ScheduledEffect.
package effect

import (
	"fmt"
	"strings"
	"time"

	"github.com/nightdriverserver/nightdriverserver/internal/graphics"
)

// Effect is a pure stateful pixel producer. Render mutates surface in
// place; it is only ever called from the owning Site's render thread.
type Effect interface {
	// Name identifies the effect's type for status reporting.
	Name() string
	// Render paints the current frame onto surface as of wall-clock now.
	Render(surface *graphics.Surface, now time.Time)
}

// DayMask is a bitmap of days of week, bit 0 = Sunday, matching time.Weekday.
type DayMask uint8

// Weekend-agnostic day bits, named for readability at call sites.
const (
	Sunday DayMask = 1 << iota
	Monday
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday

	Weekdays = Monday | Tuesday | Wednesday | Thursday | Friday
	Weekend  = Sunday | Saturday
	AllDays  = Weekdays | Weekend
)

func dayBit(d time.Weekday) DayMask {
	return 1 << uint(d)
}

var dayNames = map[string]DayMask{
	"sun": Sunday, "sunday": Sunday,
	"mon": Monday, "monday": Monday,
	"tue": Tuesday, "tuesday": Tuesday,
	"wed": Wednesday, "wednesday": Wednesday,
	"thu": Thursday, "thursday": Thursday,
	"fri": Friday, "friday": Friday,
	"sat": Saturday, "saturday": Saturday,
}

// ParseDays converts a config-file day specification into a DayMask:
// "all", "weekdays", "weekend", or a comma-separated list of day names
// ("mon,tue,wed"), case-insensitive.
func ParseDays(s string) (DayMask, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return AllDays, nil
	case "weekdays":
		return Weekdays, nil
	case "weekend":
		return Weekend, nil
	}

	var mask DayMask
	for _, part := range strings.Split(s, ",") {
		name := strings.ToLower(strings.TrimSpace(part))
		bit, ok := dayNames[name]
		if !ok {
			return 0, fmt.Errorf("effect: unrecognized day %q", part)
		}
		mask |= bit
	}
	return mask, nil
}

// ScheduledEffect pairs an Effect with a day-of-week / time-of-day
// activation window. The window is [StartHour:StartMinute, EndHour:EndMinute]
// inclusive, compared at minute resolution in local civil time. A window
// with StartHour > EndHour never activates; this system does not support
// windows crossing midnight.
type ScheduledEffect struct {
	Effect      Effect
	Days        DayMask
	StartHour   int
	StartMinute int
	EndHour     int
	EndMinute   int
}

// New builds a ScheduledEffect active for the full span of StartHour through
// EndHour (StartMinute=0, EndMinute=60), matching the spec's documented
// intent for a constructor that takes only hours.
func New(e Effect, days DayMask, startHour, endHour int) ScheduledEffect {
	return ScheduledEffect{
		Effect:      e,
		Days:        days,
		StartHour:   startHour,
		StartMinute: 0,
		EndHour:     endHour,
		EndMinute:   60,
	}
}

// NewWithMinutes builds a ScheduledEffect with an explicit minute-resolution
// activation window.
func NewWithMinutes(e Effect, days DayMask, startHour, startMinute, endHour, endMinute int) ScheduledEffect {
	return ScheduledEffect{
		Effect:      e,
		Days:        days,
		StartHour:   startHour,
		StartMinute: startMinute,
		EndHour:     endHour,
		EndMinute:   endMinute,
	}
}

// IsActive reports whether now (interpreted in its own location, which
// callers set to local civil time) falls within s's activation window.
func (s ScheduledEffect) IsActive(now time.Time) bool {
	if s.StartHour > s.EndHour {
		return false
	}
	if s.Days&dayBit(now.Weekday()) == 0 {
		return false
	}

	current := now.Hour()*60 + now.Minute()
	start := s.StartHour*60 + s.StartMinute
	end := s.EndHour*60 + s.EndMinute
	return current >= start && current <= end
}

// SecondsPerEffect is the global wall-clock rotation period among
// concurrently active schedules.
const SecondsPerEffect = 30 * time.Second

// Select returns the ScheduledEffect that should render this tick, given the
// full schedule list (evaluated in declared order), the current wall clock
// (local civil time, for activation) and the Site's start time (for the
// wall-clock-based rotation index). ok is false when no schedule is active,
// in which case the caller must leave the pixel buffer untouched and still
// dispatch the prior frame.
func Select(schedules []ScheduledEffect, now, startTime time.Time) (sel ScheduledEffect, ok bool) {
	var active []ScheduledEffect
	for _, s := range schedules {
		if s.IsActive(now) {
			active = append(active, s)
		}
	}
	if len(active) == 0 {
		return ScheduledEffect{}, false
	}

	elapsed := now.Sub(startTime)
	if elapsed < 0 {
		elapsed = 0
	}
	index := int(elapsed/SecondsPerEffect) % len(active)
	return active[index], true
}
