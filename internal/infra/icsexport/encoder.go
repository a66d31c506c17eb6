// Package icsexport renders series as iCalendar documents.
package icsexport

import (
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-ical"
	"github.com/runoshun/taskcal/internal/domain"
	"github.com/teambition/rrule-go"
)

// ProductID is the PRODID of every exported calendar.
const ProductID = "-//taskcal//NONSGML taskcal//EN"

const (
	propRecurrenceID = "RECURRENCE-ID"
	propCompleted    = "X-TASKCAL-COMPLETED"
)

// farFuture bounds the expansion window when exporting a whole series.
var farFuture = time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC)

// Ensure Encoder implements domain.CalendarEncoder.
var _ domain.CalendarEncoder = (*Encoder)(nil)

// Encoder writes one VCALENDAR per series.
type Encoder struct{}

// New creates a new Encoder.
func New() *Encoder {
	return &Encoder{}
}

// EncodeSeries writes task and its exceptions to w.
//
// The master VEVENT carries an RRULE when rrule-go generates exactly the
// occurrences the domain expander produces. Otherwise (clamped month ends, a
// binding occurrence cap) the occurrences are listed as RDATEs.
func (e *Encoder) EncodeSeries(w io.Writer, task *domain.Task, exceptions []*domain.Exception, limits domain.Limits) error {
	loc, err := domain.LoadZone(task.Timezone)
	if err != nil {
		return err
	}

	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropProductID, ProductID)
	cal.Props.SetText(ical.PropVersion, "2.0")

	master := newEvent(task, task.DTStart.In(loc), task.Title, task.DurationMinutes)

	if !task.IsRecurring() {
		// A one-off task has no instances to override; its single exception
		// applies to the master event itself.
		for _, exc := range exceptions {
			if exc.OriginalStart.Equal(task.DTStart) {
				applyException(master, exc, loc)
			}
		}
		addTimezone(cal, loc, task.DTStart, task.DTStart, exceptions)
		cal.Children = append(cal.Children, master.Component)
		return ical.NewEncoder(w).Encode(cal)
	}

	last, err := setRecurrence(master, task, loc, limits)
	if err != nil {
		return err
	}

	var overrides []*ical.Event
	for _, exc := range exceptions {
		if exc.Cancelled {
			master.Props.Add(dateTimeProp(ical.PropExceptionDates, exc.OriginalStart.In(loc)))
			continue
		}
		override := newEvent(task, exc.OriginalStart.In(loc), task.Title, task.DurationMinutes)
		override.Props.Set(dateTimeProp(propRecurrenceID, exc.OriginalStart.In(loc)))
		applyException(override, exc, loc)
		overrides = append(overrides, override)
	}

	addTimezone(cal, loc, task.DTStart, last, exceptions)
	cal.Children = append(cal.Children, master.Component)
	for _, o := range overrides {
		cal.Children = append(cal.Children, o.Component)
	}
	return ical.NewEncoder(w).Encode(cal)
}

// newEvent builds a VEVENT with the properties shared by masters and overrides.
func newEvent(task *domain.Task, start time.Time, title string, minutes int) *ical.Event {
	ev := ical.NewEvent()
	ev.Props.SetText(ical.PropUID, task.ID)
	ev.Props.SetDateTime(ical.PropDateTimeStamp, task.Updated.UTC())
	ev.Props.Set(dateTimeProp(ical.PropDateTimeStart, start))
	ev.Props.Set(durationProp(minutes))
	ev.Props.SetText(ical.PropSummary, title)
	if task.Status == domain.StatusArchived {
		ev.Props.SetText(ical.PropStatus, "CANCELLED")
	}
	return ev
}

// applyException overlays the override fields of exc onto ev.
func applyException(ev *ical.Event, exc *domain.Exception, loc *time.Location) {
	if exc.Cancelled {
		ev.Props.SetText(ical.PropStatus, "CANCELLED")
	}
	if start, ok := exc.NewStart.Get(); ok {
		ev.Props.Set(dateTimeProp(ical.PropDateTimeStart, start.In(loc)))
	}
	if minutes, ok := exc.NewDuration.Get(); ok {
		ev.Props.Set(durationProp(minutes))
	}
	if title, ok := exc.OverrideTitle.Get(); ok {
		ev.Props.SetText(ical.PropSummary, title)
	}
	if exc.Complete {
		at := exc.CompletedAt.OrElse(exc.OriginalStart)
		ev.Props.Set(dateTimeProp(propCompleted, at.UTC()))
	}
}

// setRecurrence adds RRULE or RDATE properties describing the raw occurrences
// and returns the last of them.
func setRecurrence(ev *ical.Event, task *domain.Task, loc *time.Location, limits domain.Limits) (time.Time, error) {
	exp, err := domain.ExpandTask(task, domain.Window{Start: task.DTStart, End: farFuture}, limits)
	if err != nil {
		return time.Time{}, err
	}
	last := task.DTStart
	if n := len(exp.Instants); n > 0 {
		last = exp.Instants[n-1]
	}

	if !exp.Capped {
		rr, err := toRRule(*task.Rule, task.DTStart.In(loc))
		if err != nil {
			return time.Time{}, err
		}
		if sameOccurrences(rr, exp.Instants) {
			prop := ical.NewProp(ical.PropRecurrenceRule)
			prop.SetValueType(ical.ValueRecurrence)
			prop.Value = rr.OrigOptions.RRuleString()
			ev.Props.Set(prop)
			return last, nil
		}
	}

	for _, t := range exp.Instants {
		if t.Equal(task.DTStart) {
			continue
		}
		ev.Props.Add(dateTimeProp(ical.PropRecurrenceDates, t.In(loc)))
	}
	return last, nil
}

// toRRule converts a domain rule anchored at dtstart into an rrule-go rule.
func toRRule(rule domain.RecurrenceRule, dtstart time.Time) (*rrule.RRule, error) {
	opt := rrule.ROption{
		Dtstart:  dtstart,
		Interval: rule.Interval,
	}
	switch rule.Frequency {
	case domain.FrequencyDaily:
		opt.Freq = rrule.DAILY
	case domain.FrequencyWeekly:
		opt.Freq = rrule.WEEKLY
	case domain.FrequencyMonthly:
		opt.Freq = rrule.MONTHLY
	case domain.FrequencyYearly:
		opt.Freq = rrule.YEARLY
	default:
		return nil, fmt.Errorf("unsupported frequency %q", rule.Frequency)
	}
	switch rule.End.Kind {
	case domain.EndAfterCount:
		opt.Count = rule.End.Count
	case domain.EndUntil:
		opt.Until = rule.End.Until
	}
	return rrule.NewRRule(opt)
}

// sameOccurrences reports whether rr generates exactly want.
func sameOccurrences(rr *rrule.RRule, want []time.Time) bool {
	next := rr.Iterator()
	for _, w := range want {
		got, ok := next()
		if !ok || !got.Equal(w) {
			return false
		}
	}
	_, more := next()
	return !more
}

// addTimezone prepends the VTIMEZONE that the TZID parameters of the events
// refer to. Every offset change of loc between from and to (widened by
// rescheduled exceptions) becomes one STANDARD or DAYLIGHT observance.
// UTC times are written with a Z suffix and need no definition.
func addTimezone(cal *ical.Calendar, loc *time.Location, from, to time.Time, exceptions []*domain.Exception) {
	if loc == time.UTC {
		return
	}
	for _, exc := range exceptions {
		for _, t := range []time.Time{exc.OriginalStart, exc.NewStart.OrElse(exc.OriginalStart)} {
			if t.Before(from) {
				from = t
			}
			if t.After(to) {
				to = t
			}
		}
	}
	cal.Children = append(cal.Children, timezoneComponent(loc, from, to))
}

// timezoneComponent describes loc from the observance in effect at from up to
// the last transition not after to.
func timezoneComponent(loc *time.Location, from, to time.Time) *ical.Component {
	tz := ical.NewComponent(ical.CompTimezone)
	tz.Props.SetText(ical.PropTimezoneID, loc.String())

	for at := from.In(loc); ; {
		onset, end := at.ZoneBounds()
		tz.Children = append(tz.Children, observance(onset, at))
		if end.IsZero() || end.After(to) {
			break
		}
		at = end
	}
	return tz
}

// observance builds the STANDARD or DAYLIGHT component for the zone period
// containing at, which began at onset (zero when loc has no earlier change).
func observance(onset, at time.Time) *ical.Component {
	name, offset := at.Zone()
	kind := ical.CompTimezoneStandard
	if at.IsDST() {
		kind = ical.CompTimezoneDaylight
	}
	comp := ical.NewComponent(kind)

	start := ical.NewProp(ical.PropDateTimeStart)
	prevOffset := offset
	if onset.IsZero() {
		start.Value = "16010101T000000"
	} else {
		_, prevOffset = onset.Add(-time.Second).Zone()
		// DTSTART is the wall clock just before the change.
		start.Value = onset.In(time.FixedZone("", prevOffset)).Format("20060102T150405")
	}
	comp.Props.Set(start)
	comp.Props.Set(offsetProp(ical.PropTimezoneOffsetFrom, prevOffset))
	comp.Props.Set(offsetProp(ical.PropTimezoneOffsetTo, offset))
	comp.Props.SetText(ical.PropTimezoneName, name)
	return comp
}

func offsetProp(name string, seconds int) *ical.Prop {
	sign := '+'
	if seconds < 0 {
		sign, seconds = '-', -seconds
	}
	prop := ical.NewProp(name)
	prop.Value = fmt.Sprintf("%c%02d%02d", sign, seconds/3600, seconds/60%60)
	if sec := seconds % 60; sec != 0 {
		prop.Value += fmt.Sprintf("%02d", sec)
	}
	return prop
}

func dateTimeProp(name string, t time.Time) *ical.Prop {
	prop := ical.NewProp(name)
	prop.SetDateTime(t)
	return prop
}

func durationProp(minutes int) *ical.Prop {
	prop := ical.NewProp(ical.PropDuration)
	prop.SetValueType(ical.ValueDuration)
	prop.Value = fmt.Sprintf("PT%dM", minutes)
	return prop
}
