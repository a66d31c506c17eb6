package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/runoshun/taskcal/internal/domain"
	"github.com/runoshun/taskcal/internal/usecase"
)

// Agenda styles. lipgloss drops the colors when output is not a terminal.
var (
	styleDone    = lipgloss.NewStyle().Faint(true).Strikethrough(true)
	styleEdited  = lipgloss.NewStyle().Foreground(lipgloss.Color("#A29BFE"))
	styleWarning = lipgloss.NewStyle().Foreground(lipgloss.Color("#FDCB6E"))
)

// localZoneName returns the IANA name of the local zone, or UTC when the
// system does not expose one.
func localZoneName() string {
	name := time.Local.String()
	if name == "" || name == "Local" {
		return "UTC"
	}
	return name
}

// parseWhen parses an occurrence or start argument: an RFC 3339 instant, or a
// local "YYYY-MM-DD HH:MM" (or "YYYY-MM-DDTHH:MM") in zone.
func parseWhen(value, zone string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t.UTC(), nil
	}
	date, clock, ok := strings.Cut(value, " ")
	if !ok {
		date, clock, ok = strings.Cut(value, "T")
	}
	if !ok {
		return time.Time{}, domain.NewValidationError("occurrence",
			"invalid time %q, want RFC 3339 or \"YYYY-MM-DD HH:MM\"", value)
	}
	return domain.ToUTC(date, clock, zone)
}

// agendaWindow returns the UTC bounds of the local days [from, to] in zone.
// An empty from means today; an empty to means from plus days.
func agendaWindow(now time.Time, from, to string, days int, zone string) (time.Time, time.Time, error) {
	loc, err := domain.LoadZone(zone)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if from == "" {
		from = now.In(loc).Format(domain.LocalDateLayout)
	}
	first, err := time.Parse(domain.LocalDateLayout, from)
	if err != nil {
		return time.Time{}, time.Time{}, domain.NewValidationError("from", "invalid date %q, want YYYY-MM-DD", from)
	}

	var next time.Time
	if to == "" {
		if days < 1 {
			return time.Time{}, time.Time{}, domain.NewValidationError("days", "must be at least 1")
		}
		next = first.AddDate(0, 0, days)
	} else {
		last, err := time.Parse(domain.LocalDateLayout, to)
		if err != nil {
			return time.Time{}, time.Time{}, domain.NewValidationError("to", "invalid date %q, want YYYY-MM-DD", to)
		}
		next = last.AddDate(0, 0, 1)
	}

	start, err := domain.ToUTC(first.Format(domain.LocalDateLayout), "00:00", zone)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := domain.ToUTC(next.Format(domain.LocalDateLayout), "00:00", zone)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end.Add(-time.Nanosecond), nil
}

// formatLocal renders t as "YYYY-MM-DD HH:MM" in zone.
func formatLocal(t time.Time, zone string) string {
	date, clock, err := domain.ToLocal(t, zone)
	if err != nil {
		return t.UTC().Format(time.RFC3339)
	}
	return date + " " + clock
}

// ruleLabel describes the recurrence of t.
func ruleLabel(t *domain.Task) string {
	if !t.IsRecurring() {
		return "once"
	}
	return t.RuleString()
}

// printAgenda writes the materialized instances in a table, times shown in zone.
func printAgenda(w io.Writer, out *usecase.MaterializeOutput, zone string) error {
	if len(out.Instances) == 0 {
		_, _ = fmt.Fprintln(w, "No occurrences.")
	} else {
		tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
		_, _ = fmt.Fprintln(tw, "START\tEND\tSERIES\tKEY\tTITLE")
		for _, inst := range out.Instances {
			_, endClock, err := domain.ToLocal(inst.End(), zone)
			if err != nil {
				return err
			}
			title := inst.Title
			if inst.Icon != "" {
				title = inst.Icon + " " + title
			}
			// Styled column last so escape codes do not skew the alignment.
			switch {
			case inst.Complete:
				title = styleDone.Render(title)
			case inst.Overridden:
				title = styleEdited.Render(title)
			}
			_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
				formatLocal(inst.Start, zone),
				endClock,
				inst.TaskID,
				inst.OriginalStart.UTC().Format(time.RFC3339),
				title,
			)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	for _, id := range out.CappedTaskIDs {
		_, _ = fmt.Fprintln(w, styleWarning.Render(fmt.Sprintf("Series %s has more occurrences than shown; narrow the range.", id)))
	}
	return nil
}
