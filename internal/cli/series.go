package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/runoshun/taskcal/internal/app"
	"github.com/runoshun/taskcal/internal/domain"
	"github.com/runoshun/taskcal/internal/usecase"
	"github.com/spf13/cobra"
)

// newNewCommand creates the new command for creating series.
func newNewCommand(c *app.Container) *cobra.Command {
	var opts struct {
		Title    string
		Icon     string
		Date     string
		Time     string
		Timezone string
		From     string
		Repeat   domain.RecurrenceSpec
		Duration int
		DryRun   bool
	}

	cmd := &cobra.Command{
		Use:   "new",
		Short: "Create a new series",
		Long: `Create a one-off task or a recurring series.

The date and time are wall-clock values in --tz; a daily 09:00 series stays
at 09:00 local time across daylight-saving changes.

Examples:
  # One-off task
  taskcal new --title "Dentist" --date 2024-03-07 --time 14:30 --duration 45

  # Every Monday, four times
  taskcal new --title "Standup" --date 2024-03-04 --time 09:00 --repeat weekly --count 4

  # Every other day until the end of March (local date)
  taskcal new --title "Run" --date 2024-03-01 --time 07:00 --repeat daily --interval 2 --until 2024-03-31

  # Create series from a file
  taskcal new --from series.yaml

  # Validate a file without creating anything
  taskcal new --from series.yaml --dry-run

File format for --from:
  - title: Standup
    date: "2024-03-04"
    time: "09:00"
    timezone: Europe/Berlin   # optional, default --tz
    duration: 15
    repeat:
      freq: weekly
      count: 10`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			actorID, err := actor(c)
			if err != nil {
				return err
			}

			if opts.From != "" {
				return createSeriesFromFile(cmd, c, actorID, opts.From, opts.Timezone, opts.DryRun)
			}
			if opts.DryRun {
				return errors.New("--dry-run requires --from")
			}
			if opts.Title == "" {
				return fmt.Errorf("required flag(s) \"title\" not set")
			}

			uc := c.CreateSeriesUseCase()
			out, err := uc.Execute(cmd.Context(), usecase.CreateSeriesInput{
				ActorID:         actorID,
				Title:           opts.Title,
				Icon:            opts.Icon,
				LocalDate:       opts.Date,
				LocalTime:       opts.Time,
				Timezone:        opts.Timezone,
				DurationMinutes: opts.Duration,
				Recurrence:      opts.Repeat,
			})
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Created series %s\n", out.Task.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Title, "title", "", "Title (required unless --from is used)")
	cmd.Flags().StringVar(&opts.Icon, "icon", "", "Icon name")
	cmd.Flags().StringVar(&opts.Date, "date", "", "First date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.Time, "time", "", "Start time (HH:MM)")
	cmd.Flags().StringVar(&opts.Timezone, "tz", localZoneName(), "IANA timezone of --date and --time")
	cmd.Flags().IntVar(&opts.Duration, "duration", 30, "Duration in minutes")
	cmd.Flags().StringVar(&opts.Repeat.Frequency, "repeat", "", "Frequency: daily, weekly, monthly, yearly (default: once)")
	cmd.Flags().IntVar(&opts.Repeat.Interval, "interval", 1, "Repeat every N periods")
	cmd.Flags().IntVar(&opts.Repeat.Count, "count", 0, "Total number of occurrences")
	cmd.Flags().StringVar(&opts.Repeat.Until, "until", "", "Last date (YYYY-MM-DD) or RFC 3339 instant")
	cmd.Flags().StringVar(&opts.From, "from", "", "Create series from a YAML file")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Validate without creating (requires --from)")

	return cmd
}

// createSeriesFromFile creates series from a YAML file.
func createSeriesFromFile(cmd *cobra.Command, c *app.Container, actorID, path, zone string, dryRun bool) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	uc := c.CreateSeriesFromFileUseCase()
	out, err := uc.Execute(cmd.Context(), usecase.CreateSeriesFromFileInput{
		ActorID:         actorID,
		Content:         string(content),
		DefaultTimezone: zone,
		DryRun:          dryRun,
	})
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if dryRun {
		_, _ = fmt.Fprintf(w, "Would create %d series:\n", len(out.Tasks))
		for _, t := range out.Tasks {
			_, _ = fmt.Fprintf(w, "  %s  %s  %s\n", t.Title, formatLocal(t.DTStart, t.Timezone), ruleLabel(t))
		}
		return nil
	}
	for _, t := range out.Tasks {
		_, _ = fmt.Fprintf(w, "Created series %s: %s\n", t.ID, t.Title)
	}
	return nil
}

// newAgendaCommand creates the agenda command.
func newAgendaCommand(c *app.Container) *cobra.Command {
	var opts struct {
		From     string
		To       string
		Timezone string
		Days     int
	}

	cmd := &cobra.Command{
		Use:   "agenda",
		Short: "List occurrences in a date range",
		Long: `List the occurrences of your active series between two dates.

Dates are local to --tz; both ends are included. The KEY column is the
occurrence key expected by 'edit', 'rm', 'done' and 'undone'.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			actorID, err := actor(c)
			if err != nil {
				return err
			}
			from, to, err := agendaWindow(c.Clock.Now(), opts.From, opts.To, opts.Days, opts.Timezone)
			if err != nil {
				return err
			}

			uc := c.MaterializeUseCase()
			out, err := uc.Execute(cmd.Context(), usecase.MaterializeInput{
				ActorID: actorID,
				From:    from,
				To:      to,
			})
			if err != nil {
				return err
			}
			return printAgenda(cmd.OutOrStdout(), out, opts.Timezone)
		},
	}

	cmd.Flags().StringVar(&opts.From, "from", "", "First day (YYYY-MM-DD, default today)")
	cmd.Flags().StringVar(&opts.To, "to", "", "Last day (YYYY-MM-DD, default --from plus --days)")
	cmd.Flags().IntVar(&opts.Days, "days", 7, "Number of days when --to is not given")
	cmd.Flags().StringVar(&opts.Timezone, "tz", localZoneName(), "IANA timezone used for dates and display")

	return cmd
}

// newEditCommand creates the edit command.
func newEditCommand(c *app.Container) *cobra.Command {
	var opts struct {
		Scope         string
		Title         string
		Icon          string
		Start         string
		Zone          string
		Timezone      string
		Rule          string
		Duration      int
		ClearTitle    bool
		ClearStart    bool
		ClearDuration bool
	}

	cmd := &cobra.Command{
		Use:   "edit <series-id> <occurrence>",
		Short: "Edit an occurrence, the rest of a series or a whole series",
		Long: `Edit one occurrence (--scope single), this occurrence and every later
one (--scope future) or the whole series (--scope all).

<occurrence> is the occurrence key shown by 'agenda' (an RFC 3339 instant) or
a local "YYYY-MM-DD HH:MM" in --tz.

Only flags that are given change anything. On a single occurrence, the
--clear-* flags drop an override so the value follows the series again.
--rule, --timezone and --icon need --scope future or all.

Examples:
  # Move one occurrence by an hour
  taskcal edit 3f2c... 2024-03-11T09:00:00Z --start "2024-03-11 10:00"

  # Rename this and all later occurrences
  taskcal edit 3f2c... 2024-03-18T09:00:00Z --scope future --title "Planning"

  # Make the whole series daily
  taskcal edit 3f2c... 2024-03-04T09:00:00Z --scope all --rule "FREQ=DAILY;INTERVAL=1;COUNT=5"`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			actorID, err := actor(c)
			if err != nil {
				return err
			}
			scope, err := domain.ParseScope(opts.Scope)
			if err != nil {
				return err
			}
			original, err := parseWhen(args[1], opts.Zone)
			if err != nil {
				return err
			}

			changes, err := editChanges(cmd, opts.Zone, opts.Timezone, opts.Title, opts.Icon, opts.Start, opts.Rule,
				opts.Duration, opts.ClearTitle, opts.ClearStart, opts.ClearDuration)
			if err != nil {
				return err
			}

			uc := c.EditOccurrenceUseCase()
			out, err := uc.Execute(cmd.Context(), usecase.EditOccurrenceInput{
				ActorID:       actorID,
				TaskID:        args[0],
				OriginalStart: original,
				Scope:         scope,
				Changes:       changes,
			})
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			switch {
			case out.Exception != nil:
				_, _ = fmt.Fprintf(w, "Updated occurrence %s of series %s\n",
					out.Exception.OriginalStart.Format(time.RFC3339), out.Exception.TaskID)
			case out.Scope == domain.ScopeFuture:
				_, _ = fmt.Fprintf(w, "Split series %s: new series %s\n", args[0], out.Task.ID)
			default:
				_, _ = fmt.Fprintf(w, "Updated series %s\n", out.Task.ID)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Scope, "scope", "single", "Scope: single, future or all")
	cmd.Flags().StringVar(&opts.Title, "title", "", "New title")
	cmd.Flags().StringVar(&opts.Icon, "icon", "", "New icon")
	cmd.Flags().StringVar(&opts.Start, "start", "", "New start (RFC 3339 or local \"YYYY-MM-DD HH:MM\")")
	cmd.Flags().IntVar(&opts.Duration, "duration", 0, "New duration in minutes")
	cmd.Flags().StringVar(&opts.Rule, "rule", "", "New rule, e.g. \"FREQ=WEEKLY;INTERVAL=1;COUNT=4\" (\"none\" makes it a one-off)")
	cmd.Flags().StringVar(&opts.Zone, "tz", localZoneName(), "Timezone of local <occurrence> and --start values")
	cmd.Flags().StringVar(&opts.Timezone, "timezone", "", "New series timezone (IANA name)")
	cmd.Flags().BoolVar(&opts.ClearTitle, "clear-title", false, "Drop the title override (single)")
	cmd.Flags().BoolVar(&opts.ClearStart, "clear-start", false, "Drop the start override (single)")
	cmd.Flags().BoolVar(&opts.ClearDuration, "clear-duration", false, "Drop the duration override (single)")

	return cmd
}

// editChanges builds the requested changes from the flags that were given.
func editChanges(cmd *cobra.Command, zone, timezone, title, icon, start, rule string, duration int,
	clearTitle, clearStart, clearDuration bool,
) (domain.OccurrenceChanges, error) {
	var ch domain.OccurrenceChanges
	flags := cmd.Flags()

	if flags.Changed("title") && clearTitle {
		return ch, errors.New("--title and --clear-title are mutually exclusive")
	}
	if flags.Changed("start") && clearStart {
		return ch, errors.New("--start and --clear-start are mutually exclusive")
	}
	if flags.Changed("duration") && clearDuration {
		return ch, errors.New("--duration and --clear-duration are mutually exclusive")
	}

	switch {
	case flags.Changed("title"):
		ch.Title = domain.SetTo(title)
	case clearTitle:
		ch.Title = domain.Cleared[string]()
	}
	switch {
	case flags.Changed("start"):
		t, err := parseWhen(start, zone)
		if err != nil {
			return ch, err
		}
		ch.Start = domain.SetTo(t)
	case clearStart:
		ch.Start = domain.Cleared[time.Time]()
	}
	switch {
	case flags.Changed("duration"):
		ch.Duration = domain.SetTo(duration)
	case clearDuration:
		ch.Duration = domain.Cleared[int]()
	}
	if flags.Changed("icon") {
		ch.Icon = domain.SetTo(icon)
	}
	if flags.Changed("timezone") {
		ch.Timezone = domain.SetTo(timezone)
	}
	if flags.Changed("rule") {
		if strings.EqualFold(strings.TrimSpace(rule), "none") {
			ch.Recurrence = domain.Cleared[domain.RecurrenceRule]()
		} else {
			r, err := domain.ParseRule(rule)
			if err != nil {
				return ch, err
			}
			ch.Recurrence = domain.SetTo(r)
		}
	}
	return ch, nil
}

// newRmCommand creates the rm command.
func newRmCommand(c *app.Container) *cobra.Command {
	var scope string
	var zone string

	cmd := &cobra.Command{
		Use:   "rm <series-id> <occurrence>",
		Short: "Delete an occurrence, the rest of a series or a whole series",
		Long: `Delete one occurrence (--scope single), this occurrence and every later
one (--scope future) or the whole series with its overrides (--scope all).`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			actorID, err := actor(c)
			if err != nil {
				return err
			}
			sc, err := domain.ParseScope(scope)
			if err != nil {
				return err
			}
			original, err := parseWhen(args[1], zone)
			if err != nil {
				return err
			}

			uc := c.DeleteOccurrenceUseCase()
			out, err := uc.Execute(cmd.Context(), usecase.DeleteOccurrenceInput{
				ActorID:       actorID,
				TaskID:        args[0],
				OriginalStart: original,
				Scope:         sc,
			})
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			switch {
			case out.TaskDeleted:
				_, _ = fmt.Fprintf(w, "Deleted series %s\n", args[0])
			case out.Exception != nil:
				_, _ = fmt.Fprintf(w, "Cancelled occurrence %s of series %s\n",
					out.Exception.OriginalStart.Format(time.RFC3339), args[0])
			default:
				_, _ = fmt.Fprintf(w, "Ended series %s before %s\n", args[0], original.Format(time.RFC3339))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&scope, "scope", "single", "Scope: single, future or all")
	cmd.Flags().StringVar(&zone, "tz", localZoneName(), "Timezone of a local <occurrence>")

	return cmd
}

// newDoneCommand creates the done (complete=true) or undone command.
func newDoneCommand(c *app.Container, complete bool) *cobra.Command {
	use, short := "done", "Mark an occurrence as completed"
	if !complete {
		use, short = "undone", "Mark an occurrence as not completed"
	}
	var zone string

	cmd := &cobra.Command{
		Use:   use + " <series-id> <occurrence>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			actorID, err := actor(c)
			if err != nil {
				return err
			}
			original, err := parseWhen(args[1], zone)
			if err != nil {
				return err
			}

			uc := c.ToggleCompletionUseCase()
			out, err := uc.Execute(cmd.Context(), usecase.ToggleCompletionInput{
				ActorID:       actorID,
				TaskID:        args[0],
				OriginalStart: original,
				Complete:      complete,
			})
			if err != nil {
				return err
			}

			state := "completed"
			if !out.Exception.Complete {
				state = "not completed"
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Marked %s of series %s %s\n",
				out.Exception.OriginalStart.Format(time.RFC3339), args[0], state)
			return nil
		},
	}

	cmd.Flags().StringVar(&zone, "tz", localZoneName(), "Timezone of a local <occurrence>")

	return cmd
}

// newArchiveCommand creates the archive command.
func newArchiveCommand(c *app.Container) *cobra.Command {
	var restore bool

	cmd := &cobra.Command{
		Use:   "archive <series-id>",
		Short: "Archive a series (hide it from the agenda)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			actorID, err := actor(c)
			if err != nil {
				return err
			}
			status := domain.StatusArchived
			if restore {
				status = domain.StatusActive
			}

			uc := c.SetSeriesStatusUseCase()
			out, err := uc.Execute(cmd.Context(), usecase.SetSeriesStatusInput{
				ActorID: actorID,
				TaskID:  args[0],
				Status:  status,
			})
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Series %s is now %s\n", out.Task.ID, out.Task.Status)
			return nil
		},
	}

	cmd.Flags().BoolVar(&restore, "restore", false, "Make an archived series active again")

	return cmd
}

// newExportCommand creates the export command.
func newExportCommand(c *app.Container) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export <series-id>",
		Short: "Export a series as iCalendar",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			actorID, err := actor(c)
			if err != nil {
				return err
			}

			uc := c.ExportICSUseCase()
			out, err := uc.Execute(cmd.Context(), usecase.ExportICSInput{
				ActorID: actorID,
				TaskID:  args[0],
			})
			if err != nil {
				return err
			}

			if output == "" || output == "-" {
				_, err = cmd.OutOrStdout().Write(out.Data)
				return err
			}
			if err := os.WriteFile(output, out.Data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default: stdout)")

	return cmd
}
