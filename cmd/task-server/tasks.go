package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"taskkeeper/internal/tasks"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newAddCmd() *cobra.Command {
	var (
		description, category, priority string
		date, clock, notes              string
		tags                            []string
		reminder                        int
		noReminder                      bool
	)

	cmd := &cobra.Command{
		Use:   "add TITLE",
		Short: "Create a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !tasks.IsValidTask(args[0]) {
				return errors.New("title is required")
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			title := args[0]
			f := tasks.Fields{Title: &title}
			if cmd.Flags().Changed("description") {
				f.Description = &description
			}
			if cmd.Flags().Changed("category") {
				c := tasks.Category(category)
				f.Category = &c
			}
			if cmd.Flags().Changed("priority") {
				p := tasks.Priority(priority)
				f.Priority = &p
			}
			if date != "" {
				d, err := parseDate(date, a.store.Location())
				if err != nil {
					return err
				}
				f.Date = &d
			}
			if clock != "" {
				f.Time = &clock
			}
			if cmd.Flags().Changed("notes") {
				f.Notes = &notes
			}
			if len(tags) > 0 {
				f.Tags = &tags
			}
			if noReminder || cmd.Flags().Changed("reminder") {
				f.Reminder = &tasks.Reminder{Enabled: !noReminder, Minutes: reminder}
			}

			res := a.store.Create(cmd.Context(), f)
			if !res.Success {
				return res.Err()
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s\n", res.Task.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&description, "description", "d", "", "task description")
	cmd.Flags().StringVar(&category, "category", string(tasks.DefaultCategory), "work, personal, shopping, health, education")
	cmd.Flags().StringVarP(&priority, "priority", "p", string(tasks.DefaultPriority), "high, medium or low")
	cmd.Flags().StringVar(&date, "date", "", "due date (YYYY-MM-DD or RFC 3339), default now")
	cmd.Flags().StringVar(&clock, "time", "", "due time (HH:MM), default now")
	cmd.Flags().StringVar(&notes, "notes", "", "notes")
	cmd.Flags().StringSliceVarP(&tags, "tag", "t", nil, "tag (repeatable)")
	cmd.Flags().IntVar(&reminder, "reminder", tasks.DefaultReminderMinutes, "reminder lead time in minutes")
	cmd.Flags().BoolVar(&noReminder, "no-reminder", false, "disable the reminder")
	return cmd
}

func newListCmd() *cobra.Command {
	var (
		today, overdue     bool
		upcoming           int
		category, priority string
		search, output     string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks, optionally through one of the derived queries",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			ctx := cmd.Context()
			var out []tasks.Task
			switch {
			case today:
				out = a.store.Today(ctx)
			case overdue:
				out = a.store.Overdue(ctx)
			case cmd.Flags().Changed("upcoming"):
				out = a.store.Upcoming(ctx, upcoming)
			case category != "":
				out = a.store.ByCategory(ctx, tasks.Category(category))
			case priority != "":
				out = a.store.ByPriority(ctx, tasks.Priority(priority))
			case cmd.Flags().Changed("search"):
				out = a.store.Search(ctx, search)
			default:
				out = a.store.GetAll(ctx)
			}
			return render(cmd.OutOrStdout(), output, out, a.store.Location())
		},
	}

	cmd.Flags().BoolVar(&today, "today", false, "pending tasks due today")
	cmd.Flags().BoolVar(&overdue, "overdue", false, "pending tasks due before today")
	cmd.Flags().IntVar(&upcoming, "upcoming", tasks.DefaultUpcomingDays, "pending tasks due within N days")
	cmd.Flags().StringVar(&category, "category", "", "filter by category")
	cmd.Flags().StringVar(&priority, "priority", "", "filter by priority")
	cmd.Flags().StringVarP(&search, "search", "s", "", "search title, description and tags")
	cmd.Flags().StringVarP(&output, "output", "o", "table", "table, json or yaml")
	return cmd
}

func newToggleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "toggle ID",
		Short: "Flip a task between pending and completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			res := a.store.ToggleCompletion(cmd.Context(), args[0])
			if !res.Success {
				return res.Err()
			}
			state := "pending"
			if res.Task.Completed {
				state = "completed"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is %s\n", res.Task.ID, state)
			return nil
		},
	}
}

func newRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm ID",
		Aliases: []string{"delete"},
		Short:   "Delete a task",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			if res := a.store.Delete(cmd.Context(), args[0]); !res.Success {
				return res.Err()
			}
			return nil
		},
	}
}

func newStatsCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show task statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			st := a.store.Stats(cmd.Context())
			if st == nil {
				return errors.New("failed to load tasks")
			}
			switch output {
			case "json":
				return writeJSONTo(cmd.OutOrStdout(), st)
			case "yaml":
				return yaml.NewEncoder(cmd.OutOrStdout()).Encode(st)
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "total %d, completed %d, pending %d, overdue %d, today %d\n",
				st.Total, st.Completed, st.Pending, st.Overdue, st.Today)
			fmt.Fprintf(w, "pending by priority: high %d, medium %d, low %d\n",
				st.PriorityBreakdown.High, st.PriorityBreakdown.Medium, st.PriorityBreakdown.Low)
			for _, c := range tasks.Categories {
				if n := st.CategoryBreakdown[c]; n > 0 {
					fmt.Fprintf(w, "  %s: %d\n", c, n)
				}
			}
			for c, n := range st.CategoryBreakdown {
				if !c.Known() {
					fmt.Fprintf(w, "  %s: %d\n", c, n)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "text", "text, json or yaml")
	return cmd
}

func newClearCmd() *cobra.Command {
	var everything bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete all tasks (with --all also preferences and settings)",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			if everything {
				return a.settings.ClearAll(cmd.Context())
			}
			if res := a.store.ClearAll(cmd.Context()); !res.Success {
				return res.Err()
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&everything, "all", false, "also remove preferences and app settings")
	return cmd
}

// parseDate принимает "2006-01-02" (полночь в поясе хранилища) или RFC 3339.
func parseDate(raw string, loc *time.Location) (time.Time, error) {
	if d, err := time.ParseInLocation(time.DateOnly, raw, loc); err == nil {
		return d, nil
	}
	d, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: use YYYY-MM-DD or RFC 3339", raw)
	}
	return d, nil
}

func render(w io.Writer, format string, list []tasks.Task, loc *time.Location) error {
	switch format {
	case "json":
		return writeJSONTo(w, list)
	case "yaml":
		return yaml.NewEncoder(w).Encode(list)
	case "table", "":
	default:
		return fmt.Errorf("unknown output format %q", format)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDONE\tPRIORITY\tCATEGORY\tDUE\tTITLE\tREMINDER")
	for _, t := range list {
		done := " "
		if t.Completed {
			done = "x"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			t.ID, done, t.Priority, t.Category,
			t.DueAt(loc).Format("2006-01-02 15:04"),
			strings.TrimSpace(t.Title),
			strings.ToLower(t.Reminder.Describe()))
	}
	return tw.Flush()
}

func writeJSONTo(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
