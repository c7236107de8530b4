package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/chriscow/memora/pkg/interpret"
	"github.com/chriscow/memora/pkg/normalize"
	"github.com/chriscow/memora/pkg/reminder"
	"github.com/spf13/cobra"
)

// nowFlag adds --now so date resolution can be pinned.
func nowFlag(cmd *cobra.Command) func() (time.Time, error) {
	cmd.Flags().String("now", "", "Reference time, RFC 3339 or YYYY-MM-DD (default: current time)")
	return func() (time.Time, error) {
		s, _ := cmd.Flags().GetString("now")
		if s == "" {
			return time.Now(), nil
		}
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t, nil
		}
		t, err := time.ParseInLocation(normalize.ISODate, s, time.Local)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid --now %q", s)
		}
		return t, nil
	}
}

type draftJSON struct {
	Name       string   `json:"name"`
	Date       string   `json:"date"`
	Time       string   `json:"time"`
	Repeat     bool     `json:"repeat"`
	RepeatDays []string `json:"repeatDays,omitempty"`
}

func newParseCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parse <utterance>",
		Short: "Interpret a one-shot create command and print the reminder as JSON",
		Args:  cobra.MinimumNArgs(1),
	}
	now := nowFlag(cmd)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		t, err := now()
		if err != nil {
			return err
		}
		d, ok := interpret.Parse(strings.Join(args, " "), t)
		if !ok {
			return errors.New("not a complete create command")
		}
		out := draftJSON{Name: d.Name, Date: d.Date, Time: d.Time, Repeat: *d.Repeat, RepeatDays: d.RepeatDays}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
	return cmd
}

func newNormalizeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "normalize",
		Short: "Run a spoken answer through one of the normalizers",
	}

	timeCmd := &cobra.Command{
		Use:   "time <text>",
		Short: "Normalize a spoken time to HH:MM",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hhmm, ok := normalize.Time(strings.Join(args, " "))
			if !ok {
				return errors.New("not a time")
			}
			fmt.Fprintln(cmd.OutOrStdout(), hhmm)
			return nil
		},
	}

	dateCmd := &cobra.Command{
		Use:   "date <text>",
		Short: "Normalize a spoken date to YYYY-MM-DD",
		Args:  cobra.MinimumNArgs(1),
	}
	now := nowFlag(dateCmd)
	dateCmd.RunE = func(cmd *cobra.Command, args []string) error {
		t, err := now()
		if err != nil {
			return err
		}
		date, ok := normalize.Date(strings.Join(args, " "), t)
		if !ok {
			return errors.New("not a date")
		}
		fmt.Fprintln(cmd.OutOrStdout(), date)
		return nil
	}

	daysCmd := &cobra.Command{
		Use:   "days <text>",
		Short: "Extract weekdays from a spoken answer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			days := normalize.Weekdays(strings.Join(args, " "))
			if len(days) == 0 {
				return errors.New("no weekdays found")
			}
			fmt.Fprintln(cmd.OutOrStdout(), strings.Join(days, ","))
			return nil
		},
	}

	cmd.AddCommand(timeCmd, dateCmd, daysCmd)
	return cmd
}

func newRemindersCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reminders",
		Short: "Manage stored reminders",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List reminders with their urgency",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd.Context(), func(ctx context.Context, s reminder.Store) error {
				list, err := s.List(ctx)
				if err != nil {
					return err
				}
				now := time.Now()
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tNAME\tDATE\tTIME\tREPEAT\tURGENCY")
				for _, r := range list {
					repeat := "-"
					if r.Repeat {
						repeat = normalize.WeekdaysForSpeech(r.RepeatDays)
						if repeat == "" {
							repeat = "todos os dias"
						}
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", r.ID, r.Name, r.Date, r.Time, repeat, r.Urgency(now))
				}
				return w.Flush()
			})
		},
	}

	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Create a reminder; date, time and days accept spoken forms",
	}
	addCmd.Flags().String("name", "", "Reminder name")
	addCmd.Flags().String("date", "hoje", "Date, e.g. 2026-10-20, amanhã, 20 de outubro")
	addCmd.Flags().String("time", "", "Time, e.g. 14:30, 8 horas, meio-dia")
	addCmd.Flags().String("days", "", "Repeat on these weekdays, e.g. \"segunda e quarta\"")
	_ = addCmd.MarkFlagRequired("name")
	_ = addCmd.MarkFlagRequired("time")
	now := nowFlag(addCmd)
	addCmd.RunE = func(cmd *cobra.Command, args []string) error {
		t, err := now()
		if err != nil {
			return err
		}
		d, err := draftFromFlags(cmd, t)
		if err != nil {
			return err
		}
		return a.withStore(cmd.Context(), func(ctx context.Context, s reminder.Store) error {
			if err := s.Create(ctx, d); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %q on %s at %s\n", d.Name, d.Date, d.Time)
			return nil
		})
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <name-or-id>",
		Short: "Delete a reminder by ID or name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd.Context(), func(ctx context.Context, s reminder.Store) error {
				target := args[0]
				if list, err := s.List(ctx); err == nil {
					if r, ok := reminder.Find(list, target); ok {
						target = r.Ident()
					}
				}
				if err := s.Delete(ctx, target); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
				return nil
			})
		},
	}

	cmd.AddCommand(listCmd, addCmd, deleteCmd)
	return cmd
}

func draftFromFlags(cmd *cobra.Command, now time.Time) (reminder.Draft, error) {
	name, _ := cmd.Flags().GetString("name")
	dateText, _ := cmd.Flags().GetString("date")
	timeText, _ := cmd.Flags().GetString("time")
	daysText, _ := cmd.Flags().GetString("days")

	d := reminder.Draft{Name: normalize.TitleCase(strings.TrimSpace(name)), Repeat: reminder.Bool(false)}
	if normalize.IsISODate(dateText) {
		d.Date = dateText
	} else if date, ok := normalize.Date(dateText, now); ok {
		d.Date = date
	} else {
		return d, fmt.Errorf("cannot understand date %q", dateText)
	}
	hhmm, ok := normalize.Time(timeText)
	if !ok {
		return d, fmt.Errorf("cannot understand time %q", timeText)
	}
	d.Time = hhmm
	if daysText != "" {
		days := normalize.Weekdays(daysText)
		if len(days) == 0 {
			return d, fmt.Errorf("cannot understand days %q", daysText)
		}
		d.Repeat = reminder.Bool(true)
		d.RepeatDays = days
	}
	return d, d.Validate()
}

func (a *app) withStore(ctx context.Context, fn func(context.Context, reminder.Store) error) error {
	s, closeStore, err := a.openStore()
	if err != nil {
		return err
	}
	defer closeStore()
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	return fn(ctx, s)
}

func newClipsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clips",
		Short: "Inspect the prerecorded prompt clips",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Decode every clip in the manifest and report the broken ones",
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, err := a.clipLibrary()
			if err != nil {
				return err
			}
			problems := lib.Check()
			for _, p := range problems {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%v\n", p.Key, p.Path, p.Err)
			}
			if len(problems) > 0 {
				return fmt.Errorf("%d clips cannot be played", len(problems))
			}
			fmt.Fprintln(cmd.OutOrStdout(), "all clips ok")
			return nil
		},
	})
	return cmd
}
