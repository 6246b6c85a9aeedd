package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/noah-isme/psy-schedule-api/internal/models"
	"github.com/noah-isme/psy-schedule-api/internal/scheduling"
	"github.com/noah-isme/psy-schedule-api/internal/service"
	appErrors "github.com/noah-isme/psy-schedule-api/pkg/errors"
	"github.com/noah-isme/psy-schedule-api/pkg/export"
)

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:           "schedulectl",
		Short:         "Psychologist schedule client",
		Long:          "Browse the appointment calendar and change appointment statuses against the scheduling backend.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.baseURL, "base-url", "", "Scheduling backend base URL (default GATEWAY_BASE_URL)")
	flags.StringVar(&opts.token, "token", "", "Bearer token (default GATEWAY_TOKEN)")
	flags.DurationVar(&opts.timeout, "timeout", 0, "Backend request timeout")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Debug logging on stderr")

	rootCmd.AddCommand(viewCmd(opts, models.ViewWeek))
	rootCmd.AddCommand(viewCmd(opts, models.ViewDay))
	rootCmd.AddCommand(statusCmd(opts))
	rootCmd.AddCommand(notesCmd(opts))
	rootCmd.AddCommand(exportCmd(opts))
	return rootCmd
}

func viewCmd(opts *rootOptions, mode models.ViewMode) *cobra.Command {
	cmd := &cobra.Command{
		Use:   string(mode),
		Short: fmt.Sprintf("Print the %s grid", mode),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			date, _ := cmd.Flags().GetString("date")
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.close()

			grid, err := a.load(cmd.Context(), mode, date)
			if err != nil {
				return err
			}
			return printGrid(cmd.OutOrStdout(), grid)
		},
	}
	cmd.Flags().String("date", "", "Any date inside the range, YYYY-MM-DD (default today)")
	return cmd
}

func statusCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <appointment-id> <STATUS>",
		Short: "Change an appointment status after confirmation",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseAppointmentID(args[0])
			if err != nil {
				return err
			}
			target, err := scheduling.ParseStatus(strings.ToUpper(args[1]))
			if err != nil {
				return err
			}
			date, _ := cmd.Flags().GetString("date")
			yes, _ := cmd.Flags().GetBool("yes")

			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.close()

			if _, err := a.load(cmd.Context(), models.ViewWeek, date); err != nil {
				return err
			}
			appt, ok := a.store.Find(id)
			if !ok {
				return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("appointment %d is not in the loaded week; pass --date", id))
			}
			if _, err := a.workflow.RequestStatusChange(appt, target); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !yes {
				prompt := fmt.Sprintf("Change appointment #%d (%s) from %s to %s?",
					appt.ID, appt.ClientName, scheduling.Label(appt.Status), scheduling.Label(target))
				ok, err := confirm(cmd.InOrStdin(), out, prompt)
				if err != nil {
					return err
				}
				if !ok {
					a.workflow.Cancel()
					fmt.Fprintln(out, "Cancelled, no change made.")
					return nil
				}
			}

			updated, err := a.workflow.Confirm(cmd.Context())
			if err != nil {
				if updated.ID != 0 {
					fmt.Fprintf(out, "Appointment #%d is now %s, but the schedule could not be refreshed.\n", updated.ID, updated.StatusDisplay)
				}
				return err
			}
			fmt.Fprintf(out, "Appointment #%d is now %s.\n", updated.ID, updated.StatusDisplay)
			return nil
		},
	}
	cmd.Flags().String("date", "", "Date inside the week holding the appointment, YYYY-MM-DD (default today)")
	cmd.Flags().BoolP("yes", "y", false, "Skip the confirmation prompt")
	return cmd
}

func notesCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "notes <appointment-id> <text>",
		Short: "Replace the psychologist notes of an appointment",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseAppointmentID(args[0])
			if err != nil {
				return err
			}
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.close()

			updated, err := a.workflow.UpdateNotes(cmd.Context(), id, strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Notes saved for appointment #%d.\n", updated.ID)
			return nil
		},
	}
}

func exportCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the week or day grid to a CSV or PDF file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")
			outPath, _ := cmd.Flags().GetString("out")
			date, _ := cmd.Flags().GetString("date")
			day, _ := cmd.Flags().GetBool("day")

			renderer, err := export.ForFormat(strings.ToLower(format))
			if err != nil {
				return appErrors.Clone(appErrors.ErrValidation, err.Error())
			}

			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.close()

			mode := models.ViewWeek
			if day {
				mode = models.ViewDay
			}
			grid, err := a.load(cmd.Context(), mode, date)
			if err != nil {
				return err
			}
			body, err := renderer.Render(service.GridTable(grid))
			if err != nil {
				return err
			}
			if outPath == "" {
				outPath = fmt.Sprintf("schedule_%s_%s.%s", grid.Range.Start, grid.Range.End, renderer.Extension())
			}
			if err := os.WriteFile(outPath, body, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d bytes).\n", outPath, len(body))
			return nil
		},
	}
	cmd.Flags().String("format", "csv", "csv or pdf")
	cmd.Flags().String("out", "", "Output file (default schedule_<start>_<end>.<ext>)")
	cmd.Flags().String("date", "", "Date inside the range, YYYY-MM-DD (default today)")
	cmd.Flags().Bool("day", false, "Export a single day instead of the week")
	return cmd
}

func parseAppointmentID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, appErrors.Clone(appErrors.ErrValidation, "appointment id must be a positive integer")
	}
	return id, nil
}

