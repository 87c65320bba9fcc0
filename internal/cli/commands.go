package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"paytrack/internal/amqp"
	"paytrack/internal/app"
	"paytrack/internal/core"
	apphttp "paytrack/internal/http"
	"paytrack/internal/log"
	"paytrack/internal/report"
	"paytrack/internal/worker"
)

const shutdownTimeout = 30 * time.Second

func newServeCmd(rt *runtime) *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the ledger over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if port == "" {
				port = rt.cfg.Port
			}
			logger := rt.logger.WithComponent(log.ComponentHTTP)
			ctx, stop := GracefulShutdown(cmd.Context())
			defer stop()

			opts := []apphttp.Option{apphttp.WithLogger(logger)}
			if rt.backend != nil {
				for name, check := range rt.backend.Checks {
					opts = append(opts, apphttp.WithCheck(name, apphttp.Checker(check)))
				}
			}
			srv := apphttp.NewServer(":"+port, rt.session, opts...)

			errCh := make(chan error, 1)
			go func() {
				logger.Info("Starting paytrack server", "port", port, "backend", rt.cfg.DataBackend)
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("server error on port %s: %w", port, err)
				}
				return nil
			case <-ctx.Done():
				logger.Info("Shutdown signal received")
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("Server shutdown error", log.FieldError, err)
			}
			if err := rt.session.Save(shutdownCtx); err != nil {
				logger.Error("Final save failed", log.FieldOperation, log.OpShutdown, log.FieldError, err)
			}
			logger.Info("Server stopped gracefully")
			return nil
		},
	}
	cmd.Flags().StringVarP(&port, "port", "p", "", "port to listen on (default from PORT)")
	return cmd
}

func newAddCmd(rt *runtime) *cobra.Command {
	var rateFlag string
	cmd := &cobra.Command{
		Use:   "add <date> <time-in> <time-out>",
		Short: "Record a work day",
		Example: `  paytrack add 2025-05-01 09:00 17:30
  paytrack add 2025-05-02 08:15 12:45 --rate 18.50`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			date, err := core.ParseDate(args[0])
			if err != nil {
				return fmt.Errorf("%q: %w", args[0], err)
			}
			rate := rt.session.Rate()
			if rateFlag != "" {
				if rate, err = core.ParseRate(rateFlag); err != nil {
					return fmt.Errorf("%q: %w", rateFlag, err)
				}
			}
			// the rate only changes when the day is accepted
			in := core.EntryInput{Date: date, TimeIn: args[1], TimeOut: args[2], Rate: rate}
			if _, _, err := rt.session.Ledger().Add(in); err != nil {
				return err
			}
			if !rate.Equal(rt.session.Rate()) {
				if err := rt.session.SetRate(cmd.Context(), rate); err != nil {
					return err
				}
			}
			entry, err := rt.session.AddDay(cmd.Context(), date, args[1], args[2])
			if err != nil {
				return err
			}
			fmt.Fprintf(rt.out, "Added %s %s-%s: %s h, %s %s\n",
				entry.Date, entry.TimeIn, entry.TimeOut,
				core.FormatAmount(entry.HoursWorked), core.FormatAmount(entry.Earnings), rt.session.Currency())
			return nil
		},
	}
	cmd.Flags().StringVar(&rateFlag, "rate", "", "hourly rate for this and later days")
	return cmd
}

func newShowCmd(rt *runtime) *cobra.Command {
	var month string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "List recorded work days",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			l := rt.session.Ledger()
			if month != "" {
				t, err := time.Parse("2006-01", month)
				if err != nil {
					return NewCLIError(fmt.Sprintf("invalid month %q", month), "Use the YYYY-MM format", core.ErrInvalidDate)
				}
				l = l.Month(t.Year(), int(t.Month()))
			}
			if l.IsEmpty() {
				fmt.Fprintln(rt.out, "No work days recorded. Use 'paytrack add' to record one.")
				return nil
			}
			fmt.Fprintln(rt.out, renderLedger(l, rt.session.Currency()))
			return nil
		},
	}
	cmd.Flags().StringVar(&month, "month", "", "only show days of this month (YYYY-MM)")
	return cmd
}

func newTotalsCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "totals",
		Short: "Show total hours and earnings",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			fmt.Fprintln(rt.out, renderTotals(rt.session.Totals(), rt.session.Rate(), rt.session.Currency()))
			return nil
		},
	}
}

func newRateCmd(rt *runtime) *cobra.Command {
	show := func(_ *cobra.Command, _ []string) error {
		fmt.Fprintf(rt.out, "%s %s/h\n", core.FormatAmount(rt.session.Rate()), rt.session.Currency())
		return nil
	}
	cmd := &cobra.Command{
		Use:   "rate",
		Short: "Show or change the hourly rate",
		Args:  cobra.NoArgs,
		RunE:  show,
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "get",
			Short: "Show the hourly rate",
			Args:  cobra.NoArgs,
			RunE:  show,
		},
		&cobra.Command{
			Use:   "set <rate>",
			Short: "Set the hourly rate used for new days",
			Long:  "Set the hourly rate used for new days. Days already recorded keep their earnings.",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				rate, err := core.ParseRate(args[0])
				if err != nil {
					return fmt.Errorf("%q: %w", args[0], err)
				}
				if err := rt.session.SetRate(cmd.Context(), rate); err != nil {
					return err
				}
				fmt.Fprintf(rt.out, "Hourly rate set to %s %s/h\n", core.FormatAmount(rate), rt.session.Currency())
				return nil
			},
		},
	)
	return cmd
}

func newClearCmd(rt *runtime) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every recorded work day",
		Long:  "Remove every recorded work day. The hourly rate is kept.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return NewCLIError("refusing to clear without confirmation", "Re-run with --yes; consider 'paytrack export --format detailed' first", nil)
			}
			n := rt.session.Ledger().Len()
			rt.session.Clear(cmd.Context())
			fmt.Fprintf(rt.out, "Cleared %d work days\n", n)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "confirm clearing the ledger")
	return cmd
}

func newSaveCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "save",
		Short: "Write the ledger and rate to storage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := rt.session.Save(cmd.Context()); err != nil {
				return NewCLIError("save failed", "Check that the storage backend is reachable", err)
			}
			fmt.Fprintf(rt.out, "Saved %d work days\n", rt.session.Ledger().Len())
			return nil
		},
	}
}

func newExportCmd(rt *runtime) *cobra.Command {
	var format, output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the ledger",
		Long: `Export the ledger as plain CSV (default), the detailed backup CSV that
keeps each day's rate, or an XLSX or PDF statement.

CSV formats go to standard output unless --output is given. Statements are
written to work-days-YYYY-MM.xlsx or .pdf by default.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				data []byte
				ext  string
			)
			switch format {
			case "csv":
				data, ext = []byte(rt.session.ExportCSV()), "csv"
			case "detailed":
				text, err := rt.session.ExportDetailed()
				if err != nil {
					return err
				}
				data, ext = []byte(text), "csv"
			case "xlsx", "pdf":
				stmt := report.NewStatement(rt.session.Ledger(), rt.session.Rate(), rt.session.Currency(), rt.now())
				build := report.BuildXLSX
				if format == "pdf" {
					build = report.BuildPDF
				}
				var err error
				if data, err = build(stmt); err != nil {
					return fmt.Errorf("build %s statement: %w", format, err)
				}
				ext = format
				if output == "" {
					output = defaultExportName(rt.now(), ext)
				}
			default:
				return NewCLIError(fmt.Sprintf("unknown format %q", format), "Use one of csv, detailed, xlsx, pdf", nil)
			}

			if output == "" || output == "-" {
				_, err := rt.out.Write(data)
				if err == nil && ext == "csv" {
					_, err = fmt.Fprintln(rt.out)
				}
				return err
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return fmt.Errorf("write export: %w", err)
			}
			rt.logger.Debug("Export written", log.FieldOperation, log.OpExport, log.FieldFormat, format, "path", output)
			fmt.Fprintf(rt.out, "Exported %d work days to %s\n", rt.session.Ledger().Len(), output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "csv", "csv, detailed, xlsx or pdf")
	cmd.Flags().StringVarP(&output, "output", "o", "", "file to write, - for standard output")
	return cmd
}

func defaultExportName(now time.Time, ext string) string {
	return fmt.Sprintf("work-days-%s.%s", now.Format("2006-01"), ext)
}

func newImportCmd(rt *runtime) *cobra.Command {
	var opts app.ImportOptions
	cmd := &cobra.Command{
		Use:   "import <file>...",
		Short: "Replace the ledger with the rows of one or more CSV files",
		Long: `Replace the ledger with the rows of one or more CSV files, merged in the
order given. Hours and earnings are taken from the files unless --recompute
is set, in which case they are derived from the times and the current rate.
Malformed rows are skipped and reported.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := rt.session.ImportFiles(cmd.Context(), args, opts)
			if err != nil {
				return err
			}
			for _, row := range res.Skipped {
				fmt.Fprintf(rt.errOut, "skipped %s\n", row.Error())
			}
			fmt.Fprintf(rt.out, "Imported %d work days", res.Imported)
			if n := len(res.Skipped) + res.Rejected; n > 0 {
				fmt.Fprintf(rt.out, ", skipped %d rows", n)
			}
			fmt.Fprintln(rt.out)
			return nil
		},
	}
	cmd.Flags().BoolVar(&opts.Detailed, "detailed", false, "files are detailed backups with a rate column")
	cmd.Flags().BoolVar(&opts.Recompute, "recompute", false, "recompute hours and earnings with the current rate")
	return cmd
}

func newWatchCmd(rt *runtime) *cobra.Command {
	var backupDir string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print ledger change notifications from the broker",
		Long: `Print ledger change notifications from the broker. With --backup-dir each
change also refreshes a detailed CSV backup of the stored ledger.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if rt.backend == nil || rt.backend.Broker == nil {
				return NewCLIError("notifications are not configured", "Set AMQP_URL to a reachable broker", nil)
			}
			ctx, stop := GracefulShutdown(cmd.Context())
			defer stop()

			var backups *worker.BackupWorker
			if backupDir != "" {
				backups = worker.NewBackupWorker(rt.backend.Raw, backupDir, rt.logger)
				if err := backups.StartupBackup(ctx); err != nil {
					return err
				}
			}

			err := rt.backend.Broker.Consume(ctx, func(msg *amqp.LedgerChangedMessage) error {
				if _, err := fmt.Fprintln(rt.out, renderChange(msg, rt.session.Currency())); err != nil {
					return err
				}
				if backups != nil {
					return backups.HandleChange(ctx, msg)
				}
				return nil
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().StringVar(&backupDir, "backup-dir", "", "directory for the detailed CSV backup")
	return cmd
}
