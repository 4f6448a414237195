package main

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"dailycast/internal/cleaner"
	"dailycast/internal/config"
	"dailycast/internal/dates"
	"dailycast/internal/logging"
	"dailycast/internal/services/podcast"
	"dailycast/internal/store"
)

func newDataCommand(ctx *commandContext) *cobra.Command {
	var action string
	var dateFlag string
	var startDate string
	var endDate string
	var days int

	cmd := &cobra.Command{
		Use:   "data",
		Short: "Inspect and maintain the article databases",
		Long:  "Shows stored article statistics, removes old data, and runs database maintenance.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			dateRange, err := resolveDateRange(dateFlag, startDate, endDate)
			if err != nil {
				return err
			}
			switch action {
			case "stats":
				return runDataStats(cmd, cfg, dateRange)
			case "clean":
				return runDataClean(cmd, cfg, dateRange, days)
			case "maintenance":
				return runDataMaintenance(cmd, cfg)
			case "prepare":
				return runDataPrepare(cmd, cfg, dateFlag, days)
			default:
				return fmt.Errorf("unknown action %q: expected stats, clean, maintenance, or prepare", action)
			}
		},
	}

	cmd.Flags().StringVar(&action, "action", "stats", "Action to perform: stats, clean, maintenance, or prepare")
	cmd.Flags().StringVar(&dateFlag, "date", "", "Restrict to a single publication date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&startDate, "start-date", "", "First date of an inclusive range (YYYY-MM-DD)")
	cmd.Flags().StringVar(&endDate, "end-date", "", "Last date of an inclusive range (YYYY-MM-DD)")
	cmd.Flags().IntVar(&days, "days", 0, "Override the retention window in days for clean and prepare")
	return cmd
}

// resolveDateRange turns the --date / --start-date / --end-date flags into an
// explicit day list. A nil result means no date restriction was requested.
func resolveDateRange(dateFlag, startDate, endDate string) ([]string, error) {
	switch {
	case dateFlag != "":
		if startDate != "" || endDate != "" {
			return nil, fmt.Errorf("--date cannot be combined with --start-date/--end-date")
		}
		target, err := dates.Resolve(dateFlag, time.Now())
		if err != nil {
			return nil, err
		}
		return []string{target.Day()}, nil
	case startDate != "" || endDate != "":
		if startDate == "" || endDate == "" {
			return nil, fmt.Errorf("--start-date and --end-date must be given together")
		}
		return dates.Range(startDate, endDate)
	default:
		return nil, nil
	}
}

func runDataStats(cmd *cobra.Command, cfg *config.Config, dateRange []string) error {
	st, err := store.Open(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	stats, err := st.Overview(cmd.Context())
	if err != nil {
		return err
	}
	if dateRange != nil {
		wanted := make(map[string]bool, len(dateRange))
		for _, day := range dateRange {
			wanted[day] = true
		}
		filtered := stats.ByDate[:0]
		for _, day := range stats.ByDate {
			if wanted[day.Date] {
				filtered = append(filtered, day)
			}
		}
		stats.ByDate = filtered
	}

	out := cmd.OutOrStdout()
	audioSize, err := directorySize(cfg.Paths.AudioDir)
	if err != nil {
		return fmt.Errorf("measure audio directory: %w", err)
	}

	fmt.Fprintf(out, "Index entries:   %d\n", stats.IndexTotal)
	fmt.Fprintf(out, "Content records: %d\n", stats.ContentTotal)
	fmt.Fprintf(out, "Index DB:        %s\n", fileSizeLabel(cfg.Paths.IndexDB))
	fmt.Fprintf(out, "Content DB:      %s\n", fileSizeLabel(cfg.Paths.ContentDB))
	fmt.Fprintf(out, "Audio on disk:   %s\n\n", formatBytes(audioSize))

	if len(stats.ByStatus) > 0 {
		statuses := make([]store.Status, 0, len(stats.ByStatus))
		for status := range stats.ByStatus {
			statuses = append(statuses, status)
		}
		sort.Slice(statuses, func(i, j int) bool {
			ri, iKnown := statuses[i].Rank()
			rj, jKnown := statuses[j].Rank()
			if iKnown != jKnown {
				return iKnown
			}
			if ri != rj {
				return ri < rj
			}
			return statuses[i] < statuses[j]
		})
		rows := make([][]string, 0, len(statuses))
		for _, status := range statuses {
			rows = append(rows, []string{string(status), fmt.Sprintf("%d", stats.ByStatus[status])})
		}
		fmt.Fprintln(out, renderTable([]string{"Status", "Records"}, rows, 1))
	}

	if len(stats.ByDate) > 0 {
		rows := make([][]string, 0, len(stats.ByDate))
		for _, day := range stats.ByDate {
			published := day.ByStatus[store.StatusPublished]
			failed := day.ByStatus[store.StatusFailed]
			rows = append(rows, []string{
				day.Date,
				fmt.Sprintf("%d", day.IndexCount),
				fmt.Sprintf("%d", published),
				fmt.Sprintf("%d", failed),
				strings.Join(day.Topics, ", "),
			})
		}
		fmt.Fprintln(out, renderTable(
			[]string{"Date", "Indexed", "Published", "Failed", "Topics"},
			rows, 1, 2, 3))
	}
	return nil
}

func runDataClean(cmd *cobra.Command, cfg *config.Config, dateRange []string, days int) error {
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return err
	}
	st, err := store.Open(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	clean := newCleaner(cfg, st, logger, days)
	var report cleaner.Report
	if dateRange != nil {
		for _, day := range dateRange {
			dayReport, err := clean.CleanDate(cmd.Context(), day)
			if err != nil {
				return err
			}
			report.ContentRemoved += dayReport.ContentRemoved
			report.IndexRemoved += dayReport.IndexRemoved
			report.AudioFilesRemoved += dayReport.AudioFilesRemoved
			report.DanglingAudioRefs += dayReport.DanglingAudioRefs
		}
	} else {
		report, err = clean.Run(cmd.Context())
		if err != nil {
			return err
		}
	}
	printCleanReport(cmd, report)
	return nil
}

func runDataMaintenance(cmd *cobra.Command, cfg *config.Config) error {
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return err
	}
	st, err := store.Open(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	report, cleanErr := newCleaner(cfg, st, logger, 0).Run(cmd.Context())
	if cleanErr != nil {
		return cleanErr
	}
	if err := st.Maintenance(cmd.Context()); err != nil {
		return err
	}
	printCleanReport(cmd, report)
	fmt.Fprintln(cmd.OutOrStdout(), "Database maintenance complete.")
	return nil
}

// runDataPrepare trims anything older than a short horizon so a fresh run
// starts against a compact database, then reports what already exists for
// the target date. The default keeps three days of history.
func runDataPrepare(cmd *cobra.Command, cfg *config.Config, dateFlag string, days int) error {
	if days <= 0 {
		days = 3
	}
	target, err := dates.Resolve(dateFlag, time.Now())
	if err != nil {
		return err
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return err
	}
	st, err := store.Open(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	report, err := newCleaner(cfg, st, logger, days).Run(cmd.Context())
	if err != nil {
		return err
	}
	printCleanReport(cmd, report)

	dayStats, err := st.StatsByDate(cmd.Context(), target.Day())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Existing records for %s: %d indexed", target.Day(), dayStats.IndexCount)
	if published := dayStats.ByStatus[store.StatusPublished]; published > 0 {
		fmt.Fprintf(out, ", %d already published", published)
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Ready for the next run.")
	return nil
}

// newCleaner builds a Cleaner, optionally compressing every retention window
// to the same day count.
func newCleaner(cfg *config.Config, st *store.Store, logger *slog.Logger, days int) *cleaner.Cleaner {
	effective := cfg
	if days > 0 {
		clone := *cfg
		clone.Retention.IndexDays = days
		clone.Retention.ContentDays = days
		clone.Retention.AudioDays = days
		clone.Retention.LogDays = days
		effective = &clone
	}
	return cleaner.New(effective, st, podcast.New(effective, logger), logger)
}

func printCleanReport(cmd *cobra.Command, report cleaner.Report) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Removed %d content records, %d index entries, %d audio files.\n",
		report.ContentRemoved, report.IndexRemoved, report.AudioFilesRemoved)
	if report.TempFilesRemoved > 0 || report.LogFilesRemoved > 0 {
		fmt.Fprintf(out, "Removed %d temp files and %d log files.\n",
			report.TempFilesRemoved, report.LogFilesRemoved)
	}
	if report.DanglingAudioRefs > 0 {
		fmt.Fprintf(out, "Cleared %d records whose audio files were already gone.\n", report.DanglingAudioRefs)
	}
}
