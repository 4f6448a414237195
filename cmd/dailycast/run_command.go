package main

import (
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"dailycast/internal/cleaner"
	"dailycast/internal/config"
	"dailycast/internal/dates"
	"dailycast/internal/logging"
	"dailycast/internal/pipeline"
	"dailycast/internal/services/gemini"
	"dailycast/internal/services/gnews"
	"dailycast/internal/services/podcast"
	"dailycast/internal/services/scrape"
	"dailycast/internal/services/speech"
	"dailycast/internal/stage"
	"dailycast/internal/store"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var dateFlag string
	var skipPublish bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full pipeline for one publication date",
		Long:  "Discovers, scrapes, summarizes, synthesizes, and publishes the digest for the target date (yesterday by default).",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			target, err := dates.Resolve(dateFlag, time.Now())
			if err != nil {
				return err
			}
			return runPipeline(cmd, cfg, target, skipPublish)
		},
	}

	cmd.Flags().StringVar(&dateFlag, "date", "", "Publication date to process (YYYY-MM-DD, defaults to yesterday)")
	cmd.Flags().BoolVar(&skipPublish, "skip-publish", false, "Stop after synthesis without assembling or publishing the digest")
	return cmd
}

func runPipeline(cmd *cobra.Command, cfg *config.Config, target dates.Target, skipPublish bool) error {
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return err
	}

	runLock := flock.New(filepath.Join(cfg.Paths.LogDir, "dailycast.lock"))
	locked, err := runLock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire run lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another dailycast run is already in progress")
	}
	defer runLock.Unlock()

	runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	topics, err := cfg.ResolveTopics()
	if err != nil {
		return err
	}
	cfg.Topics = topics
	if len(cfg.Topics) == 0 {
		return fmt.Errorf("no topics configured: set [topics] in the config or provide a topics file")
	}

	st, err := store.Open(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	summarizer, err := gemini.New(runCtx, cfg, logger)
	if err != nil {
		return err
	}
	defer summarizer.Close()

	synthesizer, err := speech.New(runCtx, cfg, logger)
	if err != nil {
		return err
	}

	limiter := rate.NewLimiter(rate.Limit(float64(cfg.Workflow.RequestsPerMinute)/60.0), 1)
	publisher := podcast.New(cfg, logger)
	stages := stage.Set{
		Fetcher:     gnews.NewClient(cfg, limiter, logger),
		Scraper:     scrape.New(cfg, logger),
		Summarizer:  summarizer,
		Synthesizer: synthesizer,
		Publisher:   publisher,
	}

	clean := cleaner.New(cfg, st, publisher, logger)
	if _, err := clean.Run(runCtx); err != nil {
		logger.Warn("pre-run retention pass had failures", logging.Error(err))
	}

	orch := pipeline.New(cfg, st, stages, logger)
	result, runErr := orch.Run(runCtx, target, pipeline.Options{SkipPublish: skipPublish})

	if _, err := clean.Run(runCtx); err != nil {
		logger.Warn("post-run retention pass had failures", logging.Error(err))
	}

	printRunSummary(cmd, result)
	if runErr != nil {
		return runErr
	}

	switch result.Outcome {
	case pipeline.OutcomePartial:
		logger.Warn("run finished with failures",
			logging.Int("failed", result.Failed),
			logging.Int("published", result.Published))
		return nil
	case pipeline.OutcomeComplete:
		return nil
	default:
		return &exitError{
			code:    result.Outcome.ExitCode(),
			message: fmt.Sprintf("run finished %s for %s", result.Outcome, result.Date),
		}
	}
}

func printRunSummary(cmd *cobra.Command, result *pipeline.Result) {
	if result == nil {
		return
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run %s for %s: %s\n", result.RunID, result.Date, result.Outcome)
	fmt.Fprintf(out, "  discovered %d, scraped %d, summarized %d, synthesized %d, published %d, failed %d\n",
		result.Discovered, result.Scraped, result.Summarized, result.Synthesized, result.Published, result.Failed)
	if result.DigestPath != "" {
		fmt.Fprintf(out, "  digest: %s\n", result.DigestPath)
	}
	if result.FeedPath != "" {
		fmt.Fprintf(out, "  feed:   %s\n", result.FeedPath)
	}
}
