package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/wehubfusion/Sisyphus/internal/report"
	"github.com/wehubfusion/Sisyphus/pkg/config"
	"github.com/wehubfusion/Sisyphus/pkg/session"
	"github.com/wehubfusion/Sisyphus/pkg/task"
	"github.com/wehubfusion/Sisyphus/pkg/textfile"
	"go.uber.org/zap"
)

type runFlags struct {
	workers    int
	retries    int
	retryDelay time.Duration
	shuffle    bool
	async      bool
	output     string
	timeout    time.Duration
	saveFailed string
}

func newRunCmd() *cobra.Command {
	flags := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run <items-file>",
		Short: "Fetch every URL in a file through the task engine",
		Long: `Run reads one URL per line from the items file (a missing .txt suffix is
appended) and fetches each of them through the engine: bounded concurrency,
retries per policy, and one proxy per item when proxying is configured
through the environment.

Environment variables (SISYPHUS_MAX_WORKERS, SISYPHUS_RETRIES, SISYPHUS_PROXY
and friends) provide defaults; explicit flags win.`,
		Example: `  # Fetch with eight workers, two attempts per URL
  sisyphus run urls.txt --workers 8 --retries 2

  # Same run on the async manager, JSON report
  sisyphus run urls --async -o json

  # Keep the failures for a later retry run
  sisyphus run urls.txt --save-failed leftover`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd, args[0], flags)
		},
	}

	cmd.Flags().IntVar(&flags.workers, "workers", 0, "maximum concurrent executions (default: SISYPHUS_MAX_WORKERS or CPU count)")
	cmd.Flags().IntVar(&flags.retries, "retries", 0, "attempts per item (default: SISYPHUS_RETRIES or 1)")
	cmd.Flags().DurationVar(&flags.retryDelay, "retry-delay", 0, "pause between attempts")
	cmd.Flags().BoolVar(&flags.shuffle, "shuffle", false, "randomize execution order")
	cmd.Flags().BoolVar(&flags.async, "async", false, "use the goroutine-per-item manager")
	cmd.Flags().StringVarP(&flags.output, "output", "o", "table", "report format (table, json, yaml)")
	cmd.Flags().DurationVar(&flags.timeout, "timeout", session.DefaultTimeout, "per-request timeout")
	cmd.Flags().StringVar(&flags.saveFailed, "save-failed", "", "write failed items to this file")

	return cmd
}

func runRun(cmd *cobra.Command, itemsFile string, flags *runFlags) error {
	format, err := report.ParseFormat(flags.output)
	if err != nil {
		return err
	}

	settings, err := config.Load(config.WithEnvFile(envFile))
	if err != nil {
		return err
	}

	// Defaults, then environment, then explicit flags.
	opts := []task.Option{
		task.WithTaskName("fetch"),
		task.WithLogger(logger),
		task.WithContext(cmd.Context()),
	}
	opts = append(opts, settings.Options()...)
	if cmd.Flags().Changed("workers") {
		opts = append(opts, task.WithMaxWorkers(flags.workers))
	}
	if cmd.Flags().Changed("retries") {
		opts = append(opts, task.WithRetries(flags.retries))
	}
	if cmd.Flags().Changed("retry-delay") {
		opts = append(opts, task.WithRetryDelay(flags.retryDelay))
	}
	if cmd.Flags().Changed("shuffle") {
		opts = append(opts, task.WithShuffle(flags.shuffle))
	}

	stats, err := executeRun(cmd.Context(), itemsFile, flags, opts)
	if err != nil {
		return err
	}

	if err := report.Write(os.Stdout, format, stats, report.WithNoColor(noColor)); err != nil {
		return err
	}

	if flags.saveFailed != "" && len(stats.Failures) > 0 {
		items := make([]string, 0, len(stats.Failures))
		for _, f := range stats.Failures {
			items = append(items, fmt.Sprintf("%v", f.Target.Data))
		}
		if err := textfile.Write(flags.saveFailed, items, false, ""); err != nil {
			return err
		}
		logger.Info("Saved failed items",
			zap.Int("count", len(items)),
			zap.String("file", textfile.ResolvePath(flags.saveFailed)))
	}

	if stats.Failed > 0 {
		return fmt.Errorf("%d of %d items failed", stats.Failed, stats.Submitted)
	}
	return nil
}

func executeRun(ctx context.Context, itemsFile string, flags *runFlags, opts []task.Option) (task.Statistics, error) {
	fn := fetchTask(flags.timeout)

	if flags.async {
		m, err := task.NewAsync(opts...)
		if err != nil {
			return task.Statistics{}, err
		}
		if err := m.SubmitFromFile(fn, itemsFile); err != nil {
			m.Close()
			return task.Statistics{}, err
		}
		if err := m.Wait(ctx); err != nil {
			logger.Warn("Interrupted, cancelling remaining items", zap.Error(err))
		}
		if err := m.Close(); err != nil {
			logger.Warn("Shutdown finished with an error", zap.Error(err))
		}
		return m.Statistics(), nil
	}

	m, err := task.New(opts...)
	if err != nil {
		return task.Statistics{}, err
	}
	if err := m.SubmitFromFile(fn, itemsFile); err != nil {
		m.Close()
		return task.Statistics{}, err
	}
	m.Wait()
	if err := m.Close(); err != nil {
		logger.Warn("Shutdown finished with an error", zap.Error(err))
	}
	return m.Statistics(), nil
}

// fetchTask builds the TaskFunc that fetches one URL per target through the
// target's resolved proxy.
func fetchTask(timeout time.Duration) task.TaskFunc {
	return func(ctx context.Context, target *task.Target) (any, error) {
		url, ok := target.Data.(string)
		if !ok {
			return nil, fmt.Errorf("item %d is not a URL", target.Index)
		}
		if !strings.Contains(url, "://") {
			url = "https://" + url
		}

		sess, err := session.New(target.Proxy(), session.WithTimeout(timeout))
		if err != nil {
			return nil, err
		}

		resp, err := sess.Get(ctx, url)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("%s: %s", url, resp.Status)
		}
		return resp.Status, nil
	}
}
