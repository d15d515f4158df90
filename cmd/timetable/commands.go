package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/sma-timetable/internal/dto"
	"github.com/noah-isme/sma-timetable/internal/repository"
	"github.com/noah-isme/sma-timetable/internal/service"
	"github.com/noah-isme/sma-timetable/pkg/config"
	"github.com/noah-isme/sma-timetable/pkg/logger"
)

var (
	envFile  = ".env"
	logLevel = "warn"
)

type runOptions struct {
	input       string
	strategy    string
	seed        string
	out         string
	format      string
	views       []string
	key         string
	extended    bool
	allowForced bool
}

func newRunCommand() *cobra.Command {
	opts := runOptions{strategy: "pipeline", out: ".", format: service.FormatCSV, views: []string{service.ViewFlat, service.ViewUnplaced}}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "schedule an input file and write the exports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSchedule(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&opts.input, "input", "i", "", "course JSON file, - for stdin")
	flags.StringVarP(&opts.strategy, "strategy", "s", opts.strategy, "greedy, backtracking, genetic, repair or pipeline")
	flags.StringVar(&opts.seed, "seed", "", "random seed for reproducible runs")
	flags.StringVarP(&opts.out, "out", "o", opts.out, "output directory")
	flags.StringVarP(&opts.format, "format", "f", opts.format, "csv, pdf or json")
	flags.StringSliceVar(&opts.views, "view", opts.views, "flat, unplaced, section, room, instructor")
	flags.StringVar(&opts.key, "key", "", "limit grid views to one section, room or instructor")
	flags.BoolVar(&opts.extended, "extended", false, "use the 06:00-21:00 window")
	flags.BoolVar(&opts.allowForced, "allow-forced", false, "place leftovers ignoring conflicts")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func newCompareCommand() *cobra.Command {
	var (
		input      string
		seed       string
		strategies = []string{"greedy", "backtracking", "genetic", "repair", "pipeline"}
	)
	cmd := &cobra.Command{
		Use:   "compare",
		Short: "run several strategies on the same input and tabulate the results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return compareStrategies(cmd.Context(), cmd.OutOrStdout(), input, seed, strategies)
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "course JSON file, - for stdin")
	cmd.Flags().StringVar(&seed, "seed", "1", "random seed shared by every strategy")
	cmd.Flags().StringSliceVar(&strategies, "strategy", strategies, "strategies to compare")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

// engine bundles the services a CLI run needs. Runs are kept in memory.
type engine struct {
	timetables *service.TimetableService
	exports    *service.ExportService
	logger     *zap.Logger
}

func newEngine() (*engine, error) {
	cfg, err := config.LoadFile(envFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg.Log.Level = logLevel
	cfg.Log.Format = "console"
	logr, err := logger.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	// The CLI waits as long as the search takes.
	cfg.Timetable.RunTimeout = 0

	timetables := service.NewTimetableService(repository.NewMemoryRunRepository(), nil, nil, validator.New(), logr, cfg.Timetable)
	exports := service.NewExportService(timetables, nil, nil, service.ExportConfig{}, logr, nil, nil)
	return &engine{timetables: timetables, exports: exports, logger: logr}, nil
}

func readRequest(path string) (dto.GenerateTimetableRequest, error) {
	var (
		raw []byte
		err error
	)
	if path == "-" {
		raw, err = io.ReadAll(os.Stdin)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return dto.GenerateTimetableRequest{}, fmt.Errorf("read input: %w", err)
	}
	var req dto.GenerateTimetableRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return dto.GenerateTimetableRequest{}, fmt.Errorf("parse input: %w", err)
	}
	return req, nil
}

func runSchedule(ctx context.Context, out io.Writer, opts runOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	eng, err := newEngine()
	if err != nil {
		return err
	}
	defer eng.logger.Sync() //nolint:errcheck

	req, err := readRequest(opts.input)
	if err != nil {
		return err
	}
	req.Strategy = opts.strategy
	req.ExtendedWindow = req.ExtendedWindow || opts.extended
	if opts.allowForced {
		req.AllowForced = &opts.allowForced
	}
	seed, err := dto.ParseSeed(opts.seed)
	if err != nil {
		return err
	}
	if seed != nil {
		req.Seed = seed
	}

	run, err := eng.timetables.Generate(ctx, req)
	if err != nil {
		return err
	}
	printSummary(out, run)

	if err := os.MkdirAll(opts.out, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	for _, view := range opts.views {
		keys := []string{opts.key}
		if isGrid(view) && opts.key == "" {
			keys = service.GridKeys(run, view)
		}
		for _, key := range keys {
			payload, err := eng.exports.Render(run, opts.format, view, key)
			if err != nil {
				return fmt.Errorf("render %s view: %w", view, err)
			}
			name := outputName(view, key, opts.format)
			if err := os.WriteFile(filepath.Join(opts.out, name), payload, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", name, err)
			}
			fmt.Fprintf(out, "wrote %s\n", filepath.Join(opts.out, name))
		}
	}
	return nil
}

func compareStrategies(ctx context.Context, out io.Writer, input, seed string, strategies []string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	eng, err := newEngine()
	if err != nil {
		return err
	}
	defer eng.logger.Sync() //nolint:errcheck

	base, err := readRequest(input)
	if err != nil {
		return err
	}
	parsedSeed, err := dto.ParseSeed(seed)
	if err != nil {
		return err
	}

	results := make([]*dto.TimetableRunResponse, len(strategies))
	g, gctx := errgroup.WithContext(ctx)
	for i, strategy := range strategies {
		i, strategy := i, strategy
		g.Go(func() error {
			req := base
			req.Strategy = strategy
			req.Seed = parsedSeed
			run, err := eng.timetables.Generate(gctx, req)
			if err != nil {
				return fmt.Errorf("%s: %w", strategy, err)
			}
			results[i] = run
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STRATEGY\tSUCCESS\tPLACED\tUNPLACED\tFORCED\tCONFLICTS\tELAPSED")
	for _, run := range results {
		fmt.Fprintf(w, "%s\t%t\t%d\t%d\t%d\t%d\t%s\n",
			run.Strategy, run.Success, run.Stats.Placed, run.Stats.Unplaced, run.Stats.Forced,
			run.Stats.Conflicts, (time.Duration(run.ElapsedMs) * time.Millisecond).String())
	}
	return w.Flush()
}

func printSummary(out io.Writer, run *dto.TimetableRunResponse) {
	fmt.Fprintf(out, "run %s strategy=%s success=%t seed=%d elapsed=%dms\n", run.ID, run.Strategy, run.Success, run.Seed, run.ElapsedMs)
	fmt.Fprintf(out, "placed %d of %d, unplaced %d, forced %d, skipped %d\n",
		run.Stats.Placed, run.Stats.Requests, run.Stats.Unplaced, run.Stats.Forced, len(run.Skipped))
	for _, stage := range run.Stages {
		fmt.Fprintf(out, "  stage %-12s attempt=%d placed=%d unplaced=%d %dms\n", stage.Strategy, stage.Attempt, stage.Placed, stage.Unplaced, stage.ElapsedMs)
	}
	if len(run.Stats.PerDay) > 0 {
		days := make([]string, 0, len(run.Stats.PerDay))
		for day := range run.Stats.PerDay {
			days = append(days, day)
		}
		sort.Strings(days)
		parts := make([]string, 0, len(days))
		for _, day := range days {
			parts = append(parts, fmt.Sprintf("%s=%d", day, run.Stats.PerDay[day]))
		}
		fmt.Fprintf(out, "per day: %s\n", strings.Join(parts, " "))
	}
	for _, u := range run.Unplaced {
		fmt.Fprintf(out, "  unplaced %s/%s: %s\n", u.CourseID, u.Section, u.Reason)
	}
}

func isGrid(view string) bool {
	return view == service.ViewSection || view == service.ViewRoom || view == service.ViewInstructor
}

func outputName(view, key, format string) string {
	if key == "" {
		return fmt.Sprintf("timetable_%s.%s", view, format)
	}
	safe := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-").Replace(key)
	return fmt.Sprintf("%s_%s_weekly.%s", view, safe, format)
}
