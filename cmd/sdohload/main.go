package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/tordrt/sdohload"
	"github.com/tordrt/sdohload/internal/config"
	"github.com/tordrt/sdohload/internal/fetch"
	"github.com/tordrt/sdohload/internal/formatter"
	"github.com/tordrt/sdohload/internal/metrics"
	"github.com/tordrt/sdohload/internal/schema"
)

// cli holds flag values and the configuration they override
type cli struct {
	cfg *config.Config

	dbURL       string
	schemaName  string
	registry    string
	dataDir     string
	workDir     string
	batchSize   int
	timeout     time.Duration
	format      string
	outputFile  string
	outputDir   string
	metricsFile string
	logLevel    string

	single sdohload.Params
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:           "sdohload",
		Short:         "Load SDoH datasets into a relational store",
		Long:          `sdohload validates social-determinants-of-health datasets and loads each one atomically into a shared variable catalog plus a per-dataset wide table in PostgreSQL, MySQL, or SQLite.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.configure(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&c.dbURL, "db-url", "", "Database URL: postgres://, mysql:// or sqlite:// (env SDOH_DATABASE_URL)")
	pf.StringVarP(&c.schemaName, "schema", "s", "", "Database schema name (default: sdoh for PostgreSQL)")
	pf.StringVar(&c.logLevel, "log-level", "", "Log level (env SDOH_LOG_LEVEL)")
	pf.StringVarP(&c.format, "format", "f", "text", "Output format: text or markdown")
	pf.StringVarP(&c.outputFile, "output", "o", "", "Output file (default: stdout)")

	root.AddCommand(c.initCmd(), c.loadCmd(), c.describeCmd())
	return root
}

func (c *cli) initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the catalog relations if they do not exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			c.closeEngine(e)
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "catalog ready")
			return nil
		},
	}
}

func (c *cli) loadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "load [dataset...]",
		Short: "Load datasets from the registry, or one dataset given by flags",
		Long: `Load the named registry datasets (all of them when none are named).

With --source, a single dataset is loaded from --descriptor and --data instead.`,
		RunE: c.runLoad,
	}

	f := cmd.Flags()
	f.StringVar(&c.registry, "registry", "", "Dataset registry file (env SDOH_REGISTRY)")
	f.StringVar(&c.dataDir, "data-dir", "", "Directory registry file paths are relative to (env SDOH_DATA_DIR)")
	f.StringVar(&c.workDir, "work-dir", "", "Scratch directory, removed when the batch ends (env SDOH_WORKDIR)")
	f.IntVar(&c.batchSize, "batch-size", 0, "Rows per insert batch (env SDOH_BATCH_SIZE)")
	f.DurationVar(&c.timeout, "timeout", 0, "Commit timeout per dataset (env SDOH_TIMEOUT)")
	f.StringVar(&c.metricsFile, "metrics-file", "", "Write Prometheus metrics to this file (env SDOH_METRICS_FILE)")

	f.StringVar(&c.single.Source, "source", "", "Source name of a single dataset")
	f.StringVar(&c.single.Version, "version", "", "Version of a single dataset")
	f.IntVar(&c.single.CensusYear, "census-year", 0, "Census boundary year: 2010 or 2020")
	f.StringVar(&c.single.Granularity, "granularity", "", "Granularity: zip, county, tract or blockgroup")
	f.StringVar(&c.single.GeoIDColumn, "geo-id-column", "", "Data column holding the geographic id")
	f.StringVar(&c.single.URL, "url", "", "Where the dataset came from")
	f.StringVar(&c.single.Description, "description", "", "Dataset description")
	f.StringVar(&c.single.DescriptorPath, "descriptor", "", "Variable description file")
	f.StringVar(&c.single.DataPath, "data", "", "Data file")
	return cmd
}

func (c *cli) describeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "describe [table...]",
		Short: "Describe loaded datasets",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer c.closeEngine(e)

			datasets, err := e.Describe(ctx, parseList(args)...)
			if err != nil {
				return fmt.Errorf("failed to describe datasets: %w", err)
			}

			if c.outputDir != "" {
				if err := formatter.NewMultiFileFormatter(c.outputDir, c.format).Format(datasets); err != nil {
					return fmt.Errorf("failed to format output: %w", err)
				}
				return nil
			}
			return c.writeOutput(cmd.OutOrStdout(), func(w io.Writer) error {
				if c.format == "markdown" {
					return formatter.NewMarkdownFormatter(w).FormatDatasets(datasets)
				}
				return formatter.NewTextFormatter(w).FormatDatasets(datasets)
			})
		},
	}
	cmd.Flags().StringVarP(&c.outputDir, "output-dir", "d", "", "Output directory for multi-file output")
	return cmd
}

// configure loads the environment and lets changed flags override it
func (c *cli) configure(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	override := func(name string, apply func()) {
		if flag := cmd.Flags().Lookup(name); flag != nil && flag.Changed {
			apply()
		}
	}
	override("db-url", func() { cfg.DatabaseURL = c.dbURL })
	override("schema", func() { cfg.Schema = c.schemaName })
	override("log-level", func() { cfg.LogLevel = c.logLevel })
	override("registry", func() { cfg.Registry = c.registry })
	override("data-dir", func() { cfg.DataDir = c.dataDir })
	override("work-dir", func() { cfg.WorkDir = c.workDir })
	override("batch-size", func() { cfg.BatchSize = c.batchSize })
	override("timeout", func() { cfg.Timeout = c.timeout })
	override("metrics-file", func() { cfg.MetricsFile = c.metricsFile })

	if err := cfg.Validate(); err != nil {
		return err
	}
	if !formatter.ValidFormat(c.format) {
		return fmt.Errorf("invalid format: %s (must be 'text' or 'markdown')", c.format)
	}
	if c.outputDir != "" && c.outputFile != "" {
		return fmt.Errorf("cannot use both --output-dir and --output flags")
	}
	c.cfg = cfg
	return nil
}

func (c *cli) open(ctx context.Context) (*sdohload.Engine, error) {
	if c.cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("--db-url or SDOH_DATABASE_URL must be specified")
	}
	return sdohload.Open(ctx, c.cfg.DatabaseURL, &sdohload.Options{
		SchemaName: c.cfg.Schema,
		BatchSize:  c.cfg.BatchSize,
		Timeout:    c.cfg.Timeout,
	})
}

func (c *cli) closeEngine(e *sdohload.Engine) {
	if err := e.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to close database connection: %v\n", err)
	}
}

func (c *cli) runLoad(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	logger := c.cfg.Logger(cmd.ErrOrStderr())
	promReg := prometheus.NewRegistry()
	recorder := metrics.NewRecorder(promReg)

	e, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer c.closeEngine(e)

	var results []schema.LoadResult
	if c.single.Source != "" {
		if len(args) > 0 {
			return fmt.Errorf("dataset names cannot be combined with --source")
		}
		res := c.loadSingle(ctx, e, logger)
		recorder.Observe(res)
		results = []schema.LoadResult{res}
	} else {
		reg, err := sdohload.LoadRegistry(c.cfg.Registry)
		if err != nil {
			return err
		}
		datasets, err := reg.Select(parseList(args))
		if err != nil {
			return err
		}
		results, err = e.RunBatch(ctx, datasets, sdohload.BatchOptions{
			WorkDir: c.cfg.WorkDir,
			Fetcher: fetch.NewLocalFetcher(c.cfg.DataDir),
			Logger:  logger,
			Metrics: recorder,
		})
		if err != nil {
			return err
		}
	}

	if c.cfg.MetricsFile != "" {
		if err := prometheus.WriteToTextfile(c.cfg.MetricsFile, promReg); err != nil {
			logger.WithError(err).Warn("failed to write metrics file")
		}
	}

	if err := c.writeOutput(cmd.OutOrStdout(), func(w io.Writer) error {
		if c.format == "markdown" {
			return formatter.NewMarkdownFormatter(w).FormatResults(results)
		}
		return formatter.NewTextFormatter(w).FormatResults(results)
	}); err != nil {
		return err
	}

	failed := 0
	for _, r := range results {
		if !r.Success {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d datasets failed to load", failed, len(results))
	}
	return nil
}

func (c *cli) loadSingle(ctx context.Context, e *sdohload.Engine, logger logrus.FieldLogger) schema.LoadResult {
	start := time.Now()
	o := e.Load(ctx, c.single)
	res := schema.LoadResult{
		Name:      c.single.Source,
		Table:     o.Key.TableName(),
		Success:   o.Success(),
		State:     o.State.String(),
		Message:   o.Message(),
		Variables: o.Variables,
		Rows:      o.Rows,
		Duration:  time.Since(start),
	}

	entry := logger.WithFields(logrus.Fields{"dataset": res.Name, "table": res.Table, "state": res.State})
	if res.Success {
		entry.Info(res.Message)
	} else {
		entry.Error(res.Message)
	}
	return res
}

// writeOutput runs fn against --output, or stdout
func (c *cli) writeOutput(stdout io.Writer, fn func(io.Writer) error) error {
	writer := stdout
	if c.outputFile != "" {
		f, err := os.Create(c.outputFile)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer func() {
			if err := f.Close(); err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to close output file: %v\n", err)
			}
		}()
		writer = f
	}
	if err := fn(writer); err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}
	return nil
}

// parseList splits comma-separated arguments and trims whitespace
func parseList(args []string) []string {
	var out []string
	for _, arg := range args {
		for _, item := range strings.Split(arg, ",") {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
	}
	return out
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
