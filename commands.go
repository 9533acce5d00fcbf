package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"trackbridge/internal/cache"
	"trackbridge/internal/catalog"
	"trackbridge/internal/config"
	"trackbridge/internal/logging"
	"trackbridge/internal/matcher"
	"trackbridge/internal/models"
	"trackbridge/internal/pipeline"
	"trackbridge/internal/retry"
)

// addChunkSize is the most URIs handed to the adder per call.
const addChunkSize = 100

// libraryCreator and libraryDescriber are implemented by catalogs that
// manage their own collections (DAB libraries).
type libraryCreator interface {
	CreateLibrary(ctx context.Context, name string) (string, error)
}

type libraryDescriber interface {
	GetLibraryInfo(ctx context.Context, id string) (*models.LibraryInfo, error)
}

type runOptions struct {
	sourceType string
	playlist   string
	create     string
	add        bool
	jsonOut    bool
	reportPath string
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run <csv-file|url>",
		Short: "Match a track export against the catalog and report what is missing",
		Long: "Normalize and quality-filter the source tracks, match them against the configured catalog,\n" +
			"and drop tracks already present in the target playlist. With --add the remaining tracks are\n" +
			"added to the playlist.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := ctx.setup(cmd)
			if err != nil {
				return err
			}
			return runReconcile(cmd, cfg, logger, args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.sourceType, "type", "t", "", "Source type: csv, spotify or youtube (detected when empty)")
	cmd.Flags().StringVarP(&opts.playlist, "playlist", "p", "", "Target playlist or library ID")
	cmd.Flags().StringVar(&opts.create, "create", "", "Create a new library with this name as the target (dab only)")
	cmd.Flags().BoolVar(&opts.add, "add", false, "Add the new tracks to the target")
	cmd.Flags().BoolVar(&opts.jsonOut, "json", false, "Print the full result as JSON")
	cmd.Flags().StringVar(&opts.reportPath, "report", "", "Write a JSON run report to this path")
	return cmd
}

func runReconcile(cmd *cobra.Command, cfg *config.Config, logger *slog.Logger, src string, opts runOptions) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.playlist != "" && opts.create != "" {
		return errors.New("--playlist and --create are mutually exclusive")
	}
	if opts.add && opts.playlist == "" && opts.create == "" {
		return errors.New("--add needs --playlist or --create")
	}

	kind := strings.ToLower(strings.TrimSpace(opts.sourceType))
	if kind == "" {
		kind = detectSourceType(src)
	}
	records, source, err := newSourceLoader(ctx, cfg).load(ctx, kind, src)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("no tracks found in %s", src)
	}

	cat, err := newCatalog(ctx, cfg)
	if err != nil {
		return err
	}

	target := opts.playlist
	if opts.create != "" {
		creator, ok := cat.(libraryCreator)
		if !ok {
			return fmt.Errorf("--create is not supported by the %s catalog", cat.Name())
		}
		if target, err = creator.CreateLibrary(ctx, opts.create); err != nil {
			return fmt.Errorf("create library: %w", err)
		}
		logger.Info("library created", logging.String("library_id", target), logging.String("name", opts.create))
	}

	var existing []models.MatchCandidate
	if target != "" {
		if existing, err = cat.Tracks(ctx, target); err != nil {
			return fmt.Errorf("read target collection: %w", err)
		}
	}

	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	p := pipeline.New(
		matcher.New(cat, matcherOptions(cfg), logger),
		cache.New(store, logger),
		filterOptions(cfg),
		logger,
	)
	res, err := p.Run(ctx, pipeline.Input{Source: source, Records: records, Existing: existing}, nil)
	if err != nil {
		return err
	}

	if opts.add && len(res.URIs) > 0 {
		if err := addInChunks(ctx, cat, target, res.URIs, retryOptions(cfg), logger); err != nil {
			return err
		}
	}

	if opts.reportPath != "" {
		if err := writeReport(ctx, opts.reportPath, cat, target, res); err != nil {
			return err
		}
	}

	if opts.jsonOut {
		return writeJSON(cmd, res)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, renderQualityReport(res.Quality))
	if len(res.Items) > 0 {
		fmt.Fprintln(out, renderMatches(res.Items))
	}
	fmt.Fprintln(out, renderStats(res.Stats))
	switch {
	case opts.add && len(res.URIs) > 0:
		fmt.Fprintf(out, "Added %d tracks to %s\n", len(res.URIs), target)
	case len(res.URIs) > 0:
		fmt.Fprintf(out, "%d tracks ready to add (use --add)\n", len(res.URIs))
	default:
		fmt.Fprintln(out, "Nothing to add")
	}
	return nil
}

// addInChunks hands uris to the adder in order, retrying rate-limited
// chunks.
func addInChunks(ctx context.Context, adder catalog.Adder, target string, uris []string, opts retry.Options, logger *slog.Logger) error {
	logger = logging.NewComponentLogger(logger, "adder")
	opts.OnRetry = func(attempt int, delay time.Duration, err error) {
		logging.WarnWithContext(logger, "add rate limited", "add_rate_limited",
			logging.String(logging.FieldErrorHint, "the catalog is throttling writes"),
			logging.String(logging.FieldImpact, "chunk will be retried"),
			logging.Int(logging.FieldAttempt, attempt),
			logging.Duration("delay", delay),
			logging.Error(err),
		)
	}
	for start := 0; start < len(uris); start += addChunkSize {
		end := min(start+addChunkSize, len(uris))
		chunk := uris[start:end]
		_, err := retry.Do(ctx, opts, catalog.IsRateLimited, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, adder.AddTracks(ctx, target, chunk)
		})
		if err != nil {
			return fmt.Errorf("add tracks %d-%d: %w", start+1, end, err)
		}
		logger.Info("tracks added", logging.Int("count", len(chunk)), logging.String("target", target))
	}
	return nil
}

func writeReport(ctx context.Context, path string, cat catalog.Catalog, target string, res *pipeline.Result) error {
	report := models.Report{
		RunID:     res.RunID,
		Library:   models.LibraryInfo{ID: target},
		Source:    res.Source,
		Timestamp: res.Finished,
		URIs:      res.URIs,
	}
	if d, ok := cat.(libraryDescriber); ok && target != "" {
		if info, err := d.GetLibraryInfo(ctx, target); err == nil {
			report.Library = *info
		}
	}
	if report.URIs == nil {
		report.URIs = []string{}
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create report directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigShowCommand(ctx))

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			} else {
				expanded, err := config.ExpandPath(target)
				if err != nil {
					return fmt.Errorf("resolve config path: %w", err)
				}
				target = expanded
			}

			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				} else if !os.IsNotExist(err) {
					return fmt.Errorf("check config path: %w", err)
				}
			}

			if err := config.CreateSample(target); err != nil {
				return fmt.Errorf("create sample config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Set SPOTIFY_ID and SPOTIFY_SECRET (or DAB_TOKEN for the dab provider) before running trackbridge.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration without secrets",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			rows := [][]string{
				{"catalog.provider", cfg.Catalog.Provider},
				{"spotify.client_id", redact(cfg.Spotify.ClientID)},
				{"spotify.token", redact(cfg.Spotify.Token)},
				{"dab.token", redact(cfg.DAB.Token)},
				{"dab.base_url", cfg.DAB.BaseURL},
				{"matching.confidence_threshold", fmt.Sprint(cfg.Matching.ConfidenceThreshold)},
				{"matching.candidate_limit", fmt.Sprint(cfg.Matching.CandidateLimit)},
				{"matching.batch_size", fmt.Sprint(cfg.Matching.BatchSize)},
				{"matching.batch_delay", cfg.BatchDelay().String()},
				{"matching.max_attempts", fmt.Sprint(cfg.Matching.MaxAttempts)},
				{"matching.base_delay", cfg.BaseDelay().String()},
				{"quality.min_score", fmt.Sprint(cfg.Quality.MinScore)},
				{"quality.allow_low_confidence", fmt.Sprint(cfg.Quality.AllowLowConfidence)},
				{"quality.remove_invalid", fmt.Sprint(cfg.Quality.RemoveInvalid)},
				{"cache.backend", cfg.Cache.Backend},
				{"cache.path", cfg.Cache.Path},
				{"logging.level", cfg.Logging.Level},
				{"server.port", cfg.Server.Port},
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Key", "Value"}, rows, nil))
			return nil
		},
	}
}

func redact(v string) string {
	if v == "" {
		return "(unset)"
	}
	return "(set)"
}
