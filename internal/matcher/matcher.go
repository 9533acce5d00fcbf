// Package matcher finds the catalog track that best corresponds to a
// normalized source track.
package matcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"trackbridge/internal/catalog"
	"trackbridge/internal/logging"
	"trackbridge/internal/models"
	"trackbridge/internal/normalize"
	"trackbridge/internal/retry"
	"trackbridge/internal/similarity"
)

const (
	DefaultThreshold      = 0.5
	DefaultCandidateLimit = 5
	DefaultBaseDelay      = time.Second

	titleWeight  = 0.7
	artistWeight = 0.3
)

// Strategy builds one search query for a track. An empty query means the
// strategy does not apply. fieldFilters is true when the catalog understands
// track:/artist: scoping.
type Strategy struct {
	Name  string
	Build func(t models.NormalizedTrack, fieldFilters bool) string
}

// DefaultStrategies are tried in order until one yields a confident match.
var DefaultStrategies = []Strategy{
	{Name: "exact", Build: exactQuery},
	{Name: "loose", Build: looseQuery},
	{Name: "track_only", Build: trackOnlyQuery},
	{Name: "artist_only", Build: artistOnlyQuery},
}

func exactQuery(t models.NormalizedTrack, fieldFilters bool) string {
	if fieldFilters {
		return joinNonEmpty(field("track", t.SearchTitle), field("artist", t.SearchArtist))
	}
	return joinNonEmpty(t.SearchTitle, t.SearchArtist)
}

func looseQuery(t models.NormalizedTrack, _ bool) string {
	return joinNonEmpty(t.Title, t.Artist)
}

func trackOnlyQuery(t models.NormalizedTrack, fieldFilters bool) string {
	if fieldFilters {
		return field("track", t.SearchTitle)
	}
	return t.SearchTitle
}

func artistOnlyQuery(t models.NormalizedTrack, fieldFilters bool) string {
	if fieldFilters {
		return field("artist", t.SearchArtist)
	}
	return t.SearchArtist
}

func field(name, value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	return fmt.Sprintf("%s:%q", name, value)
}

func joinNonEmpty(parts ...string) string {
	out := parts[:0:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}

type Options struct {
	// Threshold is the confidence a candidate must exceed to count as a match.
	Threshold      float64
	CandidateLimit int
	Strategies     []Strategy
	// Retry governs rate-limited searches. Other errors are never retried.
	Retry retry.Options

	// BatchSize and BatchDelay shape RunBatches.
	BatchSize  int
	BatchDelay time.Duration
}

func DefaultOptions() Options {
	return Options{
		Threshold:      DefaultThreshold,
		CandidateLimit: DefaultCandidateLimit,
		Strategies:     DefaultStrategies,
		Retry: retry.Options{
			MaxAttempts: retry.DefaultMaxAttempts,
			Backoff:     retry.Exponential(DefaultBaseDelay),
		},
		BatchSize:  DefaultBatchSize,
		BatchDelay: DefaultBatchDelay,
	}
}

type Matcher struct {
	searcher catalog.Searcher
	opts     Options
	logger   *slog.Logger
}

// New returns a Matcher over searcher. Zero-valued options fall back to the
// defaults.
func New(searcher catalog.Searcher, opts Options, logger *slog.Logger) *Matcher {
	def := DefaultOptions()
	if opts.Threshold <= 0 {
		opts.Threshold = def.Threshold
	}
	if opts.CandidateLimit <= 0 {
		opts.CandidateLimit = def.CandidateLimit
	}
	if len(opts.Strategies) == 0 {
		opts.Strategies = def.Strategies
	}
	if opts.Retry.MaxAttempts <= 0 {
		opts.Retry.MaxAttempts = def.Retry.MaxAttempts
	}
	if opts.Retry.Backoff == nil {
		opts.Retry.Backoff = def.Retry.Backoff
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = def.BatchSize
	}
	if opts.BatchDelay < 0 {
		opts.BatchDelay = 0
	}
	return &Matcher{
		searcher: searcher,
		opts:     opts,
		logger:   logging.NewComponentLogger(logger, "matcher"),
	}
}

// Score rates candidate c against t: 0.7 title similarity plus 0.3 artist
// similarity, both on search-normalized strings.
func Score(t models.NormalizedTrack, c models.MatchCandidate) float64 {
	title := similarity.Compare(normalize.SearchKey(t.FullTitle()), normalize.SearchKey(c.Name))
	artist := similarity.Compare(t.SearchArtist, normalize.SearchKey(c.ArtistNames()))
	return titleWeight*title + artistWeight*artist
}

// Best returns the highest scoring candidate. Ties keep the earlier one.
func Best(t models.NormalizedTrack, candidates []models.MatchCandidate) (*models.MatchCandidate, float64) {
	var (
		best      *models.MatchCandidate
		bestScore float64
	)
	for i := range candidates {
		if s := Score(t, candidates[i]); best == nil || s > bestScore {
			best = &candidates[i]
			bestScore = s
		}
	}
	return best, bestScore
}

// Select runs the strategies in order and returns the first confident match.
// Search failures never escape: the result is unmatched and carries the last
// error message.
func (m *Matcher) Select(ctx context.Context, t models.NormalizedTrack) models.MatchResult {
	result := models.MatchResult{Track: t}
	fieldFilters := m.searcher.SupportsFieldFilters()
	seen := make(map[string]struct{}, len(m.opts.Strategies))

	var lastErr error
	for _, s := range m.opts.Strategies {
		query := s.Build(t, fieldFilters)
		if query == "" {
			continue
		}
		if _, dup := seen[query]; dup {
			continue
		}
		seen[query] = struct{}{}

		logger := m.logger.With(logging.String(logging.FieldStrategy, s.Name), logging.String("query", query))
		logger.Debug("searching")

		candidates, err := m.search(ctx, logger, query)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				result.Error = ctxErr.Error()
				return result
			}
			logging.WarnWithContext(logger, "search failed", "search_failed",
				logging.String(logging.FieldErrorHint, "check catalog credentials and connectivity"),
				logging.String(logging.FieldImpact, "strategy skipped"),
				logging.String("title", t.Title),
				logging.String("artist", t.Artist),
				logging.Error(err),
			)
			lastErr = err
			continue
		}

		best, score := Best(t, candidates)
		if best == nil {
			continue
		}
		logger.Debug("scored candidates",
			logging.Int("candidates", len(candidates)),
			logging.Float64("best_score", score),
			logging.String("best_name", best.Name),
		)
		if score > m.opts.Threshold {
			c := *best
			result.Candidate = &c
			result.Confidence = score
			result.Strategy = s.Name
			return result
		}
	}

	if lastErr != nil {
		result.Error = lastErr.Error()
	}
	return result
}

func (m *Matcher) search(ctx context.Context, logger *slog.Logger, query string) ([]models.MatchCandidate, error) {
	opts := m.opts.Retry
	onRetry := opts.OnRetry
	opts.OnRetry = func(attempt int, delay time.Duration, err error) {
		logging.WarnWithContext(logger, "rate limited, backing off", "rate_limited",
			logging.String(logging.FieldErrorHint, "catalog is throttling requests"),
			logging.String(logging.FieldImpact, "search delayed"),
			logging.Int(logging.FieldAttempt, attempt),
			logging.Duration("delay", delay),
			logging.Error(err),
		)
		if onRetry != nil {
			onRetry(attempt, delay, err)
		}
	}
	return retry.Do(ctx, opts, catalog.IsRateLimited, func(ctx context.Context) ([]models.MatchCandidate, error) {
		return m.searcher.Search(ctx, query, m.opts.CandidateLimit)
	})
}

// isContextErr reports whether err came from cancellation rather than the
// catalog.
func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
