// Package pipeline runs one reconciliation: normalize raw records, filter
// them on quality, match the survivors against a catalog, and drop the ones
// already present in the target collection.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"trackbridge/internal/cache"
	"trackbridge/internal/dedupe"
	"trackbridge/internal/logging"
	"trackbridge/internal/matcher"
	"trackbridge/internal/models"
	"trackbridge/internal/normalize"
	"trackbridge/internal/quality"
)

// Input is one batch of source records plus the target collection's
// current contents.
type Input struct {
	Source   models.SourceInfo
	Records  []models.RawTrackRecord
	Existing []models.MatchCandidate
}

// Item is the outcome for one track that passed the quality filter.
type Item struct {
	Match     models.MatchResult      `json:"match"`
	Duplicate models.DuplicateVerdict `json:"duplicate"`
	// Add is true when the track matched, is not a duplicate, and its URI was
	// not already emitted earlier in the batch.
	Add bool `json:"add"`
}

type Stats struct {
	Records    int `json:"records"`
	Accepted   int `json:"accepted"`
	Rejected   int `json:"rejected"`
	Matched    int `json:"matched"`
	Unmatched  int `json:"unmatched"`
	Cached     int `json:"cached"`
	Duplicates int `json:"duplicates"`
	ToAdd      int `json:"to_add"`
}

type Result struct {
	RunID    string               `json:"run_id"`
	Source   models.SourceInfo    `json:"source"`
	Filter   quality.FilterResult `json:"-"`
	Quality  quality.Report       `json:"quality"`
	Items    []Item               `json:"items"`
	URIs     []string             `json:"uris"`
	Stats    Stats                `json:"stats"`
	Started  time.Time            `json:"started"`
	Finished time.Time            `json:"finished"`
}

// Progress is called once per accepted track, in input order, as matches
// complete.
type Progress func(index, total int, r models.MatchResult)

type Pipeline struct {
	matcher *matcher.Matcher
	cache   *cache.Cache
	filter  quality.FilterOptions
	logger  *slog.Logger
}

// New wires a pipeline. c may be nil to run without a cache.
func New(m *matcher.Matcher, c *cache.Cache, filter quality.FilterOptions, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Pipeline{matcher: m, cache: c, filter: filter, logger: logger}
}

// Run processes in. Per-track failures and cache persistence problems are
// reported in the result and the log, never as an error. An error is
// returned only when no matcher is configured or ctx is already done.
func (p *Pipeline) Run(ctx context.Context, in Input, onProgress Progress) (*Result, error) {
	if p.matcher == nil {
		return nil, errors.New("pipeline: no matcher configured")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	runID := logging.NewRunID()
	logger := logging.NewComponentLogger(logging.WithRun(p.logger, runID), "pipeline").
		With(logging.String(logging.FieldSource, in.Source.Name))
	res := &Result{RunID: runID, Source: in.Source, Started: time.Now()}
	res.Stats.Records = len(in.Records)

	// Normalize and score.
	tracks := normalize.All(in.Records)

	// Filter.
	res.Filter = quality.Filter(tracks, p.filter)
	res.Quality = quality.NewReport(res.Filter)
	for _, rej := range res.Filter.Invalid() {
		logger.Debug("track rejected",
			logging.String("title", rej.Track.Title),
			logging.String("artist", rej.Track.Artist),
			logging.Any("reasons", rej.Reasons),
		)
	}
	accepted := res.Filter.Accepted()
	res.Stats.Accepted = len(accepted)
	res.Stats.Rejected = res.Quality.Invalid
	logger.Info("quality filter applied",
		logging.Int("records", len(tracks)),
		logging.Int("valid", res.Quality.Valid),
		logging.Int("warned", res.Quality.Warned),
		logging.Int("invalid", res.Quality.Invalid),
		logging.Float64("average_score", res.Quality.AverageScore),
	)

	// Match, through the cache.
	p.loadCache(logger)
	var progress func(int, models.MatchResult)
	if onProgress != nil {
		progress = func(i int, r models.MatchResult) { onProgress(i, len(accepted), r) }
	}
	matches := p.matcher.RunBatches(ctx, accepted, p.cache, progress)
	p.saveCache(logger)

	// Dedupe against the collection and within the batch.
	detector := dedupe.NewDetector(in.Existing, logger)
	res.Items = make([]Item, len(matches))
	var candidates []string
	for i, m := range matches {
		item := Item{Match: m, Duplicate: models.DuplicateVerdict{Method: models.MethodNone}}
		if m.Cached {
			res.Stats.Cached++
		}
		if !m.Matched() {
			res.Stats.Unmatched++
			res.Items[i] = item
			continue
		}
		res.Stats.Matched++
		item.Duplicate = detector.Check(m.Track)
		if item.Duplicate.IsDuplicate {
			res.Stats.Duplicates++
		} else {
			candidates = append(candidates, m.Candidate.URI)
		}
		res.Items[i] = item
	}
	res.URIs = dedupe.FilterURIs(candidates, in.Existing)
	markAdded(res.Items, res.URIs)
	res.Stats.ToAdd = len(res.URIs)
	res.Finished = time.Now()

	logger.Info("run complete",
		logging.Int("matched", res.Stats.Matched),
		logging.Int("unmatched", res.Stats.Unmatched),
		logging.Int("cached", res.Stats.Cached),
		logging.Int("duplicates", res.Stats.Duplicates),
		logging.Int("to_add", res.Stats.ToAdd),
		logging.Duration("elapsed", res.Finished.Sub(res.Started)),
	)
	return res, nil
}

// markAdded flags the first item carrying each URI in uris.
func markAdded(items []Item, uris []string) {
	pending := make(map[string]bool, len(uris))
	for _, u := range uris {
		pending[u] = true
	}
	for i := range items {
		c := items[i].Match.Candidate
		if c == nil || items[i].Duplicate.IsDuplicate || !pending[c.URI] {
			continue
		}
		items[i].Add = true
		delete(pending, c.URI)
	}
}

func (p *Pipeline) loadCache(logger *slog.Logger) {
	if p.cache == nil {
		return
	}
	if err := p.cache.Load(); err != nil {
		logging.WarnWithContext(logger, "cache load failed", "cache_load_failed",
			logging.String(logging.FieldErrorHint, "check the cache path permissions or delete the corrupt file"),
			logging.String(logging.FieldImpact, "run continues without cached matches"),
			logging.Error(err),
		)
	}
}

func (p *Pipeline) saveCache(logger *slog.Logger) {
	if p.cache == nil {
		return
	}
	if err := p.cache.Save(); err != nil {
		logging.WarnWithContext(logger, "cache save failed", "cache_save_failed",
			logging.String(logging.FieldErrorHint, "check the cache path permissions and free space"),
			logging.String(logging.FieldImpact, "matches from this run will be searched again next time"),
			logging.Error(err),
		)
	}
}
