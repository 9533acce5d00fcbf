package matcher

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"trackbridge/internal/cache"
	"trackbridge/internal/logging"
	"trackbridge/internal/models"
	"trackbridge/internal/retry"
)

const (
	DefaultBatchSize  = 10
	DefaultBatchDelay = 100 * time.Millisecond
)

// RunBatches matches tracks in groups of BatchSize. Every search within a
// group runs concurrently and the group completes before the next starts,
// with BatchDelay in between. Results are returned in input order.
//
// c may be nil. Cache hits skip the search; fresh outcomes, failures
// included, are written back under the track's fingerprint. onResult, when
// set, is called from the calling goroutine once per track in input order.
func (m *Matcher) RunBatches(ctx context.Context, tracks []models.NormalizedTrack, c *cache.Cache, onResult func(i int, r models.MatchResult)) []models.MatchResult {
	results := make([]models.MatchResult, len(tracks))
	size := m.opts.BatchSize

	for start := 0; start < len(tracks); start += size {
		end := min(start+size, len(tracks))

		if start > 0 {
			if err := retry.Sleep(ctx, m.opts.BatchDelay); err != nil {
				m.cancelRemaining(results[start:], tracks[start:], err)
				emit(onResult, results, start, len(tracks))
				return results
			}
		}

		var g errgroup.Group
		for i := start; i < end; i++ {
			g.Go(func() error {
				results[i] = m.matchOne(ctx, tracks[i], c)
				return nil
			})
		}
		_ = g.Wait()

		m.logger.Debug("batch complete",
			logging.Int("from", start),
			logging.Int("to", end),
			logging.Int("total", len(tracks)),
		)
		emit(onResult, results, start, end)
	}
	return results
}

func emit(onResult func(int, models.MatchResult), results []models.MatchResult, from, to int) {
	if onResult == nil {
		return
	}
	for i := from; i < to; i++ {
		onResult(i, results[i])
	}
}

func (m *Matcher) cancelRemaining(results []models.MatchResult, tracks []models.NormalizedTrack, err error) {
	for i := range results {
		results[i] = models.MatchResult{Track: tracks[i], Error: err.Error()}
	}
}

// matchOne resolves a single track. A panic in the search path becomes an
// unmatched result so the rest of the group is unaffected.
func (m *Matcher) matchOne(ctx context.Context, t models.NormalizedTrack, c *cache.Cache) (res models.MatchResult) {
	key := cache.Fingerprint(t)
	if c != nil {
		if e, ok := c.Get(key); ok {
			return e.Result(t)
		}
	}

	defer func() {
		if r := recover(); r != nil {
			logging.WarnWithContext(m.logger, "match panicked", "match_panic",
				logging.String(logging.FieldImpact, "track left unmatched"),
				logging.String("title", t.Title),
				logging.Any("panic", r),
			)
			res = models.MatchResult{Track: t, Error: fmt.Sprintf("panic: %v", r)}
			if c != nil {
				c.Put(key, cache.EntryFromResult(res, time.Now()))
			}
		}
	}()

	res = m.Select(ctx, t)
	if c != nil && !(res.Error != "" && isContextErr(ctx.Err())) {
		c.Put(key, cache.EntryFromResult(res, time.Now()))
	}
	return res
}
