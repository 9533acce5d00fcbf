package matcher

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"trackbridge/internal/cache"
	"trackbridge/internal/catalog"
	"trackbridge/internal/models"
	"trackbridge/internal/normalize"
	"trackbridge/internal/retry"
)

type fakeSearcher struct {
	filters bool
	fn      func(ctx context.Context, query string) ([]models.MatchCandidate, error)

	mu      sync.Mutex
	queries []string
}

func (f *fakeSearcher) SupportsFieldFilters() bool { return f.filters }

func (f *fakeSearcher) Search(ctx context.Context, query string, limit int) ([]models.MatchCandidate, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.mu.Unlock()
	if f.fn == nil {
		return nil, nil
	}
	return f.fn(ctx, query)
}

func (f *fakeSearcher) seen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

func track(title, artist string) models.NormalizedTrack {
	return normalize.Normalize(models.RawTrackRecord{"title": title, "artist": artist})
}

func noSleep(context.Context, time.Duration) error { return nil }

func testOptions() Options {
	opts := DefaultOptions()
	opts.Retry.Sleep = noSleep
	opts.BatchDelay = 0
	return opts
}

var beatles = models.MatchCandidate{ID: "y1", URI: "spotify:track:y1", Name: "Yesterday", Artists: []string{"The Beatles"}}

func TestStrategyQueries(t *testing.T) {
	tr := track("Yesterday", "The Beatles")
	cases := []struct {
		filters bool
		want    []string
	}{
		{true, []string{`track:"yesterday" artist:"beatles"`, "Yesterday The Beatles", `track:"yesterday"`, `artist:"beatles"`}},
		{false, []string{"yesterday beatles", "Yesterday The Beatles", "yesterday", "beatles"}},
	}
	for _, tc := range cases {
		var got []string
		for _, s := range DefaultStrategies {
			got = append(got, s.Build(tr, tc.filters))
		}
		if !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("filters=%v queries = %q, want %q", tc.filters, got, tc.want)
		}
	}
}

func TestSelectExactMatch(t *testing.T) {
	s := &fakeSearcher{filters: true, fn: func(context.Context, string) ([]models.MatchCandidate, error) {
		return []models.MatchCandidate{beatles}, nil
	}}
	m := New(s, testOptions(), nil)

	res := m.Select(context.Background(), track("Yesterday", "The Beatles"))
	if !res.Matched() || res.Candidate.URI != "spotify:track:y1" {
		t.Fatalf("result = %+v", res)
	}
	if res.Strategy != "exact" || res.Confidence != 1 {
		t.Fatalf("strategy = %q confidence = %v", res.Strategy, res.Confidence)
	}
	if q := s.seen(); len(q) != 1 {
		t.Fatalf("queries = %q, want one", q)
	}
}

func TestSelectNoCandidates(t *testing.T) {
	s := &fakeSearcher{}
	m := New(s, testOptions(), nil)

	res := m.Select(context.Background(), track("Yesterday", "The Beatles"))
	if res.Matched() || res.Confidence != 0 || res.Error != "" {
		t.Fatalf("result = %+v", res)
	}
	if q := s.seen(); len(q) != 4 {
		t.Fatalf("queries = %q, want all four strategies", q)
	}
}

func TestSelectSkipsDuplicateQueries(t *testing.T) {
	s := &fakeSearcher{}
	m := New(s, testOptions(), nil)

	// Without an artist the exact and track-only queries coincide, and the
	// artist-only query is empty.
	m.Select(context.Background(), normalize.Normalize(models.RawTrackRecord{"title": "yesterday"}))
	if q := s.seen(); !reflect.DeepEqual(q, []string{"yesterday", "Yesterday"}) {
		t.Fatalf("queries = %q", q)
	}
}

func TestSelectFallsThroughWeakCandidates(t *testing.T) {
	s := &fakeSearcher{fn: func(_ context.Context, q string) ([]models.MatchCandidate, error) {
		if q == "yesterday" {
			return []models.MatchCandidate{beatles}, nil
		}
		return []models.MatchCandidate{{ID: "x", Name: "Completely Different", Artists: []string{"Nobody"}}}, nil
	}}
	m := New(s, testOptions(), nil)

	res := m.Select(context.Background(), track("Yesterday", "The Beatles"))
	if res.Strategy != "track_only" || res.Candidate == nil || res.Candidate.ID != "y1" {
		t.Fatalf("result = %+v", res)
	}
}

func TestSelectBelowThresholdIsUnmatched(t *testing.T) {
	s := &fakeSearcher{fn: func(context.Context, string) ([]models.MatchCandidate, error) {
		return []models.MatchCandidate{{ID: "x", Name: "Completely Different", Artists: []string{"Nobody"}}}, nil
	}}
	m := New(s, testOptions(), nil)

	res := m.Select(context.Background(), track("Yesterday", "The Beatles"))
	if res.Matched() || res.Confidence != 0 {
		t.Fatalf("result = %+v", res)
	}
}

func TestSelectRetriesRateLimits(t *testing.T) {
	var calls int
	s := &fakeSearcher{filters: true, fn: func(context.Context, string) ([]models.MatchCandidate, error) {
		calls++
		if calls < 3 {
			return nil, &catalog.RateLimitError{RetryAfter: 30 * time.Millisecond}
		}
		return []models.MatchCandidate{beatles}, nil
	}}
	var delays []time.Duration
	opts := testOptions()
	opts.Retry.Backoff = retry.Exponential(20 * time.Millisecond)
	opts.Retry.Sleep = func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}
	m := New(s, opts, nil)

	res := m.Select(context.Background(), track("Yesterday", "The Beatles"))
	if res.Strategy != "exact" || !res.Matched() {
		t.Fatalf("result = %+v", res)
	}
	want := []time.Duration{30 * time.Millisecond, 40 * time.Millisecond}
	if !reflect.DeepEqual(delays, want) {
		t.Fatalf("delays = %v, want %v", delays, want)
	}
}

func TestSelectExhaustedRateLimitMovesOn(t *testing.T) {
	s := &fakeSearcher{filters: true, fn: func(_ context.Context, q string) ([]models.MatchCandidate, error) {
		if strings.HasPrefix(q, "track:") && strings.Contains(q, "artist:") {
			return nil, catalog.ErrRateLimited
		}
		return []models.MatchCandidate{beatles}, nil
	}}
	m := New(s, testOptions(), nil)

	res := m.Select(context.Background(), track("Yesterday", "The Beatles"))
	if res.Strategy != "loose" {
		t.Fatalf("strategy = %q", res.Strategy)
	}
	if q := s.seen(); len(q) != retry.DefaultMaxAttempts+1 {
		t.Fatalf("queries = %d, want %d", len(q), retry.DefaultMaxAttempts+1)
	}
}

func TestSelectFatalErrorsAreNotRetried(t *testing.T) {
	boom := errors.New("boom")
	s := &fakeSearcher{fn: func(context.Context, string) ([]models.MatchCandidate, error) {
		return nil, boom
	}}
	m := New(s, testOptions(), nil)

	res := m.Select(context.Background(), track("Yesterday", "The Beatles"))
	if res.Matched() || res.Error != "boom" {
		t.Fatalf("result = %+v", res)
	}
	if q := s.seen(); len(q) != 4 {
		t.Fatalf("queries = %d, want one per strategy", len(q))
	}
}

func TestScore(t *testing.T) {
	tr := track("Yesterday", "The Beatles")
	if got := Score(tr, beatles); got != 1 {
		t.Fatalf("Score(identical) = %v", got)
	}
	other := models.MatchCandidate{Name: "Yesterday", Artists: []string{"Someone Else"}}
	got := Score(tr, other)
	if got < 0.7 || got >= 1 {
		t.Fatalf("Score(title only) = %v, want title weight plus partial artist", got)
	}
}

func batchTracks(n int) []models.NormalizedTrack {
	out := make([]models.NormalizedTrack, n)
	for i := range out {
		out[i] = track(fmt.Sprintf("Song %d", i+1), "Artist")
	}
	return out
}

// echoSearcher answers every track: query with a candidate named after the
// queried title.
func echoSearcher(inflight, peak *int32) *fakeSearcher {
	return &fakeSearcher{filters: true, fn: func(ctx context.Context, q string) ([]models.MatchCandidate, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if inflight != nil {
			n := atomic.AddInt32(inflight, 1)
			for {
				p := atomic.LoadInt32(peak)
				if n <= p || atomic.CompareAndSwapInt32(peak, p, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			atomic.AddInt32(inflight, -1)
		}
		_, rest, _ := strings.Cut(q, `track:"`)
		title, _, _ := strings.Cut(rest, `"`)
		return []models.MatchCandidate{{ID: title, URI: "uri:" + title, Name: title, Artists: []string{"Artist"}}}, nil
	}}
}

func TestRunBatchesBoundsConcurrencyAndKeepsOrder(t *testing.T) {
	var inflight, peak int32
	s := echoSearcher(&inflight, &peak)
	m := New(s, testOptions(), nil)
	tracks := batchTracks(25)

	var order []int
	results := m.RunBatches(context.Background(), tracks, nil, func(i int, _ models.MatchResult) {
		order = append(order, i)
	})

	if peak > DefaultBatchSize {
		t.Fatalf("peak concurrency = %d, want <= %d", peak, DefaultBatchSize)
	}
	for i, r := range results {
		want := fmt.Sprintf("uri:song %d", i+1)
		if r.Candidate == nil || r.Candidate.URI != want {
			t.Fatalf("results[%d] = %+v, want %s", i, r.Candidate, want)
		}
	}
	for i, idx := range order {
		if idx != i {
			t.Fatalf("callback order = %v", order)
		}
	}
}

func TestRunBatchesUsesAndFillsCache(t *testing.T) {
	s := echoSearcher(nil, nil)
	m := New(s, testOptions(), nil)
	tracks := batchTracks(3)
	c := cache.New(nil, nil)
	c.Put(cache.Fingerprint(tracks[1]), cache.Entry{Matched: true, ID: "hit", URI: "uri:hit", Name: "Song 2", Confidence: 0.9})

	results := m.RunBatches(context.Background(), tracks, c, nil)

	if !results[1].Cached || results[1].Candidate.URI != "uri:hit" {
		t.Fatalf("results[1] = %+v", results[1])
	}
	for _, q := range s.seen() {
		if strings.Contains(q, `"song 2"`) {
			t.Fatalf("cached track was searched: %q", q)
		}
	}
	if c.Len() != 3 {
		t.Fatalf("cache len = %d, want 3", c.Len())
	}
	if e, ok := c.Get(cache.Fingerprint(tracks[0])); !ok || e.URI != "uri:song 1" {
		t.Fatalf("cache entry = %+v, %v", e, ok)
	}
}

func TestRunBatchesCachesFailures(t *testing.T) {
	s := &fakeSearcher{fn: func(context.Context, string) ([]models.MatchCandidate, error) {
		return nil, errors.New("upstream down")
	}}
	m := New(s, testOptions(), nil)
	tracks := batchTracks(1)
	c := cache.New(nil, nil)

	m.RunBatches(context.Background(), tracks, c, nil)

	e, ok := c.Get(cache.Fingerprint(tracks[0]))
	if !ok || e.Matched || e.Error != "upstream down" {
		t.Fatalf("entry = %+v, %v", e, ok)
	}
}

func TestRunBatchesRecoversPanics(t *testing.T) {
	s := &fakeSearcher{filters: true, fn: func(_ context.Context, q string) ([]models.MatchCandidate, error) {
		if strings.Contains(q, `"song 2"`) {
			panic("bad candidate")
		}
		return echoSearcher(nil, nil).fn(context.Background(), q)
	}}
	m := New(s, testOptions(), nil)

	results := m.RunBatches(context.Background(), batchTracks(3), nil, nil)
	if results[1].Matched() || !strings.Contains(results[1].Error, "bad candidate") {
		t.Fatalf("results[1] = %+v", results[1])
	}
	if !results[0].Matched() || !results[2].Matched() {
		t.Fatalf("neighbours affected: %+v %+v", results[0], results[2])
	}
}

func TestRunBatchesCancelledContextIsNotCached(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := New(echoSearcher(nil, nil), testOptions(), nil)
	c := cache.New(nil, nil)

	results := m.RunBatches(ctx, batchTracks(12), c, nil)
	if len(results) != 12 {
		t.Fatalf("len = %d", len(results))
	}
	for i, r := range results {
		if r.Matched() || r.Error == "" {
			t.Fatalf("results[%d] = %+v", i, r)
		}
	}
	if c.Len() != 0 {
		t.Fatalf("cache len = %d, want 0", c.Len())
	}
}
