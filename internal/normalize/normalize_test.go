package normalize

import (
	"reflect"
	"testing"
	"time"

	"trackbridge/internal/models"
	"trackbridge/internal/quality"
)

func fixedNow(t *testing.T, year int) {
	t.Helper()
	prev := now
	now = func() time.Time { return time.Date(year, time.June, 1, 0, 0, 0, 0, time.UTC) }
	t.Cleanup(func() { now = prev })
}

func TestNormalizeExtractsParenthesizedFeature(t *testing.T) {
	got := Normalize(models.RawTrackRecord{"title": "Song (feat. Artist B)", "artist": "Artist A"})
	if got.Title != "Song" {
		t.Fatalf("title = %q, want Song", got.Title)
	}
	if !reflect.DeepEqual(got.Features, []string{"Artist B"}) {
		t.Fatalf("features = %v, want [Artist B]", got.Features)
	}
	if got.Artist != "Artist A" {
		t.Fatalf("artist = %q", got.Artist)
	}
}

func TestNormalizeExtractsVersion(t *testing.T) {
	got := Normalize(models.RawTrackRecord{"title": "Track (Live)", "artist": "Band"})
	if got.Version != "Live" || !got.IsLive {
		t.Fatalf("version = %q live = %v, want Live/true", got.Version, got.IsLive)
	}
	if got.Title != "Track" {
		t.Fatalf("title = %q, want Track", got.Title)
	}
	if got.IsRemix || got.IsInstrumental || got.IsExplicit {
		t.Fatalf("unexpected flags: %+v", got)
	}
}

func TestNormalizeVersionPatterns(t *testing.T) {
	tests := []struct {
		title       string
		wantTitle   string
		wantVersion string
		remix       bool
	}{
		{"One More Time [Radio Edit]", "One More Time", "Radio Edit", false},
		{"Blue Monday - 1988 Remix", "Blue Monday", "1988 Remix", true},
		{"Thriller (2003 Remaster)", "Thriller", "2003 Remaster", false},
		{"So What (Instrumental Version)", "So What", "Instrumental Version", false},
		{"Plain Title", "Plain Title", "", false},
		{"Hey (with the Remix Crew)", "Hey", "", false},
	}
	for _, tc := range tests {
		got := Normalize(models.RawTrackRecord{"title": tc.title, "artist": "Someone"})
		if got.Title != tc.wantTitle || got.Version != tc.wantVersion {
			t.Errorf("%q: got title %q version %q, want %q/%q", tc.title, got.Title, got.Version, tc.wantTitle, tc.wantVersion)
		}
		if got.IsRemix != tc.remix {
			t.Errorf("%q: remix flag = %v", tc.title, got.IsRemix)
		}
	}
}

func TestNormalizeInstrumentalFlag(t *testing.T) {
	got := Normalize(models.RawTrackRecord{"title": "So What (Instrumental Version)", "artist": "Miles Davis"})
	if !got.IsInstrumental {
		t.Fatal("expected instrumental flag")
	}
}

func TestNormalizeArticleRewrite(t *testing.T) {
	got := Normalize(models.RawTrackRecord{"title": "Help!", "artist": "Beatles, The"})
	if got.Artist != "The Beatles" {
		t.Fatalf("artist = %q, want The Beatles", got.Artist)
	}
	if got.SearchArtist != "beatles" {
		t.Fatalf("search artist = %q, want beatles", got.SearchArtist)
	}
}

func TestNormalizeSplitsArtistsIntoFeatures(t *testing.T) {
	got := Normalize(models.RawTrackRecord{
		"title":  "Under Pressure",
		"artist": "Queen & David Bowie",
	})
	if got.Artist != "Queen" {
		t.Fatalf("artist = %q, want Queen", got.Artist)
	}
	if !reflect.DeepEqual(got.Features, []string{"David Bowie"}) {
		t.Fatalf("features = %v", got.Features)
	}
}

func TestNormalizeFeaturesAreUniqueAndTitleCased(t *testing.T) {
	got := Normalize(models.RawTrackRecord{
		"title":  "Collab ft. jay z",
		"artist": "Main Act feat. Jay Z, Other Guest",
	})
	want := []string{"Jay Z", "Other Guest"}
	if !reflect.DeepEqual(got.Features, want) {
		t.Fatalf("features = %v, want %v", got.Features, want)
	}
	if got.Title != "Collab" || got.Artist != "Main Act" {
		t.Fatalf("title/artist = %q/%q", got.Title, got.Artist)
	}
}

func TestNormalizeCleansPunctuationAndWhitespace(t *testing.T) {
	got := Normalize(models.RawTrackRecord{
		"Title":  "  “Don’t   Stop”…  ",
		"ARTIST": "fleetwood   mac",
	})
	if got.Title != "Don't Stop" {
		t.Fatalf("title = %q", got.Title)
	}
	if got.Artist != "Fleetwood Mac" {
		t.Fatalf("artist = %q", got.Artist)
	}
	if got.SearchTitle != "don t stop" {
		t.Fatalf("search title = %q", got.SearchTitle)
	}
}

func TestNormalizeTitleCaseStopWords(t *testing.T) {
	got := Normalize(models.RawTrackRecord{"title": "the sound OF the city", "artist": "x"})
	if got.Title != "The Sound of the City" {
		t.Fatalf("title = %q", got.Title)
	}
	got = Normalize(models.RawTrackRecord{"title": "something to dream of", "artist": "x"})
	if got.Title != "Something to Dream Of" {
		t.Fatalf("title = %q", got.Title)
	}
}

func TestNormalizeKeepsShortAcronyms(t *testing.T) {
	got := Normalize(models.RawTrackRecord{"title": "Live in the USA", "artist": "DJ Shadow"})
	if got.Artist != "DJ Shadow" {
		t.Fatalf("artist = %q", got.Artist)
	}
	got = Normalize(models.RawTrackRecord{"title": "HELLO", "artist": "THE BAND"})
	if got.Artist != "The Band" || got.Title != "Hello" {
		t.Fatalf("all caps input: %q / %q", got.Title, got.Artist)
	}
}

func TestNormalizeAlbumSuffixes(t *testing.T) {
	tests := map[string]string{
		"Thriller (Deluxe Edition)":          "Thriller",
		"Rumours [Remastered]":               "Rumours",
		"1989 (Bonus Track Version)":         "1989",
		"Abbey Road (2019 Remaster)":         "Abbey Road",
		"Discovery":                          "Discovery",
		"Abbey Road (Expanded) [Remastered]": "Abbey Road",
		"Sgt. Pepper (Special Edition)":      "Sgt. Pepper",
	}
	for in, want := range tests {
		got := Normalize(models.RawTrackRecord{"title": "x y", "artist": "z", "album": in})
		if got.Album != want {
			t.Errorf("album %q -> %q, want %q", in, got.Album, want)
		}
	}
}

func TestSearchKey(t *testing.T) {
	tests := map[string]string{
		"The Beatles":         "beatles",
		"Beyoncé":             "beyonce",
		"Rock & Roll, Part 2": "rock roll part 2",
		"The The":             "the the",
		"  Hello--World!!  ":  "hello world",
		"":                    "",
	}
	for in, want := range tests {
		if got := SearchKey(in); got != want {
			t.Errorf("SearchKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCoreTitle(t *testing.T) {
	tests := map[string]string{
		"Thriller (2003 Remaster)":   "Thriller",
		"Thriller - 2003 Remastered": "Thriller",
		"Song [Radio Edit]":          "Song",
		"Track (Album Version)":      "Track",
		"Deluxe Song Extended":       "Song",
		"Plain":                      "Plain",
	}
	for in, want := range tests {
		if got := CoreTitle(in); got != want {
			t.Errorf("CoreTitle(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalizeCaseVariantKeys(t *testing.T) {
	raw := models.RawTrackRecord{"TITLE": "Caps", "Title": "Upper", "title": "lower", "Artist": "Band"}
	for i := 0; i < 20; i++ {
		if got := Normalize(raw); got.Title != "Lower" || got.Artist != "Band" {
			t.Fatalf("run %d: title = %q artist = %q", i, got.Title, got.Artist)
		}
	}

	raw = models.RawTrackRecord{"Title": "Upper", "title": "  ", "artist": "Band"}
	if got := Normalize(raw); got.Title != "Upper" {
		t.Fatalf("blank lowercase key won: title = %q", got.Title)
	}
}

func TestNormalizeNumericFields(t *testing.T) {
	fixedNow(t, 2024)

	got := Normalize(models.RawTrackRecord{
		"title":      "Song",
		"artist":     "Artist",
		"year":       "1999-03-01",
		"duration":   "3:45",
		"play count": 12.0,
	})
	if got.Year == nil || *got.Year != 1999 {
		t.Fatalf("year = %v", got.Year)
	}
	if got.Duration == nil || *got.Duration != 225 {
		t.Fatalf("duration = %v", got.Duration)
	}
	if got.PlayCount == nil || *got.PlayCount != 12 {
		t.Fatalf("play count = %v", got.PlayCount)
	}
	if len(got.Warnings) != 0 {
		t.Fatalf("unexpected warnings %v", got.Warnings)
	}

	got = Normalize(models.RawTrackRecord{"title": "Song", "artist": "Artist", "duration_ms": 215000})
	if got.Duration == nil || *got.Duration != 215 {
		t.Fatalf("duration from ms = %v", got.Duration)
	}
}

func TestNormalizeNumericOutOfRange(t *testing.T) {
	fixedNow(t, 2024)

	got := Normalize(models.RawTrackRecord{
		"title":     "Song",
		"artist":    "Artist",
		"year":      2031,
		"duration":  4,
		"playCount": -1,
	})
	if got.Year != nil || got.Duration != nil || got.PlayCount != nil {
		t.Fatalf("expected nil numeric fields, got %v %v %v", got.Year, got.Duration, got.PlayCount)
	}
	want := []string{WarnYearRange, WarnDurationRange, WarnPlayCountRange}
	if !reflect.DeepEqual(got.Warnings, want) {
		t.Fatalf("warnings = %v, want %v", got.Warnings, want)
	}

	got = Normalize(models.RawTrackRecord{"title": "Song", "artist": "Artist", "year": "1899", "duration": 1201})
	if got.Year != nil || got.Duration != nil {
		t.Fatal("expected boundary values to be rejected")
	}
	got = Normalize(models.RawTrackRecord{"title": "Song", "artist": "Artist", "year": "1900", "duration": 1200})
	if got.Year == nil || got.Duration == nil {
		t.Fatal("expected boundary values to be accepted")
	}
}

func TestNormalizeScoresTrack(t *testing.T) {
	fixedNow(t, 2024)
	got := Normalize(models.RawTrackRecord{"title": "Billie Jean", "artist": "Michael Jackson", "album": "Thriller", "year": 1982})
	if got.Quality.Score != 100 || got.Quality.Confidence != models.ConfidenceHigh {
		t.Fatalf("quality = %+v", got.Quality)
	}

	got = Normalize(models.RawTrackRecord{"album": "Nothing Else"})
	if got.Quality.Score != 0 || got.Quality.Confidence != models.ConfidenceLow {
		t.Fatalf("quality for empty record = %+v", got.Quality)
	}
}

func TestNormalizeFallsBackOnPanic(t *testing.T) {
	prev := now
	now = func() time.Time { panic("clock unavailable") }
	t.Cleanup(func() { now = prev })

	raw := models.RawTrackRecord{"title": "Song", "year": "1999"}
	got := Normalize(raw)
	if got.Title != "Song" || got.Artist != UnknownArtist {
		t.Fatalf("fallback title/artist = %q/%q", got.Title, got.Artist)
	}
	if got.Quality.Confidence != models.ConfidenceLow {
		t.Fatalf("confidence = %q", got.Quality.Confidence)
	}
	if !got.HasIssue(quality.IssueNormalizationFailed) {
		t.Fatalf("issues = %v", got.Quality.Issues)
	}
	if got.Raw["title"] != "Song" {
		t.Fatal("raw record not retained")
	}
}

func TestNormalizeAllPreservesOrder(t *testing.T) {
	out := All([]models.RawTrackRecord{
		{"title": "A1", "artist": "x"},
		{"title": "B2", "artist": "y"},
	})
	if len(out) != 2 || out[0].Title != "A1" || out[1].Title != "B2" {
		t.Fatalf("unexpected order: %+v", out)
	}
}
