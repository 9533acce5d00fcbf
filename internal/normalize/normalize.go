// Package normalize turns raw exported track rows into canonical display and
// search strings. It is a set of ordered constant pattern tables plus pure
// functions; nothing here holds state between calls.
package normalize

import (
	"strings"

	"trackbridge/internal/models"
	"trackbridge/internal/quality"
)

const (
	UnknownTitle  = "Unknown Title"
	UnknownArtist = "Unknown Artist"
)

const (
	WarnYearRange      = "year_out_of_range"
	WarnDurationRange  = "duration_out_of_range"
	WarnPlayCountRange = "play_count_out_of_range"
)

var (
	titleKeys  = []string{"title", "name", "track", "track name", "track_name", "song"}
	artistKeys = []string{"artist", "artists", "artist name", "artist_name", "artist name(s)", "performer"}
	albumKeys  = []string{"album", "album name", "album_name", "album title"}
	genreKeys  = []string{"genre", "genres"}
)

// Normalize never fails. If any step panics the record degrades to a
// minimal track with low confidence and a normalization_failed issue.
func Normalize(raw models.RawTrackRecord) (track models.NormalizedTrack) {
	defer func() {
		if r := recover(); r != nil {
			track = fallback(raw)
		}
	}()
	return normalize(raw)
}

// All normalizes a batch in input order.
func All(raws []models.RawTrackRecord) []models.NormalizedTrack {
	out := make([]models.NormalizedTrack, len(raws))
	for i, raw := range raws {
		out[i] = Normalize(raw)
	}
	return out
}

func normalize(raw models.RawTrackRecord) models.NormalizedTrack {
	f := newFields(raw)
	t := models.NormalizedTrack{Raw: raw}

	title := cleanText(f.text(titleKeys...))
	artist := cleanText(f.text(artistKeys...))

	title, t.Version = extractVersion(title)
	t.IsLive = liveFlag.MatchString(t.Version)
	t.IsRemix = remixFlag.MatchString(t.Version)
	t.IsInstrumental = instrumentalFlag.MatchString(t.Version)
	t.IsExplicit = explicitFlag.MatchString(t.Version)

	var features []string
	title, features = extractFeatures(title, features)
	artist, features = extractFeatures(artist, features)

	artist = rewriteArticle(artist)
	artist, features = splitArtists(artist, features)

	t.Title = titleCase(title)
	t.Artist = titleCase(artist)
	t.Album = titleCase(cleanAlbum(cleanText(f.text(albumKeys...))))
	t.Genre = titleCase(cleanText(f.text(genreKeys...)))
	t.Features = uniqueFeatures(features, t.Artist)

	t.SearchTitle = SearchKey(t.Title)
	t.SearchArtist = SearchKey(t.Artist)
	t.SearchAlbum = SearchKey(t.Album)

	var bad bool
	if t.Year, bad = parseYear(f); bad {
		t.Warnings = append(t.Warnings, WarnYearRange)
	}
	if t.Duration, bad = parseDuration(f); bad {
		t.Warnings = append(t.Warnings, WarnDurationRange)
	}
	if t.PlayCount, bad = parsePlayCount(f); bad {
		t.Warnings = append(t.Warnings, WarnPlayCountRange)
	}

	t.Quality = quality.Score(t)
	return t
}

func fallback(raw models.RawTrackRecord) models.NormalizedTrack {
	t := models.NormalizedTrack{
		Title:   UnknownTitle,
		Artist:  UnknownArtist,
		Raw:     raw,
		Quality: quality.Failed(),
	}
	func() {
		defer func() { _ = recover() }()
		f := newFields(raw)
		if s := cleanText(f.text(titleKeys...)); s != "" {
			t.Title = s
		}
		if s := cleanText(f.text(artistKeys...)); s != "" {
			t.Artist = s
		}
	}()
	t.SearchTitle = strings.ToLower(t.Title)
	t.SearchArtist = strings.ToLower(t.Artist)
	return t
}

// extractVersion pulls the first remix/live/remaster style clause out of a
// title. Clauses opening with a featuring keyword are skipped.
func extractVersion(title string) (string, string) {
	for _, p := range versionPatterns {
		for _, m := range p.FindAllStringSubmatchIndex(title, -1) {
			clause := title[m[2]:m[3]]
			if featureLead.MatchString(clause) {
				continue
			}
			rest := strings.TrimSpace(title[:m[0]] + " " + title[m[1]:])
			return strings.Join(strings.Fields(rest), " "), strings.TrimSpace(clause)
		}
	}
	return title, ""
}

func extractFeatures(s string, features []string) (string, []string) {
	for _, p := range featurePatterns {
		for {
			m := p.FindStringSubmatchIndex(s)
			if m == nil {
				break
			}
			for _, name := range featureSplit.Split(s[m[2]:m[3]], -1) {
				if name = strings.TrimSpace(name); name != "" {
					features = append(features, name)
				}
			}
			s = strings.TrimSpace(s[:m[0]] + " " + s[m[1]:])
		}
	}
	return strings.Join(strings.Fields(s), " "), features
}

// rewriteArticle turns "Beatles, The" into "The Beatles".
func rewriteArticle(artist string) string {
	if m := trailingArticle.FindStringSubmatch(artist); m != nil {
		return m[2] + " " + strings.TrimSpace(m[1])
	}
	return artist
}

func splitArtists(artist string, features []string) (string, []string) {
	parts := artistSeparator.Split(artist, -1)
	primary := ""
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if primary == "" {
			primary = p
			continue
		}
		features = append(features, p)
	}
	return primary, features
}

func uniqueFeatures(features []string, primary string) []string {
	if len(features) == 0 {
		return nil
	}
	seen := map[string]struct{}{strings.ToLower(primary): {}}
	out := make([]string, 0, len(features))
	for _, name := range features {
		name = titleCase(cleanText(name))
		key := strings.ToLower(name)
		if name == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, name)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func cleanAlbum(album string) string {
	for {
		stripped := albumSuffix.ReplaceAllString(album, "")
		if stripped == album {
			return strings.TrimSpace(album)
		}
		album = stripped
	}
}
