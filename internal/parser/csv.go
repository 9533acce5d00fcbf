// Package parser turns source exports (CSV files, Spotify and YouTube
// playlists) into raw track records.
package parser

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"trackbridge/internal/models"
)

// Canonical record keys. The normalizer reads these names, so every parser
// emits them.
const (
	KeyTitle      = "title"
	KeyArtist     = "artist"
	KeyAlbum      = "album"
	KeyGenre      = "genre"
	KeyYear       = "year"
	KeyDuration   = "duration"
	KeyDurationMS = "duration_ms"
	KeyPlayCount  = "play_count"
	KeyISRC       = "isrc"
	KeySourceURI  = "source_uri"
)

// canonical header mapping
var headerAliases = map[string]string{
	"title":       KeyTitle,
	"track":       KeyTitle,
	"track_title": KeyTitle,
	"track name":  KeyTitle,
	"name":        KeyTitle,
	"song":        KeyTitle,

	"artist":         KeyArtist,
	"artist_name":    KeyArtist,
	"artist name":    KeyArtist,
	"artist name(s)": KeyArtist,
	"artists":        KeyArtist,
	"performer":      KeyArtist,

	"album":       KeyAlbum,
	"album_title": KeyAlbum,
	"album name":  KeyAlbum,

	"genre":  KeyGenre,
	"genres": KeyGenre,

	"year":         KeyYear,
	"release date": KeyYear,
	"release_date": KeyYear,

	"duration":      KeyDuration,
	"time":          KeyDuration,
	"length":        KeyDuration,
	"total time":    KeyDurationMS,
	"duration (ms)": KeyDurationMS,
	"duration_ms":   KeyDurationMS,

	"play count": KeyPlayCount,
	"play_count": KeyPlayCount,
	"plays":      KeyPlayCount,

	"isrc": KeyISRC,

	"spotify":           KeySourceURI,
	"spotify_uri":       KeySourceURI,
	"spotify_track_uri": KeySourceURI,
	"track uri":         KeySourceURI,
	"uri":               KeySourceURI,
}

// ErrNoColumns means the header row had nothing recognisable.
var ErrNoColumns = errors.New("CSV has no recognizable columns")

func canonicalHeader(s string) string {
	return strings.ToLower(strings.TrimSpace(strings.TrimPrefix(s, "\ufeff")))
}

// ParseCSV reads a header row followed by track rows. Known headers are
// renamed to canonical keys; other columns are kept under their original
// name so the raw record stays complete. Rows without title and artist are
// dropped.
func ParseCSV(r io.Reader) ([]models.RawTrackRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	// ---- Read header row ----
	rawHeaders, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrNoColumns
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	columns := make([]string, len(rawHeaders))
	recognised := 0
	for i, h := range rawHeaders {
		if canonical, ok := headerAliases[canonicalHeader(h)]; ok {
			columns[i] = canonical
			recognised++
			continue
		}
		columns[i] = strings.TrimSpace(h)
	}
	if recognised == 0 {
		return nil, ErrNoColumns
	}

	var records []models.RawTrackRecord

	// ---- Read rows ----
	for line := 2; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		rec := make(models.RawTrackRecord, len(row))
		for i, v := range row {
			if i >= len(columns) || columns[i] == "" {
				continue
			}
			val := strings.TrimSpace(v)
			if val == "" {
				continue
			}
			// First non-empty alias wins when two columns map to one key.
			if _, exists := rec[columns[i]]; !exists {
				rec[columns[i]] = val
			}
		}

		// Skip totally empty rows
		if rec[KeyTitle] == nil && rec[KeyArtist] == nil {
			continue
		}
		records = append(records, rec)
	}

	return records, nil
}

// ParseCSVUpload handles multipart file uploads from the Web API. The
// returned name is the uploaded file name without its extension.
func ParseCSVUpload(r *http.Request) ([]models.RawTrackRecord, string, error) {
	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, "", err
	}
	defer file.Close()

	records, err := ParseCSV(file)
	if err != nil {
		return nil, "", err
	}
	return records, strings.TrimSuffix(header.Filename, filepath.Ext(header.Filename)), nil
}
