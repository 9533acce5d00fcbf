// Package dedupe decides whether a source track already exists in a target
// collection, using exact and version-insensitive signatures first and
// weighted similarity after that.
package dedupe

import (
	"log/slog"
	"strings"

	"trackbridge/internal/logging"
	"trackbridge/internal/models"
	"trackbridge/internal/normalize"
	"trackbridge/internal/similarity"
)

const (
	signatureSep    = "|||"
	minSignatureLen = 6

	coreConfidence = 0.95

	titleWeight  = 0.60
	artistWeight = 0.35
	albumWeight  = 0.05

	highThreshold         = 0.90
	mediumThreshold       = 0.75
	mediumArtistThreshold = 0.95
)

type keys struct {
	title     string
	artist    string
	album     string
	signature string
	core      string
}

func signature(title, artist string) string {
	return normalize.SearchKey(title) + signatureSep + normalize.SearchKey(artist)
}

func coreSignature(title, artist string) string {
	return signature(normalize.CoreTitle(title), artist)
}

func trackKeys(t models.NormalizedTrack) keys {
	full := t.FullTitle()
	return keys{
		title:     normalize.SearchKey(full),
		artist:    normalize.SearchKey(t.Artist),
		album:     normalize.SearchKey(t.Album),
		signature: signature(full, t.Artist),
		core:      coreSignature(full, t.Artist),
	}
}

// candidateKeys runs an existing track through the normalizer so both sides
// lose feature clauses and secondary artists the same way.
func candidateKeys(c models.MatchCandidate) keys {
	return trackKeys(normalize.Normalize(models.RawTrackRecord{
		"title":  c.Name,
		"artist": strings.Join(c.Artists, ", "),
		"album":  c.Album,
	}))
}

// Detector compares tracks against a fixed existing collection. Keys for the
// collection are computed once at construction.
type Detector struct {
	existing []models.MatchCandidate
	keys     []keys
	logger   *slog.Logger
}

func NewDetector(existing []models.MatchCandidate, logger *slog.Logger) *Detector {
	d := &Detector{
		existing: existing,
		keys:     make([]keys, len(existing)),
		logger:   logging.NewComponentLogger(logger, "dedupe"),
	}
	for i, c := range existing {
		d.keys[i] = candidateKeys(c)
	}
	return d
}

// IsDuplicate checks one track against existing without building a Detector.
func IsDuplicate(t models.NormalizedTrack, existing []models.MatchCandidate) models.DuplicateVerdict {
	return NewDetector(existing, nil).Check(t)
}

// Check walks the collection in order and returns the first existing track
// that satisfies any tier. Later, stronger matches are not considered.
func (d *Detector) Check(t models.NormalizedTrack) models.DuplicateVerdict {
	subject := trackKeys(t)
	for i := range d.existing {
		method, confidence := compare(subject, d.keys[i])
		if method == models.MethodNone {
			continue
		}
		matched := d.existing[i]
		d.logger.Debug("duplicate found",
			logging.String("title", t.Title),
			logging.String("artist", t.Artist),
			logging.String("existing", matched.Name),
			logging.String("method", string(method)),
			logging.Float64("confidence", confidence))
		return models.DuplicateVerdict{
			IsDuplicate:     true,
			Method:          method,
			Confidence:      confidence,
			MatchedExisting: &matched,
		}
	}
	return models.DuplicateVerdict{Method: models.MethodNone}
}

func compare(a, b keys) (models.DuplicateMethod, float64) {
	if len(a.signature) > minSignatureLen && a.signature == b.signature {
		return models.MethodExactSignature, 1.0
	}
	if len(a.core) > minSignatureLen && a.core == b.core {
		return models.MethodCoreSignature, coreConfidence
	}

	artistSim := similarity.Compare(a.artist, b.artist)
	overall := titleWeight*similarity.Compare(a.title, b.title) +
		artistWeight*artistSim +
		albumWeight*similarity.Compare(a.album, b.album)

	if overall > highThreshold {
		return models.MethodHighSimilarity, overall
	}
	if overall > mediumThreshold && artistSim > mediumArtistThreshold {
		return models.MethodMediumSimilarity, overall
	}
	return models.MethodNone, 0
}

// FilterURIs drops URIs already present in the collection and repeats within
// uris, keeping the original relative order.
func FilterURIs(uris []string, existing []models.MatchCandidate) []string {
	seen := make(map[string]struct{}, len(existing)+len(uris))
	for _, c := range existing {
		if c.URI != "" {
			seen[c.URI] = struct{}{}
		}
	}
	out := make([]string, 0, len(uris))
	for _, uri := range uris {
		if uri == "" {
			continue
		}
		if _, dup := seen[uri]; dup {
			continue
		}
		seen[uri] = struct{}{}
		out = append(out, uri)
	}
	return out
}
