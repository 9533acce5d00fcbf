package quality

import (
	"trackbridge/internal/models"
)

const (
	ReasonMissingRequired = "missing_required_field"
	ReasonBelowMinimum    = "score_below_minimum"
	ReasonLowConfidence   = "low_confidence"

	// WarnBelowValidationFloor marks a track that filtering let through even
	// though validation considers it invalid.
	WarnBelowValidationFloor = "below_validation_floor"
)

// validationFloor is applied by Validate regardless of filter options.
const validationFloor = 50

type Bucket string

const (
	BucketValid   Bucket = "valid"
	BucketWarned  Bucket = "warned"
	BucketInvalid Bucket = "invalid"
)

type FilterOptions struct {
	MinQualityScore    int
	AllowLowConfidence bool
	RemoveInvalid      bool
}

func DefaultFilterOptions() FilterOptions {
	return FilterOptions{
		MinQualityScore:    50,
		AllowLowConfidence: false,
		RemoveInvalid:      true,
	}
}

// Decision records which bucket a track landed in and why.
type Decision struct {
	Index    int                    `json:"index"`
	Track    models.NormalizedTrack `json:"track"`
	Bucket   Bucket                 `json:"bucket"`
	Reasons  []string               `json:"reasons,omitempty"`
	Warnings []string               `json:"warnings,omitempty"`
}

// Rejection is a filtered-out track together with the reasons it failed.
type Rejection struct {
	Track   models.NormalizedTrack `json:"track"`
	Reasons []string               `json:"reasons"`
}

// FilterResult holds one decision per input track, in input order. Every
// track is in exactly one bucket.
type FilterResult struct {
	Decisions []Decision `json:"decisions"`
}

// Filter partitions tracks into valid, warned and invalid buckets. A track is
// invalid when a required field is missing (and RemoveInvalid is set), when
// its score is below MinQualityScore, or when its confidence is low and
// AllowLowConfidence is unset. Accepted tracks with validation warnings go to
// the warned bucket.
func Filter(tracks []models.NormalizedTrack, opts FilterOptions) FilterResult {
	res := FilterResult{Decisions: make([]Decision, 0, len(tracks))}
	for i, t := range tracks {
		d := Decision{Index: i, Track: t}
		d.Reasons = rejectionReasons(t, opts)

		if len(d.Reasons) > 0 {
			d.Bucket = BucketInvalid
		} else {
			v := Validate(t)
			d.Warnings = v.Warnings
			if !v.Valid {
				d.Warnings = append(d.Warnings, WarnBelowValidationFloor)
			}
			if len(d.Warnings) > 0 {
				d.Bucket = BucketWarned
			} else {
				d.Bucket = BucketValid
			}
		}
		res.Decisions = append(res.Decisions, d)
	}
	return res
}

func rejectionReasons(t models.NormalizedTrack, opts FilterOptions) []string {
	var reasons []string
	if opts.RemoveInvalid && (t.HasIssue(IssueMissingTitle) || t.HasIssue(IssueMissingArtist)) {
		reasons = append(reasons, ReasonMissingRequired)
	}
	if t.Quality.Score < opts.MinQualityScore {
		reasons = append(reasons, ReasonBelowMinimum)
	}
	if t.Quality.Confidence == models.ConfidenceLow && !opts.AllowLowConfidence {
		reasons = append(reasons, ReasonLowConfidence)
	}
	return reasons
}

// Accepted returns valid and warned tracks in input order.
func (r FilterResult) Accepted() []models.NormalizedTrack {
	out := make([]models.NormalizedTrack, 0, len(r.Decisions))
	for _, d := range r.Decisions {
		if d.Bucket != BucketInvalid {
			out = append(out, d.Track)
		}
	}
	return out
}

func (r FilterResult) Valid() []models.NormalizedTrack {
	return r.bucket(BucketValid)
}

func (r FilterResult) Warned() []models.NormalizedTrack {
	return r.bucket(BucketWarned)
}

func (r FilterResult) Invalid() []Rejection {
	var out []Rejection
	for _, d := range r.Decisions {
		if d.Bucket == BucketInvalid {
			out = append(out, Rejection{Track: d.Track, Reasons: d.Reasons})
		}
	}
	return out
}

func (r FilterResult) bucket(b Bucket) []models.NormalizedTrack {
	var out []models.NormalizedTrack
	for _, d := range r.Decisions {
		if d.Bucket == b {
			out = append(out, d.Track)
		}
	}
	return out
}

// Validation is the outcome of Validate.
type Validation struct {
	Valid    bool     `json:"valid"`
	Issues   []string `json:"issues,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// Validate reports out-of-range raw numeric fields as warnings and treats a
// score below 50 as invalid independently of any filter options.
func Validate(t models.NormalizedTrack) Validation {
	v := Validation{
		Valid:    t.Quality.Score >= validationFloor,
		Issues:   append([]string(nil), t.Quality.Issues...),
		Warnings: append([]string(nil), t.Warnings...),
	}
	return v
}
