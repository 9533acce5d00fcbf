package quality

import (
	"sort"

	"trackbridge/internal/models"
)

// Report summarizes a FilterResult. Bucket counts are disjoint; issue and
// warning counts are tallied separately and may exceed the track count.
type Report struct {
	Total            int                       `json:"total"`
	Valid            int                       `json:"valid"`
	Warned           int                       `json:"warned"`
	Invalid          int                       `json:"invalid"`
	AverageScore     float64                   `json:"average_score"`
	Confidence       map[models.Confidence]int `json:"confidence"`
	RejectionReasons map[string]int            `json:"rejection_reasons"`
	IssueCounts      map[string]int            `json:"issue_counts"`
	WarningCounts    map[string]int            `json:"warning_counts"`
}

func NewReport(res FilterResult) Report {
	r := Report{
		Total:            len(res.Decisions),
		Confidence:       map[models.Confidence]int{},
		RejectionReasons: map[string]int{},
		IssueCounts:      map[string]int{},
		WarningCounts:    map[string]int{},
	}

	sum := 0
	for _, d := range res.Decisions {
		switch d.Bucket {
		case BucketValid:
			r.Valid++
		case BucketWarned:
			r.Warned++
		case BucketInvalid:
			r.Invalid++
		}
		for _, reason := range d.Reasons {
			r.RejectionReasons[reason]++
		}
		for _, issue := range d.Track.Quality.Issues {
			r.IssueCounts[issue]++
		}
		for _, w := range Validate(d.Track).Warnings {
			r.WarningCounts[w]++
		}
		r.Confidence[d.Track.Quality.Confidence]++
		sum += d.Track.Quality.Score
	}
	if r.Total > 0 {
		r.AverageScore = float64(sum) / float64(r.Total)
	}
	return r
}

// SortedKeys returns map keys in a stable order for display.
func SortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
