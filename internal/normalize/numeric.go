package normalize

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	minYear     = 1900
	minDuration = 5
	maxDuration = 1200
	maxPlays    = 100000
)

var now = time.Now

var (
	leadingYear = regexp.MustCompile(`^(\d{4})(?:\D|$)`)
	clockTime   = regexp.MustCompile(`^(?:(\d+):)?(\d{1,2}):(\d{2})$`)
)

// fields is a case-insensitive view over a raw record.
type fields map[string]any

// newFields folds keys to lower case. When several raw keys fold to the same
// name, the first non-blank one in sorted order wins, except that an
// already-lowercase key beats its case variants.
func newFields(raw map[string]any) fields {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	f := make(fields, len(raw))
	exact := make(map[string]bool, len(raw))
	for _, k := range keys {
		v := raw[k]
		key := strings.ToLower(strings.TrimSpace(k))
		if prev, ok := f[key]; ok && !isBlank(prev) {
			if isBlank(v) || exact[key] || k != key {
				continue
			}
		}
		f[key] = v
		exact[key] = k == key
	}
	return f
}

func isBlank(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}

// text returns the first non-blank value among keys as a string.
func (f fields) text(keys ...string) string {
	for _, k := range keys {
		v, ok := f[k]
		if !ok || isBlank(v) {
			continue
		}
		switch val := v.(type) {
		case string:
			return val
		case float64:
			return strconv.FormatFloat(val, 'f', -1, 64)
		default:
			return fmt.Sprint(val)
		}
	}
	return ""
}

// number returns the first non-blank value among keys as a float, and
// whether any key held a value at all.
func (f fields) number(keys ...string) (float64, bool, bool) {
	for _, k := range keys {
		v, ok := f[k]
		if !ok || isBlank(v) {
			continue
		}
		n, ok := toFloat(v)
		return n, ok, true
	}
	return 0, false, false
}

func toFloat(v any) (float64, bool) {
	switch val := v.(type) {
	case int:
		return float64(val), true
	case int32:
		return float64(val), true
	case int64:
		return float64(val), true
	case float32:
		return float64(val), true
	case float64:
		return val, !math.IsNaN(val) && !math.IsInf(val, 0)
	case json.Number:
		n, err := val.Float64()
		return n, err == nil
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		return n, err == nil && !math.IsNaN(n) && !math.IsInf(n, 0)
	}
	return 0, false
}

// parseYear accepts plain years as well as dates that lead with a year
// (2003-11-30). Values outside [1900, current year] are rejected.
func parseYear(f fields) (*int, bool) {
	raw := f.text("year", "release_date", "release date", "releasedate", "date")
	if raw == "" {
		return nil, false
	}
	var year int
	if m := leadingYear.FindStringSubmatch(strings.TrimSpace(raw)); m != nil {
		year, _ = strconv.Atoi(m[1])
	} else {
		n, ok := toFloat(raw)
		if !ok {
			return nil, true
		}
		year = int(n)
	}
	if year < minYear || year > now().Year() {
		return nil, true
	}
	return &year, false
}

// parseDuration reads seconds from duration/length keys, milliseconds from
// *_ms keys, and m:ss or h:mm:ss clock strings.
func parseDuration(f fields) (*int, bool) {
	var seconds float64
	if s := strings.TrimSpace(f.text("duration", "length", "time")); s != "" && clockTime.MatchString(s) {
		m := clockTime.FindStringSubmatch(s)
		h, _ := strconv.Atoi(m[1])
		mins, _ := strconv.Atoi(m[2])
		sec, _ := strconv.Atoi(m[3])
		seconds = float64(h*3600 + mins*60 + sec)
	} else if n, ok, present := f.number("duration", "length", "time"); present {
		if !ok {
			return nil, true
		}
		seconds = n
	} else if n, ok, present := f.number("duration_ms", "durationms", "total time", "total_time"); present {
		if !ok {
			return nil, true
		}
		seconds = n / 1000
	} else {
		return nil, false
	}

	d := int(math.Round(seconds))
	if d < minDuration || d > maxDuration {
		return nil, true
	}
	return &d, false
}

func parsePlayCount(f fields) (*int, bool) {
	n, ok, present := f.number("playcount", "play_count", "play count", "plays")
	if !present {
		return nil, false
	}
	if !ok || n < 0 || n > maxPlays {
		return nil, true
	}
	c := int(n)
	return &c, false
}
