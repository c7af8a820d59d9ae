// Package stats computes derived views over a user's study records.
// Every function is pure: identical input yields identical output and
// the input slice is never mutated.
package stats

import (
	"sort"

	"github.com/okabe/studylog/internal/models"
)

// DefaultChartWindow is how many of the most recent records the trend
// chart shows.
const DefaultChartWindow = 20

// Summary aggregates a record list into the headline numbers.
type Summary struct {
	Attempted int `json:"attempted"`
	Correct   int `json:"correct"`
	Rate      int `json:"rate"`
	Count     int `json:"count"`
}

// Totals sums attempted and correct across all records. Rate is the
// rounded overall percentage, 0 when nothing was attempted. An empty
// list yields the zero Summary.
func Totals(records []models.StudyRecord) Summary {
	s := Summary{Count: len(records)}
	for _, r := range records {
		s.Attempted += r.Attempted
		s.Correct += r.Correct
	}
	s.Rate = models.Rate(s.Attempted, s.Correct)
	return s
}

// ChartPoint is one entry of the trend series handed to the chart.
type ChartPoint struct {
	Label string `json:"label"`
	Rate  int    `json:"rate"`
}

// ChartSeries produces the trend series: records re-ordered
// chronologically ascending by Timestamp (stored order is newest-first),
// trimmed to the most recent window entries. window <= 0 selects
// DefaultChartWindow. Date and Time are display-only; Timestamp is the
// sort key, with ID breaking same-instant ties.
func ChartSeries(records []models.StudyRecord, window int) []ChartPoint {
	if window <= 0 {
		window = DefaultChartWindow
	}

	ordered := make([]models.StudyRecord, len(records))
	copy(ordered, records)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Timestamp != ordered[j].Timestamp {
			return ordered[i].Timestamp < ordered[j].Timestamp
		}
		return ordered[i].ID < ordered[j].ID
	})

	if len(ordered) > window {
		ordered = ordered[len(ordered)-window:]
	}

	points := make([]ChartPoint, len(ordered))
	for i, r := range ordered {
		points[i] = ChartPoint{Label: r.Date + " " + r.Time, Rate: r.Rate}
	}
	return points
}

// Tier classifies a rate for presentation.
type Tier string

const (
	TierHigh   Tier = "high"   // rate >= 80
	TierMedium Tier = "medium" // 60 <= rate < 80
	TierLow    Tier = "low"    // rate < 60
)

// RateTier buckets a rate percentage into its presentation tier.
func RateTier(rate int) Tier {
	switch {
	case rate >= 80:
		return TierHigh
	case rate >= 60:
		return TierMedium
	default:
		return TierLow
	}
}

// FieldSummary aggregates one subject field.
type FieldSummary struct {
	Field     string `json:"field"`
	Attempted int    `json:"attempted"`
	Correct   int    `json:"correct"`
	Rate      int    `json:"rate"`
	Count     int    `json:"count"`
}

// FieldBreakdown groups records by subject field and totals each group,
// sorted by field label.
func FieldBreakdown(records []models.StudyRecord) []FieldSummary {
	byField := make(map[string]*FieldSummary)
	for _, r := range records {
		fs, ok := byField[r.Field]
		if !ok {
			fs = &FieldSummary{Field: r.Field}
			byField[r.Field] = fs
		}
		fs.Attempted += r.Attempted
		fs.Correct += r.Correct
		fs.Count++
	}

	out := make([]FieldSummary, 0, len(byField))
	for _, fs := range byField {
		fs.Rate = models.Rate(fs.Attempted, fs.Correct)
		out = append(out, *fs)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Field < out[j].Field })
	return out
}

// DailyEntry is one consolidated (date, field) row.
type DailyEntry struct {
	Date      string `json:"date"`
	Field     string `json:"field"`
	Attempted int    `json:"attempted"`
	Correct   int    `json:"correct"`
	Rate      int    `json:"rate"`
}

// MergeDaily consolidates records sharing the same date and field into
// one row each, summing the counts and recomputing the rate. Rows come
// back sorted by date then field.
func MergeDaily(records []models.StudyRecord) []DailyEntry {
	type key struct{ date, field string }
	merged := make(map[key]*DailyEntry)
	for _, r := range records {
		k := key{r.Date, r.Field}
		e, ok := merged[k]
		if !ok {
			e = &DailyEntry{Date: r.Date, Field: r.Field}
			merged[k] = e
		}
		e.Attempted += r.Attempted
		e.Correct += r.Correct
	}

	out := make([]DailyEntry, 0, len(merged))
	for _, e := range merged {
		e.Rate = models.Rate(e.Attempted, e.Correct)
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].Field < out[j].Field
	})
	return out
}

// Cohort comparison thresholds: a field is weak when it trails the
// cohort average by 10 points or more, strong when it leads by 5 or more.
const (
	weakDiff   = -10
	strongDiff = 5
)

// FieldComparison relates one of the user's fields to the cohort average
// for that field.
type FieldComparison struct {
	Field     string  `json:"field"`
	Rate      int     `json:"rate"`
	CohortAvg float64 `json:"cohortAvg"`
	Diff      float64 `json:"diff"`
	Weak      bool    `json:"weak"`
	Strong    bool    `json:"strong"`
}

// CompareFields diffs the user's per-field rates against cohort averages
// (field label -> average rate). Fields without a cohort average are
// skipped; the cohort is computed server-side, the engine never sees
// other users' records.
func CompareFields(own []FieldSummary, cohort map[string]float64) []FieldComparison {
	out := make([]FieldComparison, 0, len(own))
	for _, fs := range own {
		avg, ok := cohort[fs.Field]
		if !ok {
			continue
		}
		diff := float64(fs.Rate) - avg
		out = append(out, FieldComparison{
			Field:     fs.Field,
			Rate:      fs.Rate,
			CohortAvg: avg,
			Diff:      diff,
			Weak:      diff <= weakDiff,
			Strong:    diff >= strongDiff,
		})
	}
	return out
}
