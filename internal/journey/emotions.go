package journey

import "math"

const (
	MinIntensity = -5
	MaxIntensity = 5
)

func ValidIntensity(v int) bool {
	return v >= MinIntensity && v <= MaxIntensity
}

// SeriesSummary aggregates the set points of an emotion series.
type SeriesSummary struct {
	Count   int      `json:"count"`
	Average *float64 `json:"average"`
	Min     *int     `json:"min"`
	Max     *int     `json:"max"`
}

// Summarize ignores nil points. Average is rounded to two decimals.
func Summarize(points []*int) SeriesSummary {
	var summary SeriesSummary
	total := 0
	for _, point := range points {
		if point == nil {
			continue
		}
		v := *point
		if summary.Count == 0 {
			lo, hi := v, v
			summary.Min, summary.Max = &lo, &hi
		} else {
			if v < *summary.Min {
				*summary.Min = v
			}
			if v > *summary.Max {
				*summary.Max = v
			}
		}
		summary.Count++
		total += v
	}
	if summary.Count > 0 {
		avg := math.Round(float64(total)/float64(summary.Count)*100) / 100
		summary.Average = &avg
	}
	return summary
}
