package enrich

import (
	"fmt"
	"strings"

	"reelmeta/internal/movielens"
)

// Feature names reported by ComputeCoverage, in display order.
var Features = []string{"synopsis", "cast", "director", "budget", "revenue", "runtime", "keywords"}

// FeatureCoverage counts rows carrying a feature.
type FeatureCoverage struct {
	Feature string  `json:"feature"`
	Count   int     `json:"count"`
	Percent float64 `json:"percent"`
}

// Coverage is the per-feature fill rate of an enriched table.
type Coverage struct {
	Total    int               `json:"total"`
	Features []FeatureCoverage `json:"features"`
}

// ComputeCoverage counts non-empty text and list features and present
// numeric features across rows.
func ComputeCoverage(rows []movielens.EnrichedMovie) Coverage {
	counts := make(map[string]int, len(Features))
	for _, row := range rows {
		d := row.Details
		if d == nil {
			continue
		}
		if strings.TrimSpace(d.Synopsis) != "" {
			counts["synopsis"]++
		}
		if len(d.Cast) > 0 {
			counts["cast"]++
		}
		if len(d.Directors) > 0 {
			counts["director"]++
		}
		if d.Budget != nil {
			counts["budget"]++
		}
		if d.Revenue != nil {
			counts["revenue"]++
		}
		if d.Runtime != nil {
			counts["runtime"]++
		}
		if len(d.Keywords) > 0 {
			counts["keywords"]++
		}
	}
	cov := Coverage{Total: len(rows), Features: make([]FeatureCoverage, 0, len(Features))}
	for _, feature := range Features {
		fc := FeatureCoverage{Feature: feature, Count: counts[feature]}
		if cov.Total > 0 {
			fc.Percent = float64(fc.Count) / float64(cov.Total) * 100
		}
		cov.Features = append(cov.Features, fc)
	}
	return cov
}

// Summary renders coverage on one line, e.g. "synopsis 98.1%, cast 95.0%".
func (c Coverage) Summary() string {
	parts := make([]string, 0, len(c.Features))
	for _, fc := range c.Features {
		parts = append(parts, fmt.Sprintf("%s %.1f%%", fc.Feature, fc.Percent))
	}
	return strings.Join(parts, ", ")
}

// Samples returns the first n rows with a synopsis.
func Samples(rows []movielens.EnrichedMovie, n int) []movielens.EnrichedMovie {
	if n <= 0 {
		return nil
	}
	out := make([]movielens.EnrichedMovie, 0, n)
	for _, row := range rows {
		if !row.HasSynopsis() {
			continue
		}
		out = append(out, row)
		if len(out) == n {
			break
		}
	}
	return out
}
