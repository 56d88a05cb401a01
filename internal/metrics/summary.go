package metrics

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/stat"

	"github.com/RyanBlaney/latency-benchmark-common/logging"
	"github.com/RyanBlaney/sonido-embed/pkg/embedding/common"
)

// DurationStats represents statistical measures of per-file processing time
type DurationStats struct {
	Mean   float64 `json:"mean_ms" yaml:"mean_ms"`
	Median float64 `json:"median_ms" yaml:"median_ms"`
	P95    float64 `json:"p95_ms" yaml:"p95_ms"`
	P99    float64 `json:"p99_ms" yaml:"p99_ms"`
	Min    float64 `json:"min_ms" yaml:"min_ms"`
	Max    float64 `json:"max_ms" yaml:"max_ms"`
	StdDev float64 `json:"std_dev_ms" yaml:"std_dev_ms"`
	Count  int     `json:"count" yaml:"count"`
}

// FileOutcome is the result of processing one file in a batch
type FileOutcome struct {
	Path       string
	DurationMs float64
	Segments   int
	Err        error
}

// BatchSummary aggregates a batch run
type BatchSummary struct {
	Files             int            `json:"files" yaml:"files"`
	Succeeded         int            `json:"succeeded" yaml:"succeeded"`
	Failed            int            `json:"failed" yaml:"failed"`
	SuccessRate       float64        `json:"success_rate" yaml:"success_rate"`
	Duration          *DurationStats `json:"duration" yaml:"duration"`
	Segments          *DurationStats `json:"segments" yaml:"segments"`
	ErrorDistribution map[string]int `json:"error_distribution" yaml:"error_distribution"`
}

// SummaryCalculator handles calculation of batch run statistics
type SummaryCalculator struct {
	logger logging.Logger
}

// NewSummaryCalculator creates a new summary calculator
func NewSummaryCalculator(logger logging.Logger) *SummaryCalculator {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}

	return &SummaryCalculator{
		logger: logger,
	}
}

// Summarize calculates statistics over outcomes. Durations and segment counts
// only include successful files.
func (sc *SummaryCalculator) Summarize(outcomes []FileOutcome) *BatchSummary {
	summary := &BatchSummary{
		Files:             len(outcomes),
		ErrorDistribution: make(map[string]int),
	}

	var durations, segments []float64
	for _, o := range outcomes {
		if o.Err != nil {
			summary.Failed++
			summary.ErrorDistribution[categorizeError(o.Err)]++
			continue
		}
		summary.Succeeded++
		durations = append(durations, o.DurationMs)
		segments = append(segments, float64(o.Segments))
	}

	if summary.Files > 0 {
		summary.SuccessRate = float64(summary.Succeeded) / float64(summary.Files)
	}
	summary.Duration = sc.calculateStats(durations)
	summary.Segments = sc.calculateStats(segments)

	sc.logger.Debug("Batch summary calculated", logging.Fields{
		"function":  "Summarize",
		"files":     summary.Files,
		"succeeded": summary.Succeeded,
		"failed":    summary.Failed,
	})

	return summary
}

// calculateStats calculates statistical measures for a dataset
func (sc *SummaryCalculator) calculateStats(data []float64) *DurationStats {
	if len(data) == 0 {
		return &DurationStats{Count: 0}
	}

	sorted := slices.Clone(data)
	slices.Sort(sorted)

	mean, std := stat.PopMeanStdDev(sorted, nil)
	stats := &DurationStats{
		Count:  len(sorted),
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
		Median: percentile(sorted, 50),
		P95:    percentile(sorted, 95),
		P99:    percentile(sorted, 99),
		Mean:   mean,
		StdDev: std,
	}

	return sanitizeStats(stats)
}

// percentile linearly interpolates between closest ranks of sorted data
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	index := (p / 100.0) * float64(len(sorted)-1)
	lower := int(math.Floor(index))
	upper := min(int(math.Ceil(index)), len(sorted)-1)
	weight := index - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}

// sanitizeStats replaces infinite and NaN values so the summary serializes
func sanitizeStats(stats *DurationStats) *DurationStats {
	for _, v := range []*float64{&stats.Mean, &stats.Median, &stats.P95, &stats.P99, &stats.Min, &stats.Max, &stats.StdDev} {
		if math.IsInf(*v, 0) || math.IsNaN(*v) {
			*v = 0
		}
	}
	return stats
}

// categorizeError groups failures by pipeline error code
func categorizeError(err error) string {
	if err == nil {
		return "none"
	}
	if code := common.CodeOf(err); code != "" {
		return code
	}
	return "other"
}
