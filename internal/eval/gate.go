package eval

import (
	"fmt"
	"time"
)

// Thresholds are the minimum quality a build must reach.
type Thresholds struct {
	MinMRR           float64       `yaml:"min_mrr" json:"min_mrr"`
	MinPrecisionAt5  float64       `yaml:"min_precision_at_5" json:"min_precision_at_5"`
	MinCountAccuracy float64       `yaml:"min_count_accuracy" json:"min_count_accuracy"`
	MaxMeanLatency   time.Duration `yaml:"max_mean_latency" json:"max_mean_latency"`
}

// DefaultThresholds returns the release gate.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinMRR:           0.7,
		MinPrecisionAt5:  0.8,
		MinCountAccuracy: 1.0,
		MaxMeanLatency:   100 * time.Millisecond,
	}
}

// GateResult is the verdict on a report.
type GateResult struct {
	Passed   bool     `json:"passed"`
	Failures []string `json:"failures,omitempty"`
}

// Gate checks report against t. A metric measured over zero queries is
// not checked. Any query that errored fails the gate.
func Gate(report *Report, t Thresholds) GateResult {
	if report == nil {
		return GateResult{Failures: []string{"no report"}}
	}

	var failures []string
	check := func(name string, m Metric, minimum float64) {
		if m.N > 0 && m.Value < minimum {
			failures = append(failures, fmt.Sprintf("%s %.3f below %.3f (n=%d)", name, m.Value, minimum, m.N))
		}
	}
	check("mrr@10", report.MRR, t.MinMRR)
	check("precision@5", report.PrecisionAt5, t.MinPrecisionAt5)
	check("count_accuracy", report.CountAccuracy, t.MinCountAccuracy)

	if t.MaxMeanLatency > 0 && report.MeanLatency >= t.MaxMeanLatency {
		failures = append(failures, fmt.Sprintf("mean latency %s not below %s", report.MeanLatency, t.MaxMeanLatency))
	}
	if report.Errors > 0 {
		failures = append(failures, fmt.Sprintf("%d queries failed", report.Errors))
	}

	return GateResult{Passed: len(failures) == 0, Failures: failures}
}
