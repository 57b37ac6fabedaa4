// Copyright (c) 2025, The GoKit Authors
// MIT License
// All rights reserved.

package remoteops

import (
	"math"
	"strings"
	"testing"
)

func TestFormatSeconds(t *testing.T) {
	tests := []struct {
		name     string
		seconds  float64
		expected string
	}{
		{
			name:     "zero",
			seconds:  0,
			expected: "0 seconds",
		},
		{
			name:     "one second singular",
			seconds:  1,
			expected: "1 second",
		},
		{
			name:     "sub-second keeps two significant figures",
			seconds:  0.5,
			expected: "0.50 seconds",
		},
		{
			name:     "small sub-second",
			seconds:  0.005,
			expected: "0.0050 seconds",
		},
		{
			name:     "plain seconds",
			seconds:  30,
			expected: "30 seconds",
		},
		{
			name:     "fractional minutes",
			seconds:  90,
			expected: "1.50 minutes",
		},
		{
			name:     "one hour singular",
			seconds:  3600,
			expected: "1 hour",
		},
		{
			name:     "whole hours",
			seconds:  7200,
			expected: "2 hours",
		},
		{
			name:     "whole days",
			seconds:  172800,
			expected: "2 days",
		},
		{
			name:     "negative durations use their magnitude",
			seconds:  -30,
			expected: "30 seconds",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatSeconds(tt.seconds); got != tt.expected {
				t.Errorf("FormatSeconds(%v) = %v, want %v", tt.seconds, got, tt.expected)
			}
		})
	}
}

func TestEtaMean(t *testing.T) {
	tests := []struct {
		name     string
		values   []float64
		expected float64
	}{
		{
			name:     "simple mean",
			values:   []float64{1, 2, 3},
			expected: 2,
		},
		{
			name:     "single value",
			values:   []float64{5},
			expected: 5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := etaMean(tt.values); got != tt.expected {
				t.Errorf("etaMean(%v) = %v, want %v", tt.values, got, tt.expected)
			}
		})
	}

	if !math.IsNaN(etaMean(nil)) {
		t.Error("etaMean(nil) should be NaN")
	}
}

func TestEtaStdev(t *testing.T) {
	if got := etaStdev([]float64{2, 4, 4, 4, 5, 5, 7, 9}); math.Abs(got-2.138) > 0.01 {
		t.Errorf("etaStdev() = %v, want ~2.138", got)
	}
	if got := etaStdev([]float64{5}); got != 0 {
		t.Errorf("etaStdev() with one value = %v, want 0", got)
	}
	if got := etaStdev(nil); got != 0 {
		t.Errorf("etaStdev(nil) = %v, want 0", got)
	}
}

func TestRemainingEstimator_SteadyDrain(t *testing.T) {
	r := NewRemainingEstimator("test")

	// First observation carries no rate information.
	if est := r.updateAt(100, 1000); !math.IsNaN(est) {
		t.Errorf("first update estimate = %v, want NaN", est)
	}

	// Draining 10 items per 10 seconds: 1 item/second, 90 left.
	if est := r.updateAt(90, 1010); math.Abs(est-90) > 1 {
		t.Errorf("second update estimate = %v, want ~90", est)
	}

	if est := r.updateAt(80, 1020); math.Abs(est-80) > 1 {
		t.Errorf("third update estimate = %v, want ~80", est)
	}
}

func TestRemainingEstimator_ResetsOnIncrease(t *testing.T) {
	r := NewRemainingEstimator("test")

	r.updateAt(100, 1000)
	if est := r.updateAt(90, 1010); math.IsNaN(est) {
		t.Fatal("estimator should produce an estimate after two draining observations")
	}

	// A growing count invalidates the drain assumption.
	if est := r.updateAt(120, 1020); !math.IsNaN(est) {
		t.Errorf("estimate after count increase = %v, want NaN", est)
	}
}

func TestRemainingEstimator_StaleTimestampIgnored(t *testing.T) {
	r := NewRemainingEstimator("test")

	r.updateAt(100, 1000)
	r.updateAt(90, 1010)
	before := r.cte.estimate

	// An observation that does not advance time changes nothing.
	r.cte.update(85, 1010)
	if r.cte.estimate != before {
		t.Errorf("estimate changed on stale timestamp: %v, want %v", r.cte.estimate, before)
	}
	if len(r.cte.countHistory) != 2 {
		t.Errorf("stale observation should not be recorded, history len = %d", len(r.cte.countHistory))
	}
}

func TestRemainingEstimator_Estimate_RoundsToUncertainty(t *testing.T) {
	r := NewRemainingEstimator("test")
	r.estimate = 123.4
	r.cte = newCompletionEstimator()
	r.cte.uncertainty = 10

	// Rounded up to the uncertainty's order of magnitude.
	if got := r.Estimate(); got != 130 {
		t.Errorf("Estimate() = %v, want 130", got)
	}

	r.cte.uncertainty = 0
	if got := r.Estimate(); got != 123.4 {
		t.Errorf("Estimate() with zero uncertainty = %v, want the raw estimate", got)
	}
}

func TestRemainingEstimator_String(t *testing.T) {
	named := NewRemainingEstimator("jobs")
	if s := named.String(); !strings.HasPrefix(s, "RemainingTime<[jobs]=") {
		t.Errorf("String() = %v, want RemainingTime<[jobs]=...> prefix", s)
	}

	anonymous := NewRemainingEstimator("")
	if s := anonymous.String(); !strings.HasPrefix(s, "RemainingTime<") || strings.Contains(s, "[") {
		t.Errorf("String() = %v, want no name brackets", s)
	}
}

func TestCompletionEstimator_Reset(t *testing.T) {
	c := newCompletionEstimator()
	c.update(100, 1000)
	c.update(90, 1010)

	c.reset("test")

	if len(c.countHistory) != 0 || len(c.monotonicHistory) != 0 || len(c.rateHistory) != 0 {
		t.Error("reset() should clear all history")
	}
	if !math.IsNaN(c.rate) || !math.IsNaN(c.estimate) || !math.IsNaN(c.uncertainty) {
		t.Error("reset() should clear rate, estimate, and uncertainty")
	}
	if c.sampleSize != etaDefaultSampleSize {
		t.Errorf("reset() sampleSize = %d, want %d", c.sampleSize, etaDefaultSampleSize)
	}
}

func TestCompletionEstimator_SampleWindowGrows(t *testing.T) {
	c := newCompletionEstimator()

	count := 10000.0
	ts := 1000.0
	for i := 0; i < 100; i++ {
		c.update(count, ts)
		count -= 10
		ts += 5
	}

	if c.sampleSize <= etaDefaultSampleSize {
		t.Errorf("sampleSize = %d, should grow past the default %d", c.sampleSize, etaDefaultSampleSize)
	}
	if c.sampleSize > etaMaxSampleSize {
		t.Errorf("sampleSize = %d, must stay capped at %d", c.sampleSize, etaMaxSampleSize)
	}
}
