// Copyright (c) 2025, The GoKit Authors
// MIT License
// All rights reserved.

package remoteops

import (
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// etaMaxSampleSize bounds the history window, about 4 hours of 5-second samples.
	etaMaxSampleSize = 3000

	// etaDefaultSampleSize is the starting window before enough samples accumulate.
	etaDefaultSampleSize = 5

	// etaSmoothing is the exponential moving average factor applied to the
	// processing rate and the completion estimate.
	etaSmoothing = 0.1
)

type (
	// etaSample pairs a remaining-item count with the unix timestamp (in
	// seconds) at which it was observed.
	etaSample struct {
		count float64
		at    float64
	}

	// etaRate pairs an instantaneous processing rate with its observation time.
	etaRate struct {
		rate float64
		at   float64
	}

	// completionEstimator predicts the completion time of a draining item
	// count from a rolling history of count observations. The rate is a
	// duration-weighted average smoothed exponentially, and the estimate is
	// the mean of the completion times implied by recent samples. The
	// estimator resets itself when the count increases or the observed count
	// deviates far from the prediction.
	completionEstimator struct {
		sampleSize int
		smoothing  float64

		countHistory     []etaSample
		monotonicHistory []etaSample
		rateHistory      []etaRate

		rate        float64
		estimate    float64
		uncertainty float64
	}

	// RemainingEstimator reports a smoothed, uncertainty-rounded estimate of
	// the time remaining until a monotonically draining count reaches zero.
	RemainingEstimator struct {
		name      string
		cte       *completionEstimator
		eta       float64
		estimate  float64
		smoothing float64
	}
)

func newCompletionEstimator() *completionEstimator {
	c := &completionEstimator{}
	c.reset("")
	return c
}

// reset clears all history. A non-empty reason is logged.
func (c *completionEstimator) reset(reason string) {
	if reason != "" {
		logrus.WithField("reason", reason).Debug("remoteops resetting estimated time")
	}

	c.sampleSize = etaDefaultSampleSize
	c.smoothing = etaSmoothing

	c.countHistory = nil
	c.monotonicHistory = nil
	c.rateHistory = nil

	c.rate = math.NaN()
	c.estimate = math.NaN()
	c.uncertainty = math.NaN()
}

// updateRate folds a new instantaneous rate into the smoothed rate. Rates are
// weighted by the duration they were in effect once enough samples exist.
func (c *completionEstimator) updateRate(r etaRate) float64 {
	c.rateHistory = append(c.rateHistory, r)
	if len(c.rateHistory) > c.sampleSize+1 {
		c.rateHistory = c.rateHistory[len(c.rateHistory)-(c.sampleSize+1):]
	}

	var newRate float64
	if len(c.rateHistory) < 5 {
		sum := 0.0
		for _, p := range c.rateHistory {
			sum += p.rate
		}
		newRate = sum / float64(len(c.rateHistory))
	} else {
		t0 := c.rateHistory[0].at
		windowLen := c.rateHistory[len(c.rateHistory)-1].at - t0
		for _, p := range c.rateHistory[1:] {
			newRate += p.rate * (p.at - t0) / windowLen
			t0 = p.at
		}
	}

	if math.IsNaN(c.rate) {
		c.rate = newRate
	} else {
		c.rate = c.rate*c.smoothing + newRate*(1-c.smoothing)
	}

	return c.rate
}

// update records a new observation and returns the estimated completion time
// as a unix timestamp, NaN while no estimate is possible.
func (c *completionEstimator) update(numRemaining float64, timestamp float64) float64 {
	if len(c.monotonicHistory) == 0 {
		c.countHistory = append(c.countHistory, etaSample{numRemaining, timestamp})
		c.monotonicHistory = append(c.monotonicHistory, etaSample{numRemaining, timestamp})
		return c.estimate
	}

	lastN := c.monotonicHistory[len(c.monotonicHistory)-1].count
	lastT := c.countHistory[len(c.countHistory)-1].at
	if timestamp <= lastT {
		return c.estimate
	}

	c.countHistory = append(c.countHistory, etaSample{numRemaining, timestamp})
	if len(c.countHistory) > etaMaxSampleSize*4+1 {
		c.countHistory = c.countHistory[len(c.countHistory)-(etaMaxSampleSize*4+1):]
	}

	// Item count should not increase while draining.
	if numRemaining > lastN {
		c.reset("item count increased")
		c.countHistory = append(c.countHistory, etaSample{numRemaining, timestamp})
		c.monotonicHistory = append(c.monotonicHistory, etaSample{numRemaining, timestamp})
		return c.estimate
	}

	// Window grows with the observation history, last 25% of readings.
	c.sampleSize = max(c.sampleSize, len(c.countHistory)/4)
	c.sampleSize = min(c.sampleSize, etaMaxSampleSize)

	if numRemaining < lastN {
		c.monotonicHistory = append(c.monotonicHistory, etaSample{numRemaining, timestamp})
		if len(c.monotonicHistory) > c.sampleSize+1 {
			c.monotonicHistory = c.monotonicHistory[len(c.monotonicHistory)-(c.sampleSize+1):]
		}

		if len(c.monotonicHistory) > 1 {
			first := c.monotonicHistory[0]
			last := c.monotonicHistory[len(c.monotonicHistory)-1]
			c.updateRate(etaRate{(first.count - last.count) / (last.at - first.at), timestamp})
		}

		if len(c.monotonicHistory) > 2 {
			prev := c.monotonicHistory[len(c.monotonicHistory)-2]
			expected := prev.count - (timestamp-prev.at)*c.rate

			// Remaining amount more than 20% off from prediction.
			if expected > 10 && len(c.rateHistory) > 10 &&
				math.Abs(numRemaining-expected)/expected > 0.2 {
				c.reset("significant deviation from expected rate")
				c.countHistory = append(c.countHistory, etaSample{numRemaining, timestamp})
				c.monotonicHistory = append(c.monotonicHistory, etaSample{numRemaining, timestamp})
				return c.estimate
			}
		}
	}

	if math.IsNaN(c.rate) {
		return c.estimate
	}

	// Expected end times implied by recent historical counts at the current rate.
	window := c.countHistory
	if len(window) > c.sampleSize {
		window = window[len(window)-c.sampleSize:]
	}
	estimates := make([]float64, 0, len(window))
	for _, s := range window {
		estimates = append(estimates, s.at+s.count/c.rate)
	}

	// Keep only future-dated estimates while work remains.
	if numRemaining > 0 {
		future := estimates[:0:0]
		for _, e := range estimates {
			if e > timestamp {
				future = append(future, e)
			}
		}
		if len(future) > 0 {
			estimates = future
		}
	}

	c.estimate = etaMean(estimates)
	if len(estimates) > 1 {
		// 2 standard deviations, 95% band.
		c.uncertainty = etaStdev(estimates) * 2
	} else {
		c.uncertainty = 0
	}

	return c.estimate
}

// NewRemainingEstimator creates a remaining-time estimator. The name is used
// only by String.
func NewRemainingEstimator(name string) *RemainingEstimator {
	return &RemainingEstimator{
		name:      name,
		eta:       math.NaN(),
		estimate:  math.NaN(),
		smoothing: etaSmoothing,
	}
}

// Update records the current remaining count and returns the estimated
// remaining time in seconds, NaN until enough observations exist.
func (r *RemainingEstimator) Update(numRemaining int) float64 {
	return r.updateAt(numRemaining, float64(time.Now().UnixNano())/float64(time.Second))
}

func (r *RemainingEstimator) updateAt(numRemaining int, timestamp float64) float64 {
	if r.cte == nil {
		r.cte = newCompletionEstimator()
		r.cte.update(float64(numRemaining), timestamp)
		r.estimate = math.NaN()
		return r.estimate
	}

	completion := r.cte.update(float64(numRemaining), timestamp)
	if math.IsNaN(completion) {
		r.eta = math.NaN()
		r.estimate = math.NaN()
		return r.estimate
	}

	// Moving exponential average on the completion time to prevent jumps.
	if math.IsNaN(r.eta) {
		r.eta = completion
	} else if r.eta <= timestamp {
		r.eta = math.Max(timestamp, completion)
	} else {
		r.eta = r.eta*r.smoothing + completion*(1-r.smoothing)
	}

	r.estimate = r.eta - timestamp

	// Uncertainty dwarfs the estimate and the estimate exceeds 10 minutes:
	// start over rather than report a meaningless number.
	if r.cte.uncertainty*0.1 > r.estimate && r.estimate > 600 && len(r.cte.rateHistory) > 10 {
		logrus.WithFields(logrus.Fields{
			"estimate":    r.estimate,
			"uncertainty": r.cte.uncertainty,
		}).Debug("remoteops resetting estimated time: uncertainty much greater than estimate")
		r.cte = newCompletionEstimator()
		r.cte.update(float64(numRemaining), timestamp)
		r.eta = math.NaN()
		r.estimate = math.NaN()
	}

	return r.Estimate()
}

// Estimate returns the current remaining-time estimate in seconds, rounded up
// to the magnitude of its uncertainty.
func (r *RemainingEstimator) Estimate() float64 {
	if math.IsNaN(r.estimate) || r.cte == nil {
		return r.estimate
	}

	if math.IsNaN(r.cte.uncertainty) || r.cte.uncertainty == 0 {
		return r.estimate
	}

	exponent := math.Pow(10, math.Floor(math.Log10(r.cte.uncertainty)))
	return math.Ceil(r.estimate/exponent) * exponent
}

// String renders RemainingTime<[name]=estimate±uncertainty>.
func (r *RemainingEstimator) String() string {
	uncertainty := math.NaN()
	if r.cte != nil {
		uncertainty = r.cte.uncertainty
	}

	if r.name == "" {
		return fmt.Sprintf("RemainingTime<%v±%v>", r.Estimate(), uncertainty)
	}
	return fmt.Sprintf("RemainingTime<[%s]=%v±%v>", r.name, r.Estimate(), uncertainty)
}

// FormatSeconds humanizes a duration given in seconds. Sub-second values keep
// two significant figures; larger values step through minutes, hours, days,
// weeks, months, and years.
func FormatSeconds(num float64) string {
	num = math.Abs(num)
	if num == 0 {
		return "0 seconds"
	}
	if num == 1 {
		return "1 second"
	}

	if num < 1 {
		precision := 1 - int(math.Floor(math.Log10(num)))
		return fmt.Sprintf("%.*f seconds", precision, num)
	}

	denominators := []float64{60, 60, 24, 7, 365.25 / 84, 12}
	units := []string{"seconds", "minutes", "hours", "days", "weeks", "months", "years"}

	unit := 0
	for unit < 6 && num > denominators[unit]*0.9 {
		num /= denominators[unit]
		unit++
	}

	name := units[unit]
	if num == 1 {
		name = name[:len(name)-1]
	}
	if math.Mod(num, 1) != 0 {
		return fmt.Sprintf("%.2f %s", num, name)
	}
	return fmt.Sprintf("%d %s", int(num), name)
}

func etaMean(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func etaStdev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := etaMean(values)
	sum := 0.0
	for _, v := range values {
		sum += (v - m) * (v - m)
	}
	return math.Sqrt(sum / float64(len(values)-1))
}
