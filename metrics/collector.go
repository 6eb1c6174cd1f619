// Package metrics provides per-conversion metrics collection.
//
// The Collector accumulates counters during a single conversion. It is a
// leaf package with no internal dependencies. All increment methods are
// nil-receiver safe so callers can pass a nil collector to disable metrics.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all collected metrics.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Validation
	ValidationsPassed int64
	ValidationsFailed int64

	// Step lifecycle
	StepsStarted   int64
	StepsSucceeded int64
	StepsFailed    int64

	// Conversion outcomes
	ConversionsSucceeded int64
	ConversionsFailed    int64
	ConversionsCanceled  int64

	// Dimensions (informational, set at construction)
	Family       string
	ConversionID string
}

// Collector accumulates metrics during a single conversion.
// Thread-safe via sync.Mutex.
type Collector struct {
	mu sync.Mutex

	validationsPassed int64
	validationsFailed int64

	stepsStarted   int64
	stepsSucceeded int64
	stepsFailed    int64

	conversionsSucceeded int64
	conversionsFailed    int64
	conversionsCanceled  int64

	// Dimensions
	family       string
	conversionID string
}

// NewCollector creates a Collector with dimension labels.
func NewCollector(family, conversionID string) *Collector {
	return &Collector{
		family:       family,
		conversionID: conversionID,
	}
}

// IncValidationPassed records a successful validation gate pass.
func (c *Collector) IncValidationPassed() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.validationsPassed++
	c.mu.Unlock()
}

// IncValidationFailed records a validation gate rejection.
func (c *Collector) IncValidationFailed() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.validationsFailed++
	c.mu.Unlock()
}

// IncStepStarted records a step start.
func (c *Collector) IncStepStarted() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.stepsStarted++
	c.mu.Unlock()
}

// IncStepSucceeded records a step completing with exit code zero.
func (c *Collector) IncStepSucceeded() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.stepsSucceeded++
	c.mu.Unlock()
}

// IncStepFailed records a step exiting abnormally.
func (c *Collector) IncStepFailed() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.stepsFailed++
	c.mu.Unlock()
}

// IncConversionSucceeded records a conversion completing successfully.
func (c *Collector) IncConversionSucceeded() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.conversionsSucceeded++
	c.mu.Unlock()
}

// IncConversionFailed records a conversion stopping at a failed step.
func (c *Collector) IncConversionFailed() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.conversionsFailed++
	c.mu.Unlock()
}

// IncConversionCanceled records a canceled conversion.
func (c *Collector) IncConversionCanceled() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.conversionsCanceled++
	c.mu.Unlock()
}

// Snapshot returns an immutable copy of all counters.
// Returns a zero Snapshot for a nil collector.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	return Snapshot{
		ValidationsPassed:    c.validationsPassed,
		ValidationsFailed:    c.validationsFailed,
		StepsStarted:         c.stepsStarted,
		StepsSucceeded:       c.stepsSucceeded,
		StepsFailed:          c.stepsFailed,
		ConversionsSucceeded: c.conversionsSucceeded,
		ConversionsFailed:    c.conversionsFailed,
		ConversionsCanceled:  c.conversionsCanceled,
		Family:               c.family,
		ConversionID:         c.conversionID,
	}
}
