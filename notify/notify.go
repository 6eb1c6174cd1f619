// Package notify defines the completion-notifier boundary.
//
// Notifiers publish conversion completion events to downstream systems
// so that serving infrastructure can pick up freshly converted models.
// The CLI owns notifier lifecycle; users provide configuration only.
package notify

import (
	"context"
	"time"

	"github.com/pyrite-io/smelt/types"
)

// ConversionCompletedEvent is the payload published when a conversion finishes.
type ConversionCompletedEvent struct {
	EventType    string   `json:"event_type"` // always "conversion_completed"
	ConversionID string   `json:"conversion_id"`
	Family       string   `json:"family"`
	Outcome      string   `json:"outcome"` // success, step_failure, canceled
	ModelPath    string   `json:"model_path,omitempty"`
	Artifacts    []string `json:"artifacts,omitempty"`
	StorePath    string   `json:"store_path,omitempty"`
	FailedStep   string   `json:"failed_step,omitempty"`
	ExitCode     int      `json:"exit_code"`
	Timestamp    string   `json:"timestamp"` // ISO 8601
	DurationMs   int64    `json:"duration_ms"`
}

// NewEvent builds a completion event from a conversion status.
func NewEvent(conversionID string, family types.Family, st types.Status, duration time.Duration) *ConversionCompletedEvent {
	ev := &ConversionCompletedEvent{
		EventType:    "conversion_completed",
		ConversionID: conversionID,
		Family:       string(family),
		Outcome:      string(st.Outcome),
		FailedStep:   string(st.FailedStep),
		ExitCode:     st.ExitCode,
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
		DurationMs:   duration.Milliseconds(),
	}
	if st.Result != nil {
		ev.ModelPath = st.Result.ModelPath
		ev.Artifacts = st.Result.Artifacts
	}
	return ev
}

// Notifier publishes conversion completion events to a downstream system.
// Implementations must be safe for single-use per conversion.
type Notifier interface {
	// Publish sends a completion event to the downstream system.
	// Must respect context cancellation and deadlines.
	Publish(ctx context.Context, event *ConversionCompletedEvent) error

	// Close releases notifier resources.
	Close() error
}
