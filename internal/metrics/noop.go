package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

// IncRedirect is a no-op.
func (n *NoopRecorder) IncRedirect(result string) {}

// ObserveRedirectDuration is a no-op.
func (n *NoopRecorder) ObserveRedirectDuration(duration time.Duration) {}

// IncDirectoryLoad is a no-op.
func (n *NoopRecorder) IncDirectoryLoad(source string) {}

// IncClickStep is a no-op.
func (n *NoopRecorder) IncClickStep(step, status string) {}

// IncDocumentWrite is a no-op.
func (n *NoopRecorder) IncDocumentWrite(kind, status string) {}
