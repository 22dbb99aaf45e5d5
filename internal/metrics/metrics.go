// Package metrics is the backend-neutral instrumentation surface of the
// importer. Code records through the helpers below; cmd/ picks a backend.
package metrics

import (
	"sync"
	"time"
)

// Labels are metric dimensions.
type Labels map[string]string

// Backend receives measurements. Implementations must be safe for
// concurrent use.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
}

// Metric names understood by backends.
const (
	StepTotal          = "cameo_step_total"
	StepDuration       = "cameo_step_duration_seconds"
	RowsTotal          = "cameo_rows_total"
	RelationshipsTotal = "cameo_relationships_total"
	AttachmentsTotal   = "cameo_attachments_total"
)

type nop struct{}

func (nop) IncCounter(string, float64, Labels)       {}
func (nop) ObserveHistogram(string, float64, Labels) {}

var (
	mu      sync.RWMutex
	backend Backend = nop{}
)

// SetBackend installs b process-wide. nil restores the no-op backend.
func SetBackend(b Backend) {
	mu.Lock()
	defer mu.Unlock()
	if b == nil {
		b = nop{}
	}
	backend = b
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// Flush pushes buffered measurements if the backend buffers.
func Flush() error {
	if f, ok := current().(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}

// RecordStep counts one pipeline stage and observes its duration.
// status is "ok" when err is nil, "error" otherwise.
func RecordStep(step string, err error, d time.Duration) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	l := Labels{"step": step, "status": status}
	b := current()
	b.IncCounter(StepTotal, 1, l)
	b.ObserveHistogram(StepDuration, d.Seconds(), l)
}

// RecordRows counts rows of one kind (loaded, mismatched, truncated,
// defaulted_point) for a table.
func RecordRows(table, kind string, n int) {
	if n <= 0 {
		return
	}
	current().IncCounter(RowsTotal, float64(n), Labels{"table": table, "kind": kind})
}

// RecordRelationships counts relationship outcomes (created, existing, skipped).
func RecordRelationships(status string, n int) {
	if n <= 0 {
		return
	}
	current().IncCounter(RelationshipsTotal, float64(n), Labels{"status": status})
}

// RecordAttachments counts attachment outcomes (attached, unmatched) for a table.
func RecordAttachments(table, status string, n int) {
	if n <= 0 {
		return
	}
	current().IncCounter(AttachmentsTotal, float64(n), Labels{"table": table, "status": status})
}
