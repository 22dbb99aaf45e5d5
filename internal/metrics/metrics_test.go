package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"
)

type call struct {
	name   string
	value  float64
	labels Labels
}

type recorder struct {
	mu      sync.Mutex
	calls   []call
	flushed int
}

func (r *recorder) IncCounter(name string, delta float64, labels Labels) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call{name, delta, labels})
}

func (r *recorder) ObserveHistogram(name string, value float64, labels Labels) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call{name, value, labels})
}

func (r *recorder) Flush() error {
	r.flushed++
	return nil
}

// Tests here mutate the process-wide backend and must not run in parallel.

func TestRecordStep(t *testing.T) {
	r := &recorder{}
	SetBackend(r)
	t.Cleanup(func() { SetBackend(nil) })

	RecordStep("load", nil, 1500*time.Millisecond)
	RecordStep("extract", errors.New("boom"), time.Second)

	if len(r.calls) != 4 {
		t.Fatalf("calls=%d, want 4", len(r.calls))
	}
	if r.calls[0].name != StepTotal || r.calls[0].labels["status"] != "ok" {
		t.Fatalf("first call=%+v", r.calls[0])
	}
	if r.calls[1].name != StepDuration || r.calls[1].value != 1.5 {
		t.Fatalf("duration call=%+v", r.calls[1])
	}
	if r.calls[2].labels["status"] != "error" || r.calls[2].labels["step"] != "extract" {
		t.Fatalf("error call=%+v", r.calls[2])
	}
}

func TestCountersSkipZero(t *testing.T) {
	r := &recorder{}
	SetBackend(r)
	t.Cleanup(func() { SetBackend(nil) })

	RecordRows("Facilities", "loaded", 0)
	RecordRelationships("created", -1)
	RecordAttachments("Facilities", "attached", 0)
	if len(r.calls) != 0 {
		t.Fatalf("zero counts should be dropped, got %+v", r.calls)
	}

	RecordRows("Facilities", "loaded", 3)
	if len(r.calls) != 1 || r.calls[0].labels["table"] != "Facilities" || r.calls[0].value != 3 {
		t.Fatalf("calls=%+v", r.calls)
	}
}

func TestFlush(t *testing.T) {
	SetBackend(nil)
	if err := Flush(); err != nil {
		t.Fatalf("nop flush: %v", err)
	}

	r := &recorder{}
	SetBackend(r)
	t.Cleanup(func() { SetBackend(nil) })
	if err := Flush(); err != nil || r.flushed != 1 {
		t.Fatalf("flush err=%v flushed=%d", err, r.flushed)
	}
}
