// Package datadog submits importer metrics to Datadog.
//
// Measurements are buffered in memory and submitted on Flush. A background
// loop flushes every FlushEvery so long imports show up as a time series;
// Close stops the loop and flushes one last time.
package datadog

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	dd "github.com/DataDog/datadog-api-client-go/v2/api/datadog"
	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV2"

	"cameo/internal/metrics"
)

// Options controls the backend.
type Options struct {
	// JobName becomes tag "job:<name>". Defaults to "cameo_import".
	JobName string
	// Tags are extra tags such as "service:hazmat".
	Tags []string
	// FlushEvery defaults to 60s when <= 0.
	FlushEvery time.Duration

	// test seams
	now       func() time.Time
	newTicker func(d time.Duration) *time.Ticker
	submitter submitter
}

type submitter interface {
	SubmitMetrics(ctx context.Context, body datadogV2.MetricPayload, params ...datadogV2.SubmitMetricsOptionalParameters) (datadogV2.IntakePayloadAccepted, *http.Response, error)
}

// seriesNames maps core metric names to Datadog names. Anything else is dropped.
var seriesNames = map[string]string{
	metrics.StepTotal:          "cameo.step.total",
	metrics.StepDuration:       "cameo.step.duration_seconds",
	metrics.RowsTotal:          "cameo.rows.total",
	metrics.RelationshipsTotal: "cameo.relationships.total",
	metrics.AttachmentsTotal:   "cameo.attachments.total",
}

// Backend implements metrics.Backend.
type Backend struct {
	api      submitter
	ctx      context.Context
	baseTags []string

	flushEvery time.Duration
	now        func() time.Time
	newTicker  func(d time.Duration) *time.Ticker
	stopCh     chan struct{}
	doneCh     chan struct{}
	closeOnce  sync.Once

	mu       sync.Mutex
	counters map[string]float64
	samples  map[string][]float64
}

var _ metrics.Backend = (*Backend)(nil)

// NewBackend builds a backend using the official client. Credentials come
// from DD_API_KEY and DD_SITE as read by the client; network errors surface
// from Flush.
func NewBackend(parent context.Context, opts Options) (*Backend, error) {
	if parent == nil {
		return nil, wrapInitErr(fmt.Errorf("nil context"))
	}
	job := opts.JobName
	if job == "" {
		job = "cameo_import"
	}
	every := opts.FlushEvery
	if every <= 0 {
		every = 60 * time.Second
	}

	api := opts.submitter
	if api == nil {
		api = datadogV2.NewMetricsApi(dd.NewAPIClient(dd.NewConfiguration()))
	}
	now := opts.now
	if now == nil {
		now = time.Now
	}
	newTicker := opts.newTicker
	if newTicker == nil {
		newTicker = time.NewTicker
	}

	tags := append([]string{resolveEnvTag(), "job:" + job}, opts.Tags...)

	b := &Backend{
		api:        api,
		ctx:        dd.NewDefaultContext(parent),
		baseTags:   tags,
		flushEvery: every,
		now:        now,
		newTicker:  newTicker,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
		counters:   make(map[string]float64),
		samples:    make(map[string][]float64),
	}
	go b.loop()
	return b, nil
}

func resolveEnvTag() string {
	for _, k := range []string{"ENV", "DD_ENV"} {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return "env:" + v
		}
	}
	return "env:unknown"
}

func (b *Backend) loop() {
	defer close(b.doneCh)
	t := b.newTicker(b.flushEvery)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			_ = b.Flush()
		case <-b.stopCh:
			return
		}
	}
}

// Close stops the flush loop and flushes once more. Later calls only flush.
func (b *Backend) Close() error {
	b.closeOnce.Do(func() {
		close(b.stopCh)
		<-b.doneCh
	})
	return b.Flush()
}

// IncCounter implements metrics.Backend. Non-positive deltas and unknown
// names are ignored.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	if delta <= 0 {
		return
	}
	if _, ok := seriesNames[name]; !ok {
		return
	}
	k := seriesKey(name, labels)
	b.mu.Lock()
	b.counters[k] += delta
	b.mu.Unlock()
}

// ObserveHistogram implements metrics.Backend. Negative values and unknown
// names are ignored.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if value < 0 {
		return
	}
	if _, ok := seriesNames[name]; !ok {
		return
	}
	k := seriesKey(name, labels)
	b.mu.Lock()
	b.samples[k] = append(b.samples[k], value)
	b.mu.Unlock()
}

// Flush submits everything buffered and resets the buffers, even when the
// submission fails. It returns nil without a request when nothing is buffered.
func (b *Backend) Flush() error {
	b.mu.Lock()
	counters, samples := b.counters, b.samples
	b.counters = make(map[string]float64)
	b.samples = make(map[string][]float64)
	b.mu.Unlock()

	if len(counters) == 0 && len(samples) == 0 {
		return nil
	}
	series := b.buildSeries(counters, samples, b.now().Unix())
	_, _, err := b.api.SubmitMetrics(b.ctx, datadogV2.MetricPayload{Series: series}, *datadogV2.NewSubmitMetricsOptionalParameters())
	if err != nil {
		return fmt.Errorf("datadog submit: %w", err)
	}
	return nil
}

// buildSeries is pure so tests can check naming and tagging directly.
// Output is sorted by metric name then tags.
func (b *Backend) buildSeries(counters map[string]float64, samples map[string][]float64, ts int64) []datadogV2.MetricSeries {
	out := make([]datadogV2.MetricSeries, 0, len(counters)+6*len(samples))

	for k, v := range counters {
		name, tags := splitSeriesKey(k)
		out = append(out, point(seriesNames[name], datadogV2.METRICINTAKETYPE_COUNT, v, withTags(b.baseTags, tags...), ts))
	}
	for k, vs := range samples {
		if len(vs) == 0 {
			continue
		}
		name, tags := splitSeriesKey(k)
		all := withTags(b.baseTags, tags...)
		cp := append([]float64(nil), vs...)
		sort.Float64s(cp)
		prefix := seriesNames[name]
		for _, q := range []struct {
			suffix string
			p      float64
		}{{"p50", 0.50}, {"p90", 0.90}, {"p95", 0.95}, {"p99", 0.99}} {
			out = append(out, point(prefix+"."+q.suffix, datadogV2.METRICINTAKETYPE_GAUGE, percentileNearestRank(cp, q.p), all, ts))
		}
		out = append(out,
			point(prefix+".max", datadogV2.METRICINTAKETYPE_GAUGE, cp[len(cp)-1], all, ts),
			point(prefix+".samples", datadogV2.METRICINTAKETYPE_GAUGE, float64(len(cp)), all, ts),
		)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Metric != out[j].Metric {
			return out[i].Metric < out[j].Metric
		}
		return strings.Join(out[i].Tags, ",") < strings.Join(out[j].Tags, ",")
	})
	return out
}

func point(metric string, typ datadogV2.MetricIntakeType, v float64, tags []string, ts int64) datadogV2.MetricSeries {
	return datadogV2.MetricSeries{
		Metric: metric,
		Type:   typ.Ptr(),
		Points: []datadogV2.MetricPoint{{Timestamp: dd.PtrInt64(ts), Value: dd.PtrFloat64(v)}},
		Tags:   tags,
	}
}

// seriesKey encodes a metric name and its labels as "name\x00k:v\x00k:v"
// with labels sorted by key. Empty label values become "unknown".
func seriesKey(name string, labels metrics.Labels) string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString(name)
	for _, k := range keys {
		v := labels[k]
		if v == "" {
			v = "unknown"
		}
		sb.WriteByte(0)
		sb.WriteString(k + ":" + v)
	}
	return sb.String()
}

func splitSeriesKey(k string) (name string, tags []string) {
	parts := strings.Split(k, "\x00")
	return parts[0], parts[1:]
}

func withTags(base []string, extras ...string) []string {
	out := make([]string, 0, len(base)+len(extras))
	out = append(out, base...)
	return append(out, extras...)
}

func percentileNearestRank(s []float64, p float64) float64 {
	n := len(s)
	switch {
	case n == 0:
		return 0
	case p <= 0:
		return s[0]
	case p >= 1:
		return s[n-1]
	}
	idx := int(p*float64(n-1) + 0.5)
	if idx >= n {
		idx = n - 1
	}
	return s[idx]
}

// ParseTagsCSV splits "env:prod, service:hazmat" into tags, dropping blanks.
func ParseTagsCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func wrapInitErr(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("datadog metrics init: %w", err)
}
