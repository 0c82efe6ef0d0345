package prommetrics

import (
	"context"
	"strings"
	"sync"

	"github.com/goliatone/go-acumatica/core"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	DefaultNamespace = "acumatica"

	MetricOperationsTotal   = "operations_total"
	MetricOperationDuration = "operation_duration_ms"
)

// Labels carried by every series. Tags outside this set are dropped so each
// vector keeps a fixed label cardinality.
var labelNames = []string{"operation", "status", "method", "status_code"}

var defaultBuckets = []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000}

type Option func(*Recorder)

func WithNamespace(namespace string) Option {
	return func(r *Recorder) {
		if namespace = strings.TrimSpace(namespace); namespace != "" {
			r.namespace = namespace
		}
	}
}

func WithBuckets(buckets []float64) Option {
	return func(r *Recorder) {
		if len(buckets) > 0 {
			r.buckets = append([]float64(nil), buckets...)
		}
	}
}

// Recorder implements core.MetricsRecorder on top of a Prometheus registerer.
// Client metric names such as "acumatica.request.total" fold into one counter
// and one histogram labelled by operation.
type Recorder struct {
	namespace string
	buckets   []float64

	once     sync.Once
	total    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewRecorder builds the vectors and registers them. A nil registerer falls
// back to prometheus.DefaultRegisterer.
func NewRecorder(registerer prometheus.Registerer, opts ...Option) (*Recorder, error) {
	r := &Recorder{
		namespace: DefaultNamespace,
		buckets:   defaultBuckets,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	r.init()
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	for _, collector := range r.Collectors() {
		if err := registerer.Register(collector); err != nil {
			return nil, core.NewInternalError(err, "prometheus: register collector", map[string]any{
				"namespace": r.namespace,
			})
		}
	}
	return r, nil
}

func (r *Recorder) init() {
	r.once.Do(func() {
		r.total = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: r.namespace,
			Name:      MetricOperationsTotal,
			Help:      "Acumatica client operations by outcome.",
		}, labelNames)
		r.duration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: r.namespace,
			Name:      MetricOperationDuration,
			Help:      "Acumatica client operation latency in milliseconds.",
			Buckets:   r.buckets,
		}, labelNames)
	})
}

func (r *Recorder) Collectors() []prometheus.Collector {
	if r == nil {
		return nil
	}
	r.init()
	return []prometheus.Collector{r.total, r.duration}
}

func (r *Recorder) IncCounter(_ context.Context, name string, value int64, tags map[string]string) {
	if r == nil || value <= 0 {
		return
	}
	r.init()
	r.total.With(labels(name, tags)).Add(float64(value))
}

func (r *Recorder) ObserveHistogram(_ context.Context, name string, value float64, tags map[string]string) {
	if r == nil {
		return
	}
	r.init()
	r.duration.With(labels(name, tags)).Observe(value)
}

func labels(name string, tags map[string]string) prometheus.Labels {
	out := prometheus.Labels{}
	for _, key := range labelNames {
		out[key] = strings.TrimSpace(tags[key])
	}
	if out["operation"] == "" {
		out["operation"] = OperationFromName(name)
	}
	return out
}

// OperationFromName extracts "request" from "acumatica.request.total".
func OperationFromName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.TrimPrefix(name, DefaultNamespace+".")
	if idx := strings.LastIndex(name, "."); idx > 0 {
		name = name[:idx]
	}
	if name == "" {
		return "unknown"
	}
	return name
}

var _ core.MetricsRecorder = (*Recorder)(nil)
