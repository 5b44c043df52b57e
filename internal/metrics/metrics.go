package metrics

import (
	"net/http"
	"sync/atomic"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"google.golang.org/protobuf/proto"
)

// Metrics is the set of process counters kept by deflectd. All fields are
// atomics and safe to update from any goroutine; the zero value from New is
// ready to use.
//
// QueueDepth and JobsInflight are gauges; everything else is a monotonic
// counter.
type Metrics struct {
	RequestsRejected   atomic.Int64
	JobsAccepted       atomic.Int64
	JobsCompleted      atomic.Int64
	JobsComputeFailed  atomic.Int64
	JobsDropped        atomic.Int64
	CallbacksDelivered atomic.Int64
	CallbacksFailed    atomic.Int64

	QueueDepth   atomic.Int64
	JobsInflight atomic.Int64
}

// New returns a ready-to-use Metrics.
func New() *Metrics {
	return &Metrics{}
}

// ServeHTTP answers GET /metrics with the current counter values in
// Prometheus text exposition format.
func (m *Metrics) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	format := expfmt.NewFormat(expfmt.TypeTextPlain)
	w.Header().Set("Content-Type", string(format))

	enc := expfmt.NewEncoder(w, format)
	for _, mf := range m.families() {
		_ = enc.Encode(mf) // write errors mean the client went away
	}
}

// families renders the counters as client_model metric families.
func (m *Metrics) families() []*dto.MetricFamily {
	return []*dto.MetricFamily{
		counter("deflectd_requests_rejected_total",
			"Inbound requests rejected by validation before a job was created.",
			m.RequestsRejected.Load()),
		counter("deflectd_jobs_accepted_total",
			"Jobs enqueued by submit.",
			m.JobsAccepted.Load()),
		counter("deflectd_jobs_completed_total",
			"Jobs that computed and delivered their callback successfully.",
			m.JobsCompleted.Load()),
		counter("deflectd_jobs_compute_failed_total",
			"Jobs aborted by a computation error; no callback was attempted.",
			m.JobsComputeFailed.Load()),
		counter("deflectd_jobs_dropped_total",
			"Queued jobs dropped at shutdown before a worker picked them up.",
			m.JobsDropped.Load()),
		counter("deflectd_callbacks_delivered_total",
			"Callback deliveries acknowledged with a 2xx response.",
			m.CallbacksDelivered.Load()),
		counter("deflectd_callbacks_failed_total",
			"Callback deliveries that failed (connection, timeout or non-2xx).",
			m.CallbacksFailed.Load()),
		gauge("deflectd_queue_depth",
			"Jobs waiting in the dispatch queue.",
			m.QueueDepth.Load()),
		gauge("deflectd_jobs_inflight",
			"Jobs currently executing on a worker.",
			m.JobsInflight.Load()),
	}
}

func counter(name, help string, v int64) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name: proto.String(name),
		Help: proto.String(help),
		Type: dto.MetricType_COUNTER.Enum(),
		Metric: []*dto.Metric{
			{Counter: &dto.Counter{Value: proto.Float64(float64(v))}},
		},
	}
}

func gauge(name, help string, v int64) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name: proto.String(name),
		Help: proto.String(help),
		Type: dto.MetricType_GAUGE.Enum(),
		Metric: []*dto.Metric{
			{Gauge: &dto.Gauge{Value: proto.Float64(float64(v))}},
		},
	}
}
