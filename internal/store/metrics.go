package store

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the store's operation counters. A nil *Metrics disables
// collection, which tests rely on to avoid registry collisions.
type Metrics struct {
	Reads       prometheus.Counter
	Writes      prometheus.Counter
	Deletes     prometheus.Counter
	LazyExpired prometheus.Counter
	Swept       prometheus.Counter
}

// NewMetrics registers the store counters with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Reads: f.NewCounter(prometheus.CounterOpts{
			Name: "ttlkv_reads_total",
			Help: "Point and prefix reads served.",
		}),
		Writes: f.NewCounter(prometheus.CounterOpts{
			Name: "ttlkv_writes_total",
			Help: "Record writes, including TTL updates and counter ops.",
		}),
		Deletes: f.NewCounter(prometheus.CounterOpts{
			Name: "ttlkv_deletes_total",
			Help: "Explicit deletes, including prefix deletes and flushes.",
		}),
		LazyExpired: f.NewCounter(prometheus.CounterOpts{
			Name: "ttlkv_expired_lazy_total",
			Help: "Expired keys reclaimed on the read path.",
		}),
		Swept: f.NewCounter(prometheus.CounterOpts{
			Name: "ttlkv_expired_swept_total",
			Help: "Expired keys reclaimed by the background sweep.",
		}),
	}
}

// Counter helpers are nil-receiver safe so the store can call them
// unconditionally.

func (m *Metrics) read() {
	if m != nil {
		m.Reads.Inc()
	}
}

func (m *Metrics) write() {
	if m != nil {
		m.Writes.Inc()
	}
}

func (m *Metrics) delete() {
	if m != nil {
		m.Deletes.Inc()
	}
}

func (m *Metrics) lazyExpired() {
	if m != nil {
		m.LazyExpired.Inc()
	}
}

func (m *Metrics) swept(n int) {
	if m != nil && n > 0 {
		m.Swept.Add(float64(n))
	}
}
