package blobsvc

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/trezcool/paperdesk/core"
)

// instrumentedStore records the outcome and latency of every blob operation.
type instrumentedStore struct {
	next     core.BlobStore
	ops      *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

var _ core.BlobStore = (*instrumentedStore)(nil)

func Instrument(next core.BlobStore, reg prometheus.Registerer) core.BlobStore {
	factory := promauto.With(reg)
	return &instrumentedStore{
		next: next,
		ops: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "paperdesk_blob_operations_total",
			Help: "Blob store operations by operation and result",
		}, []string{"op", "result"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "paperdesk_blob_operation_duration_seconds",
			Help:    "Blob store operation latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
	}
}

func (s *instrumentedStore) observe(op string, err error, timer *prometheus.Timer) {
	timer.ObserveDuration()
	result := "ok"
	if err != nil {
		result = "error"
	}
	s.ops.WithLabelValues(op, result).Inc()
}

func (s *instrumentedStore) Put(ctx context.Context, up core.BlobUpload) (blob core.Blob, err error) {
	timer := prometheus.NewTimer(s.duration.WithLabelValues("put"))
	defer func() { s.observe("put", err, timer) }()
	return s.next.Put(ctx, up)
}

func (s *instrumentedStore) Delete(ctx context.Context, handle string) (err error) {
	timer := prometheus.NewTimer(s.duration.WithLabelValues("delete"))
	defer func() { s.observe("delete", err, timer) }()
	return s.next.Delete(ctx, handle)
}
