package expense

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	receiptUploads = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "billed",
		Name:      "receipt_uploads_total",
		Help:      "Receipt uploads by result.",
	}, []string{"result"})

	billWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "billed",
		Name:      "bill_writes_total",
		Help:      "Bill creations and updates by operation and result.",
	}, []string{"op", "result"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "billed",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "method", "code"})
)

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case IsValidation(err):
		return "invalid"
	default:
		return "error"
	}
}
