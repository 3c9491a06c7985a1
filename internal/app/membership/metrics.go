package membership

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts membership outcomes.
type Metrics struct {
	Joins        prometheus.Counter
	Leaves       prometheus.Counter
	Failures     *prometheus.CounterVec
	WriteRetries prometheus.Counter
	CounterDrift *prometheus.CounterVec
}

// NewMetrics registers the membership collectors with reg. A nil reg
// yields working, unregistered collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Joins: f.NewCounter(prometheus.CounterOpts{
			Namespace: "inventoryhub",
			Subsystem: "membership",
			Name:      "joins_total",
			Help:      "Successful group joins.",
		}),
		Leaves: f.NewCounter(prometheus.CounterOpts{
			Namespace: "inventoryhub",
			Subsystem: "membership",
			Name:      "leaves_total",
			Help:      "Successful group leaves.",
		}),
		Failures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "inventoryhub",
			Subsystem: "membership",
			Name:      "failures_total",
			Help:      "Failed membership operations by operation and reason.",
		}, []string{"op", "reason"}),
		WriteRetries: f.NewCounter(prometheus.CounterOpts{
			Namespace: "inventoryhub",
			Subsystem: "membership",
			Name:      "write_retries_total",
			Help:      "Relation write attempts that failed and were retried.",
		}),
		CounterDrift: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "inventoryhub",
			Subsystem: "membership",
			Name:      "counter_drift_total",
			Help:      "userCount updates that failed after the relation changed.",
		}, []string{"op"}),
	}
}

func (m *Metrics) fail(op string, err error) {
	m.Failures.WithLabelValues(op, reason(err)).Inc()
}

func reason(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrInvalidIdentifier):
		return "invalid_identifier"
	case errors.Is(err, ErrGroupFull):
		return "group_full"
	case errors.Is(err, ErrNotAMember):
		return "not_a_member"
	case errors.Is(err, ErrAlreadyMember):
		return "already_member"
	case errors.Is(err, ErrGroupNotFound):
		return "group_not_found"
	case errors.Is(err, ErrMembershipWriteFailed):
		return "write_failed"
	case errors.Is(err, ErrLeaveFailed):
		return "leave_failed"
	}
	return "other"
}
