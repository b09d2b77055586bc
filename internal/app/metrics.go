package app

// Metrics receives counters from the services. The Prometheus implementation
// lives in internal/infra/metrics.
type Metrics interface {
	BoxesExpired(n int)
	Dispatched(kind DeliveryKind, status OutcomeStatus)
}

// NopMetrics discards everything.
type NopMetrics struct{}

func (NopMetrics) BoxesExpired(int)                       {}
func (NopMetrics) Dispatched(DeliveryKind, OutcomeStatus) {}
