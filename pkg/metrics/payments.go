package metrics

import "github.com/prometheus/client_golang/prometheus"

// PaymentMetrics counts payment signals and stock contention as they flow
// through the reconciliation paths.
type PaymentMetrics struct {
	confirmations  *prometheus.CounterVec
	duplicates     *prometheus.CounterVec
	stockConflicts *prometheus.CounterVec
	transitions    *prometheus.CounterVec
}

// NewPaymentMetrics registers payment metrics on the provided registerer.
func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	if reg == nil {
		return &PaymentMetrics{}
	}
	confirmations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_confirmations_total",
		Help: "Payment confirmations applied, labeled by source.",
	}, []string{"source"})
	duplicates := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_duplicate_signals_total",
		Help: "Payment signals ignored because the order already advanced.",
	}, []string{"source"})
	stockConflicts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_conflicts_total",
		Help: "Stock decrements rejected due to insufficient quantity.",
	}, []string{"operation"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "order_status_transitions_total",
		Help: "Order status transitions applied.",
	}, []string{"from", "to"})
	reg.MustRegister(confirmations, duplicates, stockConflicts, transitions)
	return &PaymentMetrics{
		confirmations:  confirmations,
		duplicates:     duplicates,
		stockConflicts: stockConflicts,
		transitions:    transitions,
	}
}

// IncConfirmation records a payment confirmation by source.
func (p *PaymentMetrics) IncConfirmation(source string) {
	if p == nil || p.confirmations == nil {
		return
	}
	p.confirmations.WithLabelValues(normalizeLabel(source)).Inc()
}

// IncDuplicate records a payment signal dropped as a no-op.
func (p *PaymentMetrics) IncDuplicate(source string) {
	if p == nil || p.duplicates == nil {
		return
	}
	p.duplicates.WithLabelValues(normalizeLabel(source)).Inc()
}

// IncStockConflict records an insufficient-stock rejection.
func (p *PaymentMetrics) IncStockConflict(operation string) {
	if p == nil || p.stockConflicts == nil {
		return
	}
	p.stockConflicts.WithLabelValues(normalizeLabel(operation)).Inc()
}

// IncTransition records a legal status transition.
func (p *PaymentMetrics) IncTransition(from, to string) {
	if p == nil || p.transitions == nil {
		return
	}
	p.transitions.WithLabelValues(normalizeLabel(from), normalizeLabel(to)).Inc()
}
