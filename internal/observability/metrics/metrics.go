package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters for the appointment lifecycle and
// billing read paths.
type BookingMetrics struct {
	createdTotal  *prometheus.CounterVec
	slotConflicts prometheus.Counter
	updatesTotal  prometheus.Counter
	deletesTotal  prometheus.Counter
	reportsTotal  *prometheus.CounterVec
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		createdTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "telemed",
			Subsystem: "booking",
			Name:      "appointments_created_total",
			Help:      "Total appointments created",
		}, []string{"type"}),
		slotConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "telemed",
			Subsystem: "booking",
			Name:      "slot_conflicts_total",
			Help:      "Total creations rejected because the slot was taken",
		}),
		updatesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "telemed",
			Subsystem: "booking",
			Name:      "appointment_updates_total",
			Help:      "Total applied appointment updates",
		}),
		deletesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "telemed",
			Subsystem: "booking",
			Name:      "appointment_deletes_total",
			Help:      "Total hard-deleted appointments",
		}),
		reportsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "telemed",
			Subsystem: "billing",
			Name:      "reports_total",
			Help:      "Total billing reports computed",
		}, []string{"scope"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.createdTotal, m.slotConflicts, m.updatesTotal, m.deletesTotal, m.reportsTotal)
	return m
}

func (m *BookingMetrics) ObserveCreated(appointmentType string) {
	if m == nil {
		return
	}
	m.createdTotal.WithLabelValues(appointmentType).Inc()
}

func (m *BookingMetrics) ObserveSlotConflict() {
	if m == nil {
		return
	}
	m.slotConflicts.Inc()
}

func (m *BookingMetrics) ObserveUpdated() {
	if m == nil {
		return
	}
	m.updatesTotal.Inc()
}

func (m *BookingMetrics) ObserveDeleted() {
	if m == nil {
		return
	}
	m.deletesTotal.Inc()
}

// ObserveReport records a billing report computation; scope is either
// "doctor" or "system".
func (m *BookingMetrics) ObserveReport(scope string) {
	if m == nil {
		return
	}
	m.reportsTotal.WithLabelValues(scope).Inc()
}
