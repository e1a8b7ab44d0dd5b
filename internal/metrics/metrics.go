// Package metrics holds Prometheus metrics for the gesture engine.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds Prometheus metrics for gesture recognition and dispatch.
// All methods are safe on a nil receiver.
type Metrics struct {
	// Events received from the device layer
	GestureEventsTotal *prometheus.CounterVec

	// Bindings invoked
	DispatchTotal       *prometheus.CounterVec
	DispatchErrorsTotal *prometheus.CounterVec

	// Finger count of the most recent gesture
	LiveFingers prometheus.Gauge
}

// New creates and registers the gesture metrics on the default registry.
//
// Registration happens once per process; later calls return the same set.
//
// Metrics:
//   - gestured_gesture_events_total{kind,phase} - gesture sub-events received
//   - gestured_dispatch_total{kind,phase,target} - bindings invoked (target: command, pointer)
//   - gestured_dispatch_errors_total{kind} - failed command invocations
//   - gestured_live_fingers - finger count of the live gesture
func New() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			GestureEventsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "gestured_gesture_events_total",
					Help: "Total number of gesture events received from the touchpad",
				},
				[]string{"kind", "phase"},
			),

			DispatchTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "gestured_dispatch_total",
					Help: "Total number of gesture bindings invoked",
				},
				[]string{"kind", "phase", "target"},
			),

			DispatchErrorsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "gestured_dispatch_errors_total",
					Help: "Total number of gesture commands that failed to run",
				},
				[]string{"kind"},
			),

			LiveFingers: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "gestured_live_fingers",
					Help: "Finger count of the most recently started gesture",
				},
			),
		}
	})

	return globalMetrics
}

// RecordEvent records a gesture event received from the device.
func (m *Metrics) RecordEvent(kind, phase string) {
	if m == nil {
		return
	}
	m.GestureEventsTotal.WithLabelValues(kind, phase).Inc()
}

// RecordDispatch records one binding invocation.
func (m *Metrics) RecordDispatch(kind, phase, target string) {
	if m == nil {
		return
	}
	m.DispatchTotal.WithLabelValues(kind, phase, target).Inc()
}

// RecordDispatchError records a failed command invocation.
func (m *Metrics) RecordDispatchError(kind string) {
	if m == nil {
		return
	}
	m.DispatchErrorsTotal.WithLabelValues(kind).Inc()
}

// SetLiveFingers updates the live finger gauge.
func (m *Metrics) SetLiveFingers(n int) {
	if m == nil {
		return
	}
	m.LiveFingers.Set(float64(n))
}
