package output

import "time"

// MetricsCollector defines the secondary port for metrics collection.
type MetricsCollector interface {
	// IncGeodesicCalls increments the geodesic computation counter.
	IncGeodesicCalls(method string, success bool)

	// ObserveIterations records the iterations a solver needed.
	ObserveIterations(method string, iterations int)

	// IncNonConverged counts solutions that hit the iteration cap.
	IncNonConverged(method string)

	// IncQueryCount increments the shape query counter.
	IncQueryCount(layerID string, success bool)

	// ObserveQueryDuration records query duration.
	ObserveQueryDuration(layerID string, duration time.Duration)

	// SetLayersLoaded sets the number of loaded layers.
	SetLayersLoaded(count int)

	// SetLayersReady sets the number of indexed layers.
	SetLayersReady(count int)

	// IncStorageOperations increments storage operation counter.
	IncStorageOperations(operation string, success bool)

	// ObserveStorageDuration records storage operation duration.
	ObserveStorageDuration(operation string, duration time.Duration)

	// SetEmulatorSubscribers sets the number of NMEA stream listeners.
	SetEmulatorSubscribers(count int)
}

// NoOpMetrics is a no-op implementation of MetricsCollector.
type NoOpMetrics struct{}

// IncGeodesicCalls implements MetricsCollector.
func (n *NoOpMetrics) IncGeodesicCalls(_ string, _ bool) {}

// ObserveIterations implements MetricsCollector.
func (n *NoOpMetrics) ObserveIterations(_ string, _ int) {}

// IncNonConverged implements MetricsCollector.
func (n *NoOpMetrics) IncNonConverged(_ string) {}

// IncQueryCount implements MetricsCollector.
func (n *NoOpMetrics) IncQueryCount(_ string, _ bool) {}

// ObserveQueryDuration implements MetricsCollector.
func (n *NoOpMetrics) ObserveQueryDuration(_ string, _ time.Duration) {}

// SetLayersLoaded implements MetricsCollector.
func (n *NoOpMetrics) SetLayersLoaded(_ int) {}

// SetLayersReady implements MetricsCollector.
func (n *NoOpMetrics) SetLayersReady(_ int) {}

// IncStorageOperations implements MetricsCollector.
func (n *NoOpMetrics) IncStorageOperations(_ string, _ bool) {}

// ObserveStorageDuration implements MetricsCollector.
func (n *NoOpMetrics) ObserveStorageDuration(_ string, _ time.Duration) {}

// SetEmulatorSubscribers implements MetricsCollector.
func (n *NoOpMetrics) SetEmulatorSubscribers(_ int) {}
