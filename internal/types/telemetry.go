package types

// Telemetry metric names for CloudWatch and Prometheus.
// All components MUST use these constants.
const (
	// Metric Names
	MetricDeliveryAttempt      = "DeliveryAttempt"
	MetricDeliveryLatency      = "DeliveryAttemptLatency"
	MetricCycleDuration        = "NotificationCycleDuration"
	MetricCycleOutcome         = "NotificationCycle"
	MetricRecipientUnreachable = "RecipientUnreachable"
	MetricEventLag             = "OrderEventLag"

	// Dimension Keys
	DimTarget  = "Target"
	DimResult  = "Result"
	DimClass   = "Class"
	DimTrigger = "Trigger"

	// Metric Namespace
	MetricNamespace = "OrderNotify"
)
