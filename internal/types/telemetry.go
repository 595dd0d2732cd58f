package types

// CloudWatch metric names and dimensions.
const (
	MetricAlertsProcessed   = "AlertsProcessed"
	MetricAlertsSent        = "AlertsSent"
	MetricAlertsFailed      = "AlertsFailed"
	MetricAlertsRescheduled = "AlertsRescheduled"
	MetricAlertsExpired     = "AlertsExpired"
	MetricAlertsCancelled   = "AlertsCancelled"
	MetricDispatchDuration  = "DispatchDuration"
	MetricPushFailure       = "PushFailure"
	MetricAPIRequest        = "APIRequest"
	MetricAPILatency        = "APILatency"

	DimChannel  = "Channel"
	DimPriority = "Priority"
	DimProvider = "Provider"
	DimEndpoint = "Endpoint"
	DimMethod   = "Method"
	DimStatus   = "StatusCode"

	MetricNamespace = "Wellness"
)
