package alerts

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"wellness/internal/types"
)

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

var (
	_ DispatchMetrics = (*CloudWatchDispatchMetrics)(nil)
	_ DispatchMetrics = NopMetrics{}
)

// CloudWatchDispatchMetrics publishes dispatcher counters to CloudWatch.
// Publishing errors are logged and otherwise ignored.
type CloudWatchDispatchMetrics struct {
	client    CloudWatchClient
	namespace string
	logger    types.Logger
}

func NewCloudWatchDispatchMetrics(client CloudWatchClient, namespace string, logger types.Logger) *CloudWatchDispatchMetrics {
	if namespace == "" {
		namespace = types.MetricNamespace
	}
	return &CloudWatchDispatchMetrics{client: client, namespace: namespace, logger: logger}
}

// RecordPass emits one datum per counter plus the pass duration in a single
// PutMetricData call.
func (m *CloudWatchDispatchMetrics) RecordPass(ctx context.Context, r DispatchResult, duration time.Duration) {
	count := func(name string, v int) cwtypes.MetricDatum {
		return cwtypes.MetricDatum{
			MetricName: aws.String(name),
			Value:      aws.Float64(float64(v)),
			Unit:       cwtypes.StandardUnitCount,
		}
	}
	input := &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(m.namespace),
		MetricData: []cwtypes.MetricDatum{
			count(types.MetricAlertsProcessed, r.Processed),
			count(types.MetricAlertsSent, r.Sent),
			count(types.MetricAlertsFailed, r.Failed),
			count(types.MetricAlertsRescheduled, r.Rescheduled),
			count(types.MetricAlertsExpired, r.Expired),
			count(types.MetricAlertsCancelled, r.Cancelled),
			{
				MetricName: aws.String(types.MetricDispatchDuration),
				Value:      aws.Float64(float64(duration.Milliseconds())),
				Unit:       cwtypes.StandardUnitMilliseconds,
			},
		},
	}

	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.Error("failed to record dispatch metrics",
			"error", err.Error(),
			"processed", r.Processed,
		)
	}
}

// RecordPushFailure emits a PushFailure count with Channel and Priority
// dimensions.
func (m *CloudWatchDispatchMetrics) RecordPushFailure(ctx context.Context, channel types.Channel, priority types.Priority) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(m.namespace),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: aws.String(types.MetricPushFailure),
				Value:      aws.Float64(1),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: []cwtypes.Dimension{
					{Name: aws.String(types.DimChannel), Value: aws.String(string(channel))},
					{Name: aws.String(types.DimPriority), Value: aws.String(string(priority))},
				},
			},
		},
	}

	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.Error("failed to record push failure metric",
			"error", err.Error(),
			"channel", string(channel),
		)
	}
}

// NopMetrics discards everything.
type NopMetrics struct{}

func (NopMetrics) RecordPass(context.Context, DispatchResult, time.Duration)         {}
func (NopMetrics) RecordPushFailure(context.Context, types.Channel, types.Priority) {}
