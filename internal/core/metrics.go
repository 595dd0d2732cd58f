package core

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"wellness/internal/types"
)

// metricsPublishTimeout bounds one background PutMetricData call.
const metricsPublishTimeout = 3 * time.Second

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

var _ MetricsCollector = (*CloudWatchRequestMetrics)(nil)

// CloudWatchRequestMetrics publishes APIRequest (count) and APILatency
// (milliseconds) per route pattern. Publishing happens off the request path;
// failures are logged and dropped.
type CloudWatchRequestMetrics struct {
	client    CloudWatchClient
	namespace string
	logger    types.Logger

	// publish is replaced in tests to run synchronously.
	publish func(fn func())
}

func NewCloudWatchRequestMetrics(client CloudWatchClient, namespace string, logger types.Logger) *CloudWatchRequestMetrics {
	if namespace == "" {
		namespace = types.MetricNamespace
	}
	if logger == nil {
		logger = types.NopLogger{}
	}
	return &CloudWatchRequestMetrics{
		client:    client,
		namespace: namespace,
		logger:    logger,
		publish:   func(fn func()) { go fn() },
	}
}

func (m *CloudWatchRequestMetrics) RecordRequest(method, endpoint, status string, duration time.Duration) {
	dims := []cwtypes.Dimension{
		{Name: aws.String(types.DimMethod), Value: aws.String(method)},
		{Name: aws.String(types.DimEndpoint), Value: aws.String(endpoint)},
		{Name: aws.String(types.DimStatus), Value: aws.String(status)},
	}
	input := &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(m.namespace),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: aws.String(types.MetricAPIRequest),
				Value:      aws.Float64(1),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: dims,
			},
			{
				MetricName: aws.String(types.MetricAPILatency),
				Value:      aws.Float64(float64(duration.Milliseconds())),
				Unit:       cwtypes.StandardUnitMilliseconds,
				Dimensions: dims[:2],
			},
		},
	}

	m.publish(func() {
		ctx, cancel := context.WithTimeout(context.Background(), metricsPublishTimeout)
		defer cancel()
		if _, err := m.client.PutMetricData(ctx, input); err != nil {
			m.logger.Error("failed to record request metric",
				"error", err.Error(),
				"endpoint", endpoint,
				"status", status,
			)
		}
	})
}
