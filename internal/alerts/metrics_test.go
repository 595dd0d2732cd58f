package alerts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wellness/internal/types"
)

type mockCloudWatchClient struct {
	calls     []*cloudwatch.PutMetricDataInput
	returnErr error
}

func (m *mockCloudWatchClient) PutMetricData(_ context.Context, params *cloudwatch.PutMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	m.calls = append(m.calls, params)
	if m.returnErr != nil {
		return nil, m.returnErr
	}
	return &cloudwatch.PutMetricDataOutput{}, nil
}

type recordingLogger struct {
	types.NopLogger
	errors []string
}

func (l *recordingLogger) Error(msg string, _ ...any) { l.errors = append(l.errors, msg) }

func TestCloudWatchDispatchMetrics_RecordPass(t *testing.T) {
	cw := &mockCloudWatchClient{}
	m := NewCloudWatchDispatchMetrics(cw, "", types.NopLogger{})

	m.RecordPass(context.Background(), DispatchResult{Processed: 4, Sent: 3, Failed: 1, Expired: 2}, 1500*time.Millisecond)

	require.Len(t, cw.calls, 1)
	input := cw.calls[0]
	assert.Equal(t, types.MetricNamespace, *input.Namespace)

	values := map[string]float64{}
	units := map[string]cwtypes.StandardUnit{}
	for _, d := range input.MetricData {
		values[*d.MetricName] = *d.Value
		units[*d.MetricName] = d.Unit
	}
	assert.Equal(t, 4.0, values[types.MetricAlertsProcessed])
	assert.Equal(t, 3.0, values[types.MetricAlertsSent])
	assert.Equal(t, 1.0, values[types.MetricAlertsFailed])
	assert.Equal(t, 2.0, values[types.MetricAlertsExpired])
	assert.Equal(t, 0.0, values[types.MetricAlertsRescheduled])
	assert.Equal(t, 1500.0, values[types.MetricDispatchDuration])
	assert.Equal(t, cwtypes.StandardUnitMilliseconds, units[types.MetricDispatchDuration])
	assert.Equal(t, cwtypes.StandardUnitCount, units[types.MetricAlertsSent])
}

func TestCloudWatchDispatchMetrics_RecordPushFailure(t *testing.T) {
	cw := &mockCloudWatchClient{}
	m := NewCloudWatchDispatchMetrics(cw, "Custom", types.NopLogger{})

	m.RecordPushFailure(context.Background(), types.ChannelPush, types.PriorityHigh)

	require.Len(t, cw.calls, 1)
	assert.Equal(t, "Custom", *cw.calls[0].Namespace)
	datum := cw.calls[0].MetricData[0]
	assert.Equal(t, types.MetricPushFailure, *datum.MetricName)
	dims := map[string]string{}
	for _, d := range datum.Dimensions {
		dims[*d.Name] = *d.Value
	}
	assert.Equal(t, map[string]string{types.DimChannel: "push", types.DimPriority: "high"}, dims)
}

func TestCloudWatchDispatchMetrics_ErrorsAreLoggedOnly(t *testing.T) {
	cw := &mockCloudWatchClient{returnErr: errors.New("throttled")}
	logger := &recordingLogger{}
	m := NewCloudWatchDispatchMetrics(cw, "", logger)

	m.RecordPass(context.Background(), DispatchResult{}, time.Second)
	m.RecordPushFailure(context.Background(), types.ChannelPush, types.PriorityLow)

	assert.Len(t, logger.errors, 2)
}
