package observability

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"go.uber.org/zap"
)

// Metrics emits query/mutation/stream operation metrics to CloudWatch,
// one Count and one Duration datum per recorded operation, dimensioned
// by definition ID and status.
type Metrics struct {
	namespace string
	client    *cloudwatch.Client
	logger    *zap.Logger
}

// NewMetrics builds a Metrics publishing under namespace. A nil client
// makes every Record* call a no-op, so tests and cmd/demo's offline
// mode can share the same call sites.
func NewMetrics(namespace string, client *cloudwatch.Client, logger *zap.Logger) *Metrics {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Metrics{namespace: namespace, client: client, logger: logger}
}

// RecordQuery records one query instance fetch's duration and outcome.
func (m *Metrics) RecordQuery(ctx context.Context, queryDefID string, duration time.Duration, err error) {
	m.record(ctx, "QueryFetch", queryDefID, duration, err)
}

// RecordMutation records one mutation task run's duration and outcome.
func (m *Metrics) RecordMutation(ctx context.Context, mutationDefID string, duration time.Duration, err error) {
	m.record(ctx, "MutationRun", mutationDefID, duration, err)
}

// RecordStreamEvent records the arrival of one stream update, with no
// duration dimension since there is no call to time.
func (m *Metrics) RecordStreamEvent(ctx context.Context, queryDefID string) {
	m.record(ctx, "StreamEvent", queryDefID, 0, nil)
}

func (m *Metrics) record(ctx context.Context, metricName, defID string, duration time.Duration, err error) {
	if m.client == nil {
		return
	}

	status := "success"
	if err != nil {
		status = "failure"
	}
	dims := []types.Dimension{
		{Name: aws.String("DefinitionID"), Value: aws.String(defID)},
		{Name: aws.String("Status"), Value: aws.String(status)},
	}

	data := []types.MetricDatum{{
		MetricName: aws.String(metricName + "Count"),
		Dimensions: dims,
		Value:      aws.Float64(1),
		Unit:       types.StandardUnitCount,
		Timestamp:  aws.Time(time.Now()),
	}}
	if duration > 0 {
		data = append(data, types.MetricDatum{
			MetricName: aws.String(metricName + "Duration"),
			Dimensions: dims,
			Value:      aws.Float64(float64(duration.Milliseconds())),
			Unit:       types.StandardUnitMilliseconds,
			Timestamp:  aws.Time(time.Now()),
		})
	}

	if _, err := m.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(m.namespace),
		MetricData: data,
	}); err != nil {
		m.logger.Warn("failed to publish cloudwatch metrics", zap.Error(err), zap.String("metric", metricName))
	}
}
