package core

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"ordernotify/internal/types"
)

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// CloudWatchNotificationMetrics implements NotificationMetrics by emitting
// to AWS CloudWatch.
//
// Metrics emitted:
//   - DeliveryAttempt: Dims {Target, Class, Result}
//   - DeliveryAttemptLatency: Dims {Target}
//   - RecipientUnreachable: no dims
//   - NotificationCycle and NotificationCycleDuration: Dims {Result}
//   - OrderEventLag: Dims {Trigger}
var _ NotificationMetrics = (*CloudWatchNotificationMetrics)(nil)

type CloudWatchNotificationMetrics struct {
	client    CloudWatchClient
	namespace string
	logger    types.Logger
}

// NewCloudWatchNotificationMetrics creates a CloudWatchNotificationMetrics
// publishing to namespace, or to types.MetricNamespace when namespace is empty.
func NewCloudWatchNotificationMetrics(client CloudWatchClient, namespace string, logger types.Logger) *CloudWatchNotificationMetrics {
	if namespace == "" {
		namespace = types.MetricNamespace
	}
	return &CloudWatchNotificationMetrics{
		client:    client,
		namespace: namespace,
		logger:    logger,
	}
}

// RecordDelivery emits a DeliveryAttempt count.
func (m *CloudWatchNotificationMetrics) RecordDelivery(ctx context.Context, target types.TargetKind, class types.RecipientClass, result MetricResult) {
	m.put(ctx, "delivery", cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricDeliveryAttempt),
		Value:      aws.Float64(1),
		Unit:       cwtypes.StandardUnitCount,
		Dimensions: []cwtypes.Dimension{
			dim(types.DimTarget, string(target)),
			dim(types.DimClass, string(class)),
			dim(types.DimResult, string(result)),
		},
	})
}

// RecordLatency emits the duration of one send in milliseconds.
func (m *CloudWatchNotificationMetrics) RecordLatency(ctx context.Context, target types.TargetKind, duration time.Duration) {
	m.put(ctx, "latency", cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricDeliveryLatency),
		Value:      aws.Float64(float64(duration.Milliseconds())),
		Unit:       cwtypes.StandardUnitMilliseconds,
		Dimensions: []cwtypes.Dimension{dim(types.DimTarget, string(target))},
	})
}

// RecordUnreachable emits the number of farmers skipped for lack of a device.
func (m *CloudWatchNotificationMetrics) RecordUnreachable(ctx context.Context, count int) {
	m.put(ctx, "unreachable", cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricRecipientUnreachable),
		Value:      aws.Float64(float64(count)),
		Unit:       cwtypes.StandardUnitCount,
	})
}

// RecordCycle emits the cycle outcome count and its duration in one call.
func (m *CloudWatchNotificationMetrics) RecordCycle(ctx context.Context, result CycleResult, duration time.Duration) {
	dims := []cwtypes.Dimension{dim(types.DimResult, string(result))}
	m.put(ctx, "cycle",
		cwtypes.MetricDatum{
			MetricName: aws.String(types.MetricCycleOutcome),
			Value:      aws.Float64(1),
			Unit:       cwtypes.StandardUnitCount,
			Dimensions: dims,
		},
		cwtypes.MetricDatum{
			MetricName: aws.String(types.MetricCycleDuration),
			Value:      aws.Float64(float64(duration.Milliseconds())),
			Unit:       cwtypes.StandardUnitMilliseconds,
			Dimensions: dims,
		},
	)
}

// RecordEventLag emits the time between the order being created and the
// event reaching the notifier.
func (m *CloudWatchNotificationMetrics) RecordEventLag(ctx context.Context, trigger string, lag time.Duration) {
	m.put(ctx, "event lag", cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricEventLag),
		Value:      aws.Float64(float64(lag.Milliseconds())),
		Unit:       cwtypes.StandardUnitMilliseconds,
		Dimensions: []cwtypes.Dimension{dim(types.DimTrigger, trigger)},
	})
}

func (m *CloudWatchNotificationMetrics) put(ctx context.Context, what string, data ...cwtypes.MetricDatum) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(m.namespace),
		MetricData: data,
	}
	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.Error("failed to record "+what+" metric", "error", err.Error())
	}
}

func dim(name, value string) cwtypes.Dimension {
	return cwtypes.Dimension{Name: aws.String(name), Value: aws.String(value)}
}
