package types

// TargetKind identifies how a NotificationMessage is addressed.
type TargetKind string

const (
	TargetTopic TargetKind = "topic"
	TargetToken TargetKind = "token"
)

// RecipientClass identifies who a message is meant for.
type RecipientClass string

const (
	// RecipientTopicSubscribers are clients subscribed to a named topic.
	RecipientTopicSubscribers RecipientClass = "topic_subscribers"
	// RecipientFarmer is a single farmer addressed by device token.
	RecipientFarmer RecipientClass = "farmer"
)

// BuilderStrategy selects which messages are produced for an order.
// Configured via NOTIFY_STRATEGIES.
type BuilderStrategy string

const (
	// StrategyTopicSummary broadcasts an order confirmation to the order
	// updates topic.
	StrategyTopicSummary BuilderStrategy = "topic_summary"
	// StrategyFarmersTopic broadcasts buyer contact and payment details to
	// the farmers topic.
	StrategyFarmersTopic BuilderStrategy = "farmers_topic"
	// StrategyDirectFarmer sends one message to each farmer on the order
	// that has a registered device.
	StrategyDirectFarmer BuilderStrategy = "direct_farmer"
)

// IsTopic reports whether the strategy produces a single topic broadcast.
func (s BuilderStrategy) IsTopic() bool {
	return s == StrategyTopicSummary || s == StrategyFarmersTopic
}

// DeliveryStatus is the outcome of a single push send.
type DeliveryStatus string

const (
	DeliveryStatusSent   DeliveryStatus = "sent"
	DeliveryStatusFailed DeliveryStatus = "failed"
)
