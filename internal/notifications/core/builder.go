package core

import (
	"fmt"
	"strconv"
	"time"

	"ordernotify/internal/types"
)

// Default topic names.
const (
	DefaultOrderUpdatesTopic = "order_updates"
	DefaultFarmersTopic      = "farmers"
)

// isoMillis renders a UTC time the way JavaScript's toISOString does.
const isoMillis = "2006-01-02T15:04:05.000Z07:00"

// BuildInput is everything a MessageBuilder may draw on for one order.
type BuildInput struct {
	Order     *types.Order
	BuyerName string
	Tokens    []TokenResult
	Now       time.Time
}

// MessageBuilder produces the messages for one strategy. Builders are pure:
// they do no I/O and the same input always yields the same messages.
type MessageBuilder interface {
	Strategy() types.BuilderStrategy
	Build(in BuildInput) []*types.NotificationMessage
}

// TopicSummaryBuilder broadcasts an order confirmation to a topic.
type TopicSummaryBuilder struct {
	Topic string
}

func (TopicSummaryBuilder) Strategy() types.BuilderStrategy { return types.StrategyTopicSummary }

func (b TopicSummaryBuilder) Build(in BuildInput) []*types.NotificationMessage {
	return []*types.NotificationMessage{BuildBroadcast(in.Order, b.Topic, in.Now)}
}

// FarmersTopicBuilder broadcasts buyer contact and payment details to a
// topic all farmers subscribe to.
type FarmersTopicBuilder struct {
	Topic string
}

func (FarmersTopicBuilder) Strategy() types.BuilderStrategy { return types.StrategyFarmersTopic }

func (b FarmersTopicBuilder) Build(in BuildInput) []*types.NotificationMessage {
	return []*types.NotificationMessage{BuildFarmersTopic(in.Order, b.Topic)}
}

// DirectFarmerBuilder sends one message to each farmer with a device token.
type DirectFarmerBuilder struct{}

func (DirectFarmerBuilder) Strategy() types.BuilderStrategy { return types.StrategyDirectFarmer }

func (DirectFarmerBuilder) Build(in BuildInput) []*types.NotificationMessage {
	msgs := make([]*types.NotificationMessage, 0, len(in.Tokens))
	for _, tr := range in.Tokens {
		if !tr.Found {
			continue
		}
		msgs = append(msgs, BuildDirect(in.Order, in.BuyerName, tr.FarmerID, tr.Token))
	}
	return msgs
}

// TopicNames configures the topics the broadcast builders address.
type TopicNames struct {
	OrderUpdates string
	Farmers      string
}

// NewBuilders returns one builder per configured strategy, in order.
func NewBuilders(strategies []types.BuilderStrategy, topics TopicNames) ([]MessageBuilder, error) {
	if topics.OrderUpdates == "" {
		topics.OrderUpdates = DefaultOrderUpdatesTopic
	}
	if topics.Farmers == "" {
		topics.Farmers = DefaultFarmersTopic
	}

	builders := make([]MessageBuilder, 0, len(strategies))
	seen := make(map[types.BuilderStrategy]bool, len(strategies))
	for _, s := range strategies {
		if seen[s] {
			continue
		}
		seen[s] = true

		switch s {
		case types.StrategyTopicSummary:
			builders = append(builders, TopicSummaryBuilder{Topic: topics.OrderUpdates})
		case types.StrategyFarmersTopic:
			builders = append(builders, FarmersTopicBuilder{Topic: topics.Farmers})
		case types.StrategyDirectFarmer:
			builders = append(builders, DirectFarmerBuilder{})
		default:
			return nil, fmt.Errorf("unknown notification strategy %q", s)
		}
	}
	if len(builders) == 0 {
		return nil, fmt.Errorf("no notification strategies configured")
	}
	return builders, nil
}

// BuildBroadcast builds the order confirmation sent to topic subscribers.
func BuildBroadcast(order *types.Order, topic string, now time.Time) *types.NotificationMessage {
	return &types.NotificationMessage{
		Title: "Order Successful!",
		Body:  fmt.Sprintf("Your order for %d items has been placed.", len(order.Items)),
		Data: map[string]string{
			"screen":    "order_details",
			"orderId":   order.ID,
			"timestamp": now.UTC().Format(isoMillis),
		},
		Target:       types.TopicTarget(topic),
		Recipient:    topic,
		Class:        types.RecipientTopicSubscribers,
		AndroidSound: "default",
	}
}

// BuildFarmersTopic builds the buyer details broadcast for the farmers topic.
func BuildFarmersTopic(order *types.Order, topic string) *types.NotificationMessage {
	amount := FormatAmount(order.AmountPaid)
	return &types.NotificationMessage{
		Title: "New Order Received!",
		Body: fmt.Sprintf("Buyer: %s | Phone: %s | Location: %s | Order ID: %s | Amount Paid: $%s",
			order.BuyerName, order.BuyerPhone, order.BuyerLocation, order.ID, amount),
		Data: map[string]string{
			"buyerName":     order.BuyerName,
			"buyerPhone":    order.BuyerPhone,
			"buyerLocation": order.BuyerLocation,
			"orderId":       order.ID,
			"amountPaid":    amount,
		},
		Target:    types.TopicTarget(topic),
		Recipient: topic,
		Class:     types.RecipientTopicSubscribers,
	}
}

// BuildDirect builds the message sent to one farmer's device.
func BuildDirect(order *types.Order, buyerName, farmerID, token string) *types.NotificationMessage {
	return &types.NotificationMessage{
		Title: "🚜 New Order!",
		Body:  fmt.Sprintf("%s placed an order for your products", buyerName),
		Data: map[string]string{
			"type":         "new_order",
			"orderId":      order.ID,
			"click_action": "FLUTTER_NOTIFICATION_CLICK",
		},
		Target:    types.TokenTarget(token),
		Recipient: farmerID,
		Class:     types.RecipientFarmer,
	}
}

// FormatAmount renders a number with the shortest exact decimal form:
// 12.5 becomes "12.5" and 3 becomes "3".
func FormatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
