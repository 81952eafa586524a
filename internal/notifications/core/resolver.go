package core

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"ordernotify/internal/types"
)

// DefaultBuyerName is used in direct messages when the buyer's profile name
// cannot be read.
const DefaultBuyerName = "a customer"

var orderValidator = validator.New()

// ParseOrder converts a raw order document into an Order.
//
// The items field must be present and be a list; anything else is a
// malformed_order error and the order must not be notified. Entries that are
// not objects, or that carry no string farmerId, are kept with an empty
// FarmerID so they still count toward the item total.
func ParseOrder(orderID string, doc types.Document) (*types.Order, error) {
	order := &types.Order{ID: orderID}
	if err := orderValidator.Struct(order); err != nil {
		return nil, types.NewAppError(types.ErrCodeValidationMissingID, "order event has no order id", err)
	}

	rawItems, present := doc[types.FieldItems]
	items, isList := rawItems.([]any)
	if !present || !isList {
		return nil, types.NewAppErrorWithDetails(
			types.ErrCodeMalformedOrder,
			fmt.Sprintf("order %s has no items list", orderID),
			nil,
			map[string]any{
				"order_id":   orderID,
				"items_type": fmt.Sprintf("%T", rawItems),
				"items":      rawItems,
			},
		)
	}

	order.Items = make([]types.LineItem, 0, len(items))
	for _, raw := range items {
		item := types.LineItem{}
		if fields, ok := raw.(map[string]any); ok {
			item.Fields = fields
			item.FarmerID, _ = fields[types.FieldFarmerID].(string)
		}
		order.Items = append(order.Items, item)
	}

	order.BuyerID = stringField(doc, types.FieldBuyerID)
	if order.BuyerID == "" {
		order.BuyerID = stringField(doc, types.FieldLegacyBuyerID)
	}
	order.AmountPaid = floatField(doc, types.FieldAmountPaid)
	order.BuyerName = stringField(doc, types.FieldBuyerName)
	order.BuyerPhone = stringField(doc, types.FieldBuyerPhone)
	order.BuyerLocation = stringField(doc, types.FieldBuyerLocation)
	order.NotificationSent, _ = doc[types.FieldNotificationSent].(bool)
	order.NotificationTime = timeField(doc, types.FieldNotificationTime)

	return order, nil
}

// DistinctFarmerIDs returns the farmer ids on the order with duplicates
// removed, in first-seen order.
func DistinctFarmerIDs(order *types.Order) []string {
	seen := make(map[string]struct{}, len(order.Items))
	ids := make([]string, 0, len(order.Items))
	for _, item := range order.Items {
		if item.FarmerID == "" {
			continue
		}
		if _, dup := seen[item.FarmerID]; dup {
			continue
		}
		seen[item.FarmerID] = struct{}{}
		ids = append(ids, item.FarmerID)
	}
	return ids
}

// RecipientResolver determines who should be told about an order.
type RecipientResolver struct {
	store  types.DocumentStore
	buyers string
	logger types.Logger
}

// NewRecipientResolver creates a resolver reading buyer profiles from the
// named collection.
func NewRecipientResolver(store types.DocumentStore, buyersCollection string, logger types.Logger) *RecipientResolver {
	return &RecipientResolver{
		store:  store,
		buyers: buyersCollection,
		logger: logger,
	}
}

// Resolve returns the order's distinct farmers and the buyer's display name.
func (r *RecipientResolver) Resolve(ctx context.Context, order *types.Order) Recipients {
	return Recipients{
		FarmerIDs: DistinctFarmerIDs(order),
		BuyerName: r.BuyerName(ctx, order.BuyerID),
	}
}

// BuyerName returns the buyer's profile name, or DefaultBuyerName when it
// cannot be determined. It never fails.
func (r *RecipientResolver) BuyerName(ctx context.Context, buyerID string) string {
	if buyerID == "" {
		return DefaultBuyerName
	}

	doc, found, err := r.store.Get(ctx, r.buyers, buyerID)
	if err != nil {
		r.logger.Warn("failed to read buyer profile, using default name",
			"buyer_id", buyerID,
			"error", err.Error(),
		)
		return DefaultBuyerName
	}
	if !found {
		return DefaultBuyerName
	}

	profile := types.BuyerProfile{ID: buyerID, Name: stringField(doc, types.FieldProfileName)}
	if profile.Name == "" {
		return DefaultBuyerName
	}
	return profile.Name
}

func stringField(doc types.Document, key string) string {
	s, _ := doc[key].(string)
	return s
}

// floatField reads a numeric field regardless of how the store decoded it.
func floatField(doc types.Document, key string) float64 {
	switch v := doc[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int64:
		return float64(v)
	case int:
		return float64(v)
	case json.Number:
		f, _ := v.Float64()
		return f
	default:
		return 0
	}
}

func timeField(doc types.Document, key string) *time.Time {
	switch v := doc[key].(type) {
	case time.Time:
		return &v
	case string:
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return nil
		}
		return &t
	default:
		return nil
	}
}
