package core

import (
	"context"
	"fmt"

	"ordernotify/internal/types"
)

// DeliveryRecorder marks orders as notified so redelivered events are not
// sent twice.
type DeliveryRecorder struct {
	store  types.DocumentStore
	orders string
}

// NewDeliveryRecorder creates a recorder writing to the named orders
// collection.
func NewDeliveryRecorder(store types.DocumentStore, ordersCollection string) *DeliveryRecorder {
	return &DeliveryRecorder{store: store, orders: ordersCollection}
}

// MarkNotified sets notificationSent and notificationTime on the order in a
// single update. notificationTime is taken from the store's clock.
func (r *DeliveryRecorder) MarkNotified(ctx context.Context, orderID string) error {
	fields := map[string]any{
		types.FieldNotificationSent: true,
		types.FieldNotificationTime: types.ServerTimestamp,
	}
	if err := r.store.Update(ctx, r.orders, orderID, fields); err != nil {
		return types.NewAppErrorWithDetails(
			types.ErrCodeRecordUpdateFailure,
			fmt.Sprintf("failed to mark order %s notified", orderID),
			err,
			map[string]any{"order_id": orderID},
		)
	}
	return nil
}
