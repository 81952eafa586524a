package types

import "time"

// Document is a raw record read from the document store.
type Document map[string]any

// serverTimestamp is the type of the ServerTimestamp sentinel.
type serverTimestamp struct{}

// ServerTimestamp is a field value for DocumentStore.Update that the store
// replaces with its own clock at write time.
var ServerTimestamp = serverTimestamp{}

// Order field names as stored in the orders collection.
const (
	FieldItems            = "items"
	FieldFarmerID         = "farmerId"
	FieldBuyerID          = "buyerId"
	FieldLegacyBuyerID    = "userId"
	FieldAmountPaid       = "amountPaid"
	FieldBuyerName        = "buyerName"
	FieldBuyerPhone       = "buyerPhone"
	FieldBuyerLocation    = "buyerLocation"
	FieldNotificationSent = "notificationSent"
	FieldNotificationTime = "notificationTime"
	FieldFCMToken         = "fcmToken"
	FieldProfileName      = "name"
)

// Order is an order record as created by checkout. Only the fields needed to
// route and render notifications are typed; the rest of each line item is
// kept opaque.
type Order struct {
	ID               string     `json:"id" validate:"required"`
	BuyerID          string     `json:"buyerId,omitempty"`
	Items            []LineItem `json:"items"`
	AmountPaid       float64    `json:"amountPaid"`
	BuyerName        string     `json:"buyerName,omitempty"`
	BuyerPhone       string     `json:"buyerPhone,omitempty"`
	BuyerLocation    string     `json:"buyerLocation,omitempty"`
	NotificationSent bool       `json:"notificationSent"`
	NotificationTime *time.Time `json:"notificationTime,omitempty"`
}

// LineItem is one entry of Order.Items. FarmerID is empty when the item did
// not carry a usable farmer reference.
type LineItem struct {
	FarmerID string         `json:"farmerId,omitempty"`
	Fields   map[string]any `json:"-"`
}

// FarmerProfile is the subset of a farmer record read by the notifier.
// An empty FCMToken means the farmer has no registered device.
type FarmerProfile struct {
	ID       string `json:"id"`
	FCMToken string `json:"fcmToken,omitempty"`
}

// BuyerProfile is the subset of a buyer record read by the notifier.
type BuyerProfile struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}
