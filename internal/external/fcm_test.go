package external

import (
	"context"
	"errors"
	"testing"

	"firebase.google.com/go/v4/messaging"

	"ordernotify/internal/types"
)

// mockFCMClient implements FCMClient for testing.
type mockFCMClient struct {
	sent []*messaging.Message
	id   string
	err  error
}

func (m *mockFCMClient) Send(_ context.Context, message *messaging.Message) (string, error) {
	m.sent = append(m.sent, message)
	return m.id, m.err
}

func TestFCMSender_Send_Topic(t *testing.T) {
	client := &mockFCMClient{id: "projects/demo/messages/123"}
	sender := NewFCMSender(client)

	msg := &types.NotificationMessage{
		Title:        "Order Successful!",
		Body:         "Your order for 2 items has been placed.",
		Data:         map[string]string{"orderId": "O1"},
		Target:       types.TopicTarget("order_updates"),
		AndroidSound: "default",
	}

	id, err := sender.Send(context.Background(), msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "projects/demo/messages/123" {
		t.Errorf("id = %q", id)
	}

	got := client.sent[0]
	if got.Topic != "order_updates" || got.Token != "" {
		t.Errorf("unexpected addressing topic=%q token=%q", got.Topic, got.Token)
	}
	if got.Notification.Title != msg.Title || got.Notification.Body != msg.Body {
		t.Errorf("unexpected notification %+v", got.Notification)
	}
	if got.Data["orderId"] != "O1" {
		t.Errorf("unexpected data %v", got.Data)
	}
	if got.Android == nil || got.Android.Notification.Sound != "default" {
		t.Errorf("expected android sound, got %+v", got.Android)
	}
}

func TestFCMSender_Send_TokenWithoutSound(t *testing.T) {
	client := &mockFCMClient{id: "m1"}
	sender := NewFCMSender(client)

	_, err := sender.Send(context.Background(), &types.NotificationMessage{
		Title:  "🚜 New Order!",
		Target: types.TokenTarget("tok-F1"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := client.sent[0]
	if got.Token != "tok-F1" || got.Topic != "" {
		t.Errorf("unexpected addressing topic=%q token=%q", got.Topic, got.Token)
	}
	if got.Android != nil {
		t.Errorf("expected no android config, got %+v", got.Android)
	}
}

func TestFCMSender_Send_Error(t *testing.T) {
	providerErr := errors.New("connection reset")
	sender := NewFCMSender(&mockFCMClient{err: providerErr})

	_, err := sender.Send(context.Background(), &types.NotificationMessage{
		Title:  "x",
		Target: types.TokenTarget("tok"),
	})

	if !types.IsCode(err, types.ErrCodeUpstreamPushProvider) {
		t.Errorf("expected %s, got %v", types.ErrCodeUpstreamPushProvider, err)
	}
	if !errors.Is(err, providerErr) {
		t.Error("expected the provider error to be wrapped")
	}
}
