package types

import (
	"errors"
	"time"
)

// Target addresses a NotificationMessage. Exactly one of Topic and Token is set.
type Target struct {
	Topic string `json:"topic,omitempty"`
	Token string `json:"token,omitempty"`
}

// TopicTarget addresses every subscriber of a named topic.
func TopicTarget(topic string) Target { return Target{Topic: topic} }

// TokenTarget addresses a single device.
func TokenTarget(token string) Target { return Target{Token: token} }

// Kind returns TargetTopic or TargetToken. The zero Target reports TargetToken
// and fails Validate.
func (t Target) Kind() TargetKind {
	if t.Topic != "" {
		return TargetTopic
	}
	return TargetToken
}

// Validate enforces that exactly one addressing mode is set.
func (t Target) Validate() error {
	switch {
	case t.Topic != "" && t.Token != "":
		return errors.New("target has both topic and token")
	case t.Topic == "" && t.Token == "":
		return errors.New("target has neither topic nor token")
	}
	return nil
}

// LogValue returns a representation of the target that is safe to log.
// Device tokens are credentials for a single device and are never logged in
// full.
func (t Target) LogValue() string {
	if t.Topic != "" {
		return "topic:" + t.Topic
	}
	return "token:" + TokenFingerprint(t.Token)
}

// TokenFingerprint shortens a device token to its last six characters.
func TokenFingerprint(token string) string {
	const keep = 6
	if len(token) <= keep {
		return "***"
	}
	return "..." + token[len(token)-keep:]
}

// NotificationMessage is a push notification ready for delivery. It is built
// fresh for every processing cycle and never persisted.
type NotificationMessage struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data"`

	Target Target `json:"target"`

	// Recipient identifies who the message is for (a farmer id or the topic
	// name) for outcome reporting.
	Recipient string         `json:"recipient"`
	Class     RecipientClass `json:"class"`

	// AndroidSound is the sound name set on the Android notification, if any.
	AndroidSound string `json:"android_sound,omitempty"`
}

// Validate checks the message is deliverable.
func (m *NotificationMessage) Validate() error {
	if m.Title == "" {
		return errors.New("message has no title")
	}
	return m.Target.Validate()
}

// OrderEvent is the transport envelope for an order-created trigger. Document
// carries the newly created record's full field set.
type OrderEvent struct {
	EventID    string    `json:"event_id,omitempty"`
	OrderID    string    `json:"order_id" validate:"required"`
	OccurredAt time.Time `json:"occurred_at,omitempty"`
	Document   Document  `json:"document"`
}
