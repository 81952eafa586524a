// Package events decodes order-created event payloads from the transports
// the notifier listens on. Two body shapes are accepted: the plain envelope
// {"order_id", "event_id", "occurred_at", "document"} and a Firestore document
// trigger payload whose fields are typed values ({"stringValue": ...}).
// Bodies may be zstd-compressed.
package events

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/klauspost/compress/zstd"

	"ordernotify/internal/types"
)

// ContentEncodingZstd marks a zstd-compressed body.
const ContentEncodingZstd = "zstd"

// Meta carries transport attributes that accompany a body.
type Meta struct {
	ContentEncoding string
	// EventID and OccurredAt fill the event when the body does not carry them.
	EventID    string
	OccurredAt time.Time
}

// Decoder turns raw transport bodies into OrderEvents. It is safe for
// concurrent use.
type Decoder struct {
	zstdPool sync.Pool
	validate *validator.Validate
}

// NewDecoder creates a Decoder.
func NewDecoder() *Decoder {
	return &Decoder{
		zstdPool: sync.Pool{
			New: func() any {
				d, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
				if err != nil {
					panic(fmt.Sprintf("failed to create zstd decoder: %v", err))
				}
				return d
			},
		},
		validate: validator.New(),
	}
}

// envelope is the union of both accepted body shapes.
type envelope struct {
	OrderID    string         `json:"order_id"`
	EventID    string         `json:"event_id"`
	OccurredAt time.Time      `json:"occurred_at"`
	Document   types.Document `json:"document"`

	// Firestore trigger shape, either at the top level or under "value".
	Value *firestoreDocument `json:"value"`
	firestoreDocument
}

type firestoreDocument struct {
	Name       string                    `json:"name"`
	Fields     map[string]map[string]any `json:"fields"`
	CreateTime time.Time                 `json:"createTime"`
}

// Decode parses body into an OrderEvent. Payload problems are returned as
// validation_invalid_payload or validation_missing_order_id AppErrors.
func (d *Decoder) Decode(body []byte, meta Meta) (types.OrderEvent, error) {
	raw, err := d.decompress(body, meta.ContentEncoding)
	if err != nil {
		return types.OrderEvent{}, types.NewAppError(types.ErrCodeValidationPayload, "failed to decompress event body", err)
	}

	var env envelope
	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(&env); err != nil {
		return types.OrderEvent{}, types.NewAppError(types.ErrCodeValidationPayload, "event body is not valid JSON", err)
	}

	event := types.OrderEvent{
		OrderID:    env.OrderID,
		EventID:    env.EventID,
		OccurredAt: env.OccurredAt,
		Document:   env.Document,
	}

	fsDoc := env.Value
	if fsDoc == nil && env.Fields != nil {
		fsDoc = &env.firestoreDocument
	}
	if fsDoc != nil && event.Document == nil {
		doc, err := DecodeFields(fsDoc.Fields)
		if err != nil {
			return types.OrderEvent{}, types.NewAppError(types.ErrCodeValidationPayload, "invalid Firestore document fields", err)
		}
		event.Document = doc
		if event.OrderID == "" {
			event.OrderID = documentID(fsDoc.Name)
		}
		if event.OccurredAt.IsZero() {
			event.OccurredAt = fsDoc.CreateTime
		}
	}

	if event.EventID == "" {
		event.EventID = meta.EventID
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = meta.OccurredAt
	}
	if event.Document == nil {
		event.Document = types.Document{}
	}

	if err := d.validate.Struct(event); err != nil {
		return types.OrderEvent{}, types.NewAppError(types.ErrCodeValidationMissingID, "order event has no order id", err)
	}
	return event, nil
}

func (d *Decoder) decompress(body []byte, encoding string) ([]byte, error) {
	switch strings.ToLower(encoding) {
	case "", "identity":
		return body, nil
	case ContentEncodingZstd:
		decoder := d.zstdPool.Get().(*zstd.Decoder)
		defer d.zstdPool.Put(decoder)

		out, err := decoder.DecodeAll(body, nil)
		if err != nil {
			return nil, fmt.Errorf("zstd decompression failed: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported content encoding %q", encoding)
	}
}

// documentID returns the last path segment of a Firestore resource name:
// projects/p/databases/(default)/documents/orders/O1 → O1.
func documentID(name string) string {
	if i := strings.LastIndex(name, "/"); i >= 0 {
		return name[i+1:]
	}
	return name
}
