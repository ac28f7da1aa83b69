package http

import (
	"encoding/json"
	"net/url"
	"strings"
)

// EventKind classifies an incoming provider notification.
type EventKind string

const (
	EventKindUnknown EventKind = "unknown"
	EventKindPayment EventKind = "payment"
	EventKindOther   EventKind = "other"
)

// Notification is the normalized form of a provider webhook event.
// Providers deliver several payload shapes over time; only the payment
// id and the event kind matter downstream.
type Notification struct {
	Kind      EventKind
	PaymentID string
	// RawType is the type/topic/action string as delivered, kept for
	// the audit trail.
	RawType string
}

// notificationFromQuery extracts a notification from GET query
// parameters. Older delivery formats send ?id=...&topic=payment or
// ?payment_id=...
func notificationFromQuery(values url.Values) Notification {
	n := Notification{Kind: EventKindUnknown}

	for _, key := range []string{"data.id", "payment_id", "id"} {
		if v := values.Get(key); v != "" {
			n.PaymentID = v
			break
		}
	}

	for _, key := range []string{"type", "topic"} {
		if v := values.Get(key); v != "" {
			n.RawType = v
			break
		}
	}

	n.Kind = classifyEvent(n.RawType, n.PaymentID)
	return n
}

type webhookBody struct {
	Type     string          `json:"type"`
	Topic    string          `json:"topic"`
	Action   string          `json:"action"`
	ID       json.Number     `json:"id"`
	Resource string          `json:"resource"`
	Data     webhookBodyData `json:"data"`
}

type webhookBodyData struct {
	ID json.Number `json:"id"`
}

// notificationFromBody extracts a notification from a POST JSON body.
// Newer formats nest the payment id under data.id; legacy ones use a
// top-level id or a resource URL whose last path segment is the id.
func notificationFromBody(raw []byte) Notification {
	n := Notification{Kind: EventKindUnknown}

	var body webhookBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return n
	}

	switch {
	case body.Data.ID.String() != "":
		n.PaymentID = body.Data.ID.String()
	case body.ID.String() != "":
		n.PaymentID = body.ID.String()
	case body.Resource != "":
		n.PaymentID = lastPathSegment(body.Resource)
	}

	switch {
	case body.Type != "":
		n.RawType = body.Type
	case body.Topic != "":
		n.RawType = body.Topic
	case body.Action != "":
		n.RawType = body.Action
	}

	n.Kind = classifyEvent(n.RawType, n.PaymentID)
	return n
}

// classifyEvent treats any type string containing "payment" as a
// payment event. A bare payment id with no type string is also treated
// as a payment notification, matching legacy deliveries.
func classifyEvent(rawType, paymentID string) EventKind {
	if rawType == "" {
		if paymentID != "" {
			return EventKindPayment
		}
		return EventKindUnknown
	}
	if strings.Contains(strings.ToLower(rawType), "payment") {
		return EventKindPayment
	}
	return EventKindOther
}

func lastPathSegment(resource string) string {
	trimmed := strings.TrimRight(resource, "/")
	idx := strings.LastIndex(trimmed, "/")
	if idx < 0 {
		return trimmed
	}
	return trimmed[idx+1:]
}
