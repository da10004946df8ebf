package realtime

import (
	"encoding/json"
	"slices"
)

const (
	NamespaceProvisioning  = "provisioning"
	NamespaceBilling       = "billing"
	NamespaceNotifications = "notifications"
)

var Namespaces = []string{NamespaceProvisioning, NamespaceBilling, NamespaceNotifications}

func ValidNamespace(ns string) bool { return slices.Contains(Namespaces, ns) }

// Server to client events.
const (
	EventConnected                 = "connected"
	EventPong                      = "pong"
	EventError                     = "error"
	EventStatusUpdate              = "status:update"
	EventStatusCompleted           = "status:completed"
	EventStatusFailed              = "status:failed"
	EventNotificationNew           = "notification:new"
	EventNotificationReadConfirmed = "notification_read_confirmed"
	EventSubscriptionUpdated       = "subscription:updated"
	EventSubscriptionExpiring      = "subscription:expiring"
	EventPaymentReceived           = "payment:received"
)

// Client to server events.
const (
	EventAuth             = "auth"
	EventPing             = "ping"
	EventNotificationRead = "notification_read"
)

func TenantRoom(tenantID string) string { return "tenant:" + tenantID }

func UserRoom(userID string) string { return "user:" + userID }

// Frame is the JSON text frame exchanged with socket clients.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Envelope addresses one event to one room of a namespace. It is what the
// emitter hands to a Publisher and what the Redis relay carries between
// instances.
type Envelope struct {
	Namespace string          `json:"namespace"`
	Room      string          `json:"room"`
	Event     string          `json:"event"`
	Data      json.RawMessage `json:"data,omitempty"`
}

func encodeFrame(event string, data any) ([]byte, error) {
	f := Frame{Event: event}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		f.Data = raw
	}
	return json.Marshal(f)
}

type connectedPayload struct {
	Message  string `json:"message"`
	UserID   string `json:"user_id"`
	TenantID string `json:"tenant_id"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type notificationReadPayload struct {
	NotificationID string `json:"notification_id"`
}

type authPayload struct {
	Token string `json:"token"`
}
