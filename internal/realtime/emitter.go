package realtime

import (
	"context"
	"encoding/json"

	"github.com/joshu-sajeev/orchestrator/internal/config"
	"github.com/rs/zerolog/log"
)

// Publisher routes an addressed event to the connected clients, locally or
// through another instance.
type Publisher interface {
	Publish(ctx context.Context, env Envelope) error
}

// Emitter sends events to tenant and user rooms. Every method is
// fire-and-forget: failures are logged, never returned.
type Emitter struct {
	pub Publisher
}

func NewEmitter(pub Publisher) *Emitter {
	return &Emitter{pub: pub}
}

func (e *Emitter) EmitToTenant(ctx context.Context, namespace, tenantID, event string, payload any) {
	e.emit(ctx, namespace, TenantRoom(tenantID), event, payload)
}

func (e *Emitter) EmitToUser(ctx context.Context, namespace, userID, event string, payload any) {
	e.emit(ctx, namespace, UserRoom(userID), event, payload)
}

func (e *Emitter) emit(ctx context.Context, namespace, room, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("encode realtime payload")
		return
	}

	env := Envelope{Namespace: namespace, Room: room, Event: event, Data: data}
	if err := e.pub.Publish(ctx, env); err != nil {
		log.Error().Err(err).Str("event", event).Str("room", room).Msg("emit realtime event")
	}
}

type statusPayload struct {
	TenantID string           `json:"tenant_id"`
	Status   config.JobStatus `json:"status"`
	Progress int              `json:"progress"`
	Message  *string          `json:"message"`
}

func (e *Emitter) ProvisioningStatus(ctx context.Context, tenantID string, status config.JobStatus, progress int, message string) {
	p := statusPayload{TenantID: tenantID, Status: status, Progress: progress}
	if message != "" {
		p.Message = &message
	}
	e.EmitToTenant(ctx, NamespaceProvisioning, tenantID, EventStatusUpdate, p)
}

func (e *Emitter) ProvisioningCompleted(ctx context.Context, tenantID, erpnextURL string) {
	e.EmitToTenant(ctx, NamespaceProvisioning, tenantID, EventStatusCompleted, map[string]string{
		"tenant_id":   tenantID,
		"erpnext_url": erpnextURL,
	})
}

func (e *Emitter) ProvisioningFailed(ctx context.Context, tenantID, errMsg string) {
	e.EmitToTenant(ctx, NamespaceProvisioning, tenantID, EventStatusFailed, map[string]string{
		"tenant_id": tenantID,
		"error":     errMsg,
	})
}

// Notification types accepted by clients.
const (
	NotificationInfo    = "info"
	NotificationSuccess = "success"
	NotificationWarning = "warning"
	NotificationError   = "error"
)

func (e *Emitter) Notification(ctx context.Context, userID, notificationID, title, message, kind string) {
	if kind == "" {
		kind = NotificationInfo
	}
	e.EmitToUser(ctx, NamespaceNotifications, userID, EventNotificationNew, map[string]string{
		"id":      notificationID,
		"title":   title,
		"message": message,
		"type":    kind,
	})
}

func (e *Emitter) SubscriptionUpdated(ctx context.Context, tenantID string, subscription map[string]any) {
	e.EmitToTenant(ctx, NamespaceBilling, tenantID, EventSubscriptionUpdated, map[string]any{
		"subscription": subscription,
	})
}

func (e *Emitter) SubscriptionExpiring(ctx context.Context, tenantID string, daysLeft int) {
	e.EmitToTenant(ctx, NamespaceBilling, tenantID, EventSubscriptionExpiring, map[string]int{
		"days_left": daysLeft,
	})
}

func (e *Emitter) PaymentReceived(ctx context.Context, tenantID string, amount float64, currency string) {
	e.EmitToTenant(ctx, NamespaceBilling, tenantID, EventPaymentReceived, map[string]any{
		"amount":   amount,
		"currency": currency,
	})
}
