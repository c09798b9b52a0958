package services

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Jason-Fu-git/CoTalk-Backend/internal/core/contracts"
	"github.com/Jason-Fu-git/CoTalk-Backend/internal/core/domain"
)

var tracer = otel.Tracer("cotalk-services")

// DeliveryResult reports which path a direct event took.
type DeliveryResult int

const (
	Delivered DeliveryResult = iota
	Persisted
)

// Dispatcher is the single send-or-persist branch every domain workflow
// goes through. Direct one-to-one events fall back to the notification
// store when the target has no live connection; group broadcasts never
// do, since offline members backfill from message history instead.
type Dispatcher struct {
	registry contracts.Registry
	notifs   domain.NotificationRepository
	log      *slog.Logger
}

func NewDispatcher(
	log *slog.Logger,
	registry contracts.Registry,
	notifs domain.NotificationRepository,
) *Dispatcher {
	return &Dispatcher{
		log:      log,
		registry: registry,
		notifs:   notifs,
	}
}

// SendDirect delivers the envelope to the target's live connection, or
// persists it as a notification. Exactly one of the two happens: a push
// that fails on an already-dying connection still counts as delivered,
// so the event is never double-persisted.
func (d *Dispatcher) SendDirect(
	ctx context.Context,
	targetUserID int64,
	env domain.Envelope,
) (DeliveryResult, error) {
	ctx, span := tracer.Start(ctx, "Dispatcher.SendDirect", trace.WithAttributes(
		attribute.Int64("target_user_id", targetUserID),
		attribute.String("event_type", string(env.Type)),
		attribute.String("event_status", string(env.Status)),
	))
	defer span.End()
	data := env.Encode()
	if c, ok := d.registry.Lookup(targetUserID); ok {
		if err := c.Send(ctx, data); err != nil {
			// Connection is mid-disconnect; cleanup belongs to the
			// registry, not to a retry here.
			d.log.WarnContext(ctx, "dispatcher - send direct - push to dying connection",
				"target_user_id", targetUserID, "err", err)
		}
		span.SetAttributes(attribute.String("delivery", "live"))
		return Delivered, nil
	}
	n := &domain.Notification{
		SenderID:   env.ActorID,
		ReceiverID: targetUserID,
		Content:    data,
		CreateTime: time.Now(),
	}
	if err := d.notifs.Create(ctx, n); err != nil {
		span.RecordError(err)
		d.log.ErrorContext(ctx, "dispatcher - send direct - persist notification failed",
			"target_user_id", targetUserID, "err", err)
		return 0, err
	}
	span.SetAttributes(attribute.String("delivery", "persisted"))
	return Persisted, nil
}

// SendToGroup pushes the envelope to every connection subscribed to the
// chat. Best effort, no persistence fallback.
func (d *Dispatcher) SendToGroup(ctx context.Context, chatID int64, env domain.Envelope) {
	ctx, span := tracer.Start(ctx, "Dispatcher.SendToGroup", trace.WithAttributes(
		attribute.Int64("chat_id", chatID),
		attribute.String("event_type", string(env.Type)),
		attribute.String("event_status", string(env.Status)),
	))
	defer span.End()
	data := env.Encode()
	members := d.registry.MembersOf(chatID)
	span.SetAttributes(attribute.Int("member_count", len(members)))
	for _, c := range members {
		if err := c.Send(ctx, data); err != nil {
			d.log.WarnContext(ctx, "dispatcher - send to group - push failed",
				"chat_id", chatID, "user_id", c.UserID(), "err", err)
		}
	}
}
