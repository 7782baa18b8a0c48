package dashboard

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"posd/services/history"
)

// Emitter publishes journal events over core NATS. Delivery is best-effort,
// at-most-once per connected subscriber, with no outbox: a disconnected
// dashboard misses events and resynchronizes by re-fetching on reconnect.
// Publish failures are logged and never propagated back to the journal or
// orchestrator.
type Emitter struct {
	nc  *nats.Conn
	log zerolog.Logger
}

var _ history.EventSink = (*Emitter)(nil)

func NewEmitter(nc *nats.Conn, log zerolog.Logger) (*Emitter, error) {
	if nc == nil {
		return nil, errors.New("nats connection is required")
	}
	return &Emitter{nc: nc, log: log}, nil
}

func (e *Emitter) LogCreated(ctx context.Context, entry history.LogEntry) {
	e.publish(logCreatedEvent(entry), entry.EntityKind, entry.EntityID)
}

func (e *Emitter) LogUndone(ctx context.Context, entry history.LogEntry, restored history.Snapshot) {
	e.publish(logUndoneEvent(entry, restored), entry.EntityKind, entry.EntityID)
}

func (e *Emitter) publish(evt Event, kind history.EntityKind, entityID uuid.UUID) {
	data, err := json.Marshal(evt)
	if err != nil {
		e.log.Error().Err(err).Str("event", evt.Event).Msg("failed to encode dashboard event")
		return
	}

	subjects := []string{StoreTopic(evt.StoreID)}
	if kind == history.KindTable && entityID != uuid.Nil {
		subjects = append(subjects, TableTopic(entityID))
	}

	for _, subj := range subjects {
		if err := e.nc.Publish(subj, data); err != nil {
			e.log.Warn().Err(err).Str("subject", subj).Str("event", evt.Event).
				Msg("dropped dashboard event")
		}
	}
}
