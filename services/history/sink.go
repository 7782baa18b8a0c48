package history

import "context"

// EventSink receives post-mutation and post-undo notifications. Delivery is
// best-effort; implementations must not block the journal or orchestrator on
// subscriber health.
type EventSink interface {
	LogCreated(ctx context.Context, e LogEntry)
	LogUndone(ctx context.Context, e LogEntry, restored Snapshot)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) LogCreated(context.Context, LogEntry)          {}
func (NopSink) LogUndone(context.Context, LogEntry, Snapshot) {}
