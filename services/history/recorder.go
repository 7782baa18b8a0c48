package history

import (
	"context"
	"errors"
	"fmt"
)

// recordJournal is the slice of the Journal the recorder needs.
type recordJournal interface {
	Append(ctx context.Context, req AppendRequest) (LogEntry, error)
}

// Recorder is the inbound surface mutating operations call after they commit.
// Callers are responsible for accurate before/after snapshots; the recorder
// only checks that the snapshot pairing matches the action.
type Recorder struct {
	journal recordJournal
	sink    EventSink
}

func NewRecorder(journal recordJournal, sink EventSink) (*Recorder, error) {
	if journal == nil {
		return nil, errors.New("journal is required")
	}
	if sink == nil {
		sink = NopSink{}
	}
	return &Recorder{journal: journal, sink: sink}, nil
}

// Record validates and appends one action, then announces it.
func (r *Recorder) Record(ctx context.Context, req AppendRequest) (LogEntry, error) {
	if !req.Action.Valid() {
		return LogEntry{}, fmt.Errorf("invalid action %q", req.Action)
	}

	switch req.Action {
	case ActionCreate:
		if len(req.After) == 0 {
			return LogEntry{}, errors.New("create action requires an after snapshot")
		}
		req.Before = nil
	case ActionDelete:
		if len(req.Before) == 0 {
			return LogEntry{}, errors.New("delete action requires a before snapshot")
		}
		req.After = nil
	case ActionUpdate:
		if len(req.Before) == 0 || len(req.After) == 0 {
			return LogEntry{}, errors.New("update action requires before and after snapshots")
		}
	}

	entry, err := r.journal.Append(ctx, req)
	if err != nil {
		return LogEntry{}, err
	}

	logsRecorded.WithLabelValues(string(entry.Action), string(entry.EntityKind)).Inc()
	r.sink.LogCreated(ctx, entry)

	return entry, nil
}
