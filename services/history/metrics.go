package history

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	logsRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "posd_history_logs_recorded_total",
		Help: "Log entries appended to the journal, by action and entity kind.",
	}, []string{"action", "entity_kind"})

	undoAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "posd_history_undo_attempts_total",
		Help: "Undo attempts by outcome.",
	}, []string{"outcome"})

	entriesSwept = promauto.NewCounter(prometheus.CounterOpts{
		Name: "posd_history_entries_swept_total",
		Help: "Journal entries removed by the retention sweeper.",
	})
)

const (
	outcomeOK              = "ok"
	outcomeNotFound        = "not_found"
	outcomeAlreadyUndone   = "already_undone"
	outcomeExpired         = "expired"
	outcomeNonUndoable     = "non_undoable"
	outcomeUnknownEntity   = "unknown_entity"
	outcomeInvalidSnapshot = "invalid_snapshot"
	outcomeConflict        = "conflict"
	outcomeError           = "error"
)
