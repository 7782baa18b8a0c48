package history

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog"

	"posd/pkg/db"
	gos3 "posd/pkg/s3"
)

const defaultSweepBatch = 500

type archivedRow struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	StoreID    uuid.UUID  `db:"store_id" json:"storeId"`
	UserID     uuid.UUID  `db:"user_id" json:"userId"`
	Action     string     `db:"action" json:"action"`
	EntityKind string     `db:"entity_kind" json:"entityType"`
	EntityID   uuid.UUID  `db:"entity_id" json:"entityId"`
	EntityName string     `db:"entity_name" json:"entityName,omitempty"`
	Details    string     `db:"details" json:"details,omitempty"`
	Before     []byte     `db:"before_snapshot" json:"beforeSnapshot,omitempty"`
	After      []byte     `db:"after_snapshot" json:"afterSnapshot,omitempty"`
	Undoable   bool       `db:"undoable" json:"undoable"`
	UndoneAt   *time.Time `db:"undone_at" json:"undoneAt,omitempty"`
	UndoneBy   *uuid.UUID `db:"undone_by" json:"undoneBy,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"createdAt"`
}

// SweeperConfig controls the retention sweep. Archive upload is optional;
// without a bucket, expired rows are deleted outright.
type SweeperConfig struct {
	Horizon  time.Duration
	Interval time.Duration
	Batch    int
	S3       *gos3.Client
	Bucket   string
}

// Sweeper removes journal entries older than the retention horizon,
// regardless of undo state. When an archive bucket is configured each batch
// is exported as zstd-compressed NDJSON before deletion; an upload failure
// aborts the cycle so no row is ever dropped unarchived.
type Sweeper struct {
	pool *pgxpool.Pool
	cfg  SweeperConfig
	log  zerolog.Logger
	now  func() time.Time
}

func NewSweeper(pool *pgxpool.Pool, cfg SweeperConfig, log zerolog.Logger) (*Sweeper, error) {
	if pool == nil {
		return nil, errors.New("database pool is required")
	}
	if cfg.Horizon <= 0 {
		return nil, errors.New("retention horizon is required")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.Batch <= 0 {
		cfg.Batch = defaultSweepBatch
	}
	if cfg.S3 != nil && cfg.Bucket == "" {
		return nil, errors.New("archive bucket is required when s3 is configured")
	}

	return &Sweeper{pool: pool, cfg: cfg, log: log, now: time.Now}, nil
}

// Run sweeps on the configured interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if n, err := s.SweepOnce(ctx); err != nil {
				s.log.Error().Err(err).Msg("retention sweep failed")
			} else if n > 0 {
				s.log.Info().Int("entries", n).Msg("retention sweep removed entries")
			}
		}
	}
}

// SweepOnce removes every entry past the horizon and returns how many went.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	cutoff := s.now().UTC().Add(-s.cfg.Horizon)
	total := 0

	for {
		var rows []archivedRow
		err := db.Select(ctx, s.pool, &rows, `
SELECT id, store_id, user_id, action, entity_kind, entity_id, entity_name,
       details, before_snapshot, after_snapshot, undoable, undone_at,
       undone_by, created_at
FROM history_logs
WHERE created_at < $1
ORDER BY created_at
LIMIT $2
`, cutoff, s.cfg.Batch)
		if err != nil {
			return total, err
		}
		if len(rows) == 0 {
			return total, nil
		}

		if s.cfg.S3 != nil {
			if err := s.archive(ctx, rows); err != nil {
				return total, fmt.Errorf("archive batch: %w", err)
			}
		}

		ids := make([]uuid.UUID, len(rows))
		for i, r := range rows {
			ids[i] = r.ID
		}
		if _, err := db.Exec(ctx, s.pool, `DELETE FROM history_logs WHERE id = ANY($1)`, ids); err != nil {
			return total, err
		}

		total += len(rows)
		entriesSwept.Add(float64(len(rows)))

		if len(rows) < s.cfg.Batch {
			return total, nil
		}
	}
}

func (s *Sweeper) archive(ctx context.Context, rows []archivedRow) error {
	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf)
	if err != nil {
		return err
	}

	for _, row := range rows {
		line, err := json.Marshal(row)
		if err != nil {
			enc.Close()
			return err
		}
		if _, err := enc.Write(append(line, '\n')); err != nil {
			enc.Close()
			return err
		}
	}
	if err := enc.Close(); err != nil {
		return err
	}

	sum := sha256.Sum256(buf.Bytes())
	key := fmt.Sprintf("history/archive/%s-%s.ndjson.zst",
		s.now().UTC().Format("20060102T150405Z"), rows[0].ID)

	return s.cfg.S3.PutObject(ctx, s.cfg.Bucket, key,
		bytes.NewReader(buf.Bytes()), int64(buf.Len()), hex.EncodeToString(sum[:]))
}
