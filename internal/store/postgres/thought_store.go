package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/zeroxbot/internal/domain"
)

// ThoughtStore implements domain.ThoughtStore as an append-only table.
type ThoughtStore struct {
	pool *pgxpool.Pool
}

// NewThoughtStore creates a ThoughtStore backed by the given pool.
func NewThoughtStore(pool *pgxpool.Pool) *ThoughtStore {
	return &ThoughtStore{pool: pool}
}

const thoughtSelectCols = `id, instrument, price, action, reason, confidence, created_at`

// Insert appends one entry. Re-inserting the same ID is a no-op.
func (s *ThoughtStore) Insert(ctx context.Context, t domain.ThoughtEntry) error {
	conf, err := encodeConfidence(t.Confidence)
	if err != nil {
		return fmt.Errorf("postgres: insert thought %s: %w", t.ID, err)
	}
	const query = `
		INSERT INTO thoughts (id, instrument, price, action, reason, confidence, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING`
	_, err = s.pool.Exec(ctx, query,
		t.ID, t.Instrument, t.Price, string(t.Action), t.Reason, conf, t.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert thought %s: %w", t.ID, err)
	}
	return nil
}

// ListRecent returns up to limit entries, most recent first.
func (s *ThoughtStore) ListRecent(ctx context.Context, limit int) ([]domain.ThoughtEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+thoughtSelectCols+` FROM thoughts ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent thoughts: %w", err)
	}
	defer rows.Close()

	out, err := scanThoughtRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan thoughts: %w", err)
	}
	return out, nil
}

// ListBetween returns entries created in [from, to), oldest first.
func (s *ThoughtStore) ListBetween(ctx context.Context, from, to time.Time) ([]domain.ThoughtEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+thoughtSelectCols+` FROM thoughts
		 WHERE created_at >= $1 AND created_at < $2
		 ORDER BY created_at ASC`, from, to)
	if err != nil {
		return nil, fmt.Errorf("postgres: list thoughts between: %w", err)
	}
	defer rows.Close()

	out, err := scanThoughtRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan thoughts: %w", err)
	}
	return out, nil
}

func scanThoughtRows(rows pgx.Rows) ([]domain.ThoughtEntry, error) {
	var out []domain.ThoughtEntry
	for rows.Next() {
		var (
			t      domain.ThoughtEntry
			action string
			conf   []byte
		)
		if err := rows.Scan(&t.ID, &t.Instrument, &t.Price, &action, &t.Reason, &conf, &t.Timestamp); err != nil {
			return nil, err
		}
		t.Action = domain.Action(action)
		if len(conf) > 0 {
			if err := json.Unmarshal(conf, &t.Confidence); err != nil {
				return nil, err
			}
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// encodeConfidence stores the oracle's confidence verbatim as JSONB; nil
// becomes SQL NULL.
func encodeConfidence(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

var _ domain.ThoughtStore = (*ThoughtStore)(nil)
