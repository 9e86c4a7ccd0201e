package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/alanyoungcy/zeroxbot/internal/domain"
)

// ThoughtSettleDelay holds the archive window's upper bound back from the
// current time. Journal rows are stamped when the decision completes and
// inserted up to a few seconds later, so only rows older than this are treated
// as final.
const ThoughtSettleDelay = 10 * time.Second

// SnapshotSource returns the most recently published snapshot document, or
// nil when none has been written yet.
type SnapshotSource interface {
	Last() []byte
}

// ThoughtArchiveStore is the journal query the archiver needs.
type ThoughtArchiveStore interface {
	ListBetween(ctx context.Context, from, to time.Time) ([]domain.ThoughtEntry, error)
}

// Archiver periodically copies the published snapshot and the decisions
// journaled since the previous run to object storage. Either source may be
// nil.
type Archiver struct {
	writer    domain.BlobWriter
	prefix    string
	snapshots SnapshotSource
	thoughts  ThoughtArchiveStore
	logger    *slog.Logger
	now       func() time.Time
	settle    time.Duration

	cursor time.Time
}

// NewArchiver creates an Archiver writing under prefix.
func NewArchiver(writer domain.BlobWriter, prefix string, snapshots SnapshotSource, thoughts ThoughtArchiveStore, logger *slog.Logger) *Archiver {
	return &Archiver{
		writer:    writer,
		prefix:    prefix,
		snapshots: snapshots,
		thoughts:  thoughts,
		logger:    logger.With(slog.String("component", "archiver")),
		now:       time.Now,
		settle:    ThoughtSettleDelay,
	}
}

// Run archives on every interval until ctx is cancelled. Journal entries
// stamped before Run started are not archived; each run covers entries stamped
// between the previous upper bound and now minus ThoughtSettleDelay.
func (a *Archiver) Run(ctx context.Context, interval time.Duration) error {
	a.cursor = a.now()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			a.runOnce(ctx)
		}
	}
}

func (a *Archiver) runOnce(ctx context.Context) {
	now := a.now()
	if _, err := a.ArchiveSnapshot(ctx, now); err != nil {
		a.logger.Warn("snapshot archive failed", slog.String("error", err.Error()))
	}
	if a.thoughts == nil {
		return
	}
	to := now.Add(-a.settle)
	if !to.After(a.cursor) {
		return
	}
	n, err := a.ArchiveThoughts(ctx, a.cursor, to)
	if err != nil {
		a.logger.Warn("thought archive failed", slog.String("error", err.Error()))
		return
	}
	a.cursor = to
	if n > 0 {
		a.logger.Info("thoughts archived", slog.Int("count", n))
	}
}

// ArchiveSnapshot uploads the current snapshot to
// {prefix}/snapshots/YYYY/MM/DD/HHMMSS.json and returns the key. It is a
// no-op when nothing has been published.
func (a *Archiver) ArchiveSnapshot(ctx context.Context, at time.Time) (string, error) {
	if a.snapshots == nil {
		return "", nil
	}
	doc := a.snapshots.Last()
	if len(doc) == 0 {
		return "", nil
	}

	key := path.Join(a.prefix, "snapshots", at.UTC().Format("2006/01/02/150405")+".json")
	if err := a.writer.Put(ctx, key, bytes.NewReader(doc), "application/json"); err != nil {
		return "", fmt.Errorf("s3blob: archive snapshot: %w", err)
	}
	return key, nil
}

// thoughtRecord is the archived form of a ThoughtEntry.
type thoughtRecord struct {
	ID         string    `json:"id"`
	Instrument string    `json:"instrument"`
	Price      float64   `json:"price"`
	Action     string    `json:"action"`
	Reason     string    `json:"reason,omitempty"`
	Confidence any       `json:"confidence,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// ArchiveThoughts uploads entries journaled in [from, to) as JSONL to
// {prefix}/thoughts/YYYY-MM-DD/HHMMSS.jsonl, keyed by to. It returns the
// number of entries archived.
func (a *Archiver) ArchiveThoughts(ctx context.Context, from, to time.Time) (int, error) {
	entries, err := a.thoughts.ListBetween(ctx, from, to)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive thoughts query: %w", err)
	}
	if len(entries) == 0 {
		return 0, nil
	}

	records := make([]thoughtRecord, len(entries))
	for i, e := range entries {
		records[i] = thoughtRecord{
			ID:         e.ID,
			Instrument: e.Instrument,
			Price:      e.Price,
			Action:     string(e.Action),
			Reason:     e.Reason,
			Confidence: e.Confidence,
			Timestamp:  e.Timestamp.UTC(),
		}
	}

	buf, err := marshalJSONL(records)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive thoughts marshal: %w", err)
	}

	utc := to.UTC()
	key := path.Join(a.prefix, "thoughts", utc.Format("2006-01-02"), utc.Format("150405")+".jsonl")
	if err := a.writer.Put(ctx, key, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive thoughts upload: %w", err)
	}
	return len(entries), nil
}

// marshalJSONL encodes one compact JSON value per line.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
