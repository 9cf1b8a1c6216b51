package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	broadcastmodels "io.winapps.pushcast/internal/models/broadcast"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// Ledger persists one record per broadcast and its evolving counters. Records
// are never deleted and nothing but the two counters is ever rewritten.
type Ledger struct {
	db *pgxpool.Pool
}

func New(db *pgxpool.Pool) *Ledger {
	return &Ledger{db: db}
}

// Create inserts the record for one broadcast with its audience size fixed and
// both counters at zero.
func (l *Ledger) Create(ctx context.Context, req broadcastmodels.NotificationRequest, target broadcastmodels.TargetSpec, total int) (broadcastmodels.DeliveryRecord, error) {
	record := broadcastmodels.DeliveryRecord{
		ID:         uuid.New().String(),
		Title:      req.Title,
		Body:       req.Body,
		TargetType: target.String(),
		Total:      total,
	}

	query := `
		INSERT INTO delivery_records (id, title, body, target_type, created_at, total, success_count, failure_count)
		VALUES ($1, $2, $3, $4, NOW(), $5, 0, 0)
		RETURNING created_at`
	err := l.db.QueryRow(ctx, query, record.ID, record.Title, record.Body, record.TargetType, record.Total).
		Scan(&record.CreatedAt)
	if err != nil {
		return broadcastmodels.DeliveryRecord{}, fmt.Errorf("failed to create delivery record: %w", err)
	}
	return record, nil
}

// ApplyDelta atomically adds a batch's outcome to the record counters. The
// single UPDATE statement is serialized by the row lock, so concurrent batch
// completions never overwrite each other.
func (l *Ledger) ApplyDelta(ctx context.Context, id string, successDelta, failureDelta int) error {
	if successDelta == 0 && failureDelta == 0 {
		return nil
	}
	query := `
		UPDATE delivery_records
		SET success_count = success_count + $2,
		    failure_count = failure_count + $3
		WHERE id = $1`
	if _, err := l.db.Exec(ctx, query, id, successDelta, failureDelta); err != nil {
		return fmt.Errorf("failed to apply delivery deltas: %w", err)
	}
	return nil
}

// History returns the most recent records first. The limit is clamped to
// [1, 100] with a default of 20.
func (l *Ledger) History(ctx context.Context, limit int) ([]broadcastmodels.DeliveryRecord, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	query := `
		SELECT id, title, body, target_type, created_at, total, success_count, failure_count
		FROM delivery_records
		ORDER BY created_at DESC
		LIMIT $1`
	rows, err := l.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query delivery history: %w", err)
	}
	defer rows.Close()

	records := make([]broadcastmodels.DeliveryRecord, 0, limit)
	for rows.Next() {
		var r broadcastmodels.DeliveryRecord
		if err := rows.Scan(&r.ID, &r.Title, &r.Body, &r.TargetType, &r.CreatedAt, &r.Total, &r.SuccessCount, &r.FailureCount); err != nil {
			return nil, fmt.Errorf("failed to scan delivery record: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
