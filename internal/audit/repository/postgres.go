package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"coaching-platform/backend/internal/audit/domain"
	"coaching-platform/backend/internal/db"
)

// PostgresRepository stores events in security_events.
type PostgresRepository struct {
	db db.DBTX
}

// NewPostgresRepository returns an audit repository that uses pool for persistence.
func NewPostgresRepository(pool db.DBTX) *PostgresRepository {
	return &PostgresRepository{db: pool}
}

// Create persists the event. The event must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, e *domain.SecurityEvent) error {
	meta := []byte("{}")
	if len(e.Metadata) > 0 {
		b, err := json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
		meta = b
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO security_events (id, user_id, event_type, ip, location, device, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, e.UserID, string(e.Type), e.IPAddress, e.Location, e.Device, meta, e.CreatedAt)
	return err
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*domain.SecurityEvent, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, user_id, event_type, ip, location, device, metadata, created_at
		FROM security_events WHERE user_id = $1
		ORDER BY created_at DESC LIMIT $2`, userID, ClampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.SecurityEvent
	for rows.Next() {
		var (
			e         domain.SecurityEvent
			eventType string
			meta      []byte
		)
		if err := rows.Scan(&e.ID, &e.UserID, &eventType, &e.IPAddress, &e.Location, &e.Device, &meta, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Type = domain.EventType(eventType)
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &e.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal metadata for event %s: %w", e.ID, err)
			}
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
