package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/kirillm/action-guard/internal/domain"
)

// ApprovalEventRepository управляет журналом событий очереди
type ApprovalEventRepository struct {
	db *sql.DB
}

// NewApprovalEventRepository создает новый репозиторий
func NewApprovalEventRepository(db *sql.DB) *ApprovalEventRepository {
	return &ApprovalEventRepository{db: db}
}

var _ domain.ApprovalEventRepository = (*ApprovalEventRepository)(nil)

// Save сохраняет событие
func (r *ApprovalEventRepository) Save(ctx context.Context, rec *domain.ApprovalEventRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO guard_approval_events (event_type, request_id, decision_id, status, actor, reason, queue_size, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	return r.db.QueryRowContext(ctx, query,
		rec.EventType,
		rec.RequestID,
		rec.DecisionID,
		rec.Status,
		rec.Actor,
		rec.Reason,
		rec.QueueSize,
		rec.CreatedAt,
	).Scan(&rec.ID)
}

// GetByRequest получает историю запроса в хронологическом порядке
func (r *ApprovalEventRepository) GetByRequest(ctx context.Context, requestID string) ([]domain.ApprovalEventRecord, error) {
	query := `
		SELECT id, event_type, request_id, decision_id, status, actor, reason, queue_size, created_at
		FROM guard_approval_events
		WHERE request_id = $1
		ORDER BY created_at, id
	`
	rows, err := r.db.QueryContext(ctx, query, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.ApprovalEventRecord
	for rows.Next() {
		var (
			rec        domain.ApprovalEventRecord
			decisionID sql.NullString
			status     sql.NullString
			actor      sql.NullString
			reason     sql.NullString
		)
		err := rows.Scan(
			&rec.ID,
			&rec.EventType,
			&rec.RequestID,
			&decisionID,
			&status,
			&actor,
			&reason,
			&rec.QueueSize,
			&rec.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		rec.DecisionID = decisionID.String
		rec.Status = status.String
		if actor.Valid {
			rec.Actor = &actor.String
		}
		if reason.Valid {
			rec.Reason = &reason.String
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}
