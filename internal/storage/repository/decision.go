package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kirillm/action-guard/internal/domain"
)

// DecisionRepository управляет журналом решений
type DecisionRepository struct {
	db *sql.DB
}

// NewDecisionRepository создает новый репозиторий
func NewDecisionRepository(db *sql.DB) *DecisionRepository {
	return &DecisionRepository{db: db}
}

var _ domain.DecisionRepository = (*DecisionRepository)(nil)

const decisionColumns = `id, decision_id, action_id, engine, category, action_type, description,
	estimated_value, reversible, urgency, risk_level, risk_score, outcome, resolved_by, payload, created_at`

// Save сохраняет решение; повторное сохранение того же decision_id обновляет итог
func (r *DecisionRepository) Save(ctx context.Context, rec *domain.DecisionRecord) error {
	query := `
		INSERT INTO guard_decisions (
			decision_id, action_id, engine, category, action_type, description,
			estimated_value, reversible, urgency, risk_level, risk_score, outcome,
			resolved_by, payload, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (decision_id) DO UPDATE
		SET outcome = EXCLUDED.outcome, resolved_by = EXCLUDED.resolved_by,
		    payload = EXCLUDED.payload, updated_at = NOW()
		RETURNING id
	`
	return r.db.QueryRowContext(ctx, query,
		rec.DecisionID,
		rec.ActionID,
		rec.Engine,
		rec.Category,
		rec.ActionType,
		rec.Description,
		rec.EstimatedValue,
		rec.Reversible,
		rec.Urgency,
		rec.RiskLevel,
		rec.RiskScore,
		rec.Outcome,
		rec.ResolvedBy,
		nullJSON(rec.Payload),
		rec.CreatedAt,
	).Scan(&rec.ID)
}

// UpdateOutcome фиксирует итог после approve/reject
func (r *DecisionRepository) UpdateOutcome(ctx context.Context, decisionID string, outcome domain.Outcome, by string) error {
	query := `
		UPDATE guard_decisions
		SET outcome = $2, resolved_by = $3, updated_at = NOW()
		WHERE decision_id = $1
	`
	res, err := r.db.ExecContext(ctx, query, decisionID, string(outcome), by)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("decision %s: %w", decisionID, sql.ErrNoRows)
	}
	return nil
}

// GetRecent получает последние N решений
func (r *DecisionRepository) GetRecent(ctx context.Context, limit int) ([]domain.DecisionRecord, error) {
	query := `SELECT ` + decisionColumns + `
		FROM guard_decisions
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.DecisionRecord
	for rows.Next() {
		rec, err := scanDecision(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}

	return records, rows.Err()
}

// GetByDecisionID получает решение по id; nil если не найдено
func (r *DecisionRepository) GetByDecisionID(ctx context.Context, decisionID string) (*domain.DecisionRecord, error) {
	query := `SELECT ` + decisionColumns + ` FROM guard_decisions WHERE decision_id = $1`
	rec, err := scanDecision(r.db.QueryRowContext(ctx, query, decisionID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return rec, err
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanDecision(s scanner) (*domain.DecisionRecord, error) {
	var (
		rec     domain.DecisionRecord
		desc    sql.NullString
		by      sql.NullString
		payload []byte
	)
	err := s.Scan(
		&rec.ID,
		&rec.DecisionID,
		&rec.ActionID,
		&rec.Engine,
		&rec.Category,
		&rec.ActionType,
		&desc,
		&rec.EstimatedValue,
		&rec.Reversible,
		&rec.Urgency,
		&rec.RiskLevel,
		&rec.RiskScore,
		&rec.Outcome,
		&by,
		&payload,
		&rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.Description = desc.String
	if by.Valid {
		rec.ResolvedBy = &by.String
	}
	rec.Payload = payload
	return &rec, nil
}

func nullJSON(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
