package domain

import "context"

// DecisionRepository определяет интерфейс для хранения решений
type DecisionRepository interface {
	Save(ctx context.Context, record *DecisionRecord) error
	UpdateOutcome(ctx context.Context, decisionID string, outcome Outcome, by string) error
	GetRecent(ctx context.Context, limit int) ([]DecisionRecord, error)
}

// ApprovalEventRepository определяет интерфейс для журнала событий очереди
type ApprovalEventRepository interface {
	Save(ctx context.Context, record *ApprovalEventRecord) error
	GetByRequest(ctx context.Context, requestID string) ([]ApprovalEventRecord, error)
}
