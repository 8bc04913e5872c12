package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/kirillm/action-guard/internal/storage/repository"
	_ "github.com/lib/pq"
)

// Options параметры пула соединений
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DefaultOptions значения пула по умолчанию
func DefaultOptions() Options {
	return Options{
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// PostgresStorage является фасадом для работы с PostgreSQL через репозитории
type PostgresStorage struct {
	db        *sql.DB
	decisions *repository.DecisionRepository
	events    *repository.ApprovalEventRepository
}

// NewPostgresStorage подключается по dsn и применяет миграции
func NewPostgresStorage(ctx context.Context, dsn string, opts Options) (*PostgresStorage, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetMaxIdleConns(opts.MaxIdleConns)
	db.SetConnMaxLifetime(opts.ConnMaxLifetime)

	storage := &PostgresStorage{
		db:        db,
		decisions: repository.NewDecisionRepository(db),
		events:    repository.NewApprovalEventRepository(db),
	}

	if err := storage.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return storage, nil
}

func (s *PostgresStorage) migrate(ctx context.Context) error {
	migrations := []string{
		// Журнал решений classifier
		`CREATE TABLE IF NOT EXISTS guard_decisions (
			id BIGSERIAL PRIMARY KEY,
			decision_id VARCHAR(64) NOT NULL UNIQUE,
			action_id VARCHAR(64) NOT NULL,
			engine VARCHAR(20) NOT NULL,
			category VARCHAR(20) NOT NULL,
			action_type VARCHAR(100) NOT NULL,
			description TEXT,
			estimated_value NUMERIC(20, 8) NOT NULL DEFAULT 0,
			reversible BOOLEAN NOT NULL DEFAULT false,
			urgency VARCHAR(10) NOT NULL,
			risk_level VARCHAR(10) NOT NULL,
			risk_score INTEGER NOT NULL,
			outcome VARCHAR(30) NOT NULL,
			resolved_by VARCHAR(100),
			payload JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		// События очереди подтверждений
		`CREATE TABLE IF NOT EXISTS guard_approval_events (
			id BIGSERIAL PRIMARY KEY,
			event_type VARCHAR(30) NOT NULL,
			request_id VARCHAR(64) NOT NULL,
			decision_id VARCHAR(64),
			status VARCHAR(20),
			actor VARCHAR(100),
			reason TEXT,
			queue_size INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_guard_decisions_created_at ON guard_decisions(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_guard_decisions_outcome ON guard_decisions(outcome)`,
		`CREATE INDEX IF NOT EXISTS idx_guard_approval_events_request ON guard_approval_events(request_id)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.ExecContext(ctx, migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

// Decisions репозиторий журнала решений
func (s *PostgresStorage) Decisions() *repository.DecisionRepository {
	return s.decisions
}

// ApprovalEvents репозиторий событий очереди
func (s *PostgresStorage) ApprovalEvents() *repository.ApprovalEventRepository {
	return s.events
}

// Close закрывает соединение с базой данных
func (s *PostgresStorage) Close() error {
	return s.db.Close()
}

// DB возвращает указатель на *sql.DB
func (s *PostgresStorage) DB() *sql.DB {
	return s.db
}
