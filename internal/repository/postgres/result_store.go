package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Harsh-BH/codepad/internal/domain"
	"github.com/Harsh-BH/codepad/internal/repository"
)

var _ repository.ResultStore = (*pgResultStore)(nil)

// Schema creates the execution_results table used by the result store.
const Schema = `
CREATE TABLE IF NOT EXISTS execution_results (
	request_id      UUID PRIMARY KEY,
	document_id     UUID NOT NULL,
	filename        TEXT NOT NULL,
	language        TEXT NOT NULL,
	strategy        TEXT NOT NULL,
	status          TEXT NOT NULL,
	compile_message TEXT NOT NULL DEFAULT '',
	run_output      TEXT NOT NULL DEFAULT '',
	compile_time_ms BIGINT NOT NULL DEFAULT 0,
	run_time_ms     BIGINT NOT NULL DEFAULT 0,
	diagnostics     TEXT[] NOT NULL DEFAULT '{}',
	created_at      TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS execution_results_document_idx ON execution_results (document_id, created_at DESC);`

type pgResultStore struct {
	pool *pgxpool.Pool
}

// NewPostgresResultStore creates a PostgreSQL-backed store of finished executions.
func NewPostgresResultStore(pool *pgxpool.Pool) repository.ResultStore {
	return &pgResultStore{pool: pool}
}

// Migrate applies Schema.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("postgres: migrate: %w", err)
	}
	return nil
}

func (r *pgResultStore) SetResult(ctx context.Context, req *domain.ExecutionRequest, result *domain.ExecutionResult) error {
	query := `
		INSERT INTO execution_results
			(request_id, document_id, filename, language, strategy, status, compile_message,
			 run_output, compile_time_ms, run_time_ms, diagnostics, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (request_id) DO NOTHING`

	diagnostics := result.Diagnostics
	if diagnostics == nil {
		diagnostics = []string{}
	}

	_, err := r.pool.Exec(ctx, query,
		req.ID, req.DocumentID, req.Buffer.Filename, string(req.Language), result.Strategy,
		string(result.Status), result.CompileMessage, result.RunOutput,
		int64(result.CompileTimeMs), int64(result.RunTimeMs), diagnostics, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("postgres: set result: %w", err)
	}
	return nil
}
