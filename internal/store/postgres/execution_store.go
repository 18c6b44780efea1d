package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atlaslabs-io/hedgewatch/internal/domain"
)

// ExecutionStore implements domain.ExecutionStore using PostgreSQL.
type ExecutionStore struct {
	pool *pgxpool.Pool
}

// NewExecutionStore creates an ExecutionStore backed by the given pool.
func NewExecutionStore(pool *pgxpool.Pool) *ExecutionStore {
	return &ExecutionStore{pool: pool}
}

const executionSelectCols = `id, plan_id, trigger_tx_hash, side,
	notional_micro, filled_micro, remaining_micro,
	mid_price, ratio, fill_count, success, reason,
	started_at, completed_at`

// Create persists one rebalance execution record.
func (s *ExecutionStore) Create(ctx context.Context, exec domain.RebalanceExecution) error {
	const query = `
		INSERT INTO rebalance_executions (
			id, plan_id, trigger_tx_hash, side,
			notional_micro, filled_micro, remaining_micro,
			mid_price, ratio, fill_count, success, reason,
			started_at, completed_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7,
			$8, $9, $10, $11, $12,
			$13, $14
		)`

	_, err := s.pool.Exec(ctx, query,
		exec.ID, exec.PlanID, exec.TriggerTxHash, string(exec.Side),
		exec.NotionalMicro, exec.FilledMicro, exec.RemainingMicro,
		exec.MidPrice, exec.Ratio, exec.FillCount, exec.Success, exec.Reason,
		exec.StartedAt, exec.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert execution: %w", err)
	}
	return nil
}

// ListRecent returns the most recent executions, newest first.
func (s *ExecutionStore) ListRecent(ctx context.Context, limit int) ([]domain.RebalanceExecution, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT ` + executionSelectCols + `
		FROM rebalance_executions
		ORDER BY started_at DESC
		LIMIT $1`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list executions: %w", err)
	}
	defer rows.Close()

	execs, err := scanExecutionRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan executions: %w", err)
	}
	return execs, nil
}

func scanExecutionRows(rows pgx.Rows) ([]domain.RebalanceExecution, error) {
	var execs []domain.RebalanceExecution
	for rows.Next() {
		var (
			e    domain.RebalanceExecution
			side string
		)
		if err := rows.Scan(
			&e.ID, &e.PlanID, &e.TriggerTxHash, &side,
			&e.NotionalMicro, &e.FilledMicro, &e.RemainingMicro,
			&e.MidPrice, &e.Ratio, &e.FillCount, &e.Success, &e.Reason,
			&e.StartedAt, &e.CompletedAt,
		); err != nil {
			return nil, err
		}
		e.Side = domain.TradeSide(side)
		execs = append(execs, e)
	}
	return execs, rows.Err()
}
