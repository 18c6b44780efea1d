package postgres

import (
	"context"
	"fmt"
	"math/big"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atlaslabs-io/hedgewatch/internal/domain"
)

// SwapStore implements domain.SwapStore using PostgreSQL. Amounts are stored
// as NUMERIC so uint256 values survive round trips untruncated.
type SwapStore struct {
	pool *pgxpool.Pool
}

// NewSwapStore creates a SwapStore backed by the given connection pool.
func NewSwapStore(pool *pgxpool.Pool) *SwapStore {
	return &SwapStore{pool: pool}
}

const swapSelectCols = `pool, sender, is_zero_to_one,
	amount_in::text, fee::text, amount_out::text, quote_delta::text,
	tx_hash, block_number, log_index`

// InsertBatch inserts events using a pgx batch. Duplicates (same tx_hash and
// log_index, seen again after a reconnect) are skipped via ON CONFLICT.
func (s *SwapStore) InsertBatch(ctx context.Context, events []domain.SwapEvent) error {
	if len(events) == 0 {
		return nil
	}

	const query = `
		INSERT INTO swap_events (
			pool, sender, is_zero_to_one,
			amount_in, fee, amount_out, quote_delta,
			tx_hash, block_number, log_index
		) VALUES (
			$1, $2, $3,
			$4::numeric, $5::numeric, $6::numeric, $7::numeric,
			$8, $9, $10
		) ON CONFLICT (tx_hash, log_index) DO NOTHING`

	batch := &pgx.Batch{}
	for _, ev := range events {
		batch.Queue(query,
			ev.Pool, ev.Sender, ev.ZeroToOne,
			numericText(ev.AmountIn), numericText(ev.Fee),
			numericText(ev.AmountOut), numericText(ev.QuoteDelta),
			ev.TxHash, int64(ev.BlockNumber), int64(ev.LogIndex),
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range events {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: insert swap batch item %d: %w", i, err)
		}
	}
	return nil
}

// ListRecent returns up to limit of the most recent events with block_number
// at least sinceBlock, oldest first.
func (s *SwapStore) ListRecent(ctx context.Context, limit int, sinceBlock uint64) ([]domain.SwapEvent, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT ` + swapSelectCols + `
		FROM swap_events
		WHERE block_number >= $1
		ORDER BY block_number DESC, log_index DESC
		LIMIT $2`

	rows, err := s.pool.Query(ctx, query, int64(sinceBlock), limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list swap events: %w", err)
	}
	defer rows.Close()

	events, err := scanSwapRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan swap events: %w", err)
	}

	// Newest-first from the index, flip to arrival order for callers.
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
	return events, nil
}

func scanSwapRows(rows pgx.Rows) ([]domain.SwapEvent, error) {
	var events []domain.SwapEvent
	for rows.Next() {
		var (
			ev                                    domain.SwapEvent
			amountIn, fee, amountOut, quoteDelta  string
			blockNumber, logIndex                 int64
		)
		if err := rows.Scan(
			&ev.Pool, &ev.Sender, &ev.ZeroToOne,
			&amountIn, &fee, &amountOut, &quoteDelta,
			&ev.TxHash, &blockNumber, &logIndex,
		); err != nil {
			return nil, err
		}

		var err error
		if ev.AmountIn, err = parseNumeric(amountIn); err != nil {
			return nil, err
		}
		if ev.Fee, err = parseNumeric(fee); err != nil {
			return nil, err
		}
		if ev.AmountOut, err = parseNumeric(amountOut); err != nil {
			return nil, err
		}
		if ev.QuoteDelta, err = parseNumeric(quoteDelta); err != nil {
			return nil, err
		}
		ev.BlockNumber = uint64(blockNumber)
		ev.LogIndex = uint64(logIndex)

		events = append(events, ev)
	}
	return events, rows.Err()
}

func numericText(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func parseNumeric(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("bad numeric value %q", s)
	}
	return v, nil
}
