package store

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/myna-logistics/settlement-cli/internal/db"
	"github.com/myna-logistics/settlement-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool db.Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const settlementColumns = `id, shipment_id, status, verdict, ledger, payout, rejection_reason, failed_stage, cause, payout_error, archived, created_at, updated_at`

// preparedStatements lists queries to prepare on each new connection.
var preparedStatements = map[string]string{
	"insert_settlement": `INSERT INTO settlements
		(id, shipment_id, status, verdict, ledger, payout, rejection_reason, failed_stage, cause, payout_error, archived, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, false, $11, $12)`,
	"get_settlement":     `SELECT ` + settlementColumns + ` FROM settlements WHERE id = $1`,
	"update_payout":      `UPDATE settlements SET payout = $1, payout_error = $2, status = $3, updated_at = $4 WHERE id = $5`,
	"archive_settlement": `UPDATE settlements SET archived = true, updated_at = $1 WHERE id = $2`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS settlements (
	id               TEXT PRIMARY KEY,
	shipment_id      TEXT NOT NULL,
	status           TEXT NOT NULL,
	verdict          JSONB,
	ledger           JSONB,
	payout           JSONB,
	rejection_reason TEXT NOT NULL DEFAULT '',
	failed_stage     TEXT NOT NULL DEFAULT '',
	cause            TEXT NOT NULL DEFAULT '',
	payout_error     TEXT NOT NULL DEFAULT '',
	archived         BOOLEAN NOT NULL DEFAULT false,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_settlements_status ON settlements(status);
CREATE INDEX IF NOT EXISTS idx_settlements_shipment_id ON settlements(shipment_id);
CREATE INDEX IF NOT EXISTS idx_settlements_created_at ON settlements(created_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) SaveSettlement(ctx context.Context, outcome *model.SettlementOutcome) error {
	verdict, ledger, payout, err := marshalParts(outcome)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO settlements
			(id, shipment_id, status, verdict, ledger, payout, rejection_reason, failed_stage, cause, payout_error, archived, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, false, $11, $12)`,
		outcome.ID, outcome.ShipmentID, string(outcome.Status),
		verdict, ledger, payout,
		string(outcome.RejectionReason), string(outcome.FailedStage), outcome.Cause, outcome.PayoutError,
		outcome.CreatedAt, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: insert settlement %s", outcome.ID)
}

func (s *PostgresStore) GetSettlement(ctx context.Context, id string) (*model.SettlementOutcome, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+settlementColumns+` FROM settlements WHERE id = $1`, id)

	outcome, err := scanSettlement(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Errorf("postgres: settlement %s not found", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get settlement %s", id)
	}
	return outcome, nil
}

func (s *PostgresStore) ListSettlements(ctx context.Context, filter Filter) ([]model.SettlementOutcome, error) {
	query := `SELECT ` + settlementColumns + ` FROM settlements WHERE 1=1`
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if !filter.IncludeArchived {
		query += ` AND archived = false`
	}
	if filter.Status != "" {
		query += ` AND status = ` + arg(string(filter.Status))
	}
	if filter.ShipmentID != "" {
		query += ` AND shipment_id = ` + arg(filter.ShipmentID)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ` + arg(limit)
	if filter.Offset > 0 {
		query += ` OFFSET ` + arg(filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list settlements")
	}
	defer rows.Close()

	var outcomes []model.SettlementOutcome
	for rows.Next() {
		o, err := scanSettlement(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan settlement")
		}
		outcomes = append(outcomes, *o)
	}
	return outcomes, eris.Wrap(rows.Err(), "postgres: list settlements iterate")
}

func (s *PostgresStore) UpdatePayout(ctx context.Context, id string, payout *model.PayoutResult, payoutErr string) error {
	payoutJSON, status, err := payoutUpdate(payout, payoutErr)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE settlements SET payout = $1, payout_error = $2, status = $3, updated_at = $4 WHERE id = $5`,
		payoutJSON, payoutErr, string(status), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update payout %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: settlement %s not found", id)
	}
	return nil
}

func (s *PostgresStore) ArchiveSettlement(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE settlements SET archived = true, updated_at = $1 WHERE id = $2`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: archive settlement %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: settlement %s not found", id)
	}
	return nil
}

func (s *PostgresStore) SettlementStats(ctx context.Context) (*Stats, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT status, COUNT(*),
			COALESCE(SUM(CASE WHEN payout->>'status' IN ('processing', 'completed')
				THEN (payout->>'amount_paise')::bigint ELSE 0 END), 0)
		 FROM settlements WHERE archived = false GROUP BY status`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: settlement stats")
	}
	defer rows.Close()

	stats := &Stats{}
	for rows.Next() {
		var status string
		var count int
		var paid int64
		if err := rows.Scan(&status, &count, &paid); err != nil {
			return nil, eris.Wrap(err, "postgres: scan stats")
		}
		applyStat(stats, model.SettlementStatus(status), count, paid)
	}
	return stats, eris.Wrap(rows.Err(), "postgres: stats iterate")
}
