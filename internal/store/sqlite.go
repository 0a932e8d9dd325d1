package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/myna-logistics/settlement-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS settlements (
	id               TEXT PRIMARY KEY,
	shipment_id      TEXT NOT NULL,
	status           TEXT NOT NULL,
	verdict          TEXT,
	ledger           TEXT,
	payout           TEXT,
	rejection_reason TEXT NOT NULL DEFAULT '',
	failed_stage     TEXT NOT NULL DEFAULT '',
	cause            TEXT NOT NULL DEFAULT '',
	payout_error     TEXT NOT NULL DEFAULT '',
	archived         INTEGER NOT NULL DEFAULT 0,
	created_at       DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at       DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_settlements_status ON settlements(status);
CREATE INDEX IF NOT EXISTS idx_settlements_shipment_id ON settlements(shipment_id);
CREATE INDEX IF NOT EXISTS idx_settlements_created_at ON settlements(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveSettlement(ctx context.Context, outcome *model.SettlementOutcome) error {
	verdict, ledger, payout, err := marshalParts(outcome)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO settlements
			(id, shipment_id, status, verdict, ledger, payout, rejection_reason, failed_stage, cause, payout_error, archived, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`,
		outcome.ID, outcome.ShipmentID, string(outcome.Status),
		verdict, ledger, payout,
		string(outcome.RejectionReason), string(outcome.FailedStage), outcome.Cause, outcome.PayoutError,
		outcome.CreatedAt, now,
	)
	return eris.Wrapf(err, "sqlite: insert settlement %s", outcome.ID)
}

func (s *SQLiteStore) GetSettlement(ctx context.Context, id string) (*model.SettlementOutcome, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, shipment_id, status, verdict, ledger, payout, rejection_reason, failed_stage, cause, payout_error, archived, created_at, updated_at
		 FROM settlements WHERE id = ?`, id)

	outcome, err := scanSettlement(row)
	if err == sql.ErrNoRows {
		return nil, eris.Errorf("sqlite: settlement %s not found", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get settlement %s", id)
	}
	return outcome, nil
}

func (s *SQLiteStore) ListSettlements(ctx context.Context, filter Filter) ([]model.SettlementOutcome, error) {
	query := `SELECT id, shipment_id, status, verdict, ledger, payout, rejection_reason, failed_stage, cause, payout_error, archived, created_at, updated_at
		FROM settlements WHERE 1=1`
	var args []any

	if !filter.IncludeArchived {
		query += ` AND archived = 0`
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.ShipmentID != "" {
		query += ` AND shipment_id = ?`
		args = append(args, filter.ShipmentID)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list settlements")
	}
	defer rows.Close()

	var outcomes []model.SettlementOutcome
	for rows.Next() {
		o, err := scanSettlement(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan settlement")
		}
		outcomes = append(outcomes, *o)
	}
	return outcomes, eris.Wrap(rows.Err(), "sqlite: list settlements iterate")
}

func (s *SQLiteStore) UpdatePayout(ctx context.Context, id string, payout *model.PayoutResult, payoutErr string) error {
	payoutJSON, status, err := payoutUpdate(payout, payoutErr)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE settlements SET payout = ?, payout_error = ?, status = ?, updated_at = ? WHERE id = ?`,
		payoutJSON, payoutErr, string(status), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update payout %s", id)
	}
	return checkRowsAffected(res, id)
}

func (s *SQLiteStore) ArchiveSettlement(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE settlements SET archived = 1, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: archive settlement %s", id)
	}
	return checkRowsAffected(res, id)
}

func (s *SQLiteStore) SettlementStats(ctx context.Context) (*Stats, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(*),
			COALESCE(SUM(CASE WHEN json_extract(payout, '$.status') IN ('processing', 'completed')
				THEN json_extract(payout, '$.amount_paise') ELSE 0 END), 0)
		 FROM settlements WHERE archived = 0 GROUP BY status`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: settlement stats")
	}
	defer rows.Close()

	stats := &Stats{}
	for rows.Next() {
		var status string
		var count int
		var paid int64
		if err := rows.Scan(&status, &count, &paid); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan stats")
		}
		applyStat(stats, model.SettlementStatus(status), count, paid)
	}
	return stats, eris.Wrap(rows.Err(), "sqlite: stats iterate")
}

// --- shared scan/marshal helpers ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSettlement(row rowScanner) (*model.SettlementOutcome, error) {
	var o model.SettlementOutcome
	var status, rejection, stage string
	var verdict, ledger, payout sql.NullString
	var archived bool

	err := row.Scan(&o.ID, &o.ShipmentID, &status, &verdict, &ledger, &payout,
		&rejection, &stage, &o.Cause, &o.PayoutError, &archived, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}

	o.Status = model.SettlementStatus(status)
	o.RejectionReason = model.RejectionReason(rejection)
	o.FailedStage = model.Stage(stage)
	o.Archived = archived

	if verdict.Valid && verdict.String != "" {
		o.Verdict = &model.VerificationVerdict{}
		if err := json.Unmarshal([]byte(verdict.String), o.Verdict); err != nil {
			return nil, eris.Wrap(err, "unmarshal verdict")
		}
	}
	if ledger.Valid && ledger.String != "" {
		o.Ledger = &model.LedgerRecord{}
		if err := json.Unmarshal([]byte(ledger.String), o.Ledger); err != nil {
			return nil, eris.Wrap(err, "unmarshal ledger")
		}
	}
	if payout.Valid && payout.String != "" {
		o.Payout = &model.PayoutResult{}
		if err := json.Unmarshal([]byte(payout.String), o.Payout); err != nil {
			return nil, eris.Wrap(err, "unmarshal payout")
		}
	}

	return &o, nil
}

func marshalParts(outcome *model.SettlementOutcome) (verdict, ledger, payout any, err error) {
	if outcome.Verdict != nil {
		b, err := json.Marshal(outcome.Verdict)
		if err != nil {
			return nil, nil, nil, eris.Wrap(err, "store: marshal verdict")
		}
		verdict = string(b)
	}
	if outcome.Ledger != nil {
		b, err := json.Marshal(outcome.Ledger)
		if err != nil {
			return nil, nil, nil, eris.Wrap(err, "store: marshal ledger")
		}
		ledger = string(b)
	}
	if outcome.Payout != nil {
		b, err := json.Marshal(outcome.Payout)
		if err != nil {
			return nil, nil, nil, eris.Wrap(err, "store: marshal payout")
		}
		payout = string(b)
	}
	return verdict, ledger, payout, nil
}

// payoutUpdate computes the stored payout JSON and the settlement status
// implied by a payout refresh: a payout error keeps it partial, a reported
// payout promotes it to full success.
func payoutUpdate(payout *model.PayoutResult, payoutErr string) (any, model.SettlementStatus, error) {
	status := model.StatusPartialSuccess
	var payoutJSON any
	if payout != nil {
		b, err := json.Marshal(payout)
		if err != nil {
			return nil, "", eris.Wrap(err, "store: marshal payout")
		}
		payoutJSON = string(b)
		if payoutErr == "" {
			status = model.StatusFullSuccess
		}
	}
	return payoutJSON, status, nil
}

func applyStat(stats *Stats, status model.SettlementStatus, count int, paid int64) {
	stats.Total += count
	stats.TotalPaidPaise += paid
	switch status {
	case model.StatusFullSuccess:
		stats.FullSuccess += count
	case model.StatusPartialSuccess:
		stats.PartialSuccess += count
	case model.StatusRejected:
		stats.Rejected += count
	case model.StatusFailed:
		stats.Failed += count
	}
}

func checkRowsAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Errorf("sqlite: settlement %s not found", id)
	}
	return nil
}
