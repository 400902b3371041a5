// Package ledger stores run manifests, fit results and info tables in a SQL
// database. Rows are only ever inserted.
package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"gammastack/domain/core"
	"gammastack/domain/dataset"
	"gammastack/domain/run"
	"gammastack/internal/config"
	"gammastack/internal/errors"
	"gammastack/ports"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Open connects to the ledger database. Driver is "sqlite" or "postgres".
func Open(ctx context.Context, driver, dsn string) (*sqlx.DB, error) {
	switch driver {
	case config.DriverSQLite, config.DriverPostgres:
	default:
		return nil, errors.ConfigInvalid(fmt.Sprintf("unsupported ledger driver %q", driver))
	}
	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, errors.Wrap(errors.WithCode(errors.CodeDatabaseError, err), "failed to open ledger")
	}
	if driver == config.DriverSQLite {
		// a single writer avoids SQLITE_BUSY on concurrent inserts
		db.SetMaxOpenConns(1)
	}
	return db, nil
}

// dbError tags a failed query with CodeDatabaseError
func dbError(err error, message string) error {
	e := errors.DatabaseError(message)
	e.Cause = err
	return e
}

// repository implements the LedgerPort interface
type repository struct {
	db *sqlx.DB
}

// NewRepository creates a ledger on an open, migrated database
func NewRepository(db *sqlx.DB) ports.LedgerPort {
	return &repository{db: db}
}

type manifestRow struct {
	RunID       string `db:"run_id"`
	Kind        string `db:"kind"`
	Datasets    string `db:"datasets"`
	Seed        int64  `db:"seed"`
	CodeVersion string `db:"code_version"`
	InputHash   string `db:"input_hash"`
	ModelHash   string `db:"model_hash"`
	Fingerprint string `db:"fingerprint"`
	CreatedAt   string `db:"created_at"`
}

type fitRow struct {
	FitID      string  `db:"fit_id"`
	RunID      string  `db:"run_id"`
	StatType   string  `db:"stat_type"`
	TotalStat  float64 `db:"total_stat"`
	Success    bool    `db:"success"`
	Message    string  `db:"message"`
	NFev       int     `db:"nfev"`
	Parameters string  `db:"parameters"`
	RecordedAt string  `db:"recorded_at"`
}

// RecordManifest inserts a new run
func (r *repository) RecordManifest(ctx context.Context, m *run.Manifest) error {
	if err := m.Validate(); err != nil {
		return err
	}
	datasetsJSON, err := json.Marshal(m.Datasets)
	if err != nil {
		return errors.Wrap(err, "failed to marshal datasets")
	}

	exists, err := r.hasManifest(ctx, r.db, m.RunID)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: run %s", core.ErrDuplicateName, m.RunID)
	}

	query := r.db.Rebind(`INSERT INTO run_manifests (
		run_id, kind, datasets, seed, code_version, input_hash, model_hash, fingerprint, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err = r.db.ExecContext(ctx, query,
		string(m.RunID), string(m.Kind), string(datasetsJSON), int64(m.Seed), m.CodeVersion,
		string(m.Fingerprint.InputHash), string(m.Fingerprint.ModelHash), string(m.Fingerprint.Fingerprint),
		m.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return dbError(err, "failed to record manifest")
	}
	return nil
}

func (r *repository) hasManifest(ctx context.Context, q sqlx.QueryerContext, runID run.ID) (bool, error) {
	var n int
	if err := sqlx.GetContext(ctx, q, &n, r.db.Rebind("SELECT COUNT(*) FROM run_manifests WHERE run_id = ?"), string(runID)); err != nil {
		return false, dbError(err, "failed to look up run")
	}
	return n > 0, nil
}

// RecordFit appends a fit result and its dataset list in one transaction
func (r *repository) RecordFit(ctx context.Context, rec *run.FitRecord) error {
	paramsJSON, err := json.Marshal(rec.Parameters)
	if err != nil {
		return errors.Wrap(err, "failed to marshal parameters")
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return dbError(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	exists, err := r.hasManifest(ctx, tx, rec.RunID)
	if err != nil {
		return err
	}
	if !exists {
		return errors.NotFound("manifest of run " + string(rec.RunID))
	}

	fitID := uuid.NewString()
	_, err = tx.ExecContext(ctx, tx.Rebind(`INSERT INTO fit_records (
		fit_id, run_id, stat_type, total_stat, success, message, nfev, parameters, recorded_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		fitID, string(rec.RunID), rec.StatType, rec.TotalStat, rec.Success, rec.Message, rec.NFev,
		string(paramsJSON), time.Now().UTC().Format(timeLayout),
	)
	if err != nil {
		return dbError(err, "failed to record fit")
	}
	for i, name := range rec.Datasets {
		_, err := tx.ExecContext(ctx, tx.Rebind("INSERT INTO fit_datasets (fit_id, position, dataset) VALUES (?, ?, ?)"),
			fitID, i, name)
		if err != nil {
			return dbError(err, "failed to record fit dataset")
		}
	}
	return tx.Commit()
}

// RecordInfo appends info rows to a run, after the rows already stored
func (r *repository) RecordInfo(ctx context.Context, runID run.ID, rows []dataset.Info) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return dbError(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	exists, err := r.hasManifest(ctx, tx, runID)
	if err != nil {
		return err
	}
	if !exists {
		return errors.NotFound("manifest of run " + string(runID))
	}

	var next int
	if err := tx.GetContext(ctx, &next, tx.Rebind("SELECT COUNT(*) FROM info_rows WHERE run_id = ?"), string(runID)); err != nil {
		return dbError(err, "failed to count info rows")
	}
	for i, row := range rows {
		payload, err := encodeInfo(row)
		if err != nil {
			return errors.Wrap(err, "failed to marshal info row")
		}
		_, err = tx.ExecContext(ctx, tx.Rebind("INSERT INTO info_rows (run_id, position, name, payload) VALUES (?, ?, ?, ?)"),
			string(runID), next+i, row.Name, string(payload))
		if err != nil {
			return dbError(err, "failed to record info row")
		}
	}
	return tx.Commit()
}

// GetManifest retrieves a run by its ID
func (r *repository) GetManifest(ctx context.Context, runID run.ID) (*run.Manifest, error) {
	var row manifestRow
	err := r.db.GetContext(ctx, &row, r.db.Rebind(`SELECT
		run_id, kind, datasets, seed, code_version, input_hash, model_hash, fingerprint, created_at
	FROM run_manifests WHERE run_id = ?`), string(runID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("run " + string(runID))
		}
		return nil, dbError(err, "failed to get manifest")
	}

	m := &run.Manifest{
		RunID:       run.ID(row.RunID),
		Kind:        run.Kind(row.Kind),
		Seed:        uint64(row.Seed),
		CodeVersion: row.CodeVersion,
		Fingerprint: run.Fingerprint{
			InputHash:   core.Hash(row.InputHash),
			ModelHash:   core.Hash(row.ModelHash),
			Seed:        uint64(row.Seed),
			CodeVersion: row.CodeVersion,
			Fingerprint: core.Hash(row.Fingerprint),
		},
	}
	if err := json.Unmarshal([]byte(row.Datasets), &m.Datasets); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal datasets")
	}
	if m.CreatedAt, err = time.Parse(timeLayout, row.CreatedAt); err != nil {
		return nil, errors.Wrap(err, "failed to parse created_at")
	}
	return m, nil
}

// ListFits returns fit records in insertion order
func (r *repository) ListFits(ctx context.Context, filters ports.FitFilters) ([]run.FitRecord, error) {
	query := `SELECT fit_id, run_id, stat_type, total_stat, success, message, nfev, parameters, recorded_at
	FROM fit_records WHERE 1 = 1`
	var args []interface{}
	if filters.RunID != nil {
		query += " AND run_id = ?"
		args = append(args, string(*filters.RunID))
	}
	if filters.Dataset != "" {
		query += " AND EXISTS (SELECT 1 FROM fit_datasets d WHERE d.fit_id = fit_records.fit_id AND d.dataset = ?)"
		args = append(args, filters.Dataset)
	}
	query += " ORDER BY recorded_at, fit_id"
	if filters.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filters.Limit, filters.Offset)
	}

	var rows []fitRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, dbError(err, "failed to query fits")
	}

	if filters.Limit <= 0 && filters.Offset > 0 {
		if filters.Offset >= len(rows) {
			return nil, nil
		}
		rows = rows[filters.Offset:]
	}

	records := make([]run.FitRecord, 0, len(rows))
	for _, row := range rows {
		rec := run.FitRecord{
			RunID:     run.ID(row.RunID),
			StatType:  row.StatType,
			TotalStat: row.TotalStat,
			Success:   row.Success,
			Message:   row.Message,
			NFev:      row.NFev,
		}
		if err := json.Unmarshal([]byte(row.Parameters), &rec.Parameters); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal parameters")
		}
		err := r.db.SelectContext(ctx, &rec.Datasets,
			r.db.Rebind("SELECT dataset FROM fit_datasets WHERE fit_id = ? ORDER BY position"), row.FitID)
		if err != nil {
			return nil, dbError(err, "failed to query fit datasets")
		}
		records = append(records, rec)
	}
	return records, nil
}

// ListInfo returns the info rows of a run in insertion order
func (r *repository) ListInfo(ctx context.Context, runID run.ID) ([]dataset.Info, error) {
	var payloads []string
	err := r.db.SelectContext(ctx, &payloads,
		r.db.Rebind("SELECT payload FROM info_rows WHERE run_id = ? ORDER BY position"), string(runID))
	if err != nil {
		return nil, dbError(err, "failed to query info rows")
	}

	rows := make([]dataset.Info, len(payloads))
	for i, p := range payloads {
		if rows[i], err = decodeInfo(p); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal info row")
		}
	}
	return rows, nil
}

// infoPayload stores the statistic as null when it is undefined, which
// JSON cannot represent as a number
type infoPayload struct {
	dataset.Info
	StatSum *float64 `json:"stat_sum"`
}

func encodeInfo(row dataset.Info) ([]byte, error) {
	p := infoPayload{Info: row}
	if !math.IsNaN(row.StatSum) && !math.IsInf(row.StatSum, 0) {
		p.StatSum = &row.StatSum
	}
	return json.Marshal(p)
}

func decodeInfo(data string) (dataset.Info, error) {
	var p infoPayload
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return dataset.Info{}, err
	}
	row := p.Info
	row.StatSum = math.NaN()
	if p.StatSum != nil {
		row.StatSum = *p.StatSum
	}
	return row, nil
}
