package state

import (
	"context"
	stdsql "database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver for migrations
)

//go:embed migrations
var migrationsFS embed.FS

// PostgresStore is a Store backed by PostgreSQL, grounded on the teacher's
// pkg/database/client.go connect-then-migrate lifecycle: a database/sql
// handle drives golang-migrate, while a pgxpool.Pool (the idiomatic pgx/v5
// entrypoint) serves every query.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects, applies pending migrations, and returns a
// ready Store. Call Close when done to release the pool.
func NewPostgresStore(ctx context.Context, cfg PostgresConfig) (*PostgresStore, error) {
	if err := runMigrations(cfg); err != nil {
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// runMigrations applies every embedded *.sql migration using golang-migrate
// against a plain database/sql connection, mirroring the teacher's
// iofs-embedded-source + postgres driver wiring.
func runMigrations(cfg PostgresConfig) error {
	db, err := stdsql.Open("pgx", cfg.DSN())
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create postgres migration driver: %w", err)
	}
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}
	defer sourceDriver.Close()

	m, err := migrate.NewWithInstance("iofs", sourceDriver, cfg.Database, driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context, spellId string) (map[string]any, bool, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT state FROM spell_state WHERE spell_id = $1`, spellId).Scan(&raw)
	if err != nil {
		if isNoRows(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var state map[string]any
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, false, fmt.Errorf("decode state for %s: %w", spellId, err)
	}
	return state, true, nil
}

func (s *PostgresStore) Save(ctx context.Context, spellId string, snapshot map[string]any) error {
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO spell_state (spell_id, state, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (spell_id) DO UPDATE SET state = EXCLUDED.state, updated_at = now()
	`, spellId, raw)
	return err
}

func (s *PostgresStore) AddRun(ctx context.Context, spellId string, run RunRecord) error {
	metricsRaw, err := json.Marshal(run.Metrics)
	if err != nil {
		return err
	}
	finalStateRaw, err := json.Marshal(run.FinalState)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO spell_runs (spell_id, run_id, ts, success, error, duration_ms, metrics, final_state)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, spellId, run.RunId, run.Timestamp, run.Success, run.Error, run.Duration.Milliseconds(), metricsRaw, finalStateRaw)
	return err
}

func (s *PostgresStore) SaveLedger(ctx context.Context, spellId, runId string, entries []LedgerEntry) error {
	raw, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO spell_ledgers (spell_id, run_id, entries)
		VALUES ($1, $2, $3)
		ON CONFLICT (spell_id, run_id) DO UPDATE SET entries = EXCLUDED.entries
	`, spellId, runId, raw)
	return err
}

func (s *PostgresStore) GetRuns(ctx context.Context, spellId string, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `
		SELECT run_id, ts, success, error, duration_ms, metrics, final_state
		FROM spell_runs WHERE spell_id = $1 ORDER BY ts DESC LIMIT $2
	`, spellId, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var (
			r                          RunRecord
			errStr                     stdsql.NullString
			durationMs                 int64
			metricsRaw, finalStateRaw  []byte
		)
		if err := rows.Scan(&r.RunId, &r.Timestamp, &r.Success, &errStr, &durationMs, &metricsRaw, &finalStateRaw); err != nil {
			return nil, err
		}
		r.Error = errStr.String
		r.Duration = time.Duration(durationMs) * time.Millisecond
		if err := json.Unmarshal(metricsRaw, &r.Metrics); err != nil {
			return nil, fmt.Errorf("decode metrics for run %s: %w", r.RunId, err)
		}
		if err := json.Unmarshal(finalStateRaw, &r.FinalState); err != nil {
			return nil, fmt.Errorf("decode final state for run %s: %w", r.RunId, err)
		}
		out = append(out, r)
	}
	// Reverse to ascending timestamp order, matching MemoryStore/FileStore.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, rows.Err()
}

func (s *PostgresStore) LoadLedger(ctx context.Context, spellId, runId string) ([]LedgerEntry, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT entries FROM spell_ledgers WHERE spell_id = $1 AND run_id = $2`, spellId, runId).Scan(&raw)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	var entries []LedgerEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("decode ledger for %s/%s: %w", spellId, runId, err)
	}
	return entries, nil
}

func (s *PostgresStore) ListSpells(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT spell_id FROM spell_state ORDER BY spell_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
