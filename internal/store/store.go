// Package store is the optional append-only audit log: every played round,
// closed negotiation, and finished game is written out for instructor
// analysis. Sessions are never restored from it; live state is in-memory
// only and the log is write-mostly.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"chainsim/internal/game"
	"chainsim/internal/negotiation"
)

// Dialect selects the SQL backend.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// AuditLog records gameplay events to a SQL database. It implements
// game.Recorder.
type AuditLog struct {
	dialect Dialect
	db      *sqlx.DB
	log     *slog.Logger
}

var _ game.Recorder = (*AuditLog)(nil)

// OpenFromEnv opens the audit log described by the environment. With no
// DB_DIALECT set auditing is disabled and (nil, nil) is returned; a nil
// *AuditLog is a valid no-recorder value.
//
//	DB_DIALECT       sqlite | postgres
//	DB_SQLITE_PATH   sqlite file path (default data/chainsim_audit.sqlite)
//	DB_POSTGRES_DSN  postgres DSN (DATABASE_URL also honored)
func OpenFromEnv(log *slog.Logger) (*AuditLog, error) {
	raw := strings.TrimSpace(strings.ToLower(os.Getenv("DB_DIALECT")))
	if raw == "" {
		return nil, nil
	}
	dialect := Dialect(raw)

	var driverName, dsn string
	switch dialect {
	case DialectSQLite:
		driverName = "sqlite"
		path := strings.TrimSpace(os.Getenv("DB_SQLITE_PATH"))
		if path == "" {
			path = filepath.Join("data", "chainsim_audit.sqlite")
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite directory: %w", err)
		}
		dsn = path + "?_journal_mode=WAL&_busy_timeout=5000"
	case DialectPostgres:
		driverName = "pgx"
		dsn = strings.TrimSpace(os.Getenv("DB_POSTGRES_DSN"))
		if dsn == "" {
			dsn = strings.TrimSpace(os.Getenv("DATABASE_URL"))
		}
		if dsn == "" {
			return nil, errors.New("DB_DIALECT=postgres requires DB_POSTGRES_DSN or DATABASE_URL")
		}
	default:
		return nil, fmt.Errorf("unsupported DB_DIALECT %q", raw)
	}

	return Open(dialect, driverName, dsn, log)
}

// Open connects, pings, and migrates an audit database.
func Open(dialect Dialect, driverName, dsn string, log *slog.Logger) (*AuditLog, error) {
	if log == nil {
		log = slog.Default()
	}
	db, err := sqlx.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", dialect, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s database: %w", dialect, err)
	}

	a := &AuditLog{dialect: dialect, db: db, log: log}
	if err := a.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	log.Info("audit log opened", "dialect", dialect)
	return a, nil
}

// Close closes the underlying database.
func (a *AuditLog) Close() error {
	return a.db.Close()
}

func (a *AuditLog) migrate(ctx context.Context) error {
	id := "id INTEGER PRIMARY KEY AUTOINCREMENT"
	real := "REAL"
	ts := "TIMESTAMP"
	if a.dialect == DialectPostgres {
		id = "id BIGSERIAL PRIMARY KEY"
		real = "DOUBLE PRECISION"
		ts = "TIMESTAMPTZ"
	}

	schema := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS rounds (
		%[1]s,
		session_id TEXT NOT NULL,
		round INTEGER NOT NULL,
		order_quantity INTEGER NOT NULL,
		realized_demand INTEGER NOT NULL,
		buyer_profit %[2]s NOT NULL,
		supplier_profit %[2]s NOT NULL,
		payload TEXT NOT NULL,
		created_at %[3]s NOT NULL
	);

	CREATE TABLE IF NOT EXISTS negotiations (
		%[1]s,
		session_id TEXT NOT NULL,
		final_decision TEXT NOT NULL,
		turns INTEGER NOT NULL,
		started_at %[3]s NOT NULL,
		ended_at %[3]s NOT NULL,
		payload TEXT NOT NULL,
		created_at %[3]s NOT NULL
	);

	CREATE TABLE IF NOT EXISTS game_results (
		%[1]s,
		session_id TEXT NOT NULL,
		total_rounds INTEGER NOT NULL,
		rounds_played INTEGER NOT NULL,
		ended_early INTEGER NOT NULL,
		buyer_profit %[2]s NOT NULL,
		supplier_profit %[2]s NOT NULL,
		fill_rate %[2]s NOT NULL,
		payload TEXT NOT NULL,
		created_at %[3]s NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_rounds_session ON rounds(session_id);
	CREATE INDEX IF NOT EXISTS idx_negotiations_session ON negotiations(session_id);
	CREATE INDEX IF NOT EXISTS idx_game_results_session ON game_results(session_id);
	`, id, real, ts)

	_, err := a.db.ExecContext(ctx, schema)
	return err
}

func (a *AuditLog) bind(pos int) string {
	if a.dialect == DialectPostgres {
		return fmt.Sprintf("$%d", pos)
	}
	return "?"
}

func (a *AuditLog) insertQuery(table string, cols []string) string {
	ph := make([]string, len(cols))
	for i := range cols {
		ph[i] = a.bind(i + 1)
	}
	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		table,
		strings.Join(cols, ", "),
		strings.Join(ph, ", "),
	)
}

// RecordRound appends one played round.
func (a *AuditLog) RecordRound(ctx context.Context, sessionID string, round game.RoundSummary) error {
	q := a.insertQuery("rounds", []string{
		"session_id", "round", "order_quantity", "realized_demand",
		"buyer_profit", "supplier_profit", "payload", "created_at",
	})
	_, err := a.db.ExecContext(ctx, q,
		sessionID, round.Round, round.Result.OrderQuantity, round.Result.RealizedDemand,
		round.Result.BuyerProfit, round.Result.SupplierProfit, asJSON(round), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert round: %w", err)
	}
	return nil
}

// RecordNegotiation appends one closed negotiation.
func (a *AuditLog) RecordNegotiation(ctx context.Context, sessionID string, rec negotiation.Record) error {
	q := a.insertQuery("negotiations", []string{
		"session_id", "final_decision", "turns", "started_at", "ended_at", "payload", "created_at",
	})
	_, err := a.db.ExecContext(ctx, q,
		sessionID, string(rec.FinalDecision), len(rec.Transcript),
		rec.StartedAt.UTC(), rec.EndedAt.UTC(), asJSON(rec), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert negotiation: %w", err)
	}
	return nil
}

// RecordGameEnd appends the final summary of a finished game.
func (a *AuditLog) RecordGameEnd(ctx context.Context, sessionID string, sum game.Summary) error {
	endedEarly := 0
	if sum.EndedEarly {
		endedEarly = 1
	}
	q := a.insertQuery("game_results", []string{
		"session_id", "total_rounds", "rounds_played", "ended_early",
		"buyer_profit", "supplier_profit", "fill_rate", "payload", "created_at",
	})
	_, err := a.db.ExecContext(ctx, q,
		sessionID, sum.TotalRounds, sum.RoundsPlayed, endedEarly,
		sum.CumulativeBuyerProfit, sum.CumulativeSupplierProfit, sum.FillRate,
		asJSON(sum), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert game result: %w", err)
	}
	return nil
}

// GameResult is one finished game as read back from the log.
type GameResult struct {
	SessionID      string  `db:"session_id" json:"session_id"`
	TotalRounds    int     `db:"total_rounds" json:"total_rounds"`
	RoundsPlayed   int     `db:"rounds_played" json:"rounds_played"`
	EndedEarly     bool    `db:"ended_early" json:"ended_early"`
	BuyerProfit    float64 `db:"buyer_profit" json:"buyer_profit"`
	SupplierProfit float64 `db:"supplier_profit" json:"supplier_profit"`
	FillRate       float64 `db:"fill_rate" json:"fill_rate"`
}

// RecentResults returns the most recently finished games, newest first.
func (a *AuditLog) RecentResults(ctx context.Context, limit int) ([]GameResult, error) {
	if limit <= 0 {
		limit = 20
	}
	q := fmt.Sprintf(`SELECT session_id, total_rounds, rounds_played, ended_early,
		buyer_profit, supplier_profit, fill_rate
		FROM game_results ORDER BY id DESC LIMIT %s`, a.bind(1))

	var results []GameResult
	if err := a.db.SelectContext(ctx, &results, q, limit); err != nil {
		return nil, fmt.Errorf("select game results: %w", err)
	}
	return results, nil
}

// SessionRoundCount reports how many rounds were logged for a session.
func (a *AuditLog) SessionRoundCount(ctx context.Context, sessionID string) (int, error) {
	q := fmt.Sprintf("SELECT COUNT(1) FROM rounds WHERE session_id = %s", a.bind(1))
	var n int
	if err := a.db.GetContext(ctx, &n, q, sessionID); err != nil {
		return 0, fmt.Errorf("count rounds: %w", err)
	}
	return n, nil
}

func asJSON(v any) string {
	b, _ := json.Marshal(v)
	return string(b)
}
