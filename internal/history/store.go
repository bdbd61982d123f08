package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"  // PostgreSQL sürücüsü
	_ "modernc.org/sqlite" // CGO-free SQLite driver

	"github.com/senbaris/tempdbcheck/internal/model"
)

// timeLayout is fixed-width so that collected_at sorts chronologically as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// ErrNotFound is returned by GetReport for an unknown run ID.
var ErrNotFound = errors.New("report not found")

// Store persists tempdb check reports in SQLite or PostgreSQL.
type Store struct {
	conn   *sql.DB
	driver string
}

// ReportRow is a lightweight listing row.
type ReportRow struct {
	RunID         string    `json:"run_id"`
	Server        string    `json:"server"`
	CollectedAt   time.Time `json:"collected_at"`
	HasViolations bool      `json:"has_violations"`
	Violations    []string  `json:"violations,omitempty"`
}

// Open opens the store. driver is "sqlite" or "postgres".
func Open(driver, dsn string) (*Store, error) {
	switch driver {
	case "sqlite":
		// Pragmas via DSN keep it portable with the modernc driver.
		if !strings.HasPrefix(dsn, "file:") {
			dsn = "file:" + dsn
		}
		if !strings.Contains(dsn, "?") {
			dsn += "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
		}
	case "postgres":
	default:
		return nil, fmt.Errorf("desteklenmeyen history sürücüsü: %q", driver)
	}

	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("history veritabanı açılamadı: %w", err)
	}
	return &Store{conn: conn, driver: driver}, nil
}

func (s *Store) Close() error { return s.conn.Close() }

// CreateSchema ensures the reports and results tables exist.
func (s *Store) CreateSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS tempdb_reports (
  run_id         TEXT PRIMARY KEY,
  server         TEXT NOT NULL,
  collected_at   TEXT NOT NULL, -- UTC, fixed width
  has_violations INTEGER NOT NULL,
  report_json    TEXT NOT NULL
)`,
		`CREATE TABLE IF NOT EXISTS tempdb_results (
  run_id          TEXT NOT NULL REFERENCES tempdb_reports(run_id) ON DELETE CASCADE,
  position        INTEGER NOT NULL,
  rule            TEXT NOT NULL,
  recommended     TEXT,
  current_setting TEXT NOT NULL,
  violation       INTEGER NOT NULL,
  PRIMARY KEY (run_id, position)
)`,
		`CREATE INDEX IF NOT EXISTS idx_tempdb_reports_server ON tempdb_reports(server, collected_at)`,
	}
	for _, stmt := range stmts {
		if _, err := s.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("history şeması oluşturulamadı: %w", err)
		}
	}
	return nil
}

// SaveReport stores the report JSON and one row per rule result.
func (s *Store) SaveReport(ctx context.Context, report *model.Report) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("rapor JSON'a dönüştürülemedi: %w", err)
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, s.rebind(
		`INSERT INTO tempdb_reports (run_id, server, collected_at, has_violations, report_json) VALUES (?, ?, ?, ?, ?)`),
		report.RunID, report.Server, report.CollectedAt.UTC().Format(timeLayout), boolToInt(report.HasViolations), string(data),
	); err != nil {
		return fmt.Errorf("rapor kaydedilemedi: %w", err)
	}

	insert := s.rebind(`INSERT INTO tempdb_results (run_id, position, rule, recommended, current_setting, violation) VALUES (?, ?, ?, ?, ?, ?)`)
	for i, r := range report.Results {
		var recommended sql.NullString
		if r.Recommended != nil {
			recommended = sql.NullString{String: r.Recommended.String(), Valid: true}
		}
		if _, err := tx.ExecContext(ctx, insert,
			report.RunID, i, r.Rule, recommended, r.CurrentSetting.String(), boolToInt(r.IsViolation()),
		); err != nil {
			return fmt.Errorf("kural sonucu kaydedilemedi (%s): %w", r.Rule, err)
		}
	}

	return tx.Commit()
}

// ListReports returns the newest reports first. An empty server lists all servers.
func (s *Store) ListReports(ctx context.Context, server string, limit int) ([]ReportRow, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `SELECT run_id, server, collected_at, has_violations FROM tempdb_reports`
	var args []interface{}
	if server != "" {
		query += ` WHERE server = ?`
		args = append(args, server)
	}
	query += ` ORDER BY collected_at DESC LIMIT ` + strconv.Itoa(limit)

	rows, err := s.conn.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("rapor listesi alınamadı: %w", err)
	}
	defer rows.Close()

	var out []ReportRow
	for rows.Next() {
		var row ReportRow
		var collectedAt string
		var hasViolations int
		if err := rows.Scan(&row.RunID, &row.Server, &collectedAt, &hasViolations); err != nil {
			return nil, err
		}
		at, err := time.Parse(timeLayout, collectedAt)
		if err != nil {
			return nil, fmt.Errorf("rapor zamanı ayrıştırılamadı (%s): %w", row.RunID, err)
		}
		row.CollectedAt = at
		row.HasViolations = hasViolations != 0
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	violationQuery := s.rebind(`SELECT rule FROM tempdb_results WHERE run_id = ? AND violation = 1 ORDER BY position`)
	for i := range out {
		if !out[i].HasViolations {
			continue
		}
		names, err := s.queryStrings(ctx, violationQuery, out[i].RunID)
		if err != nil {
			return nil, err
		}
		out[i].Violations = names
	}
	return out, nil
}

// GetReport loads a full report by run ID.
func (s *Store) GetReport(ctx context.Context, runID string) (*model.Report, error) {
	var data string
	err := s.conn.QueryRowContext(ctx, s.rebind(`SELECT report_json FROM tempdb_reports WHERE run_id = ?`), runID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var report model.Report
	if err := json.Unmarshal([]byte(data), &report); err != nil {
		return nil, fmt.Errorf("rapor JSON'u ayrıştırılamadı: %w", err)
	}
	return &report, nil
}

func (s *Store) queryStrings(ctx context.Context, query string, args ...interface{}) ([]string, error) {
	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// rebind turns "?" placeholders into "$n" for PostgreSQL.
func (s *Store) rebind(query string) string {
	return Rebind(s.driver, query)
}

// Rebind rewrites "?" placeholders for drivers that use numbered parameters.
func Rebind(driver, query string) string {
	if driver != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
