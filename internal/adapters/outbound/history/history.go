package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/openkraft/issuegate/internal/domain"
)

const dbFile = "trend.db"

// Store implements domain.TrendStore on SQLite. Results are stored as JSON
// payloads keyed by job and build number. The per-job last build pointer
// lives in its own table and only ever moves forward.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the trend database in dir.
func Open(dir string) (*Store, error) {
	dir = filepath.Clean(dir)
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create trend store dir: %w", err)
	}

	dsn := filepath.Join(dir, dbFile) + "?" + url.Values{
		"_pragma": []string{
			"busy_timeout(30000)",
			"journal_mode(WAL)",
			"synchronous(NORMAL)",
		},
	}.Encode()

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open trend db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, errors.Join(err, fmt.Errorf("close trend db after schema init failure: %w", closeErr))
		}
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS results (
		job TEXT NOT NULL,
		build INTEGER NOT NULL,
		total_size INTEGER NOT NULL,
		overall_result TEXT NOT NULL,
		payload TEXT NOT NULL,
		PRIMARY KEY (job, build)
	);
	CREATE TABLE IF NOT EXISTS jobs (
		job TEXT PRIMARY KEY,
		last_build INTEGER NOT NULL
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("init trend schema: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Attach stores result for its owning build, replacing an earlier result of
// the same build, and advances the job's last build pointer. The pointer is
// never moved back by a build that finishes late.
func (s *Store) Attach(ctx context.Context, result *domain.AnalysisResult) error {
	if result == nil || result.Owner.Job == "" {
		return fmt.Errorf("result without owning build")
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin attach: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO results (job, build, total_size, overall_result, payload)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(job, build) DO UPDATE SET
			total_size = excluded.total_size,
			overall_result = excluded.overall_result,
			payload = excluded.payload`,
		result.Owner.Job, result.Owner.Number, result.TotalSize, string(result.OverallResult), string(payload))
	if err != nil {
		return fmt.Errorf("store result of %s: %w", result.Owner, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO jobs (job, last_build) VALUES (?, ?)
		ON CONFLICT(job) DO UPDATE SET last_build = MAX(last_build, excluded.last_build)`,
		result.Owner.Job, result.Owner.Number)
	if err != nil {
		return fmt.Errorf("advance last build of %s: %w", result.Owner.Job, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit attach: %w", err)
	}
	return nil
}

// Action returns the action of build. Returns (nil, nil) if the build has no
// attached result.
func (s *Store) Action(ctx context.Context, build domain.BuildRef) (*domain.ResultAction, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT build, payload FROM results WHERE job = ? AND build = ?`, build.Job, build.Number)
	return scanAction(build.Job, row)
}

// LastAction returns the action of the job's last build. Returns (nil, nil)
// if the job never attached a result.
func (s *Store) LastAction(ctx context.Context, job string) (*domain.ResultAction, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT r.build, r.payload FROM jobs j
		JOIN results r ON r.job = j.job AND r.build = j.last_build
		WHERE j.job = ?`, job)
	return scanAction(job, row)
}

// LastActionWithIssues returns the newest action with at least one finding.
// Returns (nil, nil) if there is none.
func (s *Store) LastActionWithIssues(ctx context.Context, job string) (*domain.ResultAction, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT build, payload FROM results
		WHERE job = ? AND total_size > 0
		ORDER BY build DESC LIMIT 1`, job)
	return scanAction(job, row)
}

// PreviousAction returns the newest action of build's job with a lower build
// number. Returns (nil, nil) if there is none.
func (s *Store) PreviousAction(ctx context.Context, build domain.BuildRef) (*domain.ResultAction, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT build, payload FROM results
		WHERE job = ? AND build < ?
		ORDER BY build DESC LIMIT 1`, build.Job, build.Number)
	return scanAction(build.Job, row)
}

// History returns up to limit actions, newest first. A limit of zero or less
// returns all of them.
func (s *Store) History(ctx context.Context, job string, limit int) ([]*domain.ResultAction, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT build, payload FROM results
		WHERE job = ?
		ORDER BY build DESC LIMIT ?`, job, limit)
	if err != nil {
		return nil, fmt.Errorf("query history of %s: %w", job, err)
	}
	defer rows.Close()

	var actions []*domain.ResultAction
	for rows.Next() {
		action, err := scanAction(job, rows)
		if err != nil {
			return nil, err
		}
		actions = append(actions, action)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history of %s: %w", job, err)
	}
	return actions, nil
}

// Jobs returns the names of all jobs with at least one result.
func (s *Store) Jobs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT job FROM jobs ORDER BY job`)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []string
	for rows.Next() {
		var job string
		if err := rows.Scan(&job); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// DeleteBuild removes the result of build and moves the job's pointer to the
// newest remaining build.
func (s *Store) DeleteBuild(ctx context.Context, build domain.BuildRef) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM results WHERE job = ? AND build = ?`, build.Job, build.Number); err != nil {
		return fmt.Errorf("delete result of %s: %w", build, err)
	}

	var newest sql.NullInt64
	if err := tx.QueryRowContext(ctx,
		`SELECT MAX(build) FROM results WHERE job = ?`, build.Job).Scan(&newest); err != nil {
		return fmt.Errorf("find newest build of %s: %w", build.Job, err)
	}
	if newest.Valid {
		_, err = tx.ExecContext(ctx, `UPDATE jobs SET last_build = ? WHERE job = ?`, newest.Int64, build.Job)
	} else {
		_, err = tx.ExecContext(ctx, `DELETE FROM jobs WHERE job = ?`, build.Job)
	}
	if err != nil {
		return fmt.Errorf("update last build of %s: %w", build.Job, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAction(job string, row scanner) (*domain.ResultAction, error) {
	var (
		number  int
		payload string
	)
	if err := row.Scan(&number, &payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan result of %s: %w", job, err)
	}

	var result domain.AnalysisResult
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return nil, fmt.Errorf("decode result of %s#%d: %w", job, number, err)
	}
	return &domain.ResultAction{
		Build:  domain.BuildRef{Job: job, Number: number},
		Result: &result,
	}, nil
}
