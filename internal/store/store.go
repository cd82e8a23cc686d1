package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/pavelanni/examportal/internal/model"
)

// Driver selects the SQL backend.
type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// Store is the relational persistence layer. All multi-row writes run in a
// single transaction.
type Store struct {
	db     *sql.DB
	driver Driver
	policy model.QuestionPolicy
}

// Option configures a Store.
type Option func(*Store)

// WithQuestionPolicy sets how submissions referencing questions outside the
// exam are treated. The default is model.PolicyReject.
func WithQuestionPolicy(p model.QuestionPolicy) Option {
	return func(s *Store) { s.policy = p }
}

// New opens the database, verifies the connection and applies the schema.
func New(ctx context.Context, driver Driver, dsn string, opts ...Option) (*Store, error) {
	var drvName string
	switch driver {
	case DriverSQLite:
		drvName = "sqlite"
		dsn = sqliteDSN(dsn)
	case DriverPostgres:
		drvName = "pgx"
		if dsn == "" {
			dsn = "postgres://localhost:5432/examportal?sslmode=disable"
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %q", driver)
	}

	db, err := sql.Open(drvName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if driver == DriverSQLite {
		// One connection serializes writers and keeps :memory: databases shared.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{db: db, driver: driver, policy: model.PolicyReject}
	for _, o := range opts {
		o(s)
	}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	slog.Debug("database ready", "driver", driver)
	return s, nil
}

func sqliteDSN(dsn string) string {
	if dsn == "" {
		dsn = "examportal.db"
	}
	if strings.Contains(dsn, "?") {
		return dsn
	}
	params := "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_txlock=immediate"
	if !strings.Contains(dsn, ":memory:") {
		params += "&_pragma=journal_mode(WAL)"
	}
	return dsn + "?" + params
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate(ctx context.Context) error {
	schema := schemaSQLite
	if s.driver == DriverPostgres {
		schema = schemaPostgres
	}
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// q rewrites ? placeholders to $n for PostgreSQL.
func (s *Store) q(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var sb strings.Builder
	sb.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// withTx runs fn inside a transaction, committing only if fn returns nil.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// isUniqueViolation reports whether err is a unique or primary key violation.
func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		code := se.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	var pe *pgconn.PgError
	if errors.As(err, &pe) {
		return pe.Code == "23505"
	}
	return false
}

type rowScanner interface {
	Scan(dest ...any) error
}

const schemaSQLite = `
CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	email TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	role TEXT NOT NULL CHECK (role IN ('admin', 'examiner', 'examinee')),
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS exams (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	created_by INTEGER NOT NULL REFERENCES users(id),
	is_public INTEGER NOT NULL DEFAULT 1,
	total_questions INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS questions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	exam_id INTEGER NOT NULL REFERENCES exams(id) ON DELETE CASCADE,
	question_text TEXT NOT NULL,
	option_a TEXT NOT NULL,
	option_b TEXT NOT NULL,
	option_c TEXT NOT NULL,
	option_d TEXT NOT NULL,
	correct_option TEXT NOT NULL CHECK (correct_option IN ('A', 'B', 'C', 'D'))
);

CREATE TABLE IF NOT EXISTS attempts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	exam_id INTEGER NOT NULL REFERENCES exams(id) ON DELETE CASCADE,
	examinee_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	score INTEGER NOT NULL DEFAULT 0,
	attempted_at DATETIME NOT NULL,
	UNIQUE (exam_id, examinee_id)
);

CREATE TABLE IF NOT EXISTS attempt_answers (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	attempt_id INTEGER NOT NULL REFERENCES attempts(id) ON DELETE CASCADE,
	question_id INTEGER NOT NULL,
	selected_option TEXT NOT NULL,
	is_correct INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS attempt_deletion_requests (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	attempt_id INTEGER NOT NULL,
	requested_by INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	request_reason TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'approved', 'rejected')),
	requested_at DATETIME NOT NULL,
	reviewed_by INTEGER,
	reviewed_at DATETIME
);

CREATE TABLE IF NOT EXISTS exam_visibility (
	exam_id INTEGER NOT NULL REFERENCES exams(id) ON DELETE CASCADE,
	examinee_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	PRIMARY KEY (exam_id, examinee_id)
);

CREATE INDEX IF NOT EXISTS idx_questions_exam ON questions(exam_id);
CREATE INDEX IF NOT EXISTS idx_answers_attempt ON attempt_answers(attempt_id);
CREATE INDEX IF NOT EXISTS idx_requests_attempt ON attempt_deletion_requests(attempt_id);
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS users (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL,
	email TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	role TEXT NOT NULL CHECK (role IN ('admin', 'examiner', 'examinee')),
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS exams (
	id BIGSERIAL PRIMARY KEY,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	created_by BIGINT NOT NULL REFERENCES users(id),
	is_public BOOLEAN NOT NULL DEFAULT TRUE,
	total_questions INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS questions (
	id BIGSERIAL PRIMARY KEY,
	exam_id BIGINT NOT NULL REFERENCES exams(id) ON DELETE CASCADE,
	question_text TEXT NOT NULL,
	option_a TEXT NOT NULL,
	option_b TEXT NOT NULL,
	option_c TEXT NOT NULL,
	option_d TEXT NOT NULL,
	correct_option CHAR(1) NOT NULL CHECK (correct_option IN ('A', 'B', 'C', 'D'))
);

CREATE TABLE IF NOT EXISTS attempts (
	id BIGSERIAL PRIMARY KEY,
	exam_id BIGINT NOT NULL REFERENCES exams(id) ON DELETE CASCADE,
	examinee_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	score INTEGER NOT NULL DEFAULT 0,
	attempted_at TIMESTAMPTZ NOT NULL,
	UNIQUE (exam_id, examinee_id)
);

CREATE TABLE IF NOT EXISTS attempt_answers (
	id BIGSERIAL PRIMARY KEY,
	attempt_id BIGINT NOT NULL REFERENCES attempts(id) ON DELETE CASCADE,
	question_id BIGINT NOT NULL,
	selected_option CHAR(1) NOT NULL,
	is_correct BOOLEAN NOT NULL
);

CREATE TABLE IF NOT EXISTS attempt_deletion_requests (
	id BIGSERIAL PRIMARY KEY,
	attempt_id BIGINT NOT NULL,
	requested_by BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	request_reason TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'approved', 'rejected')),
	requested_at TIMESTAMPTZ NOT NULL,
	reviewed_by BIGINT,
	reviewed_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS exam_visibility (
	exam_id BIGINT NOT NULL REFERENCES exams(id) ON DELETE CASCADE,
	examinee_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	PRIMARY KEY (exam_id, examinee_id)
);

CREATE INDEX IF NOT EXISTS idx_questions_exam ON questions(exam_id);
CREATE INDEX IF NOT EXISTS idx_answers_attempt ON attempt_answers(attempt_id);
CREATE INDEX IF NOT EXISTS idx_requests_attempt ON attempt_deletion_requests(attempt_id);
`
