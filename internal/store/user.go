package store

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/pavelanni/examportal/internal/apperr"
	"github.com/pavelanni/examportal/internal/model"
)

const userColumns = `id, name, email, password_hash, role, created_at`

func scanUser(row rowScanner) (model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt)
	return u, err
}

// CreateUser inserts a new user. Emails are stored lower-cased.
func (s *Store) CreateUser(ctx context.Context, u model.User) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, s.q(
		`INSERT INTO users (name, email, password_hash, role, created_at)
		 VALUES (?, ?, ?, ?, ?) RETURNING id`),
		u.Name, normalizeEmail(u.Email), u.PasswordHash, u.Role, time.Now().UTC(),
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, apperr.ErrEmailTaken
		}
		slog.Error("failed to create user", "email", u.Email, "error", err)
		return 0, apperr.Store(err, "create user")
	}
	slog.Info("created user", "id", id, "email", u.Email, "role", u.Role)
	return id, nil
}

// GetUserByEmail returns a user by email, or nil if none exists.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, s.q(
		`SELECT `+userColumns+` FROM users WHERE email = ?`), normalizeEmail(email)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Store(err, "get user by email")
	}
	return &u, nil
}

// GetUserByID returns a user by ID, or nil if none exists.
func (s *Store) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, s.q(
		`SELECT `+userColumns+` FROM users WHERE id = ?`), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Store(err, "get user %d", id)
	}
	return &u, nil
}

// ListUsers returns all users.
func (s *Store) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, apperr.Store(err, "list users")
	}
	defer rows.Close()
	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, apperr.Store(err, "scan user")
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// UserUpdate carries the mutable user fields. An empty PasswordHash keeps the
// current password.
type UserUpdate struct {
	Name         string
	Email        string
	Role         model.UserRole
	PasswordHash string
}

// UpdateUser changes a user's profile, role and optionally password.
func (s *Store) UpdateUser(ctx context.Context, id int64, upd UserUpdate) error {
	query := `UPDATE users SET name = ?, email = ?, role = ? WHERE id = ?`
	args := []any{upd.Name, normalizeEmail(upd.Email), upd.Role, id}
	if upd.PasswordHash != "" {
		query = `UPDATE users SET name = ?, email = ?, role = ?, password_hash = ? WHERE id = ?`
		args = []any{upd.Name, normalizeEmail(upd.Email), upd.Role, upd.PasswordHash, id}
	}
	res, err := s.db.ExecContext(ctx, s.q(query), args...)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.ErrEmailTaken
		}
		return apperr.Store(err, "update user %d", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.ErrUserNotFound
	}
	slog.Info("updated user", "id", id, "role", upd.Role)
	return nil
}

// SetPasswordHash replaces a user's stored password hash.
func (s *Store) SetPasswordHash(ctx context.Context, id int64, hash string) error {
	_, err := s.db.ExecContext(ctx, s.q(`UPDATE users SET password_hash = ? WHERE id = ?`), hash, id)
	if err != nil {
		return apperr.Store(err, "set password hash for user %d", id)
	}
	return nil
}

// DeleteUser removes a user together with their attempts, requests,
// visibility grants and any exams they created.
func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, s.q(`SELECT 1 FROM users WHERE id = ?`), id).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.ErrUserNotFound
		}
		if err != nil {
			return err
		}

		rows, err := tx.QueryContext(ctx, s.q(`SELECT id FROM exams WHERE created_by = ?`), id)
		if err != nil {
			return err
		}
		var examIDs []int64
		for rows.Next() {
			var examID int64
			if err := rows.Scan(&examID); err != nil {
				rows.Close()
				return err
			}
			examIDs = append(examIDs, examID)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
		for _, examID := range examIDs {
			if err := s.deleteExamTx(ctx, tx, examID); err != nil {
				return err
			}
		}

		stmts := []string{
			`DELETE FROM attempt_answers WHERE attempt_id IN (SELECT id FROM attempts WHERE examinee_id = ?)`,
			`DELETE FROM attempt_deletion_requests WHERE attempt_id IN (SELECT id FROM attempts WHERE examinee_id = ?)`,
			`DELETE FROM attempt_deletion_requests WHERE requested_by = ?`,
			`DELETE FROM attempts WHERE examinee_id = ?`,
			`DELETE FROM exam_visibility WHERE examinee_id = ?`,
			`DELETE FROM users WHERE id = ?`,
		}
		for _, stmt := range stmts {
			if _, err := tx.ExecContext(ctx, s.q(stmt), id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return wrapTxErr(err, "delete user %d", id)
	}
	slog.Info("deleted user", "id", id)
	return nil
}

// UserCount returns the total number of users.
func (s *Store) UserCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	if err != nil {
		return 0, apperr.Store(err, "count users")
	}
	return count, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// wrapTxErr passes classified errors through and wraps everything else as a
// StoreFailure.
func wrapTxErr(err error, format string, args ...any) error {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	return apperr.Store(err, format, args...)
}
