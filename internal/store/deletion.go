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

// RequestDeletion files a pending request to remove an attempt. The requester
// must own the attempt and may hold at most one pending request for it.
func (s *Store) RequestDeletion(ctx context.Context, attemptID, requesterID int64, reason string) (int64, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return 0, apperr.Invalid("reason is required")
	}

	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var owner int64
		err := tx.QueryRowContext(ctx, s.q(`SELECT examinee_id FROM attempts WHERE id = ?`), attemptID).Scan(&owner)
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.ErrAttemptNotFound
		}
		if err != nil {
			return err
		}
		if owner != requesterID {
			return apperr.ErrNotOwner
		}

		var one int
		err = tx.QueryRowContext(ctx, s.q(
			`SELECT 1 FROM attempt_deletion_requests WHERE attempt_id = ? AND status = ?`),
			attemptID, model.RequestPending).Scan(&one)
		if err == nil {
			return apperr.ErrDuplicateRequest
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}

		return tx.QueryRowContext(ctx, s.q(
			`INSERT INTO attempt_deletion_requests (attempt_id, requested_by, request_reason, status, requested_at)
			 VALUES (?, ?, ?, ?, ?) RETURNING id`),
			attemptID, requesterID, reason, model.RequestPending, time.Now().UTC(),
		).Scan(&id)
	})
	if err != nil {
		return 0, wrapTxErr(err, "request deletion of attempt %d", attemptID)
	}
	slog.Info("deletion requested", "request_id", id, "attempt_id", attemptID, "requested_by", requesterID)
	return id, nil
}

// ReviewDeletion resolves a pending request. Approval deletes the attempt and
// its answers before the request is marked approved; rejection only marks the
// request. Both outcomes are terminal.
func (s *Store) ReviewDeletion(ctx context.Context, requestID, reviewerID int64, action model.ReviewAction) error {
	var status model.RequestStatus
	switch action {
	case model.ActionApprove:
		status = model.RequestApproved
	case model.ActionReject:
		status = model.RequestRejected
	default:
		return apperr.Invalid("action must be approve or reject")
	}

	var attemptID int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var current model.RequestStatus
		err := tx.QueryRowContext(ctx, s.q(
			`SELECT attempt_id, status FROM attempt_deletion_requests WHERE id = ?`), requestID,
		).Scan(&attemptID, &current)
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.ErrRequestNotFound
		}
		if err != nil {
			return err
		}
		if current != model.RequestPending {
			return apperr.ErrNotPending
		}

		if status == model.RequestApproved {
			if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM attempt_answers WHERE attempt_id = ?`), attemptID); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM attempts WHERE id = ?`), attemptID); err != nil {
				return err
			}
		}

		res, err := tx.ExecContext(ctx, s.q(
			`UPDATE attempt_deletion_requests SET status = ?, reviewed_by = ?, reviewed_at = ?
			 WHERE id = ? AND status = ?`),
			status, reviewerID, time.Now().UTC(), requestID, model.RequestPending)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n != 1 {
			return apperr.ErrNotPending
		}
		return nil
	})
	if err != nil {
		return wrapTxErr(err, "review deletion request %d", requestID)
	}
	slog.Info("deletion request reviewed", "request_id", requestID, "attempt_id", attemptID,
		"status", status, "reviewed_by", reviewerID)
	return nil
}

const requestSelect = `SELECT r.id, r.attempt_id, r.requested_by, u.name, COALESCE(e.title, ''),
	r.request_reason, r.status, r.requested_at, r.reviewed_by, r.reviewed_at
	FROM attempt_deletion_requests r
	JOIN users u ON u.id = r.requested_by
	LEFT JOIN attempts a ON a.id = r.attempt_id
	LEFT JOIN exams e ON e.id = a.exam_id`

func scanRequest(row rowScanner) (model.DeletionRequest, error) {
	var r model.DeletionRequest
	err := row.Scan(&r.ID, &r.AttemptID, &r.RequestedBy, &r.RequesterName, &r.ExamTitle,
		&r.Reason, &r.Status, &r.RequestedAt, &r.ReviewedBy, &r.ReviewedAt)
	return r, err
}

// GetDeletionRequest returns a deletion request by ID.
func (s *Store) GetDeletionRequest(ctx context.Context, id int64) (model.DeletionRequest, error) {
	r, err := scanRequest(s.db.QueryRowContext(ctx, s.q(requestSelect+` WHERE r.id = ?`), id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.DeletionRequest{}, apperr.ErrRequestNotFound
	}
	if err != nil {
		return model.DeletionRequest{}, apperr.Store(err, "get deletion request %d", id)
	}
	return r, nil
}

// ListDeletionRequests returns all requests, pending ones first.
func (s *Store) ListDeletionRequests(ctx context.Context) ([]model.DeletionRequest, error) {
	rows, err := s.db.QueryContext(ctx, s.q(requestSelect+
		` ORDER BY CASE WHEN r.status = ? THEN 0 ELSE 1 END, r.requested_at DESC, r.id DESC`),
		model.RequestPending)
	if err != nil {
		return nil, apperr.Store(err, "list deletion requests")
	}
	defer rows.Close()
	var out []model.DeletionRequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, apperr.Store(err, "scan deletion request")
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
