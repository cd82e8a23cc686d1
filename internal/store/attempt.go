package store

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/pavelanni/examportal/internal/apperr"
	"github.com/pavelanni/examportal/internal/model"
)

// SubmitAttempt scores an examinee's answers against the exam's stored correct
// options and persists the attempt with one answer row per submitted answer.
//
// The whole write runs in one transaction. At most one attempt per
// (exam, examinee) exists: the in-transaction check gives the common case a
// clean error, and the UNIQUE (exam_id, examinee_id) constraint resolves
// concurrent submits. Either way the loser gets apperr.ErrAlreadyAttempted and
// nothing it wrote survives.
func (s *Store) SubmitAttempt(ctx context.Context, examID, examineeID int64, answers []model.SubmittedAnswer) (model.SubmitResult, error) {
	answers, err := normalizeAnswers(answers)
	if err != nil {
		return model.SubmitResult{}, err
	}

	var result model.SubmitResult
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		var isPublic bool
		err := tx.QueryRowContext(ctx, s.q(`SELECT is_public FROM exams WHERE id = ?`), examID).Scan(&isPublic)
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.ErrExamNotFound
		}
		if err != nil {
			return err
		}
		if !isPublic {
			ok, err := s.hasVisibility(ctx, tx, examID, examineeID)
			if err != nil {
				return err
			}
			if !ok {
				return apperr.ErrExamRestricted
			}
		}

		var one int
		err = tx.QueryRowContext(ctx, s.q(
			`SELECT 1 FROM attempts WHERE exam_id = ? AND examinee_id = ?`), examID, examineeID).Scan(&one)
		if err == nil {
			return apperr.ErrAlreadyAttempted
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}

		key, err := s.answerKeyTx(ctx, tx, examID)
		if err != nil {
			return err
		}
		if s.policy != model.PolicyScore {
			for _, a := range answers {
				if _, ok := key[a.QuestionID]; !ok {
					return apperr.Invalid("question %d does not belong to exam %d", a.QuestionID, examID)
				}
			}
		}

		var attemptID int64
		err = tx.QueryRowContext(ctx, s.q(
			`INSERT INTO attempts (exam_id, examinee_id, score, attempted_at) VALUES (?, ?, 0, ?) RETURNING id`),
			examID, examineeID, time.Now().UTC(),
		).Scan(&attemptID)
		if err != nil {
			if isUniqueViolation(err) {
				return apperr.ErrAlreadyAttempted
			}
			return err
		}

		stmt, err := tx.PrepareContext(ctx, s.q(
			`INSERT INTO attempt_answers (attempt_id, question_id, selected_option, is_correct) VALUES (?, ?, ?, ?)`))
		if err != nil {
			return err
		}
		defer stmt.Close()

		score := 0
		for _, a := range answers {
			correct := ScoreAnswer(key, a)
			if correct {
				score++
			}
			if _, err := stmt.ExecContext(ctx, attemptID, a.QuestionID, a.SelectedOption, correct); err != nil {
				return err
			}
		}

		if _, err := tx.ExecContext(ctx, s.q(`UPDATE attempts SET score = ? WHERE id = ?`), score, attemptID); err != nil {
			return err
		}
		result = model.SubmitResult{AttemptID: attemptID, Score: score}
		return nil
	})
	if err != nil {
		return model.SubmitResult{}, wrapTxErr(err, "submit attempt for exam %d", examID)
	}
	slog.Info("attempt submitted", "attempt_id", result.AttemptID, "exam_id", examID,
		"examinee_id", examineeID, "score", result.Score, "answers", len(answers))
	return result, nil
}

// ScoreAnswer reports whether a submitted answer matches the answer key.
// Answers for questions missing from the key are incorrect.
func ScoreAnswer(key map[int64]model.Option, a model.SubmittedAnswer) bool {
	correct, ok := key[a.QuestionID]
	return ok && correct == a.SelectedOption
}

func (s *Store) answerKeyTx(ctx context.Context, tx *sql.Tx, examID int64) (map[int64]model.Option, error) {
	rows, err := tx.QueryContext(ctx, s.q(`SELECT id, correct_option FROM questions WHERE exam_id = ?`), examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	key := make(map[int64]model.Option)
	for rows.Next() {
		var (
			id  int64
			opt string
		)
		if err := rows.Scan(&id, &opt); err != nil {
			return nil, err
		}
		key[id] = model.NormalizeOption(opt)
	}
	return key, rows.Err()
}

// normalizeAnswers validates a submission and returns a copy with upper-cased
// options.
func normalizeAnswers(answers []model.SubmittedAnswer) ([]model.SubmittedAnswer, error) {
	if len(answers) == 0 {
		return nil, apperr.Invalid("answers required")
	}
	out := make([]model.SubmittedAnswer, 0, len(answers))
	seen := make(map[int64]bool, len(answers))
	for i, a := range answers {
		if a.QuestionID <= 0 {
			return nil, apperr.Invalid("answer %d: question_id is required", i+1)
		}
		opt := model.NormalizeOption(string(a.SelectedOption))
		if opt == "" {
			return nil, apperr.Invalid("answer %d: selected_option must be one of A, B, C, D", i+1)
		}
		if seen[a.QuestionID] {
			return nil, apperr.Invalid("question %d answered more than once", a.QuestionID)
		}
		seen[a.QuestionID] = true
		out = append(out, model.SubmittedAnswer{QuestionID: a.QuestionID, SelectedOption: opt})
	}
	return out, nil
}

// GetAttempt returns an attempt by ID.
func (s *Store) GetAttempt(ctx context.Context, id int64) (model.Attempt, error) {
	var a model.Attempt
	err := s.db.QueryRowContext(ctx, s.q(
		`SELECT id, exam_id, examinee_id, score, attempted_at FROM attempts WHERE id = ?`), id,
	).Scan(&a.ID, &a.ExamID, &a.ExamineeID, &a.Score, &a.AttemptedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Attempt{}, apperr.ErrAttemptNotFound
	}
	if err != nil {
		return model.Attempt{}, apperr.Store(err, "get attempt %d", id)
	}
	return a, nil
}

// GetAttemptAnswers returns the answer rows of an attempt in submission order.
func (s *Store) GetAttemptAnswers(ctx context.Context, attemptID int64) ([]model.AttemptAnswer, error) {
	rows, err := s.db.QueryContext(ctx, s.q(
		`SELECT id, attempt_id, question_id, selected_option, is_correct
		 FROM attempt_answers WHERE attempt_id = ? ORDER BY id`), attemptID)
	if err != nil {
		return nil, apperr.Store(err, "list answers for attempt %d", attemptID)
	}
	defer rows.Close()
	var answers []model.AttemptAnswer
	for rows.Next() {
		var a model.AttemptAnswer
		if err := rows.Scan(&a.ID, &a.AttemptID, &a.QuestionID, &a.SelectedOption, &a.IsCorrect); err != nil {
			return nil, apperr.Store(err, "scan attempt answer")
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}

// DeleteAttempt removes an attempt with its answers and any deletion
// requests filed against it.
func (s *Store) DeleteAttempt(ctx context.Context, id int64) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM attempt_answers WHERE attempt_id = ?`), id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM attempt_deletion_requests WHERE attempt_id = ?`), id); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, s.q(`DELETE FROM attempts WHERE id = ?`), id)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return apperr.ErrAttemptNotFound
		}
		return nil
	})
	if err != nil {
		return wrapTxErr(err, "delete attempt %d", id)
	}
	slog.Info("deleted attempt", "id", id)
	return nil
}

// ListAttemptsByExaminee returns an examinee's attempt history, newest first.
func (s *Store) ListAttemptsByExaminee(ctx context.Context, examineeID int64) ([]model.AttemptSummary, error) {
	return s.listAttemptSummaries(ctx, `WHERE a.examinee_id = ? ORDER BY a.attempted_at DESC, a.id DESC`, examineeID)
}

func (s *Store) listAttemptSummaries(ctx context.Context, where string, args ...any) ([]model.AttemptSummary, error) {
	rows, err := s.db.QueryContext(ctx, s.q(
		`SELECT a.id, a.exam_id, e.title, a.examinee_id, u.name, a.score, e.total_questions, a.attempted_at
		 FROM attempts a
		 JOIN exams e ON e.id = a.exam_id
		 JOIN users u ON u.id = a.examinee_id `+where), args...)
	if err != nil {
		return nil, apperr.Store(err, "list attempts")
	}
	defer rows.Close()
	var out []model.AttemptSummary
	for rows.Next() {
		var a model.AttemptSummary
		if err := rows.Scan(&a.AttemptID, &a.ExamID, &a.Title, &a.ExamineeID, &a.StudentName,
			&a.Score, &a.TotalQuestions, &a.AttemptedAt); err != nil {
			return nil, apperr.Store(err, "scan attempt summary")
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
