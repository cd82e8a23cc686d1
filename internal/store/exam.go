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

const examSelect = `SELECT e.id, e.title, e.description, e.created_by, u.name, e.is_public,
	e.total_questions, (SELECT COUNT(*) FROM attempts a WHERE a.exam_id = e.id), e.created_at
	FROM exams e JOIN users u ON u.id = e.created_by`

func scanExam(row rowScanner, extra ...any) (model.Exam, error) {
	var e model.Exam
	dest := []any{&e.ID, &e.Title, &e.Description, &e.CreatedBy, &e.CreatorName, &e.IsPublic,
		&e.TotalQuestions, &e.TotalAttempts, &e.CreatedAt}
	err := row.Scan(append(dest, extra...)...)
	return e, err
}

func (s *Store) listExams(ctx context.Context, query string, args ...any) ([]model.Exam, error) {
	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, apperr.Store(err, "list exams")
	}
	defer rows.Close()
	var exams []model.Exam
	for rows.Next() {
		e, err := scanExam(rows)
		if err != nil {
			return nil, apperr.Store(err, "scan exam")
		}
		exams = append(exams, e)
	}
	return exams, rows.Err()
}

// CreateExam stores exam metadata with an empty question set.
func (s *Store) CreateExam(ctx context.Context, e model.Exam) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, s.q(
		`INSERT INTO exams (title, description, created_by, is_public, total_questions, created_at)
		 VALUES (?, ?, ?, ?, 0, ?) RETURNING id`),
		e.Title, e.Description, e.CreatedBy, e.IsPublic, time.Now().UTC(),
	).Scan(&id)
	if err != nil {
		return 0, apperr.Store(err, "create exam")
	}
	slog.Info("created exam", "id", id, "created_by", e.CreatedBy, "public", e.IsPublic)
	return id, nil
}

// GetExam returns an exam by ID.
func (s *Store) GetExam(ctx context.Context, id int64) (model.Exam, error) {
	e, err := scanExam(s.db.QueryRowContext(ctx, s.q(examSelect+` WHERE e.id = ?`), id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Exam{}, apperr.ErrExamNotFound
	}
	if err != nil {
		return model.Exam{}, apperr.Store(err, "get exam %d", id)
	}
	return e, nil
}

// ListExamsByCreator returns the exams created by one examiner.
func (s *Store) ListExamsByCreator(ctx context.Context, creatorID int64) ([]model.Exam, error) {
	return s.listExams(ctx, examSelect+` WHERE e.created_by = ? ORDER BY e.id DESC`, creatorID)
}

// ListAllExams returns every exam, newest first.
func (s *Store) ListAllExams(ctx context.Context) ([]model.Exam, error) {
	return s.listExams(ctx, examSelect+` ORDER BY e.id DESC`)
}

// ListAvailableExams returns public exams plus restricted exams granted to the
// examinee, flagged with whether the examinee already attempted them.
func (s *Store) ListAvailableExams(ctx context.Context, examineeID int64) ([]model.AvailableExam, error) {
	rows, err := s.db.QueryContext(ctx, s.q(
		`SELECT e.id, e.title, e.description, e.created_by, u.name, e.is_public,
			e.total_questions, (SELECT COUNT(*) FROM attempts a WHERE a.exam_id = e.id), e.created_at,
			EXISTS (SELECT 1 FROM attempts a WHERE a.exam_id = e.id AND a.examinee_id = ?)
		 FROM exams e JOIN users u ON u.id = e.created_by
		 WHERE e.is_public = ?
			OR e.id IN (SELECT exam_id FROM exam_visibility WHERE examinee_id = ?)
		 ORDER BY e.id`),
		examineeID, true, examineeID,
	)
	if err != nil {
		return nil, apperr.Store(err, "list available exams")
	}
	defer rows.Close()
	var exams []model.AvailableExam
	for rows.Next() {
		var ae model.AvailableExam
		e, err := scanExam(rows, &ae.Attempted)
		if err != nil {
			return nil, apperr.Store(err, "scan available exam")
		}
		ae.Exam = e
		exams = append(exams, ae)
	}
	return exams, rows.Err()
}

// ExamUpdate carries the editable exam metadata.
type ExamUpdate struct {
	Title       string
	Description string
	IsPublic    bool
}

// UpdateExam edits exam metadata. Only the owner or an admin may edit, and
// only while the exam has no attempts.
func (s *Store) UpdateExam(ctx context.Context, actor model.Principal, examID int64, upd ExamUpdate) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := s.authorizeEditTx(ctx, tx, actor, examID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, s.q(
			`UPDATE exams SET title = ?, description = ?, is_public = ? WHERE id = ?`),
			upd.Title, upd.Description, upd.IsPublic, examID)
		return err
	})
	if err != nil {
		return wrapTxErr(err, "update exam %d", examID)
	}
	slog.Info("updated exam", "id", examID, "by", actor.UserID)
	return nil
}

// ReplaceQuestions swaps the whole question set of an exam and re-derives
// total_questions. It returns the new question count.
func (s *Store) ReplaceQuestions(ctx context.Context, actor model.Principal, examID int64, questions []model.Question) (int, error) {
	for i, q := range questions {
		if err := validateQuestion(q); err != nil {
			return 0, apperr.Invalid("question %d: %s", i+1, err.Message)
		}
	}

	var total int
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := s.authorizeEditTx(ctx, tx, actor, examID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM questions WHERE exam_id = ?`), examID); err != nil {
			return err
		}

		stmt, err := tx.PrepareContext(ctx, s.q(
			`INSERT INTO questions (exam_id, question_text, option_a, option_b, option_c, option_d, correct_option)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`))
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, q := range questions {
			if _, err := stmt.ExecContext(ctx, examID, q.Text, q.OptionA, q.OptionB, q.OptionC, q.OptionD,
				model.NormalizeOption(string(q.CorrectOption))); err != nil {
				return err
			}
		}

		if err := tx.QueryRowContext(ctx, s.q(`SELECT COUNT(*) FROM questions WHERE exam_id = ?`), examID).Scan(&total); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, s.q(`UPDATE exams SET total_questions = ? WHERE id = ?`), total, examID)
		return err
	})
	if err != nil {
		return 0, wrapTxErr(err, "replace questions for exam %d", examID)
	}
	slog.Info("replaced exam questions", "exam_id", examID, "count", total, "by", actor.UserID)
	return total, nil
}

// ListQuestions returns an exam's questions including correct options.
func (s *Store) ListQuestions(ctx context.Context, examID int64) ([]model.Question, error) {
	rows, err := s.db.QueryContext(ctx, s.q(
		`SELECT id, exam_id, question_text, option_a, option_b, option_c, option_d, correct_option
		 FROM questions WHERE exam_id = ? ORDER BY id`), examID)
	if err != nil {
		return nil, apperr.Store(err, "list questions for exam %d", examID)
	}
	defer rows.Close()
	var questions []model.Question
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.ExamID, &q.Text, &q.OptionA, &q.OptionB, &q.OptionC, &q.OptionD, &q.CorrectOption); err != nil {
			return nil, apperr.Store(err, "scan question")
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// ExamineeQuestions returns the questions of an exam the examinee may see,
// with correct options stripped.
func (s *Store) ExamineeQuestions(ctx context.Context, examineeID, examID int64) ([]model.Question, error) {
	exam, err := s.GetExam(ctx, examID)
	if err != nil {
		return nil, err
	}
	if !exam.IsPublic {
		ok, err := s.hasVisibility(ctx, s.db, examID, examineeID)
		if err != nil {
			return nil, apperr.Store(err, "check visibility")
		}
		if !ok {
			return nil, apperr.ErrExamRestricted
		}
	}
	questions, err := s.ListQuestions(ctx, examID)
	if err != nil {
		return nil, err
	}
	for i := range questions {
		questions[i] = questions[i].Public()
	}
	return questions, nil
}

// DeleteExam removes an exam and everything bound to it. Only the owner or an
// admin may delete.
func (s *Store) DeleteExam(ctx context.Context, actor model.Principal, examID int64) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := s.authorizeOwnerTx(ctx, tx, actor, examID); err != nil {
			return err
		}
		return s.deleteExamTx(ctx, tx, examID)
	})
	if err != nil {
		return wrapTxErr(err, "delete exam %d", examID)
	}
	slog.Info("deleted exam", "id", examID, "by", actor.UserID)
	return nil
}

func (s *Store) deleteExamTx(ctx context.Context, tx *sql.Tx, examID int64) error {
	stmts := []string{
		`DELETE FROM attempt_answers WHERE attempt_id IN (SELECT id FROM attempts WHERE exam_id = ?)`,
		`DELETE FROM attempt_deletion_requests WHERE attempt_id IN (SELECT id FROM attempts WHERE exam_id = ?)`,
		`DELETE FROM attempts WHERE exam_id = ?`,
		`DELETE FROM exam_visibility WHERE exam_id = ?`,
		`DELETE FROM questions WHERE exam_id = ?`,
		`DELETE FROM exams WHERE id = ?`,
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, s.q(stmt), examID); err != nil {
			return err
		}
	}
	return nil
}

// GrantVisibility lets the given examinees see a restricted exam.
func (s *Store) GrantVisibility(ctx context.Context, actor model.Principal, examID int64, examineeIDs []int64) error {
	if len(examineeIDs) == 0 {
		return apperr.Invalid("examinee_ids must not be empty")
	}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := s.authorizeOwnerTx(ctx, tx, actor, examID); err != nil {
			return err
		}
		for _, uid := range examineeIDs {
			var role model.UserRole
			err := tx.QueryRowContext(ctx, s.q(`SELECT role FROM users WHERE id = ?`), uid).Scan(&role)
			if errors.Is(err, sql.ErrNoRows) {
				return apperr.ErrUserNotFound.With("user %d not found", uid)
			}
			if err != nil {
				return err
			}
			if role != model.UserRoleExaminee {
				return apperr.Invalid("user %d is not an examinee", uid)
			}
			ok, err := s.hasVisibility(ctx, tx, examID, uid)
			if err != nil {
				return err
			}
			if ok {
				continue
			}
			if _, err := tx.ExecContext(ctx, s.q(
				`INSERT INTO exam_visibility (exam_id, examinee_id) VALUES (?, ?)`), examID, uid); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return wrapTxErr(err, "grant visibility on exam %d", examID)
	}
	slog.Info("granted exam visibility", "exam_id", examID, "examinees", len(examineeIDs))
	return nil
}

// ExamResults returns attempts on exams created by the examiner, newest first.
func (s *Store) ExamResults(ctx context.Context, creatorID int64) ([]model.AttemptSummary, error) {
	return s.listAttemptSummaries(ctx, `WHERE e.created_by = ? ORDER BY a.attempted_at DESC, a.id DESC`, creatorID)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) hasVisibility(ctx context.Context, db queryRower, examID, examineeID int64) (bool, error) {
	var one int
	err := db.QueryRowContext(ctx, s.q(
		`SELECT 1 FROM exam_visibility WHERE exam_id = ? AND examinee_id = ?`), examID, examineeID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// authorizeOwnerTx loads the exam's owner and checks the actor may manage it.
func (s *Store) authorizeOwnerTx(ctx context.Context, tx *sql.Tx, actor model.Principal, examID int64) (int64, error) {
	var owner int64
	err := tx.QueryRowContext(ctx, s.q(`SELECT created_by FROM exams WHERE id = ?`), examID).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, apperr.ErrExamNotFound
	}
	if err != nil {
		return 0, err
	}
	if owner != actor.UserID && actor.Role != model.UserRoleAdmin {
		return 0, apperr.ErrNotOwner
	}
	return owner, nil
}

// authorizeEditTx additionally enforces the no-edits-after-first-attempt rule.
func (s *Store) authorizeEditTx(ctx context.Context, tx *sql.Tx, actor model.Principal, examID int64) error {
	if _, err := s.authorizeOwnerTx(ctx, tx, actor, examID); err != nil {
		return err
	}
	var attempts int
	if err := tx.QueryRowContext(ctx, s.q(`SELECT COUNT(*) FROM attempts WHERE exam_id = ?`), examID).Scan(&attempts); err != nil {
		return err
	}
	if attempts > 0 {
		return apperr.ErrExamLocked
	}
	return nil
}

func validateQuestion(q model.Question) *apperr.Error {
	switch {
	case q.Text == "":
		return apperr.Invalid("question_text is required")
	case q.OptionA == "" || q.OptionB == "" || q.OptionC == "" || q.OptionD == "":
		return apperr.Invalid("all four options are required")
	case model.NormalizeOption(string(q.CorrectOption)) == "":
		return apperr.Invalid("correct_option must be one of A, B, C, D")
	}
	return nil
}
