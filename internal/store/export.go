package store

import (
	"context"
	"fmt"
	"time"

	"github.com/pavelanni/examportal/internal/apperr"
	"github.com/pavelanni/examportal/internal/model"
)

// ExportExam builds an export-ready snapshot of one exam: its questions with
// correct options plus every attempt and its answers.
func (s *Store) ExportExam(ctx context.Context, examID int64) (model.ExamExport, error) {
	exam, err := s.GetExam(ctx, examID)
	if err != nil {
		return model.ExamExport{}, err
	}
	questions, err := s.ListQuestions(ctx, examID)
	if err != nil {
		return model.ExamExport{}, err
	}

	rows, err := s.db.QueryContext(ctx, s.q(
		`SELECT a.id, a.examinee_id, u.name, u.email, a.score, a.attempted_at
		 FROM attempts a JOIN users u ON u.id = a.examinee_id
		 WHERE a.exam_id = ? ORDER BY a.attempted_at, a.id`), examID)
	if err != nil {
		return model.ExamExport{}, apperr.Store(err, "list attempts for export")
	}
	var results []model.StudentResult
	for rows.Next() {
		var r model.StudentResult
		if err := rows.Scan(&r.AttemptID, &r.ExamineeID, &r.Name, &r.Email, &r.Score, &r.AttemptedAt); err != nil {
			rows.Close()
			return model.ExamExport{}, apperr.Store(err, "scan export attempt")
		}
		results = append(results, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return model.ExamExport{}, apperr.Store(err, "list attempts for export")
	}

	// Answers are loaded after the cursor is closed; SQLite runs on one connection.
	for i := range results {
		answers, err := s.GetAttemptAnswers(ctx, results[i].AttemptID)
		if err != nil {
			return model.ExamExport{}, fmt.Errorf("answers for attempt %d: %w", results[i].AttemptID, err)
		}
		for _, a := range answers {
			results[i].Answers = append(results[i].Answers, model.AnswerResult{
				QuestionID:     a.QuestionID,
				SelectedOption: a.SelectedOption,
				IsCorrect:      a.IsCorrect,
			})
		}
	}

	return model.ExamExport{
		Exam:       exam,
		Questions:  questions,
		ExportedAt: time.Now().UTC(),
		Results:    results,
	}, nil
}
