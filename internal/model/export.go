package model

import "time"

// ExamExport is the top-level JSON structure for exam result export.
type ExamExport struct {
	Exam       Exam            `json:"exam"`
	Questions  []Question      `json:"questions"`
	ExportedAt time.Time       `json:"exported_at"`
	Results    []StudentResult `json:"results"`
}

// StudentResult holds one examinee's attempt for export.
type StudentResult struct {
	AttemptID   int64          `json:"attempt_id"`
	ExamineeID  int64          `json:"examinee_id"`
	Name        string         `json:"name"`
	Email       string         `json:"email"`
	Score       int            `json:"score"`
	AttemptedAt time.Time      `json:"attempted_at"`
	Answers     []AnswerResult `json:"answers"`
}

// AnswerResult holds per-question data for export.
type AnswerResult struct {
	QuestionID     int64  `json:"question_id"`
	SelectedOption Option `json:"selected_option"`
	IsCorrect      bool   `json:"is_correct"`
}
