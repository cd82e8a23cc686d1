package model

import (
	"context"
	"strings"
	"time"
)

// UserRole represents a user's access level.
type UserRole string

const (
	// UserRoleAdmin manages accounts and reviews deletion requests.
	UserRoleAdmin UserRole = "admin"
	// UserRoleExaminer authors exams and views their results.
	UserRoleExaminer UserRole = "examiner"
	// UserRoleExaminee takes exams and views their own attempts.
	UserRoleExaminee UserRole = "examinee"
)

// Valid reports whether r is one of the known roles.
func (r UserRole) Valid() bool {
	switch r {
	case UserRoleAdmin, UserRoleExaminer, UserRoleExaminee:
		return true
	}
	return false
}

// User represents a system user.
type User struct {
	ID           int64     `json:"user_id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         UserRole  `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// Principal is the verified identity carried by a bearer token.
type Principal struct {
	UserID int64
	Role   UserRole
}

type principalCtxKey struct{}

// ContextWithPrincipal stores the authenticated principal in the request context.
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalCtxKey{}, p)
}

// PrincipalFromContext retrieves the authenticated principal from context.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalCtxKey{}).(Principal)
	return p, ok
}

// Option is one of the four answer letters of a multiple-choice question.
type Option string

const (
	OptionA Option = "A"
	OptionB Option = "B"
	OptionC Option = "C"
	OptionD Option = "D"
)

// NormalizeOption upper-cases and trims s. It returns "" when s is not A-D.
func NormalizeOption(s string) Option {
	o := Option(strings.ToUpper(strings.TrimSpace(s)))
	switch o {
	case OptionA, OptionB, OptionC, OptionD:
		return o
	}
	return ""
}

// Exam holds exam metadata. TotalQuestions is kept in sync with the question set.
type Exam struct {
	ID             int64     `json:"exam_id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	CreatedBy      int64     `json:"created_by"`
	CreatorName    string    `json:"creator_name,omitempty"`
	IsPublic       bool      `json:"is_public"`
	TotalQuestions int       `json:"total_questions"`
	TotalAttempts  int       `json:"total_attempts"`
	CreatedAt      time.Time `json:"created_at"`
}

// Question is a four-option multiple-choice question bound to one exam.
type Question struct {
	ID            int64  `json:"question_id"`
	ExamID        int64  `json:"exam_id"`
	Text          string `json:"question_text"`
	OptionA       string `json:"option_a"`
	OptionB       string `json:"option_b"`
	OptionC       string `json:"option_c"`
	OptionD       string `json:"option_d"`
	CorrectOption Option `json:"correct_option,omitempty"`
}

// Public returns a copy of q with the correct option removed.
func (q Question) Public() Question {
	q.CorrectOption = ""
	return q
}

// Attempt is one scored submission of an examinee against an exam.
type Attempt struct {
	ID          int64     `json:"attempt_id"`
	ExamID      int64     `json:"exam_id"`
	ExamineeID  int64     `json:"examinee_id"`
	Score       int       `json:"score"`
	AttemptedAt time.Time `json:"attempted_at"`
}

// AttemptAnswer records one submitted answer and whether it was correct.
type AttemptAnswer struct {
	ID             int64  `json:"answer_id"`
	AttemptID      int64  `json:"attempt_id"`
	QuestionID     int64  `json:"question_id"`
	SelectedOption Option `json:"selected_option"`
	IsCorrect      bool   `json:"is_correct"`
}

// SubmittedAnswer is a single (question, option) pair sent by an examinee.
type SubmittedAnswer struct {
	QuestionID     int64
	SelectedOption Option
}

// SubmitResult is returned by a successful submission.
type SubmitResult struct {
	AttemptID int64 `json:"attempt_id"`
	Score     int   `json:"score"`
}

// AttemptSummary is an attempt joined with exam and examinee details.
type AttemptSummary struct {
	AttemptID      int64     `json:"attempt_id"`
	ExamID         int64     `json:"exam_id"`
	Title          string    `json:"title"`
	ExamineeID     int64     `json:"examinee_id"`
	StudentName    string    `json:"student_name"`
	Score          int       `json:"score"`
	TotalQuestions int       `json:"total_questions"`
	AttemptedAt    time.Time `json:"attempted_at"`
}

// RequestStatus is the state of an attempt deletion request.
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestRejected RequestStatus = "rejected"
)

// ReviewAction is an admin's decision on a deletion request.
type ReviewAction string

const (
	ActionApprove ReviewAction = "approve"
	ActionReject  ReviewAction = "reject"
)

// ParseReviewAction accepts both verb and past-tense forms.
// It returns "" for anything else.
func ParseReviewAction(s string) ReviewAction {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "approve", "approved":
		return ActionApprove
	case "reject", "rejected":
		return ActionReject
	}
	return ""
}

// DeletionRequest is an examinee's request to remove one of their attempts.
type DeletionRequest struct {
	ID            int64         `json:"request_id"`
	AttemptID     int64         `json:"attempt_id"`
	RequestedBy   int64         `json:"requested_by"`
	RequesterName string        `json:"requester_name,omitempty"`
	ExamTitle     string        `json:"exam_title,omitempty"`
	Reason        string        `json:"request_reason"`
	Status        RequestStatus `json:"status"`
	RequestedAt   time.Time     `json:"requested_at"`
	ReviewedBy    *int64        `json:"reviewed_by,omitempty"`
	ReviewedAt    *time.Time    `json:"reviewed_at,omitempty"`
}

// AvailableExam is an exam listed for an examinee.
type AvailableExam struct {
	Exam
	Attempted bool `json:"attempted"`
}

// QuestionPolicy controls how submissions referencing questions outside the
// exam are handled.
type QuestionPolicy string

const (
	// PolicyReject fails the submission with InvalidInput.
	PolicyReject QuestionPolicy = "reject"
	// PolicyScore records the answer and scores it as incorrect.
	PolicyScore QuestionPolicy = "score"
)
