package store

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/pavelanni/examportal/internal/apperr"
	"github.com/pavelanni/examportal/internal/model"
)

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	s, err := New(context.Background(), DriverSQLite, ":memory:", opts...)
	if err != nil {
		t.Fatalf("newTestStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func createTestUser(t *testing.T, s *Store, email string, role model.UserRole) int64 {
	t.Helper()
	id, err := s.CreateUser(context.Background(), model.User{
		Name:         "user " + email,
		Email:        email,
		PasswordHash: "hash",
		Role:         role,
	})
	if err != nil {
		t.Fatalf("createTestUser: %v", err)
	}
	return id
}

// countRows returns SELECT COUNT(*) over from, which may carry a WHERE clause.
func countRows(t *testing.T, s *Store, from string, args ...any) int {
	t.Helper()
	var n int
	if err := s.db.QueryRow(s.q("SELECT COUNT(*) FROM "+from), args...).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", from, err)
	}
	return n
}

// createTestExam creates an exam with three questions whose correct
// options are A, B and C.
func createTestExam(t *testing.T, s *Store, owner int64, public bool) (int64, []int64) {
	t.Helper()
	ctx := context.Background()
	examID, err := s.CreateExam(ctx, model.Exam{Title: "Go basics", CreatedBy: owner, IsPublic: public})
	if err != nil {
		t.Fatalf("CreateExam: %v", err)
	}
	actor := model.Principal{UserID: owner, Role: model.UserRoleExaminer}
	var qs []model.Question
	for _, c := range []model.Option{"A", "B", "c"} {
		qs = append(qs, model.Question{
			Text: "question " + string(c), OptionA: "a", OptionB: "b", OptionC: "c", OptionD: "d",
			CorrectOption: c,
		})
	}
	n, err := s.ReplaceQuestions(ctx, actor, examID, qs)
	if err != nil {
		t.Fatalf("ReplaceQuestions: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 questions, got %d", n)
	}
	stored, err := s.ListQuestions(ctx, examID)
	if err != nil {
		t.Fatalf("ListQuestions: %v", err)
	}
	ids := make([]int64, len(stored))
	for i, q := range stored {
		ids[i] = q.ID
	}
	return examID, ids
}

func TestUserCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	count, err := s.UserCount(ctx)
	if err != nil {
		t.Fatalf("UserCount: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 users, got %d", count)
	}

	id := createTestUser(t, s, "Alice@Example.com", model.UserRoleExaminee)

	u, err := s.GetUserByEmail(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if u == nil || u.ID != id {
		t.Fatalf("expected user %d, got %+v", id, u)
	}
	if u.Email != "alice@example.com" {
		t.Errorf("expected lower-cased email, got %q", u.Email)
	}

	missing, err := s.GetUserByID(ctx, 9999)
	if err != nil {
		t.Fatalf("GetUserByID: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for missing user, got %+v", missing)
	}

	// Duplicate email.
	_, err = s.CreateUser(ctx, model.User{Name: "dup", Email: "ALICE@example.com", PasswordHash: "x", Role: model.UserRoleExaminee})
	if !errors.Is(err, apperr.ErrEmailTaken) {
		t.Errorf("expected ErrEmailTaken, got %v", err)
	}

	if err := s.UpdateUser(ctx, id, UserUpdate{Name: "Alice", Email: "alice@example.com", Role: model.UserRoleExaminer}); err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}
	u, _ = s.GetUserByID(ctx, id)
	if u.Role != model.UserRoleExaminer || u.Name != "Alice" {
		t.Errorf("update not applied: %+v", u)
	}
	if u.PasswordHash != "hash" {
		t.Errorf("empty password hash should keep the old one, got %q", u.PasswordHash)
	}

	err = s.UpdateUser(ctx, 9999, UserUpdate{Name: "x", Email: "x@example.com", Role: model.UserRoleExaminee})
	if !errors.Is(err, apperr.ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}

	users, err := s.ListUsers(ctx)
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(users) != 1 {
		t.Errorf("expected 1 user, got %d", len(users))
	}

	if err := s.DeleteUser(ctx, id); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}
	if err := s.DeleteUser(ctx, id); !errors.Is(err, apperr.ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound on second delete, got %v", err)
	}
}

func TestSubmitAttemptScoring(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	examiner := createTestUser(t, s, "examiner@example.com", model.UserRoleExaminer)
	student := createTestUser(t, s, "student@example.com", model.UserRoleExaminee)
	examID, q := createTestExam(t, s, examiner, true)

	res, err := s.SubmitAttempt(ctx, examID, student, []model.SubmittedAnswer{
		{QuestionID: q[0], SelectedOption: "A"},
		{QuestionID: q[1], SelectedOption: "C"},
		{QuestionID: q[2], SelectedOption: "c"},
	})
	if err != nil {
		t.Fatalf("SubmitAttempt: %v", err)
	}
	if res.Score != 2 {
		t.Errorf("expected score 2, got %d", res.Score)
	}

	attempt, err := s.GetAttempt(ctx, res.AttemptID)
	if err != nil {
		t.Fatalf("GetAttempt: %v", err)
	}
	if attempt.Score != 2 || attempt.ExamID != examID || attempt.ExamineeID != student {
		t.Errorf("unexpected attempt: %+v", attempt)
	}

	answers, err := s.GetAttemptAnswers(ctx, res.AttemptID)
	if err != nil {
		t.Fatalf("GetAttemptAnswers: %v", err)
	}
	want := []bool{true, false, true}
	if len(answers) != len(want) {
		t.Fatalf("expected %d answers, got %d", len(want), len(answers))
	}
	for i, a := range answers {
		if a.IsCorrect != want[i] {
			t.Errorf("answer %d: expected correct=%v, got %v", i, want[i], a.IsCorrect)
		}
	}
	if answers[2].SelectedOption != "C" {
		t.Errorf("expected stored option to be upper-cased, got %q", answers[2].SelectedOption)
	}

	// The correct count equals the score.
	correct := 0
	for _, a := range answers {
		if a.IsCorrect {
			correct++
		}
	}
	if correct != attempt.Score {
		t.Errorf("score %d does not match %d correct answers", attempt.Score, correct)
	}
}

func TestSubmitAttemptOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	examiner := createTestUser(t, s, "examiner@example.com", model.UserRoleExaminer)
	student := createTestUser(t, s, "student@example.com", model.UserRoleExaminee)
	examID, q := createTestExam(t, s, examiner, true)

	answers := []model.SubmittedAnswer{{QuestionID: q[0], SelectedOption: "A"}}
	if _, err := s.SubmitAttempt(ctx, examID, student, answers); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	_, err := s.SubmitAttempt(ctx, examID, student, answers)
	if !errors.Is(err, apperr.ErrAlreadyAttempted) {
		t.Fatalf("expected ErrAlreadyAttempted, got %v", err)
	}
	if apperr.KindOf(err) != apperr.Forbidden {
		t.Errorf("expected Forbidden kind, got %v", apperr.KindOf(err))
	}

	if n := countRows(t, s, "attempts WHERE exam_id = ? AND examinee_id = ?", examID, student); n != 1 {
		t.Errorf("expected 1 attempt, got %d", n)
	}

	exams, err := s.ListAvailableExams(ctx, student)
	if err != nil {
		t.Fatalf("ListAvailableExams: %v", err)
	}
	if len(exams) != 1 || !exams[0].Attempted {
		t.Errorf("expected exam flagged as attempted, got %+v", exams)
	}
}

func TestSubmitAttemptConcurrent(t *testing.T) {
	ctx := context.Background()
	s, err := New(ctx, DriverSQLite, filepath.Join(t.TempDir(), "concurrent.db"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	examiner := createTestUser(t, s, "examiner@example.com", model.UserRoleExaminer)
	student := createTestUser(t, s, "student@example.com", model.UserRoleExaminee)
	examID, q := createTestExam(t, s, examiner, true)
	answers := []model.SubmittedAnswer{{QuestionID: q[0], SelectedOption: "A"}}

	const workers = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok       int
		rejected int
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.SubmitAttempt(ctx, examID, student, answers)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, apperr.ErrAlreadyAttempted):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if ok != 1 || rejected != workers-1 {
		t.Errorf("expected 1 success and %d rejections, got %d and %d", workers-1, ok, rejected)
	}
	if n := countRows(t, s, "attempts WHERE exam_id = ? AND examinee_id = ?", examID, student); n != 1 {
		t.Errorf("expected 1 attempt, got %d", n)
	}
}

func TestSubmitAttemptValidation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	examiner := createTestUser(t, s, "examiner@example.com", model.UserRoleExaminer)
	student := createTestUser(t, s, "student@example.com", model.UserRoleExaminee)
	examID, q := createTestExam(t, s, examiner, true)
	_, other := createTestExam(t, s, examiner, true)

	tests := []struct {
		name    string
		examID  int64
		answers []model.SubmittedAnswer
		want    error
	}{
		{"empty answers", examID, nil, nil},
		{"bad option", examID, []model.SubmittedAnswer{{QuestionID: q[0], SelectedOption: "E"}}, nil},
		{"duplicate question", examID, []model.SubmittedAnswer{
			{QuestionID: q[0], SelectedOption: "A"}, {QuestionID: q[0], SelectedOption: "B"},
		}, nil},
		{"foreign question", examID, []model.SubmittedAnswer{{QuestionID: other[0], SelectedOption: "A"}}, nil},
		{"unknown exam", 9999, []model.SubmittedAnswer{{QuestionID: q[0], SelectedOption: "A"}}, apperr.ErrExamNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.SubmitAttempt(ctx, tt.examID, student, tt.answers)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.want != nil {
				if !errors.Is(err, tt.want) {
					t.Errorf("expected %v, got %v", tt.want, err)
				}
			} else if apperr.KindOf(err) != apperr.InvalidInput {
				t.Errorf("expected InvalidInput, got %v (%v)", apperr.KindOf(err), err)
			}
		})
	}

	// Nothing was persisted by the failed submissions.
	if n := countRows(t, s, "attempts WHERE exam_id = ? AND examinee_id = ?", examID, student); n != 0 {
		t.Errorf("expected 0 attempts, got %d", n)
	}
}

func TestSubmitAttemptRollsBack(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	examiner := createTestUser(t, s, "examiner@example.com", model.UserRoleExaminer)
	student := createTestUser(t, s, "student@example.com", model.UserRoleExaminee)
	examID, q := createTestExam(t, s, examiner, true)

	// Fail the second answer insert, after the attempt row and the first
	// answer have been written.
	_, err := s.db.Exec(`CREATE TRIGGER fail_answer BEFORE INSERT ON attempt_answers
		WHEN NEW.selected_option = 'C'
		BEGIN SELECT RAISE(ABORT, 'answer rejected'); END`)
	if err != nil {
		t.Fatalf("create trigger: %v", err)
	}

	_, err = s.SubmitAttempt(ctx, examID, student, []model.SubmittedAnswer{
		{QuestionID: q[0], SelectedOption: "A"},
		{QuestionID: q[1], SelectedOption: "C"},
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if apperr.KindOf(err) != apperr.StoreFailure {
		t.Errorf("expected StoreFailure, got %v (%v)", apperr.KindOf(err), err)
	}
	if n := countRows(t, s, "attempts"); n != 0 {
		t.Errorf("expected 0 attempts after rollback, got %d", n)
	}
	if n := countRows(t, s, "attempt_answers"); n != 0 {
		t.Errorf("expected 0 answers after rollback, got %d", n)
	}

	// The examinee can still submit once the failure is gone.
	if _, err := s.db.Exec(`DROP TRIGGER fail_answer`); err != nil {
		t.Fatalf("drop trigger: %v", err)
	}
	if _, err := s.SubmitAttempt(ctx, examID, student, []model.SubmittedAnswer{{QuestionID: q[1], SelectedOption: "C"}}); err != nil {
		t.Fatalf("retry submit: %v", err)
	}
}

func TestDeleteAttempt(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	examiner := createTestUser(t, s, "examiner@example.com", model.UserRoleExaminer)
	student := createTestUser(t, s, "student@example.com", model.UserRoleExaminee)
	examID, q := createTestExam(t, s, examiner, true)

	res, err := s.SubmitAttempt(ctx, examID, student, []model.SubmittedAnswer{
		{QuestionID: q[0], SelectedOption: "A"},
		{QuestionID: q[1], SelectedOption: "B"},
	})
	if err != nil {
		t.Fatalf("SubmitAttempt: %v", err)
	}
	if _, err := s.RequestDeletion(ctx, res.AttemptID, student, "retake"); err != nil {
		t.Fatalf("RequestDeletion: %v", err)
	}

	if err := s.DeleteAttempt(ctx, res.AttemptID); err != nil {
		t.Fatalf("DeleteAttempt: %v", err)
	}
	if _, err := s.GetAttempt(ctx, res.AttemptID); !errors.Is(err, apperr.ErrAttemptNotFound) {
		t.Errorf("expected ErrAttemptNotFound, got %v", err)
	}
	if n := countRows(t, s, "attempt_answers WHERE attempt_id = ?", res.AttemptID); n != 0 {
		t.Errorf("expected answers removed, got %d", n)
	}
	if n := countRows(t, s, "attempt_deletion_requests WHERE attempt_id = ?", res.AttemptID); n != 0 {
		t.Errorf("expected requests removed, got %d", n)
	}
	if err := s.DeleteAttempt(ctx, res.AttemptID); !errors.Is(err, apperr.ErrAttemptNotFound) {
		t.Errorf("second delete: expected ErrAttemptNotFound, got %v", err)
	}

	// The slot is free again.
	if _, err := s.SubmitAttempt(ctx, examID, student, []model.SubmittedAnswer{{QuestionID: q[0], SelectedOption: "A"}}); err != nil {
		t.Errorf("resubmit after delete: %v", err)
	}
}

func TestSubmitAttemptScorePolicy(t *testing.T) {
	s := newTestStore(t, WithQuestionPolicy(model.PolicyScore))
	ctx := context.Background()
	examiner := createTestUser(t, s, "examiner@example.com", model.UserRoleExaminer)
	student := createTestUser(t, s, "student@example.com", model.UserRoleExaminee)
	examID, q := createTestExam(t, s, examiner, true)
	_, other := createTestExam(t, s, examiner, true)

	res, err := s.SubmitAttempt(ctx, examID, student, []model.SubmittedAnswer{
		{QuestionID: q[0], SelectedOption: "A"},
		{QuestionID: other[0], SelectedOption: "A"},
	})
	if err != nil {
		t.Fatalf("SubmitAttempt: %v", err)
	}
	if res.Score != 1 {
		t.Errorf("expected score 1, got %d", res.Score)
	}
	answers, _ := s.GetAttemptAnswers(ctx, res.AttemptID)
	if len(answers) != 2 || answers[1].IsCorrect {
		t.Errorf("expected foreign answer recorded as incorrect, got %+v", answers)
	}
}

func TestRestrictedExamVisibility(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	examiner := createTestUser(t, s, "examiner@example.com", model.UserRoleExaminer)
	student := createTestUser(t, s, "student@example.com", model.UserRoleExaminee)
	examID, q := createTestExam(t, s, examiner, false)
	actor := model.Principal{UserID: examiner, Role: model.UserRoleExaminer}

	exams, _ := s.ListAvailableExams(ctx, student)
	if len(exams) != 0 {
		t.Fatalf("restricted exam should be hidden, got %d", len(exams))
	}
	if _, err := s.ExamineeQuestions(ctx, student, examID); !errors.Is(err, apperr.ErrExamRestricted) {
		t.Errorf("expected ErrExamRestricted, got %v", err)
	}
	answers := []model.SubmittedAnswer{{QuestionID: q[0], SelectedOption: "A"}}
	if _, err := s.SubmitAttempt(ctx, examID, student, answers); !errors.Is(err, apperr.ErrExamRestricted) {
		t.Errorf("expected ErrExamRestricted on submit, got %v", err)
	}

	if err := s.GrantVisibility(ctx, actor, examID, []int64{examiner}); apperr.KindOf(err) != apperr.InvalidInput {
		t.Errorf("granting to an examiner should be invalid, got %v", err)
	}
	if err := s.GrantVisibility(ctx, actor, examID, []int64{student}); err != nil {
		t.Fatalf("GrantVisibility: %v", err)
	}
	// Granting twice is a no-op.
	if err := s.GrantVisibility(ctx, actor, examID, []int64{student}); err != nil {
		t.Fatalf("GrantVisibility again: %v", err)
	}

	exams, _ = s.ListAvailableExams(ctx, student)
	if len(exams) != 1 {
		t.Fatalf("expected granted exam listed, got %d", len(exams))
	}
	qs, err := s.ExamineeQuestions(ctx, student, examID)
	if err != nil {
		t.Fatalf("ExamineeQuestions: %v", err)
	}
	for _, q := range qs {
		if q.CorrectOption != "" {
			t.Errorf("question %d leaks its correct option", q.ID)
		}
	}
}

func TestExamLockAndOwnership(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	owner := createTestUser(t, s, "owner@example.com", model.UserRoleExaminer)
	intruder := createTestUser(t, s, "other@example.com", model.UserRoleExaminer)
	student := createTestUser(t, s, "student@example.com", model.UserRoleExaminee)
	examID, q := createTestExam(t, s, owner, true)

	ownerActor := model.Principal{UserID: owner, Role: model.UserRoleExaminer}
	intruderActor := model.Principal{UserID: intruder, Role: model.UserRoleExaminer}

	err := s.UpdateExam(ctx, intruderActor, examID, ExamUpdate{Title: "mine"})
	if !errors.Is(err, apperr.ErrNotOwner) {
		t.Errorf("expected ErrNotOwner, got %v", err)
	}
	if err := s.UpdateExam(ctx, ownerActor, examID, ExamUpdate{Title: "Renamed", IsPublic: true}); err != nil {
		t.Fatalf("UpdateExam: %v", err)
	}

	bad := []model.Question{{Text: "q", OptionA: "a", OptionB: "b", OptionC: "c", OptionD: "d", CorrectOption: "E"}}
	if _, err := s.ReplaceQuestions(ctx, ownerActor, examID, bad); apperr.KindOf(err) != apperr.InvalidInput {
		t.Errorf("expected InvalidInput for bad option, got %v", err)
	}

	if _, err := s.SubmitAttempt(ctx, examID, student, []model.SubmittedAnswer{{QuestionID: q[0], SelectedOption: "A"}}); err != nil {
		t.Fatalf("SubmitAttempt: %v", err)
	}

	err = s.UpdateExam(ctx, ownerActor, examID, ExamUpdate{Title: "late"})
	if !errors.Is(err, apperr.ErrExamLocked) {
		t.Errorf("expected ErrExamLocked, got %v", err)
	}
	good := []model.Question{{Text: "q", OptionA: "a", OptionB: "b", OptionC: "c", OptionD: "d", CorrectOption: "A"}}
	if _, err := s.ReplaceQuestions(ctx, ownerActor, examID, good); !errors.Is(err, apperr.ErrExamLocked) {
		t.Errorf("expected ErrExamLocked on replace, got %v", err)
	}

	exam, err := s.GetExam(ctx, examID)
	if err != nil {
		t.Fatalf("GetExam: %v", err)
	}
	if exam.Title != "Renamed" || exam.TotalQuestions != 3 || exam.TotalAttempts != 1 {
		t.Errorf("unexpected exam: %+v", exam)
	}

	results, err := s.ExamResults(ctx, owner)
	if err != nil {
		t.Fatalf("ExamResults: %v", err)
	}
	if len(results) != 1 || results[0].Score != 1 || results[0].TotalQuestions != 3 {
		t.Errorf("unexpected results: %+v", results)
	}
}

func TestDeleteExamCascade(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	owner := createTestUser(t, s, "owner@example.com", model.UserRoleExaminer)
	student := createTestUser(t, s, "student@example.com", model.UserRoleExaminee)
	examID, q := createTestExam(t, s, owner, true)

	res, err := s.SubmitAttempt(ctx, examID, student, []model.SubmittedAnswer{{QuestionID: q[0], SelectedOption: "A"}})
	if err != nil {
		t.Fatalf("SubmitAttempt: %v", err)
	}
	if _, err := s.RequestDeletion(ctx, res.AttemptID, student, "wrong exam"); err != nil {
		t.Fatalf("RequestDeletion: %v", err)
	}

	admin := model.Principal{UserID: 0, Role: model.UserRoleAdmin}
	if err := s.DeleteExam(ctx, admin, examID); err != nil {
		t.Fatalf("DeleteExam: %v", err)
	}
	if _, err := s.GetExam(ctx, examID); !errors.Is(err, apperr.ErrExamNotFound) {
		t.Errorf("expected ErrExamNotFound, got %v", err)
	}
	if _, err := s.GetAttempt(ctx, res.AttemptID); !errors.Is(err, apperr.ErrAttemptNotFound) {
		t.Errorf("expected attempt removed, got %v", err)
	}
	answers, _ := s.GetAttemptAnswers(ctx, res.AttemptID)
	if len(answers) != 0 {
		t.Errorf("expected answers removed, got %d", len(answers))
	}
	reqs, _ := s.ListDeletionRequests(ctx)
	if len(reqs) != 0 {
		t.Errorf("expected requests removed, got %d", len(reqs))
	}
}

func TestDeletionRequestWorkflow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	examiner := createTestUser(t, s, "examiner@example.com", model.UserRoleExaminer)
	student := createTestUser(t, s, "student@example.com", model.UserRoleExaminee)
	other := createTestUser(t, s, "other@example.com", model.UserRoleExaminee)
	admin := createTestUser(t, s, "admin@example.com", model.UserRoleAdmin)
	examID, q := createTestExam(t, s, examiner, true)

	res, err := s.SubmitAttempt(ctx, examID, student, []model.SubmittedAnswer{{QuestionID: q[0], SelectedOption: "A"}})
	if err != nil {
		t.Fatalf("SubmitAttempt: %v", err)
	}

	if _, err := s.RequestDeletion(ctx, res.AttemptID, student, "  "); apperr.KindOf(err) != apperr.InvalidInput {
		t.Errorf("expected InvalidInput for blank reason, got %v", err)
	}
	if _, err := s.RequestDeletion(ctx, res.AttemptID, other, "not mine"); !errors.Is(err, apperr.ErrNotOwner) {
		t.Errorf("expected ErrNotOwner, got %v", err)
	}
	if _, err := s.RequestDeletion(ctx, 9999, student, "gone"); !errors.Is(err, apperr.ErrAttemptNotFound) {
		t.Errorf("expected ErrAttemptNotFound, got %v", err)
	}

	first, err := s.RequestDeletion(ctx, res.AttemptID, student, "took the wrong exam")
	if err != nil {
		t.Fatalf("RequestDeletion: %v", err)
	}
	if _, err := s.RequestDeletion(ctx, res.AttemptID, student, "again"); !errors.Is(err, apperr.ErrDuplicateRequest) {
		t.Errorf("expected ErrDuplicateRequest, got %v", err)
	}

	// Reject, then a new request may be filed.
	if err := s.ReviewDeletion(ctx, first, admin, model.ActionReject); err != nil {
		t.Fatalf("ReviewDeletion reject: %v", err)
	}
	r, err := s.GetDeletionRequest(ctx, first)
	if err != nil {
		t.Fatalf("GetDeletionRequest: %v", err)
	}
	if r.Status != model.RequestRejected || r.ReviewedBy == nil || *r.ReviewedBy != admin || r.ReviewedAt == nil {
		t.Errorf("unexpected rejected request: %+v", r)
	}
	if _, err := s.GetAttempt(ctx, res.AttemptID); err != nil {
		t.Errorf("rejection must keep the attempt: %v", err)
	}
	if err := s.ReviewDeletion(ctx, first, admin, model.ActionApprove); !errors.Is(err, apperr.ErrNotPending) {
		t.Errorf("expected ErrNotPending, got %v", err)
	}

	second, err := s.RequestDeletion(ctx, res.AttemptID, student, "please remove")
	if err != nil {
		t.Fatalf("second RequestDeletion: %v", err)
	}
	reqs, err := s.ListDeletionRequests(ctx)
	if err != nil {
		t.Fatalf("ListDeletionRequests: %v", err)
	}
	if len(reqs) != 2 || reqs[0].ID != second || reqs[0].ExamTitle != "Go basics" {
		t.Errorf("expected pending request first, got %+v", reqs)
	}

	if err := s.ReviewDeletion(ctx, second, admin, model.ActionApprove); err != nil {
		t.Fatalf("ReviewDeletion approve: %v", err)
	}
	if _, err := s.GetAttempt(ctx, res.AttemptID); !errors.Is(err, apperr.ErrAttemptNotFound) {
		t.Errorf("expected attempt deleted, got %v", err)
	}
	answers, _ := s.GetAttemptAnswers(ctx, res.AttemptID)
	if len(answers) != 0 {
		t.Errorf("expected answers deleted, got %d", len(answers))
	}
	if err := s.ReviewDeletion(ctx, second, admin, model.ActionReject); !errors.Is(err, apperr.ErrNotPending) {
		t.Errorf("expected ErrNotPending after approval, got %v", err)
	}
	if err := s.ReviewDeletion(ctx, 9999, admin, model.ActionReject); !errors.Is(err, apperr.ErrRequestNotFound) {
		t.Errorf("expected ErrRequestNotFound, got %v", err)
	}

	// The examinee may retake once the attempt is gone.
	if _, err := s.SubmitAttempt(ctx, examID, student, []model.SubmittedAnswer{{QuestionID: q[1], SelectedOption: "B"}}); err != nil {
		t.Errorf("retake after approval: %v", err)
	}
}

func TestExportExam(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	examiner := createTestUser(t, s, "examiner@example.com", model.UserRoleExaminer)
	student := createTestUser(t, s, "student@example.com", model.UserRoleExaminee)
	examID, q := createTestExam(t, s, examiner, true)

	if _, err := s.SubmitAttempt(ctx, examID, student, []model.SubmittedAnswer{
		{QuestionID: q[0], SelectedOption: "A"},
		{QuestionID: q[1], SelectedOption: "A"},
	}); err != nil {
		t.Fatalf("SubmitAttempt: %v", err)
	}

	exp, err := s.ExportExam(ctx, examID)
	if err != nil {
		t.Fatalf("ExportExam: %v", err)
	}
	if exp.Exam.ID != examID || len(exp.Questions) != 3 {
		t.Errorf("unexpected export header: %+v", exp.Exam)
	}
	if len(exp.Results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(exp.Results))
	}
	r := exp.Results[0]
	if r.Email != "student@example.com" || r.Score != 1 || len(r.Answers) != 2 {
		t.Errorf("unexpected result: %+v", r)
	}

	if _, err := s.ExportExam(ctx, 9999); !errors.Is(err, apperr.ErrExamNotFound) {
		t.Errorf("expected ErrExamNotFound, got %v", err)
	}
}

func TestRebind(t *testing.T) {
	pg := &Store{driver: DriverPostgres}
	got := pg.q(`SELECT * FROM t WHERE a = ? AND b = ?`)
	if got != `SELECT * FROM t WHERE a = $1 AND b = $2` {
		t.Errorf("unexpected rebind: %q", got)
	}
	lite := &Store{driver: DriverSQLite}
	if q := lite.q(`a = ?`); q != `a = ?` {
		t.Errorf("sqlite query should be unchanged, got %q", q)
	}
}
