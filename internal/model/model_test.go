package model

import (
	"context"
	"testing"
)

func TestNormalizeOption(t *testing.T) {
	tests := map[string]Option{
		"A":   OptionA,
		" b ": OptionB,
		"c":   OptionC,
		"D":   OptionD,
		"E":   "",
		"":    "",
		"AB":  "",
	}
	for in, want := range tests {
		if got := NormalizeOption(in); got != want {
			t.Errorf("NormalizeOption(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseReviewAction(t *testing.T) {
	tests := map[string]ReviewAction{
		"approve":  ActionApprove,
		"Approved": ActionApprove,
		"reject":   ActionReject,
		"REJECTED": ActionReject,
		"delete":   "",
	}
	for in, want := range tests {
		if got := ParseReviewAction(in); got != want {
			t.Errorf("ParseReviewAction(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestQuestionPublic(t *testing.T) {
	q := Question{ID: 1, Text: "t", CorrectOption: OptionB}
	if p := q.Public(); p.CorrectOption != "" || p.Text != "t" {
		t.Errorf("unexpected public question: %+v", p)
	}
	if q.CorrectOption != OptionB {
		t.Error("Public modified the receiver")
	}
}

func TestPrincipalContext(t *testing.T) {
	if _, ok := PrincipalFromContext(context.Background()); ok {
		t.Error("expected no principal")
	}
	ctx := ContextWithPrincipal(context.Background(), Principal{UserID: 4, Role: UserRoleExaminer})
	p, ok := PrincipalFromContext(ctx)
	if !ok || p.UserID != 4 || !p.Role.Valid() {
		t.Errorf("unexpected principal: %+v %v", p, ok)
	}
	if UserRole("root").Valid() {
		t.Error("unknown role reported valid")
	}
}
