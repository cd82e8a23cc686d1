package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pavelanni/examportal/internal/model"
)

// ParseError reports a model reply that could not be turned into questions.
type ParseError struct {
	Raw    string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return "parse generated questions: " + e.Reason + ": " + e.Err.Error()
	}
	return "parse generated questions: " + e.Reason
}

func (e *ParseError) Unwrap() error { return e.Err }

// draft accepts both the camelCase shape the prompt asks for and the
// snake_case shape of the question API.
type draft struct {
	QuestionText  string `json:"questionText"`
	QuestionTextS string `json:"question_text"`
	OptionA       string `json:"optionA"`
	OptionAS      string `json:"option_a"`
	OptionB       string `json:"optionB"`
	OptionBS      string `json:"option_b"`
	OptionC       string `json:"optionC"`
	OptionCS      string `json:"option_c"`
	OptionD       string `json:"optionD"`
	OptionDS      string `json:"option_d"`
	CorrectAnswer string `json:"correctAnswer"`
	CorrectOption string `json:"correct_option"`
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func (d draft) question() model.Question {
	return model.Question{
		Text:          firstNonEmpty(d.QuestionText, d.QuestionTextS),
		OptionA:       firstNonEmpty(d.OptionA, d.OptionAS),
		OptionB:       firstNonEmpty(d.OptionB, d.OptionBS),
		OptionC:       firstNonEmpty(d.OptionC, d.OptionCS),
		OptionD:       firstNonEmpty(d.OptionD, d.OptionDS),
		CorrectOption: model.NormalizeOption(firstNonEmpty(d.CorrectAnswer, d.CorrectOption)),
	}
}

// ExtractQuestions turns a model reply into question drafts. It strips
// markdown code fences, takes the outermost JSON array and decodes it. Every
// draft must have text, four options and a correct option in A-D.
func ExtractQuestions(raw string) ([]model.Question, error) {
	body := stripFences(raw)

	start := strings.IndexByte(body, '[')
	end := strings.LastIndexByte(body, ']')
	if start < 0 || end < start {
		return nil, &ParseError{Raw: raw, Reason: "no JSON array found"}
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(body[start : end+1])))
	var drafts []draft
	if err := dec.Decode(&drafts); err != nil {
		return nil, &ParseError{Raw: raw, Reason: "invalid JSON array", Err: err}
	}
	if dec.More() {
		return nil, &ParseError{Raw: raw, Reason: "trailing data after JSON array"}
	}
	if len(drafts) == 0 {
		return nil, &ParseError{Raw: raw, Reason: "empty question list"}
	}

	questions := make([]model.Question, 0, len(drafts))
	for i, d := range drafts {
		q := d.question()
		if reason := checkDraft(q); reason != "" {
			return nil, &ParseError{Raw: raw, Reason: fmt.Sprintf("question %d: %s", i+1, reason)}
		}
		questions = append(questions, q)
	}
	return questions, nil
}

func checkDraft(q model.Question) string {
	switch {
	case q.Text == "":
		return "missing question text"
	case q.OptionA == "" || q.OptionB == "" || q.OptionC == "" || q.OptionD == "":
		return "missing option"
	case q.CorrectOption == "":
		return "correct answer must be one of A, B, C, D"
	}
	return ""
}

// stripFences returns the content of the first fenced block, or the trimmed
// input when there is no fence.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	open := strings.Index(s, "```")
	if open < 0 {
		return s
	}
	rest := s[open+3:]
	// Drop the info string (e.g. "json") on the opening fence line.
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		rest = rest[nl+1:]
	} else {
		rest = strings.TrimPrefix(rest, "json")
	}
	if end := strings.Index(rest, "```"); end >= 0 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest)
}
