package prompts

import (
	"bytes"
	_ "embed"
	"fmt"
	"regexp"
	"strings"
	"text/template"
	"unicode/utf8"
)

//go:embed generate.txt
var generateText string

var generateTmpl = template.Must(template.New("generate").Parse(generateText))

var topicTagRegex = regexp.MustCompile(`(?i)</?\s*topic\b[^>]*>`)

const maxTopicRunes = 200

// Difficulty is the requested difficulty of generated questions.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "Easy"
	DifficultyMedium Difficulty = "Medium"
	DifficultyHard   Difficulty = "Hard"
)

// ParseDifficulty maps user input to a Difficulty, defaulting to Medium.
func ParseDifficulty(s string) Difficulty {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "easy":
		return DifficultyEasy
	case "hard":
		return DifficultyHard
	}
	return DifficultyMedium
}

// GenerateData holds template data for the question generation prompt.
type GenerateData struct {
	Topic      string
	Count      int
	Difficulty Difficulty
}

// BuildGeneratePrompt renders the question generation prompt.
func BuildGeneratePrompt(topic string, count int, difficulty Difficulty) (string, error) {
	data := GenerateData{
		Topic:      sanitizeTopic(topic),
		Count:      count,
		Difficulty: difficulty,
	}
	if data.Difficulty == "" {
		data.Difficulty = DifficultyMedium
	}
	var buf bytes.Buffer
	if err := generateTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render generate prompt: %w", err)
	}
	return buf.String(), nil
}

// sanitizeTopic keeps the topic on one line, removes tags that would close the
// topic delimiter and caps its length.
func sanitizeTopic(topic string) string {
	topic = topicTagRegex.ReplaceAllString(topic, "")
	topic = strings.Join(strings.Fields(topic), " ")
	if utf8.RuneCountInString(topic) > maxTopicRunes {
		topic = string([]rune(topic)[:maxTopicRunes])
	}
	return topic
}
