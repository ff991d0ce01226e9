package prompts

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"strings"
	"sync"
	"text/template"
	"unicode/utf8"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// NoAnswerMarker replaces an empty submitted answer in prompts.
const NoAnswerMarker = "[No answer provided]"

const maxAnswerRunes = 10000

var (
	studentAnswerRegex      = regexp.MustCompile(`(?i)</?\s*student-answer\b[^>]*>`)
	systemInstructionsRegex = regexp.MustCompile(`(?i)</?\s*system-instructions\b[^>]*>`)
	studyContentRegex       = regexp.MustCompile(`(?i)</?\s*study-content\b[^>]*>`)
)

// PromptVariant represents a grading prompt variant.
type PromptVariant string

const (
	// PromptStrict gives partial credit sparingly.
	PromptStrict PromptVariant = "strict"
	// PromptStandard is the default fair-but-critical variant.
	PromptStandard PromptVariant = "standard"
	// PromptLenient rewards demonstrated understanding over precise wording.
	PromptLenient PromptVariant = "lenient"
)

var validVariants = map[PromptVariant]bool{
	PromptStrict:   true,
	PromptStandard: true,
	PromptLenient:  true,
}

// IsValidVariant checks if a prompt variant name is valid.
func IsValidVariant(v string) bool {
	return validVariants[PromptVariant(v)]
}

// GradeItem is one manually graded question embedded in a grading prompt.
type GradeItem struct {
	Index         int
	MarksPossible float64
	QuestionText  string
	ModelAnswer   string
	Explanation   string
	Answer        string
}

// GradeData holds template data for batch grading prompts.
type GradeData struct {
	Items []GradeItem
}

// QuizData holds template data for quiz generation prompts.
type QuizData struct {
	Title        string
	Content      string
	NumQuestions int
	Types        []string
}

type templates struct {
	grade map[PromptVariant]*template.Template
	quiz  *template.Template
}

var loadTemplates = sync.OnceValues(func() (*templates, error) {
	return load(templateFS)
})

func load(fsys fs.FS) (*templates, error) {
	t := &templates{grade: make(map[PromptVariant]*template.Template)}
	for v := range validVariants {
		tmpl, err := parse(fsys, "templates/grade_"+string(v)+".tmpl")
		if err != nil {
			return nil, err
		}
		t.grade[v] = tmpl
	}
	quiz, err := parse(fsys, "templates/generate_quiz.tmpl")
	if err != nil {
		return nil, err
	}
	t.quiz = quiz
	return t, nil
}

func parse(fsys fs.FS, name string) (*template.Template, error) {
	content, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("read prompt file %s: %w", name, err)
	}
	tmpl, err := template.New(name).Funcs(template.FuncMap{
		"marks": formatMarks,
		"join":  strings.Join,
	}).Parse(string(content))
	if err != nil {
		return nil, fmt.Errorf("parse prompt template %s: %w", name, err)
	}
	return tmpl, nil
}

// BuildGradePrompt builds a batch grading prompt using the specified variant.
// Answers are sanitised before they are embedded.
func BuildGradePrompt(variant PromptVariant, items []GradeItem) (string, error) {
	t, err := loadTemplates()
	if err != nil {
		return "", fmt.Errorf("templates load failed: %w", err)
	}
	tmpl, ok := t.grade[variant]
	if !ok {
		return "", errors.New("invalid prompt variant: " + string(variant))
	}

	data := GradeData{Items: make([]GradeItem, len(items))}
	for i, it := range items {
		it.Answer = SanitizeAnswer(it.Answer)
		data.Items[i] = it
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// BuildQuizPrompt builds a quiz generation prompt from study content.
func BuildQuizPrompt(data QuizData) (string, error) {
	t, err := loadTemplates()
	if err != nil {
		return "", fmt.Errorf("templates load failed: %w", err)
	}
	content := studyContentRegex.ReplaceAllString(data.Content, "")
	content = systemInstructionsRegex.ReplaceAllString(content, "")
	data.Content = truncate(strings.TrimSpace(content), 4*maxAnswerRunes)

	var buf bytes.Buffer
	if err := t.quiz.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// SanitizeAnswer strips prompt delimiter tags from a submitted answer,
// substitutes NoAnswerMarker for blank answers and truncates very long ones.
func SanitizeAnswer(answer string) string {
	answer = studentAnswerRegex.ReplaceAllString(answer, "")
	answer = systemInstructionsRegex.ReplaceAllString(answer, "")
	answer = strings.TrimSpace(answer)

	if answer == "" {
		return NoAnswerMarker
	}
	return truncate(answer, maxAnswerRunes)
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "\n\n[Text truncated due to length]"
}

func formatMarks(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
