// Package quizgen turns pasted study content into quiz questions with a
// generative model.
package quizgen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/pavelanni/quizmark/internal/llm/prompts"
	"github.com/pavelanni/quizmark/internal/model"
)

const (
	DefaultNumQuestions = 10
	DefaultTimeout      = 2 * time.Minute
)

var (
	// ErrGeneration wraps failures of the generator call.
	ErrGeneration = errors.New("quiz generation failed")
	// ErrNoQuestions is returned when no generated question passed validation.
	ErrNoQuestions = errors.New("no usable questions generated")
)

// Generator produces a JSON document for a prompt, constrained by a JSON schema.
type Generator interface {
	GenerateJSON(ctx context.Context, name, prompt string, schema json.Marshaler) (string, error)
}

// Request describes the quiz to generate.
type Request struct {
	Title        string               `json:"title" validate:"max=200"`
	Content      string               `json:"content" validate:"required,min=20"`
	NumQuestions int                  `json:"num_questions" validate:"omitempty,min=1,max=50"`
	Types        []model.QuestionType `json:"question_types" validate:"omitempty,dive,oneof=mcq fill truefalse shortanswer essay"`
}

// Quiz is a generated, validated quiz that has not been stored yet.
type Quiz struct {
	Title     string
	Questions []model.Question
}

var quizSchema = &jsonschema.Definition{
	Type: jsonschema.Object,
	Properties: map[string]jsonschema.Definition{
		"title": {Type: jsonschema.String},
		"questions": {
			Type: jsonschema.Array,
			Items: &jsonschema.Definition{
				Type: jsonschema.Object,
				Properties: map[string]jsonschema.Definition{
					"type":            {Type: jsonschema.String, Enum: []string{"mcq", "fill", "truefalse", "shortanswer", "essay"}},
					"question_text":   {Type: jsonschema.String},
					"options":         {Type: jsonschema.Array, Items: &jsonschema.Definition{Type: jsonschema.String}},
					"expected_answer": {Type: jsonschema.String},
					"marks_possible":  {Type: jsonschema.Number},
					"explanation":     {Type: jsonschema.String},
				},
				Required:             []string{"type", "question_text", "options", "expected_answer", "marks_possible", "explanation"},
				AdditionalProperties: false,
			},
		},
	},
	Required:             []string{"title", "questions"},
	AdditionalProperties: false,
}

type generatedQuiz struct {
	Title     string                 `json:"title"`
	Questions []model.QuestionImport `json:"questions"`
}

// Service generates quizzes.
type Service struct {
	gen     Generator
	timeout time.Duration
	logger  *slog.Logger
}

// New creates a Service. A non-positive timeout selects DefaultTimeout.
func New(gen Generator, timeout time.Duration, logger *slog.Logger) *Service {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{gen: gen, timeout: timeout, logger: logger}
}

// Generate asks the model for a quiz and keeps only the questions that can be
// marked: known type, positive marks and, for objective types, an expected
// answer consistent with the options.
func (s *Service) Generate(ctx context.Context, req Request) (*Quiz, error) {
	if req.NumQuestions <= 0 {
		req.NumQuestions = DefaultNumQuestions
	}
	types := req.Types
	if len(types) == 0 {
		types = model.QuestionTypes
	}
	typeNames := make([]string, len(types))
	allowed := make(map[model.QuestionType]bool, len(types))
	for i, t := range types {
		typeNames[i] = string(t)
		allowed[t] = true
	}

	prompt, err := prompts.BuildQuizPrompt(prompts.QuizData{
		Title:        req.Title,
		Content:      req.Content,
		NumQuestions: req.NumQuestions,
		Types:        typeNames,
	})
	if err != nil {
		return nil, fmt.Errorf("build quiz prompt: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	raw, err := s.gen.GenerateJSON(ctx, "quiz", prompt, quizSchema)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGeneration, err)
	}

	var gq generatedQuiz
	if err := json.Unmarshal([]byte(raw), &gq); err != nil {
		return nil, fmt.Errorf("%w: parse response: %w", ErrGeneration, err)
	}

	quiz := &Quiz{Title: strings.TrimSpace(req.Title)}
	if quiz.Title == "" {
		quiz.Title = strings.TrimSpace(gq.Title)
	}
	if quiz.Title == "" {
		quiz.Title = "Untitled quiz"
	}

	for i, qi := range gq.Questions {
		q, err := NormalizeQuestion(qi)
		if err == nil && !allowed[q.Type] {
			err = fmt.Errorf("type %q not requested", q.Type)
		}
		if err != nil {
			s.logger.Warn("dropping generated question", "index", i, "error", err)
			continue
		}
		q.Position = len(quiz.Questions) + 1
		quiz.Questions = append(quiz.Questions, q)
		if len(quiz.Questions) == req.NumQuestions {
			break
		}
	}
	if len(quiz.Questions) == 0 {
		return nil, ErrNoQuestions
	}

	s.logger.Info("generated quiz", "title", quiz.Title, "requested", req.NumQuestions, "kept", len(quiz.Questions), "returned", len(gq.Questions))
	return quiz, nil
}

// NormalizeQuestion validates an imported or generated question and returns
// it in stored form.
func NormalizeQuestion(qi model.QuestionImport) (model.Question, error) {
	q := model.Question{
		Type:           model.QuestionType(strings.ToLower(strings.TrimSpace(string(qi.Type)))),
		Text:           strings.TrimSpace(qi.Text),
		ExpectedAnswer: strings.TrimSpace(qi.ExpectedAnswer),
		MarksPossible:  qi.MarksPossible,
		Explanation:    strings.TrimSpace(qi.Explanation),
	}
	for _, o := range qi.Options {
		if o = strings.TrimSpace(o); o != "" {
			q.Options = append(q.Options, o)
		}
	}

	if !q.Type.Valid() {
		return q, fmt.Errorf("unknown question type %q", qi.Type)
	}
	if q.Text == "" {
		return q, errors.New("empty question text")
	}
	if !(q.MarksPossible > 0) {
		return q, fmt.Errorf("marks possible must be positive, got %v", qi.MarksPossible)
	}
	if cents := q.MarksPossible * 100; math.Abs(cents-math.Round(cents)) > 1e-9 {
		return q, fmt.Errorf("marks possible must have at most 2 decimal places, got %v", qi.MarksPossible)
	}

	switch q.Type {
	case model.QuestionMCQ:
		if len(q.Options) < 2 {
			return q, errors.New("mcq needs at least two options")
		}
		match := ""
		for _, o := range q.Options {
			if strings.EqualFold(o, q.ExpectedAnswer) {
				match = o
				break
			}
		}
		if match == "" {
			return q, fmt.Errorf("expected answer %q is not one of the options", q.ExpectedAnswer)
		}
		q.ExpectedAnswer = match
	case model.QuestionTrueFalse:
		switch strings.ToLower(q.ExpectedAnswer) {
		case "true":
			q.ExpectedAnswer = "True"
		case "false":
			q.ExpectedAnswer = "False"
		default:
			return q, fmt.Errorf("truefalse answer must be True or False, got %q", q.ExpectedAnswer)
		}
		q.Options = []string{"True", "False"}
	case model.QuestionFill:
		if q.ExpectedAnswer == "" {
			return q, errors.New("fill question needs an expected answer")
		}
		q.Options = nil
	default:
		q.Options = nil
	}
	return q, nil
}
