package marking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/pavelanni/quizmark/internal/llm/prompts"
)

// DefaultAITimeout bounds a single grading call to the generator.
const DefaultAITimeout = 45 * time.Second

// Generator produces a JSON document for a prompt, constrained by a JSON
// schema. It returns an error when the call fails or times out.
type Generator interface {
	GenerateJSON(ctx context.Context, name, prompt string, schema json.Marshaler) (string, error)
}

// ManualGrader grades a batch of open-ended answers. A non-nil error means
// none of the returned results may be used.
type ManualGrader interface {
	GradeManual(ctx context.Context, answers []AnswerToGrade) ([]GradingResult, error)
}

var validate = validator.New()

var manualGradingSchema = &jsonschema.Definition{
	Type: jsonschema.Object,
	Properties: map[string]jsonschema.Definition{
		"results": {
			Type: jsonschema.Array,
			Items: &jsonschema.Definition{
				Type: jsonschema.Object,
				Properties: map[string]jsonschema.Definition{
					"question_index": {Type: jsonschema.Integer, Description: "index of the question as given in the prompt"},
					"marks_awarded":  {Type: jsonschema.Number, Description: "marks between 0 and the marks available"},
					"feedback":       {Type: jsonschema.String, Description: "at least 2-3 complete sentences"},
				},
				Required:             []string{"question_index", "marks_awarded", "feedback"},
				AdditionalProperties: false,
			},
		},
	},
	Required:             []string{"results"},
	AdditionalProperties: false,
}

type manualResponse struct {
	Results []manualResult `json:"results" validate:"required,dive"`
}

type manualResult struct {
	QuestionIndex *int     `json:"question_index" validate:"required"`
	MarksAwarded  *float64 `json:"marks_awarded" validate:"required"`
	Feedback      string   `json:"feedback" validate:"required"`
}

// AIGrader grades a batch of open-ended answers with one generator call.
type AIGrader struct {
	gen     Generator
	variant prompts.PromptVariant
	timeout time.Duration
	logger  *slog.Logger
}

// AIOption configures an AIGrader.
type AIOption func(*AIGrader)

// WithPromptVariant selects the grading prompt variant.
func WithPromptVariant(v prompts.PromptVariant) AIOption {
	return func(g *AIGrader) { g.variant = v }
}

// WithTimeout overrides DefaultAITimeout. Non-positive values are ignored.
func WithTimeout(d time.Duration) AIOption {
	return func(g *AIGrader) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithLogger sets the logger used for response diagnostics.
func WithLogger(l *slog.Logger) AIOption {
	return func(g *AIGrader) {
		if l != nil {
			g.logger = l
		}
	}
}

// NewAIGrader creates an AIGrader backed by gen.
func NewAIGrader(gen Generator, opts ...AIOption) *AIGrader {
	g := &AIGrader{
		gen:     gen,
		variant: prompts.PromptStandard,
		timeout: DefaultAITimeout,
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// GradeManual builds one prompt for all answers, calls the generator once and
// validates its response. Generator failures wrap ErrAIUnavailable and invalid
// responses are reported as *ParseError; in both cases no results are returned.
// Entries with an unknown or repeated question index are skipped.
func (g *AIGrader) GradeManual(ctx context.Context, answers []AnswerToGrade) ([]GradingResult, error) {
	if len(answers) == 0 {
		return nil, nil
	}

	items := make([]prompts.GradeItem, len(answers))
	for i, a := range answers {
		items[i] = prompts.GradeItem{
			Index:         i + 1,
			MarksPossible: a.MarksPossible,
			QuestionText:  a.QuestionText,
			ModelAnswer:   a.CorrectAnswer,
			Explanation:   a.Explanation,
			Answer:        a.UserAnswer,
		}
	}
	prompt, err := prompts.BuildGradePrompt(g.variant, items)
	if err != nil {
		return nil, fmt.Errorf("build grading prompt: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	raw, err := g.gen.GenerateJSON(ctx, "manual_grading", prompt, manualGradingSchema)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAIUnavailable, err)
	}
	g.logger.Debug("grading response", "questions", len(answers), "elapsed", time.Since(start), "raw", raw)

	resp, err := parseManualResponse(raw)
	if err != nil {
		return nil, err
	}
	return g.resolve(answers, resp), nil
}

func parseManualResponse(raw string) (*manualResponse, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.DisallowUnknownFields()

	var resp manualResponse
	if err := dec.Decode(&resp); err != nil {
		return nil, &ParseError{Raw: raw, Err: err}
	}
	if dec.More() {
		return nil, &ParseError{Raw: raw, Err: errors.New("trailing data after JSON object")}
	}
	if err := validate.Struct(resp); err != nil {
		return nil, &ParseError{Raw: raw, Err: err}
	}
	for i, r := range resp.Results {
		if strings.TrimSpace(r.Feedback) == "" {
			return nil, &ParseError{Raw: raw, Err: fmt.Errorf("result %d: blank feedback", i)}
		}
	}
	return &resp, nil
}

func (g *AIGrader) resolve(answers []AnswerToGrade, resp *manualResponse) []GradingResult {
	seen := make(map[int]bool, len(answers))
	results := make([]GradingResult, 0, len(answers))
	for _, r := range resp.Results {
		idx := *r.QuestionIndex - 1
		if idx < 0 || idx >= len(answers) || seen[idx] {
			g.logger.Warn("ignoring grading result", "question_index", *r.QuestionIndex, "questions", len(answers))
			continue
		}
		seen[idx] = true

		a := answers[idx]
		marks := clamp(*r.MarksAwarded, 0, a.MarksPossible)
		results = append(results, newResult(a, statusFor(marks, a.MarksPossible), marks, strings.TrimSpace(r.Feedback)))
	}
	return results
}

func statusFor(marks, possible float64) Status {
	switch {
	case marks >= possible:
		return StatusCorrect
	case marks > 0:
		return StatusPartial
	default:
		return StatusIncorrect
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
