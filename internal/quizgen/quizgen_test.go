package quizgen

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/pavelanni/quizmark/internal/model"
)

type stubGenerator struct {
	raw    string
	err    error
	prompt string
}

func (s *stubGenerator) GenerateJSON(_ context.Context, _, prompt string, _ json.Marshaler) (string, error) {
	s.prompt = prompt
	return s.raw, s.err
}

func newTestService(gen Generator) *Service {
	return New(gen, 0, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

const content = "Photosynthesis is the process by which plants convert light energy into chemical energy."

func TestGenerate(t *testing.T) {
	gen := &stubGenerator{raw: `{"title": "Photosynthesis", "questions": [
		{"type": "mcq", "question_text": "What do plants convert light into?", "options": ["Heat", "chemical energy", "Sound", "Water"], "expected_answer": "Chemical energy", "marks_possible": 1, "explanation": "See the first sentence."},
		{"type": "truefalse", "question_text": "Plants need light.", "options": [], "expected_answer": "true", "marks_possible": 1, "explanation": ""},
		{"type": "fill", "question_text": "Plants convert ___ energy.", "options": [], "expected_answer": "", "marks_possible": 1, "explanation": ""},
		{"type": "essay", "question_text": "Explain photosynthesis.", "options": ["x"], "expected_answer": "Plants convert light to chemical energy.", "marks_possible": 5, "explanation": ""},
		{"type": "matching", "question_text": "Match.", "options": [], "expected_answer": "a", "marks_possible": 1, "explanation": ""}
	]}`}

	quiz, err := newTestService(gen).Generate(context.Background(), Request{Content: content, NumQuestions: 5})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if quiz.Title != "Photosynthesis" {
		t.Errorf("Title = %q", quiz.Title)
	}
	if len(quiz.Questions) != 3 {
		t.Fatalf("kept %d questions, want 3: %+v", len(quiz.Questions), quiz.Questions)
	}

	mcq := quiz.Questions[0]
	if mcq.ExpectedAnswer != "chemical energy" {
		t.Errorf("mcq expected answer should match option text, got %q", mcq.ExpectedAnswer)
	}
	tf := quiz.Questions[1]
	if tf.ExpectedAnswer != "True" || len(tf.Options) != 2 {
		t.Errorf("truefalse not normalised: %+v", tf)
	}
	essay := quiz.Questions[2]
	if essay.Options != nil || essay.Position != 3 {
		t.Errorf("essay = %+v, want no options at position 3", essay)
	}

	if !strings.Contains(gen.prompt, "exactly 5 questions") {
		t.Error("prompt should request 5 questions")
	}
}

func TestGenerateRespectsTypesAndCount(t *testing.T) {
	gen := &stubGenerator{raw: `{"title": "T", "questions": [
		{"type": "essay", "question_text": "Q1", "options": [], "expected_answer": "a", "marks_possible": 5, "explanation": ""},
		{"type": "fill", "question_text": "Q2", "options": [], "expected_answer": "b", "marks_possible": 1, "explanation": ""},
		{"type": "fill", "question_text": "Q3", "options": [], "expected_answer": "c", "marks_possible": 1, "explanation": ""},
		{"type": "fill", "question_text": "Q4", "options": [], "expected_answer": "d", "marks_possible": 1, "explanation": ""}
	]}`}

	quiz, err := newTestService(gen).Generate(context.Background(), Request{
		Title: "My quiz", Content: content, NumQuestions: 2, Types: []model.QuestionType{model.QuestionFill},
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if quiz.Title != "My quiz" {
		t.Errorf("requested title should win, got %q", quiz.Title)
	}
	if len(quiz.Questions) != 2 || quiz.Questions[0].Text != "Q2" || quiz.Questions[1].Text != "Q3" {
		t.Errorf("questions = %+v, want Q2 and Q3", quiz.Questions)
	}
	if !strings.Contains(gen.prompt, "types: fill.") {
		t.Error("prompt should restrict question types")
	}
}

func TestGenerateErrors(t *testing.T) {
	t.Run("generator error", func(t *testing.T) {
		_, err := newTestService(&stubGenerator{err: errors.New("down")}).Generate(context.Background(), Request{Content: content})
		if !errors.Is(err, ErrGeneration) {
			t.Errorf("error = %v, want ErrGeneration", err)
		}
	})
	t.Run("bad json", func(t *testing.T) {
		_, err := newTestService(&stubGenerator{raw: "nope"}).Generate(context.Background(), Request{Content: content})
		if !errors.Is(err, ErrGeneration) {
			t.Errorf("error = %v, want ErrGeneration", err)
		}
	})
	t.Run("nothing usable", func(t *testing.T) {
		_, err := newTestService(&stubGenerator{raw: `{"title":"x","questions":[]}`}).Generate(context.Background(), Request{Content: content})
		if !errors.Is(err, ErrNoQuestions) {
			t.Errorf("error = %v, want ErrNoQuestions", err)
		}
	})
}

func TestNormalizeQuestion(t *testing.T) {
	tests := []struct {
		name    string
		in      model.QuestionImport
		wantErr bool
	}{
		{"valid fill", model.QuestionImport{Type: "fill", Text: "x", ExpectedAnswer: "y", MarksPossible: 1}, false},
		{"upper case type", model.QuestionImport{Type: " MCQ ", Text: "x", Options: []string{"a", "b"}, ExpectedAnswer: "a", MarksPossible: 1}, false},
		{"essay without answer", model.QuestionImport{Type: "essay", Text: "x", MarksPossible: 10}, false},
		{"unknown type", model.QuestionImport{Type: "poll", Text: "x", MarksPossible: 1}, true},
		{"empty text", model.QuestionImport{Type: "fill", ExpectedAnswer: "y", MarksPossible: 1}, true},
		{"two decimal marks", model.QuestionImport{Type: "fill", Text: "x", ExpectedAnswer: "y", MarksPossible: 0.29}, false},
		{"three decimal marks", model.QuestionImport{Type: "fill", Text: "x", ExpectedAnswer: "y", MarksPossible: 0.125}, true},
		{"zero marks", model.QuestionImport{Type: "fill", Text: "x", ExpectedAnswer: "y"}, true},
		{"mcq answer not an option", model.QuestionImport{Type: "mcq", Text: "x", Options: []string{"a", "b"}, ExpectedAnswer: "c", MarksPossible: 1}, true},
		{"mcq one option", model.QuestionImport{Type: "mcq", Text: "x", Options: []string{"a"}, ExpectedAnswer: "a", MarksPossible: 1}, true},
		{"truefalse bad answer", model.QuestionImport{Type: "truefalse", Text: "x", ExpectedAnswer: "maybe", MarksPossible: 1}, true},
		{"fill without answer", model.QuestionImport{Type: "fill", Text: "x", MarksPossible: 1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NormalizeQuestion(tt.in)
			if (err != nil) != tt.wantErr {
				t.Errorf("NormalizeQuestion() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
