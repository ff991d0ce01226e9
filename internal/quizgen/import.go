package quizgen

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/pavelanni/quizmark/internal/model"
	"github.com/pavelanni/quizmark/internal/store"
)

var validate = validator.New()

// QuizStore is the persistence needed to import quizzes. GetQuiz reports a
// missing quiz with store.ErrNotFound.
type QuizStore interface {
	ImportedQuiz(ctx context.Context, hash string) (string, error)
	SetImportedQuiz(ctx context.Context, hash, quizID string) error
	GetQuiz(ctx context.Context, id string) (*model.Quiz, error)
	CreateQuiz(ctx context.Context, q model.Quiz, questions []model.Question) (*model.QuizView, error)
}

// ImportResult reports the outcome of an import.
type ImportResult struct {
	QuizID    string `json:"quiz_id"`
	Title     string `json:"title"`
	Questions int    `json:"questions"`
	Duplicate bool   `json:"duplicate"`
}

// NormalizeQuiz validates every question of an import and returns them in
// stored form.
func NormalizeQuiz(qi model.QuizImport) ([]model.Question, error) {
	if err := validate.Struct(qi); err != nil {
		return nil, fmt.Errorf("invalid quiz: %w", err)
	}
	questions := make([]model.Question, 0, len(qi.Questions))
	for i, in := range qi.Questions {
		q, err := NormalizeQuestion(in)
		if err != nil {
			return nil, fmt.Errorf("question %d: %w", i+1, err)
		}
		questions = append(questions, q)
	}
	return questions, nil
}

// Import stores a JSON quiz file for ownerID. Content identical to an earlier
// import, by sha256, is not stored twice while that quiz still exists.
func Import(ctx context.Context, st QuizStore, ownerID string, data []byte) (*ImportResult, error) {
	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])

	existing, err := st.ImportedQuiz(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("check import: %w", err)
	}
	if existing != "" {
		q, err := st.GetQuiz(ctx, existing)
		switch {
		case err == nil:
			return &ImportResult{QuizID: q.ID, Title: q.Title, Duplicate: true}, nil
		case !errors.Is(err, store.ErrNotFound):
			return nil, fmt.Errorf("get imported quiz: %w", err)
		}
	}

	var qi model.QuizImport
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&qi); err != nil {
		return nil, &InvalidQuizError{Err: fmt.Errorf("invalid JSON: %w", err)}
	}
	questions, err := NormalizeQuiz(qi)
	if err != nil {
		return nil, &InvalidQuizError{Err: err}
	}

	qv, err := st.CreateQuiz(ctx, model.Quiz{OwnerID: ownerID, Title: qi.Title}, questions)
	if err != nil {
		return nil, fmt.Errorf("create quiz: %w", err)
	}
	if err := st.SetImportedQuiz(ctx, hash, qv.Quiz.ID); err != nil {
		return nil, fmt.Errorf("record import: %w", err)
	}
	return &ImportResult{QuizID: qv.Quiz.ID, Title: qv.Quiz.Title, Questions: len(qv.Questions)}, nil
}

// InvalidQuizError reports a quiz file that cannot be imported.
type InvalidQuizError struct {
	Err error
}

func (e *InvalidQuizError) Error() string { return e.Err.Error() }

func (e *InvalidQuizError) Unwrap() error { return e.Err }
