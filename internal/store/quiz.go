package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pavelanni/quizmark/internal/model"
)

const quizColumns = `id, owner_id, title, source, status, created_at`

// CreateQuiz stores a quiz with its questions in one transaction. IDs,
// positions and the creation time are assigned here.
func (s *Store) CreateQuiz(ctx context.Context, q model.Quiz, questions []model.Question) (*model.QuizView, error) {
	q.ID = newID()
	q.CreatedAt = s.now()
	if q.Status == "" {
		q.Status = model.QuizDraft
	}

	stored := make([]model.Question, len(questions))
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := s.exec(ctx, tx,
			`INSERT INTO quizzes (`+quizColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
			q.ID, q.OwnerID, q.Title, q.Source, q.Status, q.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert quiz: %w", err)
		}
		for i, qu := range questions {
			qu.ID = newID()
			qu.QuizID = q.ID
			qu.Position = i + 1
			opts, err := encodeOptions(qu.Options)
			if err != nil {
				return err
			}
			if _, err := s.exec(ctx, tx,
				`INSERT INTO questions (id, quiz_id, position, type, question_text, options_json, expected_answer, marks_possible, explanation)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				qu.ID, qu.QuizID, qu.Position, qu.Type, qu.Text, opts, qu.ExpectedAnswer, qu.MarksPossible, qu.Explanation,
			); err != nil {
				return fmt.Errorf("insert question %d: %w", qu.Position, err)
			}
			stored[i] = qu
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &model.QuizView{Quiz: q, Questions: stored}, nil
}

func encodeOptions(opts []string) (string, error) {
	if len(opts) == 0 {
		return "", nil
	}
	b, err := json.Marshal(opts)
	if err != nil {
		return "", fmt.Errorf("encode options: %w", err)
	}
	return string(b), nil
}

func decodeOptions(raw string) ([]string, error) {
	if raw == "" {
		return nil, nil
	}
	var opts []string
	if err := json.Unmarshal([]byte(raw), &opts); err != nil {
		return nil, fmt.Errorf("decode options: %w", err)
	}
	return opts, nil
}

func scanQuiz(row interface{ Scan(...any) error }) (*model.Quiz, error) {
	var q model.Quiz
	if err := row.Scan(&q.ID, &q.OwnerID, &q.Title, &q.Source, &q.Status, &q.CreatedAt); err != nil {
		return nil, err
	}
	return &q, nil
}

// GetQuiz returns a quiz by ID.
func (s *Store) GetQuiz(ctx context.Context, id string) (*model.Quiz, error) {
	q, err := scanQuiz(s.queryRow(ctx, s.db, `SELECT `+quizColumns+` FROM quizzes WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return q, err
}

// GetQuestions returns the questions of a quiz in position order.
func (s *Store) GetQuestions(ctx context.Context, quizID string) ([]model.Question, error) {
	rows, err := s.query(ctx, s.db,
		`SELECT id, quiz_id, position, type, question_text, options_json, expected_answer, marks_possible, explanation
		 FROM questions WHERE quiz_id = ? ORDER BY position`, quizID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	questions := []model.Question{}
	for rows.Next() {
		var q model.Question
		var opts string
		if err := rows.Scan(&q.ID, &q.QuizID, &q.Position, &q.Type, &q.Text, &opts, &q.ExpectedAnswer, &q.MarksPossible, &q.Explanation); err != nil {
			return nil, err
		}
		if q.Options, err = decodeOptions(opts); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// GetQuizView returns a quiz with its questions.
func (s *Store) GetQuizView(ctx context.Context, id string) (*model.QuizView, error) {
	q, err := s.GetQuiz(ctx, id)
	if err != nil {
		return nil, err
	}
	questions, err := s.GetQuestions(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get questions: %w", err)
	}
	return &model.QuizView{Quiz: *q, Questions: questions}, nil
}

// ListQuizzes returns the quizzes owned by ownerID, newest first. An empty
// ownerID lists every quiz.
func (s *Store) ListQuizzes(ctx context.Context, ownerID string) ([]model.Quiz, error) {
	query := `SELECT ` + quizColumns + ` FROM quizzes`
	var args []any
	if ownerID != "" {
		query += ` WHERE owner_id = ?`
		args = append(args, ownerID)
	}
	query += ` ORDER BY created_at DESC, id`
	rows, err := s.query(ctx, s.db, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	quizzes := []model.Quiz{}
	for rows.Next() {
		q, err := scanQuiz(rows)
		if err != nil {
			return nil, err
		}
		quizzes = append(quizzes, *q)
	}
	return quizzes, rows.Err()
}

// DeleteQuiz removes a quiz together with its questions and attempts.
func (s *Store) DeleteQuiz(ctx context.Context, id string) error {
	res, err := s.exec(ctx, s.db, `DELETE FROM quizzes WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return affectedOne(res)
}
