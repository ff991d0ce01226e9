package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pavelanni/quizmark/internal/model"
)

const attemptColumns = `id, quiz_id, user_id, score, total_marks, marks_obtained, overall_feedback, time_taken, created_at`

// SaveAttempt stores a marked attempt with its answers and marks the quiz
// completed, all in one transaction.
func (s *Store) SaveAttempt(ctx context.Context, a model.Attempt, answers []model.AttemptAnswer) (*model.AttemptView, error) {
	a.ID = newID()
	a.CreatedAt = s.now()

	var timeTaken sql.NullInt64
	if a.TimeTaken != nil {
		timeTaken = sql.NullInt64{Int64: int64(*a.TimeTaken), Valid: true}
	}

	stored := make([]model.AttemptAnswer, len(answers))
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := s.exec(ctx, tx,
			`INSERT INTO attempts (`+attemptColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			a.ID, a.QuizID, a.UserID, a.Score, a.TotalMarks, a.MarksObtained, a.OverallFeedback, timeTaken, a.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert attempt: %w", err)
		}
		for i, ans := range answers {
			ans.ID = newID()
			ans.AttemptID = a.ID
			if _, err := s.exec(ctx, tx,
				`INSERT INTO attempt_answers (id, attempt_id, question_id, position, user_answer, is_correct, correctness_status, marks_awarded, marks_possible, feedback)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				ans.ID, ans.AttemptID, ans.QuestionID, i+1, ans.UserAnswer, ans.IsCorrect, ans.CorrectnessStatus, ans.MarksAwarded, ans.MarksPossible, ans.Feedback,
			); err != nil {
				return fmt.Errorf("insert answer for question %s: %w", ans.QuestionID, err)
			}
			stored[i] = ans
		}
		res, err := s.exec(ctx, tx, `UPDATE quizzes SET status = ? WHERE id = ?`, model.QuizCompleted, a.QuizID)
		if err != nil {
			return fmt.Errorf("complete quiz: %w", err)
		}
		return affectedOne(res)
	})
	if err != nil {
		return nil, err
	}
	return &model.AttemptView{Attempt: a, Answers: stored}, nil
}

func scanAttempt(row interface{ Scan(...any) error }) (*model.Attempt, error) {
	var a model.Attempt
	var timeTaken sql.NullInt64
	if err := row.Scan(&a.ID, &a.QuizID, &a.UserID, &a.Score, &a.TotalMarks, &a.MarksObtained, &a.OverallFeedback, &timeTaken, &a.CreatedAt); err != nil {
		return nil, err
	}
	if timeTaken.Valid {
		v := int(timeTaken.Int64)
		a.TimeTaken = &v
	}
	return &a, nil
}

// GetAttempt returns an attempt by ID.
func (s *Store) GetAttempt(ctx context.Context, id string) (*model.Attempt, error) {
	a, err := scanAttempt(s.queryRow(ctx, s.db, `SELECT `+attemptColumns+` FROM attempts WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return a, err
}

// GetAttemptAnswers returns the answers of an attempt in submission order.
func (s *Store) GetAttemptAnswers(ctx context.Context, attemptID string) ([]model.AttemptAnswer, error) {
	rows, err := s.query(ctx, s.db,
		`SELECT id, attempt_id, question_id, user_answer, is_correct, correctness_status, marks_awarded, marks_possible, feedback
		 FROM attempt_answers WHERE attempt_id = ? ORDER BY position`, attemptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	answers := []model.AttemptAnswer{}
	for rows.Next() {
		var ans model.AttemptAnswer
		if err := rows.Scan(&ans.ID, &ans.AttemptID, &ans.QuestionID, &ans.UserAnswer, &ans.IsCorrect, &ans.CorrectnessStatus, &ans.MarksAwarded, &ans.MarksPossible, &ans.Feedback); err != nil {
			return nil, err
		}
		answers = append(answers, ans)
	}
	return answers, rows.Err()
}

// GetAttemptView returns an attempt with its answers.
func (s *Store) GetAttemptView(ctx context.Context, id string) (*model.AttemptView, error) {
	a, err := s.GetAttempt(ctx, id)
	if err != nil {
		return nil, err
	}
	answers, err := s.GetAttemptAnswers(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get answers: %w", err)
	}
	return &model.AttemptView{Attempt: *a, Answers: answers}, nil
}

// ListAttempts returns the attempts made by userID, newest first. An empty
// userID lists every attempt.
func (s *Store) ListAttempts(ctx context.Context, userID string) ([]model.Attempt, error) {
	query := `SELECT ` + attemptColumns + ` FROM attempts`
	var args []any
	if userID != "" {
		query += ` WHERE user_id = ?`
		args = append(args, userID)
	}
	query += ` ORDER BY created_at DESC, id`
	rows, err := s.query(ctx, s.db, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	attempts := []model.Attempt{}
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, *a)
	}
	return attempts, rows.Err()
}
