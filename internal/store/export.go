package store

import (
	"context"
	"fmt"

	"github.com/pavelanni/quizmark/internal/model"
)

// ExportAttempts builds export-ready results for every attempt, oldest first.
func (s *Store) ExportAttempts(ctx context.Context) ([]model.AttemptResult, error) {
	attempts, err := s.ListAttempts(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}

	users := make(map[string]string)
	quizzes := make(map[string]*model.QuizView)

	results := make([]model.AttemptResult, 0, len(attempts))
	for i := len(attempts) - 1; i >= 0; i-- {
		a := attempts[i]

		username, ok := users[a.UserID]
		if !ok {
			u, err := s.GetUserByID(ctx, a.UserID)
			if err != nil {
				return nil, fmt.Errorf("get user %s: %w", a.UserID, err)
			}
			if u != nil {
				username = u.Username
			}
			users[a.UserID] = username
		}

		quiz, ok := quizzes[a.QuizID]
		if !ok {
			quiz, err = s.GetQuizView(ctx, a.QuizID)
			if err != nil {
				return nil, fmt.Errorf("get quiz %s: %w", a.QuizID, err)
			}
			quizzes[a.QuizID] = quiz
		}
		byID := make(map[string]model.Question, len(quiz.Questions))
		for _, q := range quiz.Questions {
			byID[q.ID] = q
		}

		answers, err := s.GetAttemptAnswers(ctx, a.ID)
		if err != nil {
			return nil, fmt.Errorf("get answers for attempt %s: %w", a.ID, err)
		}

		questions := make([]model.QuestionResult, 0, len(answers))
		for _, ans := range answers {
			q := byID[ans.QuestionID]
			questions = append(questions, model.QuestionResult{
				Text:              q.Text,
				Type:              q.Type,
				ExpectedAnswer:    q.ExpectedAnswer,
				UserAnswer:        ans.UserAnswer,
				CorrectnessStatus: ans.CorrectnessStatus,
				MarksAwarded:      ans.MarksAwarded,
				MarksPossible:     ans.MarksPossible,
				Feedback:          ans.Feedback,
			})
		}

		results = append(results, model.AttemptResult{
			AttemptID:       a.ID,
			Username:        username,
			QuizTitle:       quiz.Quiz.Title,
			Score:           a.Score,
			TotalMarks:      a.TotalMarks,
			MarksObtained:   a.MarksObtained,
			OverallFeedback: a.OverallFeedback,
			TimeTaken:       a.TimeTaken,
			CreatedAt:       a.CreatedAt,
			Questions:       questions,
		})
	}
	return results, nil
}
