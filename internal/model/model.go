package model

import (
	"context"
	"time"
)

// UserRole represents a user's access level.
type UserRole string

const (
	// UserRoleStudent can take quizzes and see their own attempts.
	UserRoleStudent UserRole = "student"
	// UserRoleAdmin can additionally manage users and import quizzes.
	UserRoleAdmin UserRole = "admin"
)

// User represents a system user.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	DisplayName  string    `json:"display_name"`
	PasswordHash string    `json:"-"`
	Role         UserRole  `json:"role"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}

// AuthSession represents an authentication session. Its ID is also the
// "jti" claim of the token issued for it.
type AuthSession struct {
	ID        string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
}

type userCtxKey struct{}

// ContextWithUser stores a user in the request context.
func ContextWithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userCtxKey{}, u)
}

// UserFromContext retrieves the authenticated user from context, or nil.
func UserFromContext(ctx context.Context) *User {
	u, _ := ctx.Value(userCtxKey{}).(*User)
	return u
}

type sessionCtxKey struct{}

// ContextWithSessionID stores the auth session ID in context.
func ContextWithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionCtxKey{}, id)
}

// SessionIDFromContext retrieves the auth session ID from context.
func SessionIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(sessionCtxKey{}).(string)
	return id
}

// QuestionType is the declared type of a quiz question.
type QuestionType string

const (
	QuestionMCQ         QuestionType = "mcq"
	QuestionFill        QuestionType = "fill"
	QuestionTrueFalse   QuestionType = "truefalse"
	QuestionShortAnswer QuestionType = "shortanswer"
	QuestionEssay       QuestionType = "essay"
)

// QuestionTypes lists every known question type.
var QuestionTypes = []QuestionType{
	QuestionMCQ, QuestionFill, QuestionTrueFalse, QuestionShortAnswer, QuestionEssay,
}

// Valid reports whether t is one of the known question types.
func (t QuestionType) Valid() bool {
	for _, k := range QuestionTypes {
		if t == k {
			return true
		}
	}
	return false
}

// QuizStatus represents the lifecycle of a quiz.
type QuizStatus string

const (
	QuizDraft     QuizStatus = "draft"
	QuizCompleted QuizStatus = "completed"
)

// Quiz is a set of questions owned by a user.
type Quiz struct {
	ID        string     `json:"id"`
	OwnerID   string     `json:"owner_id"`
	Title     string     `json:"title"`
	Source    string     `json:"-"`
	Status    QuizStatus `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
}

// Question represents a quiz question.
type Question struct {
	ID             string       `json:"id"`
	QuizID         string       `json:"quiz_id"`
	Position       int          `json:"position"`
	Type           QuestionType `json:"type"`
	Text           string       `json:"question_text"`
	Options        []string     `json:"options,omitempty"`
	ExpectedAnswer string       `json:"expected_answer,omitempty"`
	MarksPossible  float64      `json:"marks_possible"`
	Explanation    string       `json:"explanation,omitempty"`
}

// QuizView combines a quiz with its questions for display.
type QuizView struct {
	Quiz      Quiz       `json:"quiz"`
	Questions []Question `json:"questions"`
}

// Attempt is one marked submission of a quiz.
type Attempt struct {
	ID              string    `json:"id"`
	QuizID          string    `json:"quiz_id"`
	UserID          string    `json:"user_id"`
	Score           float64   `json:"score"`
	TotalMarks      float64   `json:"total_marks"`
	MarksObtained   float64   `json:"marks_obtained"`
	OverallFeedback string    `json:"overall_feedback"`
	TimeTaken       *int      `json:"time_taken,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// AttemptAnswer is the persisted marking of a single answer within an attempt.
type AttemptAnswer struct {
	ID                string  `json:"id"`
	AttemptID         string  `json:"attempt_id"`
	QuestionID        string  `json:"question_id"`
	UserAnswer        string  `json:"user_answer"`
	IsCorrect         bool    `json:"is_correct"`
	CorrectnessStatus string  `json:"correctness_status"`
	MarksAwarded      float64 `json:"marks_awarded"`
	MarksPossible     float64 `json:"marks_possible"`
	Feedback          string  `json:"feedback"`
}

// AttemptView combines an attempt with its answers.
type AttemptView struct {
	Attempt Attempt         `json:"attempt"`
	Answers []AttemptAnswer `json:"answers"`
}

// QuestionImport is used for loading questions from JSON.
type QuestionImport struct {
	Type           QuestionType `json:"type" validate:"required"`
	Text           string       `json:"question_text" validate:"required"`
	Options        []string     `json:"options,omitempty"`
	ExpectedAnswer string       `json:"expected_answer"`
	MarksPossible  float64      `json:"marks_possible" validate:"gt=0"`
	Explanation    string       `json:"explanation,omitempty"`
}

// QuizImport is the on-disk format of a quiz file.
type QuizImport struct {
	Title     string           `json:"title" validate:"required"`
	Questions []QuestionImport `json:"questions" validate:"required,min=1,dive"`
}
