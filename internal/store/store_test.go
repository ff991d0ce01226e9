package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pavelanni/quizmark/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(context.Background(), DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("newTestStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func createTestUser(t *testing.T, s *Store, username string, role model.UserRole) string {
	t.Helper()
	id, err := s.CreateUser(context.Background(), model.User{
		Username:     username,
		DisplayName:  "User " + username,
		PasswordHash: "hash",
		Role:         role,
		Active:       true,
	})
	if err != nil {
		t.Fatalf("createTestUser: %v", err)
	}
	return id
}

func testQuestions() []model.Question {
	return []model.Question{
		{Type: model.QuestionMCQ, Text: "2+2?", Options: []string{"3", "4"}, ExpectedAnswer: "4", MarksPossible: 1},
		{Type: model.QuestionFill, Text: "Capital of France?", ExpectedAnswer: "Paris", MarksPossible: 1, Explanation: "Paris is the capital."},
		{Type: model.QuestionEssay, Text: "Explain channels.", ExpectedAnswer: "Typed conduits between goroutines.", MarksPossible: 5},
	}
}

func createTestQuiz(t *testing.T, s *Store, ownerID string) *model.QuizView {
	t.Helper()
	qv, err := s.CreateQuiz(context.Background(), model.Quiz{OwnerID: ownerID, Title: "Basics"}, testQuestions())
	if err != nil {
		t.Fatalf("createTestQuiz: %v", err)
	}
	return qv
}

func TestRebind(t *testing.T) {
	pg := &Store{driver: DriverPostgres}
	if got := pg.rebind(`SELECT a FROM t WHERE b = ? AND c = ?`); got != `SELECT a FROM t WHERE b = $1 AND c = $2` {
		t.Errorf("postgres rebind = %q", got)
	}
	lite := &Store{driver: DriverSQLite}
	if got := lite.rebind(`WHERE b = ?`); got != `WHERE b = ?` {
		t.Errorf("sqlite rebind = %q", got)
	}
}

func TestNewUnsupportedDriver(t *testing.T) {
	if _, err := New(context.Background(), "oracle", ""); err == nil {
		t.Error("expected error for unsupported driver")
	}
}

func TestUserCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	count, err := s.UserCount(ctx)
	if err != nil || count != 0 {
		t.Fatalf("UserCount = %d, %v; want 0", count, err)
	}

	id := createTestUser(t, s, "alice", model.UserRoleStudent)

	u, err := s.GetUserByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("GetUserByUsername: %v", err)
	}
	if u == nil || u.ID != id || !u.Active || u.Role != model.UserRoleStudent {
		t.Fatalf("unexpected user: %+v", u)
	}

	if _, err := s.CreateUser(ctx, model.User{Username: "alice", PasswordHash: "x", Role: model.UserRoleStudent}); !errors.Is(err, ErrDuplicate) {
		t.Errorf("duplicate username error = %v, want ErrDuplicate", err)
	}

	missing, err := s.GetUserByID(ctx, "nope")
	if err != nil || missing != nil {
		t.Errorf("GetUserByID(missing) = %v, %v; want nil, nil", missing, err)
	}

	createTestUser(t, s, "bob", model.UserRoleAdmin)
	users, err := s.ListUsers(ctx)
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(users) != 2 {
		t.Errorf("expected 2 users, got %d", len(users))
	}
}

func TestToggleUserActiveRevokesSessions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id := createTestUser(t, s, "alice", model.UserRoleStudent)

	sess, err := s.CreateAuthSession(ctx, id, time.Hour)
	if err != nil {
		t.Fatalf("CreateAuthSession: %v", err)
	}

	if err := s.ToggleUserActive(ctx, id); err != nil {
		t.Fatalf("ToggleUserActive: %v", err)
	}
	u, _ := s.GetUserByID(ctx, id)
	if u.Active {
		t.Error("user should be inactive")
	}
	got, err := s.GetAuthSession(ctx, sess.ID)
	if err != nil || got != nil {
		t.Errorf("session should be revoked, got %+v, %v", got, err)
	}

	if err := s.ToggleUserActive(ctx, id); err != nil {
		t.Fatalf("ToggleUserActive: %v", err)
	}
	u, _ = s.GetUserByID(ctx, id)
	if !u.Active {
		t.Error("user should be active again")
	}

	if err := s.ToggleUserActive(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("ToggleUserActive(missing) = %v, want ErrNotFound", err)
	}
}

func TestAuthSessions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id := createTestUser(t, s, "alice", model.UserRoleStudent)

	sess, err := s.CreateAuthSession(ctx, id, time.Hour)
	if err != nil {
		t.Fatalf("CreateAuthSession: %v", err)
	}
	got, err := s.GetAuthSession(ctx, sess.ID)
	if err != nil || got == nil || got.UserID != id {
		t.Fatalf("GetAuthSession = %+v, %v", got, err)
	}

	if err := s.DeleteAuthSession(ctx, sess.ID); err != nil {
		t.Fatalf("DeleteAuthSession: %v", err)
	}
	if got, _ := s.GetAuthSession(ctx, sess.ID); got != nil {
		t.Error("deleted session should not be returned")
	}

	expired, err := s.CreateAuthSession(ctx, id, -time.Minute)
	if err != nil {
		t.Fatalf("CreateAuthSession: %v", err)
	}
	if got, _ := s.GetAuthSession(ctx, expired.ID); got != nil {
		t.Error("expired session should not be returned")
	}

	if _, err := s.CreateAuthSession(ctx, id, -time.Minute); err != nil {
		t.Fatalf("CreateAuthSession: %v", err)
	}
	n, err := s.CleanupExpiredSessions(ctx)
	if err != nil {
		t.Fatalf("CleanupExpiredSessions: %v", err)
	}
	if n != 1 {
		t.Errorf("cleaned %d sessions, want 1", n)
	}
}

func TestMetadata(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	v, err := s.GetMetadata(ctx, "missing")
	if err != nil || v != "" {
		t.Errorf("GetMetadata(missing) = %q, %v", v, err)
	}
	if err := s.SetMetadata(ctx, "k", "v1"); err != nil {
		t.Fatalf("SetMetadata: %v", err)
	}
	if err := s.SetMetadata(ctx, "k", "v2"); err != nil {
		t.Fatalf("SetMetadata upsert: %v", err)
	}
	if v, _ := s.GetMetadata(ctx, "k"); v != "v2" {
		t.Errorf("GetMetadata = %q, want v2", v)
	}

	if id, _ := s.ImportedQuiz(ctx, "abc"); id != "" {
		t.Errorf("ImportedQuiz(new) = %q", id)
	}
	if err := s.SetImportedQuiz(ctx, "abc", "quiz-1"); err != nil {
		t.Fatalf("SetImportedQuiz: %v", err)
	}
	if id, _ := s.ImportedQuiz(ctx, "abc"); id != "quiz-1" {
		t.Errorf("ImportedQuiz = %q, want quiz-1", id)
	}
}

func TestQuizCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := createTestUser(t, s, "alice", model.UserRoleStudent)
	bob := createTestUser(t, s, "bob", model.UserRoleStudent)

	qv := createTestQuiz(t, s, alice)
	if qv.Quiz.Status != model.QuizDraft {
		t.Errorf("new quiz status = %q, want draft", qv.Quiz.Status)
	}

	got, err := s.GetQuizView(ctx, qv.Quiz.ID)
	if err != nil {
		t.Fatalf("GetQuizView: %v", err)
	}
	if got.Quiz.Title != "Basics" || len(got.Questions) != 3 {
		t.Fatalf("unexpected quiz view: %+v", got)
	}
	for i, q := range got.Questions {
		if q.Position != i+1 || q.QuizID != qv.Quiz.ID || q.ID != qv.Questions[i].ID {
			t.Errorf("question %d = %+v", i, q)
		}
	}
	if opts := got.Questions[0].Options; len(opts) != 2 || opts[1] != "4" {
		t.Errorf("options not round-tripped: %v", opts)
	}
	if got.Questions[1].Options != nil {
		t.Errorf("fill question should have no options, got %v", got.Questions[1].Options)
	}

	createTestQuiz(t, s, bob)
	mine, err := s.ListQuizzes(ctx, alice)
	if err != nil || len(mine) != 1 {
		t.Errorf("ListQuizzes(alice) = %d, %v; want 1", len(mine), err)
	}
	all, err := s.ListQuizzes(ctx, "")
	if err != nil || len(all) != 2 {
		t.Errorf("ListQuizzes(all) = %d, %v; want 2", len(all), err)
	}

	if err := s.DeleteQuiz(ctx, qv.Quiz.ID); err != nil {
		t.Fatalf("DeleteQuiz: %v", err)
	}
	if _, err := s.GetQuiz(ctx, qv.Quiz.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetQuiz after delete = %v, want ErrNotFound", err)
	}
	if qs, _ := s.GetQuestions(ctx, qv.Quiz.ID); len(qs) != 0 {
		t.Errorf("questions should cascade, got %d", len(qs))
	}
	if err := s.DeleteQuiz(ctx, qv.Quiz.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second DeleteQuiz = %v, want ErrNotFound", err)
	}
}

func TestSaveAttempt(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := createTestUser(t, s, "alice", model.UserRoleStudent)
	qv := createTestQuiz(t, s, alice)

	taken := 120
	attempt := model.Attempt{
		QuizID:          qv.Quiz.ID,
		UserID:          alice,
		Score:           71.43,
		TotalMarks:      7,
		MarksObtained:   5,
		OverallFeedback: "Good effort!",
		TimeTaken:       &taken,
	}
	answers := []model.AttemptAnswer{
		{QuestionID: qv.Questions[0].ID, UserAnswer: "4", IsCorrect: true, CorrectnessStatus: "correct", MarksAwarded: 1, MarksPossible: 1, Feedback: "Correct! Well done."},
		{QuestionID: qv.Questions[1].ID, UserAnswer: "Lyon", CorrectnessStatus: "incorrect", MarksPossible: 1, Feedback: "Incorrect."},
		{QuestionID: qv.Questions[2].ID, UserAnswer: "pipes", CorrectnessStatus: "partial", MarksAwarded: 4, MarksPossible: 5, Feedback: "Mostly there."},
	}

	saved, err := s.SaveAttempt(ctx, attempt, answers)
	if err != nil {
		t.Fatalf("SaveAttempt: %v", err)
	}

	quiz, _ := s.GetQuiz(ctx, qv.Quiz.ID)
	if quiz.Status != model.QuizCompleted {
		t.Errorf("quiz status = %q, want completed", quiz.Status)
	}

	view, err := s.GetAttemptView(ctx, saved.Attempt.ID)
	if err != nil {
		t.Fatalf("GetAttemptView: %v", err)
	}
	if view.Attempt.Score != 71.43 || view.Attempt.TimeTaken == nil || *view.Attempt.TimeTaken != 120 {
		t.Errorf("unexpected attempt: %+v", view.Attempt)
	}
	if len(view.Answers) != 3 {
		t.Fatalf("expected 3 answers, got %d", len(view.Answers))
	}
	if !view.Answers[0].IsCorrect || view.Answers[2].CorrectnessStatus != "partial" || view.Answers[2].MarksAwarded != 4 {
		t.Errorf("answers not round-tripped: %+v", view.Answers)
	}

	list, err := s.ListAttempts(ctx, alice)
	if err != nil || len(list) != 1 {
		t.Errorf("ListAttempts = %d, %v; want 1", len(list), err)
	}
	if _, err := s.GetAttemptView(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetAttemptView(missing) = %v, want ErrNotFound", err)
	}
}

func TestSaveAttemptMissingQuizRollsBack(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := createTestUser(t, s, "alice", model.UserRoleStudent)

	_, err := s.SaveAttempt(ctx, model.Attempt{QuizID: "missing", UserID: alice, OverallFeedback: "x"}, nil)
	if err == nil {
		t.Fatal("expected error for missing quiz")
	}
	if list, _ := s.ListAttempts(ctx, ""); len(list) != 0 {
		t.Errorf("attempt should be rolled back, found %d", len(list))
	}
}

func TestExportAttempts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := createTestUser(t, s, "alice", model.UserRoleStudent)
	qv := createTestQuiz(t, s, alice)

	_, err := s.SaveAttempt(ctx, model.Attempt{
		QuizID: qv.Quiz.ID, UserID: alice, Score: 100, TotalMarks: 1, MarksObtained: 1, OverallFeedback: "Excellent work!",
	}, []model.AttemptAnswer{
		{QuestionID: qv.Questions[1].ID, UserAnswer: "paris", IsCorrect: true, CorrectnessStatus: "correct", MarksAwarded: 1, MarksPossible: 1, Feedback: "Correct! Well done."},
	})
	if err != nil {
		t.Fatalf("SaveAttempt: %v", err)
	}

	results, err := s.ExportAttempts(ctx)
	if err != nil {
		t.Fatalf("ExportAttempts: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	r := results[0]
	if r.Username != "alice" || r.QuizTitle != "Basics" || r.TimeTaken != nil {
		t.Errorf("unexpected result: %+v", r)
	}
	if len(r.Questions) != 1 || r.Questions[0].Text != "Capital of France?" || r.Questions[0].ExpectedAnswer != "Paris" {
		t.Errorf("unexpected questions: %+v", r.Questions)
	}
}
