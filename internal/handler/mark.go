package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/quizmark/internal/marking"
	"github.com/pavelanni/quizmark/internal/model"
	"github.com/pavelanni/quizmark/internal/store"
)

type markRequest struct {
	QuizID    string          `json:"quiz_id" validate:"required"`
	Answers   []markAnswerReq `json:"answers" validate:"dive"`
	TimeTaken *int            `json:"time_taken" validate:"omitempty,gte=0"`
}

type markAnswerReq struct {
	QuestionID string `json:"question_id" validate:"required"`
	UserAnswer string `json:"user_answer"`
}

type markResponse struct {
	AttemptID string `json:"attempt_id"`
	marking.AggregatedGradingResponse
}

// handleMark joins the submitted answers with their questions, marks them
// and persists the attempt. An empty submission is recorded with a score of 0.
func (h *Handler) handleMark(w http.ResponseWriter, r *http.Request) {
	var req markRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	qv, ok := h.loadQuiz(w, r, req.QuizID)
	if !ok {
		return
	}

	byID := make(map[string]model.Question, len(qv.Questions))
	for _, q := range qv.Questions {
		byID[q.ID] = q
	}
	seen := make(map[string]bool, len(req.Answers))
	answers := make([]marking.AnswerToGrade, 0, len(req.Answers))
	for _, a := range req.Answers {
		q, ok := byID[a.QuestionID]
		if !ok {
			writeError(w, http.StatusBadRequest, "question "+a.QuestionID+" is not part of this quiz")
			return
		}
		if seen[a.QuestionID] {
			writeError(w, http.StatusBadRequest, "question "+a.QuestionID+" answered more than once")
			return
		}
		seen[a.QuestionID] = true
		answers = append(answers, marking.AnswerToGrade{
			QuestionID:    q.ID,
			QuestionText:  q.Text,
			QuestionType:  q.Type,
			UserAnswer:    a.UserAnswer,
			CorrectAnswer: q.ExpectedAnswer,
			MarksPossible: q.MarksPossible,
			Explanation:   q.Explanation,
		})
	}

	// Marking and persisting finish even if the client goes away.
	ctx := context.WithoutCancel(r.Context())
	resp, err := h.marker.MarkQuiz(ctx, answers)
	if err != nil {
		h.logger.Error("marking failed", "quiz_id", qv.Quiz.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to mark quiz: "+err.Error())
		return
	}

	user := model.UserFromContext(r.Context())
	attempt := model.Attempt{
		QuizID:          qv.Quiz.ID,
		UserID:          user.ID,
		Score:           resp.Percentage,
		TotalMarks:      resp.TotalMarksPossible,
		MarksObtained:   resp.TotalMarksAwarded,
		OverallFeedback: resp.OverallFeedback,
		TimeTaken:       req.TimeTaken,
	}
	submitted := make(map[string]string, len(req.Answers))
	for _, a := range req.Answers {
		submitted[a.QuestionID] = a.UserAnswer
	}
	rows := make([]model.AttemptAnswer, 0, len(resp.QuestionResults))
	for _, res := range resp.QuestionResults {
		rows = append(rows, model.AttemptAnswer{
			QuestionID:        res.QuestionID,
			UserAnswer:        submitted[res.QuestionID],
			IsCorrect:         res.IsCorrect,
			CorrectnessStatus: string(res.CorrectnessStatus),
			MarksAwarded:      res.MarksAwarded,
			MarksPossible:     res.MarksPossible,
			Feedback:          res.Feedback,
		})
	}

	saved, err := h.store.SaveAttempt(ctx, attempt, rows)
	if err != nil {
		h.logger.Error("failed to save attempt", "quiz_id", qv.Quiz.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save attempt")
		return
	}
	writeJSON(w, http.StatusOK, markResponse{AttemptID: saved.Attempt.ID, AggregatedGradingResponse: resp})
}

func (h *Handler) handleListAttempts(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	attempts, err := h.store.ListAttempts(r.Context(), user.ID)
	if err != nil {
		h.logger.Error("failed to list attempts", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list attempts")
		return
	}
	writeJSON(w, http.StatusOK, attempts)
}

func (h *Handler) handleGetAttempt(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "attemptID")
	view, err := h.store.GetAttemptView(r.Context(), id)
	user := model.UserFromContext(r.Context())
	if errors.Is(err, store.ErrNotFound) || (err == nil && !canAccess(user, view.Attempt.UserID)) {
		writeError(w, http.StatusNotFound, "attempt not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to get attempt", "attempt_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get attempt")
		return
	}
	writeJSON(w, http.StatusOK, view)
}
