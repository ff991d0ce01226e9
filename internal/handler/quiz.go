package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/quizmark/internal/model"
	"github.com/pavelanni/quizmark/internal/quizgen"
	"github.com/pavelanni/quizmark/internal/store"
)

func (h *Handler) handleListQuizzes(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	quizzes, err := h.store.ListQuizzes(r.Context(), user.ID)
	if err != nil {
		h.logger.Error("failed to list quizzes", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list quizzes")
		return
	}
	writeJSON(w, http.StatusOK, quizzes)
}

func (h *Handler) handleCreateQuiz(w http.ResponseWriter, r *http.Request) {
	var req model.QuizImport
	if !h.decodeJSON(w, r, &req) {
		return
	}
	questions, err := quizgen.NormalizeQuiz(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user := model.UserFromContext(r.Context())
	qv, err := h.store.CreateQuiz(r.Context(), model.Quiz{OwnerID: user.ID, Title: strings.TrimSpace(req.Title)}, questions)
	if err != nil {
		h.logger.Error("failed to create quiz", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create quiz")
		return
	}
	h.logger.Info("created quiz", "quiz_id", qv.Quiz.ID, "questions", len(qv.Questions))
	writeJSON(w, http.StatusCreated, qv)
}

func (h *Handler) handleGenerateQuiz(w http.ResponseWriter, r *http.Request) {
	if h.quizgen == nil {
		writeError(w, http.StatusServiceUnavailable, "quiz generation is not configured")
		return
	}
	var req quizgen.Request
	if !h.decodeJSON(w, r, &req) {
		return
	}

	quiz, err := h.quizgen.Generate(r.Context(), req)
	if errors.Is(err, quizgen.ErrGeneration) || errors.Is(err, quizgen.ErrNoQuestions) {
		h.logger.Warn("quiz generation failed", "error", err)
		writeError(w, http.StatusBadGateway, "could not generate a quiz from this content, please try again")
		return
	}
	if err != nil {
		h.logger.Error("quiz generation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to generate quiz")
		return
	}

	user := model.UserFromContext(r.Context())
	qv, err := h.store.CreateQuiz(r.Context(), model.Quiz{OwnerID: user.ID, Title: quiz.Title, Source: req.Content}, quiz.Questions)
	if err != nil {
		h.logger.Error("failed to store generated quiz", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create quiz")
		return
	}
	writeJSON(w, http.StatusCreated, qv)
}

// handleGetQuiz returns the quiz for taking: expected answers and
// explanations are withheld.
func (h *Handler) handleGetQuiz(w http.ResponseWriter, r *http.Request) {
	qv, ok := h.loadQuiz(w, r, chi.URLParam(r, "quizID"))
	if !ok {
		return
	}
	for i := range qv.Questions {
		qv.Questions[i].ExpectedAnswer = ""
		qv.Questions[i].Explanation = ""
	}
	writeJSON(w, http.StatusOK, qv)
}

func (h *Handler) handleDeleteQuiz(w http.ResponseWriter, r *http.Request) {
	qv, ok := h.loadQuiz(w, r, chi.URLParam(r, "quizID"))
	if !ok {
		return
	}
	err := h.store.DeleteQuiz(r.Context(), qv.Quiz.ID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "quiz not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to delete quiz", "quiz_id", qv.Quiz.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete quiz")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
