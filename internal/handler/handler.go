package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/pavelanni/quizmark/internal/auth"
	"github.com/pavelanni/quizmark/internal/marking"
	"github.com/pavelanni/quizmark/internal/model"
	"github.com/pavelanni/quizmark/internal/quizgen"
	"github.com/pavelanni/quizmark/internal/store"
)

const maxBodyBytes = 1 << 20

// Config holds HTTP-level settings.
type Config struct {
	SessionTTL    time.Duration
	SecureCookies bool
}

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store    *store.Store
	auth     *auth.Service
	marker   *marking.Marker
	quizgen  *quizgen.Service
	config   Config
	logger   *slog.Logger
	validate *validator.Validate
}

// New creates a new Handler. gen may be nil, in which case quiz generation
// answers 503.
func New(s *store.Store, a *auth.Service, m *marking.Marker, gen *quizgen.Service, cfg Config, logger *slog.Logger) *Handler {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 24 * time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &Handler{store: s, auth: a, marker: m, quizgen: gen, config: cfg, logger: logger, validate: v}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/healthz", h.handleHealth)
	r.Post("/api/auth/login", h.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(h.requireAuth)

		r.Post("/api/auth/logout", h.handleLogout)
		r.Get("/api/me", h.handleMe)

		r.Get("/api/quizzes", h.handleListQuizzes)
		r.Post("/api/quizzes", h.handleCreateQuiz)
		r.Post("/api/quizzes/generate", h.handleGenerateQuiz)
		r.Get("/api/quizzes/{quizID}", h.handleGetQuiz)
		r.Delete("/api/quizzes/{quizID}", h.handleDeleteQuiz)

		r.Post("/api/mark", h.handleMark)
		r.Get("/api/attempts", h.handleListAttempts)
		r.Get("/api/attempts/{attemptID}", h.handleGetAttempt)

		r.Route("/api/admin", func(r chi.Router) {
			r.Use(requireRole(model.UserRoleAdmin))
			r.Get("/users", h.handleListUsers)
			r.Post("/users", h.handleCreateUser)
			r.Post("/users/{userID}/toggle", h.handleToggleUserActive)
			r.Post("/quizzes/import", h.handleImportQuiz)
		})
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.store.Ping(ctx); err != nil {
		h.logger.Error("health check failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decodeJSON reads a JSON body into dst and validates it. On failure it has
// already written a 400 response.
func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON body: trailing data")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Namespace()
		if i := strings.IndexByte(field, '.'); i >= 0 {
			field = field[i+1:]
		}
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s: failed %s=%s", field, fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s: failed %s", field, fe.Tag()))
		}
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// canAccess reports whether user may see a resource owned by ownerID.
func canAccess(user *model.User, ownerID string) bool {
	return user.Role == model.UserRoleAdmin || user.ID == ownerID
}

// loadQuiz fetches a quiz visible to the caller. It writes 404 for missing or
// foreign quizzes and 500 for store failures.
func (h *Handler) loadQuiz(w http.ResponseWriter, r *http.Request, id string) (*model.QuizView, bool) {
	user := model.UserFromContext(r.Context())
	qv, err := h.store.GetQuizView(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) || (err == nil && !canAccess(user, qv.Quiz.OwnerID)) {
		writeError(w, http.StatusNotFound, "quiz not found")
		return nil, false
	}
	if err != nil {
		h.logger.Error("failed to load quiz", "quiz_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load quiz")
		return nil, false
	}
	return qv, true
}
