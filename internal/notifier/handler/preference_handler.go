package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/central-university-dev/go-forum-notifier/internal/common/middleware"
	"github.com/central-university-dev/go-forum-notifier/internal/config"
	customerrors "github.com/central-university-dev/go-forum-notifier/internal/domain/errors"
	"github.com/central-university-dev/go-forum-notifier/internal/notifier/service"
)

// PreferenceHandler обслуживает HTTP API предпочтений уведомлений.
type PreferenceHandler struct {
	prefService *service.PreferenceService
	logger      *slog.Logger
}

func NewPreferenceHandler(prefService *service.PreferenceService, logger *slog.Logger) *PreferenceHandler {
	return &PreferenceHandler{
		prefService: prefService,
		logger:      logger,
	}
}

type preferenceResponse struct {
	UserID     int64  `json:"userId"`
	CourseID   string `json:"courseId"`
	Preference int    `json:"preference"`
	Name       string `json:"name"`
}

type updatePreferenceRequest struct {
	Preference int `json:"preference"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *PreferenceHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/preferences", h.handlePreferences)
}

func (h *PreferenceHandler) handlePreferences(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.getPreference(w, r)
	case http.MethodPut:
		h.updatePreference(w, r)
	default:
		h.writeError(w, http.StatusMethodNotAllowed, "метод не поддерживается")
	}
}

func (h *PreferenceHandler) getPreference(w http.ResponseWriter, r *http.Request) {
	userID, courseID, err := parseIdentity(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	pref, err := h.prefService.Get(r.Context(), userID, courseID)
	if err != nil {
		h.logger.Error("Ошибка при получении предпочтения",
			"userID", userID,
			"courseID", courseID,
			"error", err,
		)
		h.writeError(w, http.StatusInternalServerError, "внутренняя ошибка сервера")

		return
	}

	h.writeJSON(w, http.StatusOK, preferenceResponse{
		UserID:     pref.UserID,
		CourseID:   pref.CourseID,
		Preference: int(pref.Preference),
		Name:       pref.Preference.String(),
	})
}

func (h *PreferenceHandler) updatePreference(w http.ResponseWriter, r *http.Request) {
	userID, courseID, err := parseIdentity(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req updatePreferenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "некорректное тело запроса")
		return
	}

	pref, err := h.prefService.Update(r.Context(), userID, courseID, req.Preference)
	if err != nil {
		if errors.Is(err, &customerrors.ErrInvalidPreferenceValue{}) {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		h.logger.Error("Ошибка при обновлении предпочтения",
			"userID", userID,
			"courseID", courseID,
			"error", err,
		)
		h.writeError(w, http.StatusInternalServerError, "внутренняя ошибка сервера")

		return
	}

	h.writeJSON(w, http.StatusOK, preferenceResponse{
		UserID:     pref.UserID,
		CourseID:   pref.CourseID,
		Preference: int(pref.Preference),
		Name:       pref.Preference.String(),
	})
}

func parseIdentity(r *http.Request) (int64, string, error) {
	userIDParam := r.URL.Query().Get("user_id")
	courseID := r.URL.Query().Get("course_id")

	if userIDParam == "" || courseID == "" {
		return 0, "", errors.New("параметры user_id и course_id обязательны")
	}

	userID, err := strconv.ParseInt(userIDParam, 10, 64)
	if err != nil {
		return 0, "", errors.New("некорректное значение user_id")
	}

	return userID, courseID, nil
}

func (h *PreferenceHandler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("Ошибка при сериализации ответа",
			"error", err,
		)
	}
}

func (h *PreferenceHandler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, errorResponse{Error: message})
}

// NewServer собирает HTTP-сервер API предпочтений с ограничением частоты
// запросов по IP и сбором метрик.
func NewServer(ctx context.Context, cfg *config.Config, h *PreferenceHandler, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	metricsMiddleware := middleware.NewMetricsMiddleware("notifier")
	rateLimiter := middleware.NewRateLimiterMiddleware(ctx, cfg.RateLimitRequests, cfg.RateLimitWindow, logger)

	return &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           rateLimiter.Middleware(metricsMiddleware.Middleware(mux)),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
}
