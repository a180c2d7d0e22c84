package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/bugtracker/internal/logger"
	"github.com/bugtracker/internal/middleware"
	"github.com/bugtracker/internal/service"
)

// AuthHandler обрабатывает регистрацию, вход и выход пользователей.
type AuthHandler struct {
	auth *service.AuthService
}

func NewAuthHandler(auth *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register регистрирует нового пользователя.
// При занятом email или некорректном адресе возвращает 200 с полем error,
// чтобы клиент мог показать причину отказа.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Некорректное тело запроса")
		return
	}

	err := h.auth.Register(r.Context(), req.Email, req.Password)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, service.ErrEmailTaken):
		writeError(w, http.StatusOK, fmt.Sprintf("User '%s' already exists", req.Email))
	case errors.Is(err, service.ErrInvalidEmail):
		writeError(w, http.StatusOK, fmt.Sprintf("Email address '%s' is invalid", req.Email))
	default:
		logger.Errorf("AuthHandler.Register: %v", err)
		writeError(w, http.StatusInternalServerError, "Внутренняя ошибка сервера")
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	UserID    string `json:"userId"`
	SessionID string `json:"sessionId"`
}

// Login проверяет учётные данные и выдаёт новую сессию.
// Предыдущие сессии пользователя при этом отзываются.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Некорректное тело запроса")
		return
	}

	res, err := h.auth.Login(r.Context(), req.Email, req.Password)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, loginResponse{UserID: res.UserID, SessionID: res.SessionID})
	case errors.Is(err, service.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "Неверный email или пароль")
	case errors.Is(err, service.ErrRateLimitExceeded):
		writeError(w, http.StatusTooManyRequests, "Слишком много попыток входа, попробуйте позже")
	default:
		logger.Errorf("AuthHandler.Login: %v", err)
		writeError(w, http.StatusInternalServerError, "Внутренняя ошибка сервера")
	}
}

type logoutRequest struct {
	UserID string `json:"userId"`
}

// Logout отзывает все активные сессии пользователя.
// Ответ всегда 204: повторный выход не считается ошибкой.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req logoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Некорректное тело запроса")
		return
	}
	if req.UserID == "" {
		req.UserID = middleware.GetUserID(r.Context())
	}

	if err := h.auth.Logout(r.Context(), req.UserID); err != nil {
		logger.Errorf("AuthHandler.Logout: %v", err)
	}
	w.WriteHeader(http.StatusNoContent)
}
