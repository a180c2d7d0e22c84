package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/bugtracker/internal/logger"
	"github.com/bugtracker/internal/middleware"
	"github.com/bugtracker/internal/model"
	"github.com/bugtracker/internal/push"
	"github.com/bugtracker/internal/repository"
)

// PushHandler управляет браузерными подписками на push-уведомления.
type PushHandler struct {
	subs     *repository.SubscriptionRepository
	notifier *push.Notifier
}

func NewPushHandler(subs *repository.SubscriptionRepository, notifier *push.Notifier) *PushHandler {
	return &PushHandler{subs: subs, notifier: notifier}
}

type pushConfigResponse struct {
	Enabled        bool   `json:"enabled"`
	VAPIDPublicKey string `json:"vapidPublicKey,omitempty"`
}

// Config отдаёт публичный VAPID-ключ. Клиент передаёт его браузеру
// при вызове pushManager.subscribe.
func (h *PushHandler) Config(w http.ResponseWriter, r *http.Request) {
	resp := pushConfigResponse{Enabled: h.notifier != nil && h.notifier.Enabled()}
	if resp.Enabled {
		resp.VAPIDPublicKey = h.notifier.PublicKey()
	}
	writeJSON(w, http.StatusOK, resp)
}

type subscribeRequest struct {
	Subscription struct {
		Endpoint string `json:"endpoint"`
		Keys     struct {
			P256dh string `json:"p256dh"`
			Auth   string `json:"auth"`
		} `json:"keys"`
	} `json:"subscription"`
}

// Subscribe сохраняет подписку текущего пользователя.
func (h *PushHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Некорректное тело запроса")
		return
	}
	if req.Subscription.Endpoint == "" {
		writeError(w, http.StatusBadRequest, "Подписка должна содержать endpoint")
		return
	}

	sub := &model.PushSubscription{
		ID:        uuid.New().String(),
		UserID:    middleware.GetUserID(r.Context()),
		Endpoint:  req.Subscription.Endpoint,
		P256dh:    req.Subscription.Keys.P256dh,
		Auth:      req.Subscription.Keys.Auth,
		CreatedAt: time.Now(),
	}
	if err := h.subs.Upsert(r.Context(), sub); err != nil {
		logger.Errorf("PushHandler.Subscribe: %v", err)
		writeError(w, http.StatusInternalServerError, "Внутренняя ошибка сервера")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type unsubscribeRequest struct {
	Endpoint string `json:"endpoint"`
}

// Unsubscribe удаляет подписку текущего пользователя.
func (h *PushHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	var req unsubscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Некорректное тело запроса")
		return
	}

	userID := middleware.GetUserID(r.Context())
	if err := h.subs.DeleteByEndpoint(r.Context(), userID, req.Endpoint); err != nil {
		logger.Errorf("PushHandler.Unsubscribe: %v", err)
		writeError(w, http.StatusInternalServerError, "Внутренняя ошибка сервера")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
