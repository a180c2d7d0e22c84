package push

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/bugtracker/internal/logger"
	"github.com/bugtracker/internal/model"
	"github.com/bugtracker/internal/repository"
)

// Notifier отправляет web-push уведомление исполнителю при назначении задачи.
// Без VAPID-ключей все методы no-op. Отправка best-effort: ошибки логируются,
// мёртвые подписки (404/410) удаляются.
type Notifier struct {
	subs    *repository.SubscriptionRepository
	options *webpush.Options
}

func NewNotifier(subs *repository.SubscriptionRepository, keys *VAPIDKeys, subscriber string) *Notifier {
	if keys == nil || keys.PublicKey == "" || keys.PrivateKey == "" {
		return &Notifier{}
	}
	return &Notifier{
		subs: subs,
		options: &webpush.Options{
			Subscriber:      subscriber,
			VAPIDPublicKey:  keys.PublicKey,
			VAPIDPrivateKey: keys.PrivateKey,
			TTL:             3600,
		},
	}
}

// Enabled сообщает, настроены ли пуши (для /api/push/config).
func (n *Notifier) Enabled() bool { return n.options != nil }

// PublicKey возвращает публичный VAPID-ключ для подписки в браузере.
func (n *Notifier) PublicKey() string {
	if n.options == nil {
		return ""
	}
	return n.options.VAPIDPublicKey
}

type assignedPayload struct {
	Type    string `json:"type"`
	IssueID string `json:"issue_id"`
	Title   string `json:"title"`
}

// NotifyAssigned шлёт уведомление всем подпискам пользователя userID.
func (n *Notifier) NotifyAssigned(ctx context.Context, userID, issueID, title string) {
	if n.options == nil {
		return
	}
	subs, err := n.subs.ListByUserID(ctx, userID)
	if err != nil {
		logger.Errorf("push: list subscriptions user_id=%s: %v", userID, err)
		return
	}
	if len(subs) == 0 {
		return
	}
	payload, err := json.Marshal(assignedPayload{Type: "issue_assigned", IssueID: issueID, Title: title})
	if err != nil {
		logger.Errorf("push: marshal payload: %v", err)
		return
	}
	for _, sub := range subs {
		n.send(ctx, sub, payload)
	}
}

func (n *Notifier) send(ctx context.Context, sub model.PushSubscription, payload []byte) {
	sendCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys:     webpush.Keys{P256dh: sub.P256dh, Auth: sub.Auth},
	}
	resp, err := webpush.SendNotificationWithContext(sendCtx, payload, wpSub, n.options)
	if err != nil {
		logger.Errorf("push: send user_id=%s: %v", sub.UserID, err)
		return
	}
	defer resp.Body.Close()
	// Endpoint больше не существует — подписку можно выбросить.
	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
		if err := n.subs.DeleteByEndpoint(ctx, sub.UserID, sub.Endpoint); err != nil {
			logger.Errorf("push: delete dead subscription user_id=%s: %v", sub.UserID, err)
		}
	}
}
