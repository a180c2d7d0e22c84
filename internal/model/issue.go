package model

import "time"

// Issue — задача. Closed == nil означает открытую задачу; закрытие ставит
// отметку времени, повторное открытие её снимает. AssignedTo — id исполнителя
// (nil — не назначен).
type Issue struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Opened      time.Time  `json:"opened"`
	Closed      *time.Time `json:"closed,omitempty"`
	CreatedBy   string     `json:"created_by"`
	AssignedTo  *string    `json:"assigned_to,omitempty"`

	// Email-представления создателя и исполнителя (JOIN с users при чтении).
	CreatedByEmail  string `json:"-"`
	AssignedToEmail string `json:"-"`
}

// PushSubscription — браузерная web-push подписка пользователя (уведомления
// о назначении задач).
type PushSubscription struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Endpoint  string    `json:"endpoint"`
	P256dh    string    `json:"p256dh"`
	Auth      string    `json:"auth"`
	CreatedAt time.Time `json:"created_at"`
}
