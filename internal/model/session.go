package model

import "time"

// Session — серверная сессия пользователя. ID — 32-символьный hex-токен,
// который клиент предъявляет вместе с user_id в каждом изменяющем запросе.
type Session struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt time.Time  `json:"expires_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
}
