package storage

import "context"

// SessionTokenStore — быстрое хранилище токенов сессий и rate limit логина.
// Реализации: redis.Client, memory.Client (для -dev без Redis).
// Источник истины по сессиям — Postgres; store ускоряет проверку пары
// (userId, sessionId) и сам истекает токены по TTL.
type SessionTokenStore interface {
	SetSessionToken(ctx context.Context, sessionID, userID string) error
	GetSessionToken(ctx context.Context, sessionID string) (userID string, err error)
	DeleteSessionToken(ctx context.Context, sessionID string) error
	CheckLoginRateLimit(ctx context.Context, email string) (allowed bool, err error)
	Close() error
}
