package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Rate limit логина: 10 попыток / 10 минут на email. TTL токена совпадает
// со сроком жизни сессии в БД (1 день по умолчанию).
const (
	SessionTokenTTL      = 24 * time.Hour
	LoginRateLimitWindow = 600 * time.Second
	LoginRateLimitMax    = 10
)

type Client struct {
	cli *redis.Client
	ttl time.Duration
}

func New(ctx context.Context, url string, sessionTTL time.Duration) (*Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis parse url: %w", err)
	}
	cli := redis.NewClient(opts)
	if err := cli.Ping(ctx).Err(); err != nil {
		if closeErr := cli.Close(); closeErr != nil {
			return nil, fmt.Errorf("redis ping: %w (close: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	if sessionTTL <= 0 {
		sessionTTL = SessionTokenTTL
	}
	return &Client{cli: cli, ttl: sessionTTL}, nil
}

func (c *Client) Close() error {
	return c.cli.Close()
}

// SetSessionToken сохраняет user_id по ключу session:{id} с TTL сессии.
func (c *Client) SetSessionToken(ctx context.Context, sessionID, userID string) error {
	return c.cli.Set(ctx, "session:"+sessionID, userID, c.ttl).Err()
}

// GetSessionToken возвращает user_id по токену. Пустая строка — токена нет или истёк.
func (c *Client) GetSessionToken(ctx context.Context, sessionID string) (string, error) {
	val, err := c.cli.Get(ctx, "session:"+sessionID).Result()
	if err == redis.Nil {
		return "", nil
	}
	return val, err
}

// DeleteSessionToken удаляет токен при logout или отзыве сессии.
func (c *Client) DeleteSessionToken(ctx context.Context, sessionID string) error {
	return c.cli.Del(ctx, "session:"+sessionID).Err()
}

// CheckLoginRateLimit проверяет login_limit:{email}: макс. LoginRateLimitMax
// попыток за окно. При превышении — HTTP 429.
func (c *Client) CheckLoginRateLimit(ctx context.Context, email string) (allowed bool, err error) {
	key := "login_limit:" + email
	n, err := c.cli.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if n == 1 {
		c.cli.Expire(ctx, key, LoginRateLimitWindow)
	}
	return n <= int64(LoginRateLimitMax), nil
}

// FlushDB очищает текущую БД Redis (для сброса токенов и rate limit в тестах).
func (c *Client) FlushDB(ctx context.Context) error {
	return c.cli.FlushDB(ctx).Err()
}
