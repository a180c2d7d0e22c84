// Package memory — реализация SessionTokenStore в памяти процесса.
// Используется в -dev и в тестах, когда Redis не нужен.
package memory

import (
	"context"
	"sync"
	"time"
)

const (
	loginRateLimitWindow = 600 * time.Second
	loginRateLimitMax    = 10
	defaultTokenTTL      = 24 * time.Hour
)

type item struct {
	val string
	exp time.Time
}

type Client struct {
	mu     sync.RWMutex
	tokens map[string]item
	limit  map[string][]time.Time
	ttl    time.Duration
}

func New(sessionTTL time.Duration) *Client {
	if sessionTTL <= 0 {
		sessionTTL = defaultTokenTTL
	}
	return &Client{
		tokens: make(map[string]item),
		limit:  make(map[string][]time.Time),
		ttl:    sessionTTL,
	}
}

func (c *Client) Close() error { return nil }

func (c *Client) SetSessionToken(ctx context.Context, sessionID, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens[sessionID] = item{val: userID, exp: time.Now().Add(c.ttl)}
	return nil
}

func (c *Client) GetSessionToken(ctx context.Context, sessionID string) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.tokens[sessionID]
	if !ok || time.Now().After(v.exp) {
		return "", nil
	}
	return v.val, nil
}

func (c *Client) DeleteSessionToken(ctx context.Context, sessionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.tokens, sessionID)
	return nil
}

func (c *Client) CheckLoginRateLimit(ctx context.Context, email string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	cutoff := now.Add(-loginRateLimitWindow)
	slice := c.limit[email]
	i := 0
	for _, t := range slice {
		if t.After(cutoff) {
			slice[i] = t
			i++
		}
	}
	slice = append(slice[:i], now)
	c.limit[email] = slice
	return len(slice) <= loginRateLimitMax, nil
}
