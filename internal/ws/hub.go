// Package ws — рассылка событий по задачам подключённым клиентам, чтобы
// открытые списки обновлялись без перезагрузки. Доставка best-effort:
// медленный клиент отключается, повтора событий нет.
package ws

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/bugtracker/internal/logger"
)

const (
	EventIssueCreated = "issue_created"
	EventIssueUpdated = "issue_updated"
)

// Event — уведомление об изменении задачи.
type Event struct {
	Type    string `json:"type"`
	IssueID string `json:"id"`
}

type Hub struct {
	mu       sync.RWMutex
	clients  map[*Client]struct{}
	maxConns int

	register   chan *Client
	unregister chan *Client
	broadcast  chan Event
}

func NewHub(maxConns int) *Hub {
	if maxConns <= 0 {
		maxConns = 1000
	}
	return &Hub{
		clients:    make(map[*Client]struct{}),
		maxConns:   maxConns,
		register:   make(chan *Client, 64),
		unregister: make(chan *Client, 64),
		broadcast:  make(chan Event, 256),
	}
}

// Run обрабатывает регистрацию клиентов и рассылку до отмены контекста.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				c.Close()
			}
			h.clients = make(map[*Client]struct{})
			h.mu.Unlock()
			return
		case c := <-h.register:
			h.mu.Lock()
			if len(h.clients) >= h.maxConns {
				h.mu.Unlock()
				logger.Errorf("ws: connection limit %d reached, rejecting client", h.maxConns)
				c.Close()
				continue
			}
			h.clients[c] = struct{}{}
			h.mu.Unlock()
		case c := <-h.unregister:
			h.mu.Lock()
			delete(h.clients, c)
			h.mu.Unlock()
			c.Close()
		case ev := <-h.broadcast:
			data, err := json.Marshal(ev)
			if err != nil {
				logger.Errorf("ws: marshal event: %v", err)
				continue
			}
			h.mu.RLock()
			for c := range h.clients {
				c.enqueue(data)
			}
			h.mu.RUnlock()
		}
	}
}

// Broadcast ставит событие в очередь рассылки (не блокирует: при переполнении
// событие теряется — клиент всё равно перечитает список при следующем заходе).
func (h *Hub) Broadcast(ev Event) {
	select {
	case h.broadcast <- ev:
	default:
		logger.Errorf("ws: broadcast queue full, dropping %s %s", ev.Type, ev.IssueID)
	}
}
