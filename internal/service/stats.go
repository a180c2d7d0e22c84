package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/bugtracker/internal/repository"
)

// Statistics — агрегаты для страницы dashboard.
// MaxOpen — максимум одновременно открытых задач за всю историю.
type Statistics struct {
	MaxOpen          int `json:"maxOpen"`
	CurrentOpen      int `json:"currentOpen"`
	ClosedInLastWeek int `json:"closedInLastWeek"`
}

// SpanSource отдаёт интервалы (opened, closed) всех задач.
type SpanSource interface {
	Spans(ctx context.Context) ([]repository.IssueSpan, error)
}

// StatsService считает статистику по задачам. MaxOpen — полный проход по
// событиям открытия/закрытия, поэтому кешируется; кеш сбрасывается
// Invalidate() при создании задачи или смене её closed-состояния.
type StatsService struct {
	source SpanSource

	mu         sync.Mutex
	maxOpen    int
	cacheValid bool
}

func NewStatsService(source SpanSource) *StatsService {
	return &StatsService{source: source}
}

// Invalidate сбрасывает кеш MaxOpen.
func (s *StatsService) Invalidate() {
	s.mu.Lock()
	s.cacheValid = false
	s.mu.Unlock()
}

// Statistics возвращает текущие агрегаты.
func (s *StatsService) Statistics(ctx context.Context) (*Statistics, error) {
	spans, err := s.source.Spans(ctx)
	if err != nil {
		return nil, err
	}

	weekAgo := time.Now().UTC().Add(-7 * 24 * time.Hour)
	current, closedLastWeek := 0, 0
	for _, span := range spans {
		if span.Closed == nil {
			current++
		} else if span.Closed.After(weekAgo) {
			closedLastWeek++
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.cacheValid {
		s.maxOpen = maxSimultaneouslyOpen(spans)
		s.cacheValid = true
	}
	return &Statistics{
		MaxOpen:          s.maxOpen,
		CurrentOpen:      current,
		ClosedInLastWeek: closedLastWeek,
	}, nil
}

type spanEvent struct {
	at    time.Time
	delta int
}

// maxSimultaneouslyOpen — развёртка событий открытия (+1) и закрытия (-1) по
// времени. При совпадении времён закрытие обрабатывается раньше открытия.
func maxSimultaneouslyOpen(spans []repository.IssueSpan) int {
	events := make([]spanEvent, 0, 2*len(spans))
	for _, s := range spans {
		events = append(events, spanEvent{at: s.Opened, delta: 1})
		if s.Closed != nil {
			events = append(events, spanEvent{at: *s.Closed, delta: -1})
		}
	}
	sort.Slice(events, func(a, b int) bool {
		if events[a].at.Equal(events[b].at) {
			return events[a].delta < events[b].delta
		}
		return events[a].at.Before(events[b].at)
	})
	open, max := 0, 0
	for _, e := range events {
		open += e.delta
		if open > max {
			max = open
		}
	}
	return max
}
