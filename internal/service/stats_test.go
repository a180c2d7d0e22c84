package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bugtracker/internal/repository"
)

type fakeSpanSource struct {
	spans []repository.IssueSpan
	calls int
	err   error
}

func (f *fakeSpanSource) Spans(ctx context.Context) ([]repository.IssueSpan, error) {
	f.calls++
	return f.spans, f.err
}

func at(h int) time.Time {
	return time.Date(2026, 8, 1, h, 0, 0, 0, time.UTC)
}

func closedAt(h int) *time.Time {
	t := at(h)
	return &t
}

func TestMaxSimultaneouslyOpen(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		assert.Equal(t, 0, maxSimultaneouslyOpen(nil))
	})

	t.Run("non overlapping", func(t *testing.T) {
		spans := []repository.IssueSpan{
			{Opened: at(1), Closed: closedAt(2)},
			{Opened: at(3), Closed: closedAt(4)},
		}
		assert.Equal(t, 1, maxSimultaneouslyOpen(spans))
	})

	t.Run("peak in the middle of the history", func(t *testing.T) {
		// Шесть задач открыты одновременно в час 6, потом волна спадает.
		spans := []repository.IssueSpan{
			{Opened: at(1), Closed: closedAt(7)},
			{Opened: at(2), Closed: closedAt(8)},
			{Opened: at(3), Closed: closedAt(9)},
			{Opened: at(4), Closed: closedAt(10)},
			{Opened: at(5), Closed: closedAt(11)},
			{Opened: at(6), Closed: closedAt(12)},
			{Opened: at(13), Closed: nil},
		}
		assert.Equal(t, 6, maxSimultaneouslyOpen(spans))
	})

	t.Run("close before open on equal timestamps", func(t *testing.T) {
		// Одна задача закрывается ровно в момент открытия другой:
		// одновременно открытой остаётся одна.
		spans := []repository.IssueSpan{
			{Opened: at(1), Closed: closedAt(2)},
			{Opened: at(2), Closed: closedAt(3)},
		}
		assert.Equal(t, 1, maxSimultaneouslyOpen(spans))
	})

	t.Run("still open issues count", func(t *testing.T) {
		spans := []repository.IssueSpan{
			{Opened: at(1), Closed: nil},
			{Opened: at(2), Closed: nil},
			{Opened: at(3), Closed: nil},
		}
		assert.Equal(t, 3, maxSimultaneouslyOpen(spans))
	})
}

func TestStatsServiceStatistics(t *testing.T) {
	ctx := context.Background()

	t.Run("aggregates", func(t *testing.T) {
		now := time.Now().UTC()
		recent := now.Add(-24 * time.Hour)
		old := now.Add(-30 * 24 * time.Hour)
		source := &fakeSpanSource{spans: []repository.IssueSpan{
			{Opened: old, Closed: &old},
			{Opened: old, Closed: &recent},
			{Opened: old, Closed: nil},
			{Opened: recent, Closed: nil},
		}}

		stats, err := NewStatsService(source).Statistics(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, stats.CurrentOpen)
		assert.Equal(t, 1, stats.ClosedInLastWeek)
		assert.Equal(t, 3, stats.MaxOpen)
	})

	t.Run("max open is cached until invalidated", func(t *testing.T) {
		source := &fakeSpanSource{spans: []repository.IssueSpan{
			{Opened: at(1), Closed: nil},
			{Opened: at(2), Closed: nil},
		}}
		svc := NewStatsService(source)

		stats, err := svc.Statistics(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, stats.MaxOpen)

		// Источник изменился, но кеш ещё действителен.
		source.spans = append(source.spans, repository.IssueSpan{Opened: at(3)})
		stats, err = svc.Statistics(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, stats.MaxOpen)
		assert.Equal(t, 3, stats.CurrentOpen)

		svc.Invalidate()
		stats, err = svc.Statistics(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, stats.MaxOpen)
	})

	t.Run("source error is propagated", func(t *testing.T) {
		source := &fakeSpanSource{err: errors.New("db down")}
		_, err := NewStatsService(source).Statistics(ctx)
		assert.Error(t, err)
	})
}
