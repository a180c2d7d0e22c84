package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bugtracker/internal/logger"
	"github.com/bugtracker/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type SessionRepository struct {
	pool *pgxpool.Pool
}

func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

func (r *SessionRepository) Create(ctx context.Context, s *model.Session) error {
	defer logger.DeferLogDuration("session.Create", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO sessions (id, user_id, created_at, expires_at, revoked_at)
		 VALUES ($1, $2, $3, $4, NULL)`,
		s.ID, s.UserID, s.CreatedAt, s.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("sessionRepo.Create: %w", err)
	}
	return nil
}

// GetActiveByID возвращает сессию только если она не отозвана и не истекла.
func (r *SessionRepository) GetActiveByID(ctx context.Context, id string) (*model.Session, error) {
	defer logger.DeferLogDuration("session.GetActiveByID", time.Now())()
	s := &model.Session{}
	row := r.pool.QueryRow(ctx,
		`SELECT id, user_id, created_at, expires_at, revoked_at
		 FROM sessions WHERE id = $1 AND revoked_at IS NULL AND expires_at > NOW()`, id)
	err := row.Scan(&s.ID, &s.UserID, &s.CreatedAt, &s.ExpiresAt, &s.RevokedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("sessionRepo.GetActiveByID: %w", err)
	}
	return s, nil
}

// RevokeByUserID отзывает все активные сессии пользователя.
// Возвращает id отозванных сессий для очистки токенов в store.
func (r *SessionRepository) RevokeByUserID(ctx context.Context, userID string) ([]string, error) {
	defer logger.DeferLogDuration("session.RevokeByUserID", time.Now())()
	rows, err := r.pool.Query(ctx,
		`UPDATE sessions SET revoked_at = NOW()
		 WHERE user_id = $1 AND revoked_at IS NULL
		 RETURNING id`, userID)
	if err != nil {
		return nil, fmt.Errorf("sessionRepo.RevokeByUserID: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sessionRepo.RevokeByUserID scan: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeleteExpired удаляет истёкшие и отозванные сессии (фоновая уборка).
func (r *SessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	defer logger.DeferLogDuration("session.DeleteExpired", time.Now())()
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM sessions WHERE expires_at <= NOW() OR revoked_at IS NOT NULL`)
	if err != nil {
		return 0, fmt.Errorf("sessionRepo.DeleteExpired: %w", err)
	}
	return tag.RowsAffected(), nil
}
