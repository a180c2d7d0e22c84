package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/bugtracker/internal/logger"
	"github.com/bugtracker/internal/model"
	"github.com/jackc/pgx/v5/pgxpool"
)

type SubscriptionRepository struct {
	pool *pgxpool.Pool
}

func NewSubscriptionRepository(pool *pgxpool.Pool) *SubscriptionRepository {
	return &SubscriptionRepository{pool: pool}
}

// Upsert сохраняет подписку; повторная подписка того же браузера обновляет ключи.
func (r *SubscriptionRepository) Upsert(ctx context.Context, s *model.PushSubscription) error {
	defer logger.DeferLogDuration("subscription.Upsert", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO push_subscriptions (id, user_id, endpoint, p256dh, auth, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (user_id, endpoint) DO UPDATE SET
		   p256dh = EXCLUDED.p256dh,
		   auth = EXCLUDED.auth`,
		s.ID, s.UserID, s.Endpoint, s.P256dh, s.Auth, s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("subscriptionRepo.Upsert: %w", err)
	}
	return nil
}

func (r *SubscriptionRepository) ListByUserID(ctx context.Context, userID string) ([]model.PushSubscription, error) {
	defer logger.DeferLogDuration("subscription.ListByUserID", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, endpoint, p256dh, auth, created_at
		 FROM push_subscriptions WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("subscriptionRepo.ListByUserID: %w", err)
	}
	defer rows.Close()
	var list []model.PushSubscription
	for rows.Next() {
		var s model.PushSubscription
		if err := rows.Scan(&s.ID, &s.UserID, &s.Endpoint, &s.P256dh, &s.Auth, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("subscriptionRepo.ListByUserID scan: %w", err)
		}
		list = append(list, s)
	}
	return list, rows.Err()
}

// DeleteByEndpoint удаляет подписку (отписка или endpoint отказал с 404/410).
func (r *SubscriptionRepository) DeleteByEndpoint(ctx context.Context, userID, endpoint string) error {
	defer logger.DeferLogDuration("subscription.DeleteByEndpoint", time.Now())()
	_, err := r.pool.Exec(ctx,
		`DELETE FROM push_subscriptions WHERE user_id = $1 AND endpoint = $2`,
		userID, endpoint)
	if err != nil {
		return fmt.Errorf("subscriptionRepo.DeleteByEndpoint: %w", err)
	}
	return nil
}
