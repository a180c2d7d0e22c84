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

// IssueUpdate — частичное обновление задачи. nil-поле означает «не менять».
// ClosedFlag=true закрывает задачу (отметка времени не перезаписывается, если
// задача уже закрыта), false — открывает заново. AssigneeID="" снимает исполнителя.
type IssueUpdate struct {
	Title       *string
	Description *string
	ClosedFlag  *bool
	AssigneeID  *string
}

// IssueSpan — интервал (opened, closed) для подсчёта статистики.
type IssueSpan struct {
	Opened time.Time
	Closed *time.Time
}

const issueCols = `i.id, i.title, i.description, i.opened, i.closed, i.created_by, i.assigned_to,
	 cu.email, COALESCE(au.email, '')`

const issueFrom = ` FROM issues i
	 JOIN users cu ON cu.id = i.created_by
	 LEFT JOIN users au ON au.id = i.assigned_to`

type IssueRepository struct {
	pool *pgxpool.Pool
}

func NewIssueRepository(pool *pgxpool.Pool) *IssueRepository {
	return &IssueRepository{pool: pool}
}

func scanIssue(s interface{ Scan(dest ...any) error }, i *model.Issue) error {
	return s.Scan(&i.ID, &i.Title, &i.Description, &i.Opened, &i.Closed,
		&i.CreatedBy, &i.AssignedTo, &i.CreatedByEmail, &i.AssignedToEmail)
}

// List возвращает все задачи в порядке открытия, с email создателя и исполнителя.
func (r *IssueRepository) List(ctx context.Context) ([]model.Issue, error) {
	defer logger.DeferLogDuration("issue.List", time.Now())()
	rows, err := r.pool.Query(ctx, `SELECT `+issueCols+issueFrom+` ORDER BY i.opened, i.id`)
	if err != nil {
		return nil, fmt.Errorf("issueRepo.List: %w", err)
	}
	defer rows.Close()
	var list []model.Issue
	for rows.Next() {
		var i model.Issue
		if err := scanIssue(rows, &i); err != nil {
			return nil, fmt.Errorf("issueRepo.List scan: %w", err)
		}
		list = append(list, i)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("issueRepo.List rows: %w", err)
	}
	return list, nil
}

func (r *IssueRepository) GetByID(ctx context.Context, id string) (*model.Issue, error) {
	defer logger.DeferLogDuration("issue.GetByID", time.Now())()
	i := &model.Issue{}
	row := r.pool.QueryRow(ctx, `SELECT `+issueCols+issueFrom+` WHERE i.id = $1`, id)
	if err := scanIssue(row, i); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("issueRepo.GetByID: %w", err)
	}
	return i, nil
}

// Create открывает новую задачу. Closed изначально NULL, исполнитель не назначен.
func (r *IssueRepository) Create(ctx context.Context, id, title, description, createdBy string) error {
	defer logger.DeferLogDuration("issue.Create", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO issues (id, title, description, opened, closed, created_by, assigned_to)
		 VALUES ($1, $2, $3, NOW(), NULL, $4, NULL)`,
		id, title, description, createdBy,
	)
	if err != nil {
		return fmt.Errorf("issueRepo.Create: %w", err)
	}
	return nil
}

// Update применяет частичное обновление в одной транзакции.
// Возвращает ErrNotFound, если задачи нет.
func (r *IssueRepository) Update(ctx context.Context, id string, upd IssueUpdate) error {
	defer logger.DeferLogDuration("issue.Update", time.Now())()
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("issueRepo.Update begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM issues WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("issueRepo.Update exists: %w", err)
	}
	if !exists {
		return ErrNotFound
	}

	if upd.Title != nil {
		if _, err := tx.Exec(ctx, `UPDATE issues SET title = $1 WHERE id = $2`, *upd.Title, id); err != nil {
			return fmt.Errorf("issueRepo.Update title: %w", err)
		}
	}
	if upd.Description != nil {
		if _, err := tx.Exec(ctx, `UPDATE issues SET description = $1 WHERE id = $2`, *upd.Description, id); err != nil {
			return fmt.Errorf("issueRepo.Update description: %w", err)
		}
	}
	if upd.ClosedFlag != nil {
		if *upd.ClosedFlag {
			// Повторное закрытие не перезаписывает отметку времени.
			if _, err := tx.Exec(ctx, `UPDATE issues SET closed = NOW() WHERE id = $1 AND closed IS NULL`, id); err != nil {
				return fmt.Errorf("issueRepo.Update close: %w", err)
			}
		} else {
			if _, err := tx.Exec(ctx, `UPDATE issues SET closed = NULL WHERE id = $1`, id); err != nil {
				return fmt.Errorf("issueRepo.Update reopen: %w", err)
			}
		}
	}
	if upd.AssigneeID != nil {
		if *upd.AssigneeID == "" {
			if _, err := tx.Exec(ctx, `UPDATE issues SET assigned_to = NULL WHERE id = $1`, id); err != nil {
				return fmt.Errorf("issueRepo.Update unassign: %w", err)
			}
		} else {
			if _, err := tx.Exec(ctx, `UPDATE issues SET assigned_to = $1 WHERE id = $2`, *upd.AssigneeID, id); err != nil {
				return fmt.Errorf("issueRepo.Update assign: %w", err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("issueRepo.Update commit: %w", err)
	}
	return nil
}

// Spans возвращает интервалы (opened, closed) всех задач для подсчёта статистики.
func (r *IssueRepository) Spans(ctx context.Context) ([]IssueSpan, error) {
	defer logger.DeferLogDuration("issue.Spans", time.Now())()
	rows, err := r.pool.Query(ctx, `SELECT opened, closed FROM issues`)
	if err != nil {
		return nil, fmt.Errorf("issueRepo.Spans: %w", err)
	}
	defer rows.Close()
	var spans []IssueSpan
	for rows.Next() {
		var s IssueSpan
		if err := rows.Scan(&s.Opened, &s.Closed); err != nil {
			return nil, fmt.Errorf("issueRepo.Spans scan: %w", err)
		}
		spans = append(spans, s)
	}
	return spans, rows.Err()
}
