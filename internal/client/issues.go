package client

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/bugtracker/internal/logger"
)

// Issue — задача в том виде, как её отдаёт сервер. Временные поля —
// строки локального времени без смещения; пустой Closed означает
// открытую задачу.
type Issue struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Opened      string `json:"opened"`
	Closed      string `json:"closed"`
	CreatedBy   string `json:"createdBy"`
	AssignedTo  string `json:"assignedTo"`
}

// Statistics — сводные показатели для дашборда.
type Statistics struct {
	MaxOpen          int `json:"maxOpen"`
	CurrentOpen      int `json:"currentOpen"`
	ClosedInLastWeek int `json:"closedInLastWeek"`
}

// Issues — репозиторий задач с локальным кэшем по id. Кэш целиком
// заменяется при загрузке списка и точечно обновляется при загрузке
// одной задачи.
type Issues struct {
	transport *Transport
	session   *UserSession
	timezone  string

	mu    sync.Mutex
	cache map[string]Issue
}

func NewIssues(transport *Transport, session *UserSession, timezone string) *Issues {
	if timezone == "" {
		timezone = detectTimezone()
	}
	return &Issues{
		transport: transport,
		session:   session,
		timezone:  timezone,
		cache:     make(map[string]Issue),
	}
}

// detectTimezone определяет зону клиента. time.Local может называться
// "Local" — такое имя серверу бесполезно, берём UTC.
func detectTimezone() string {
	name := time.Now().Location().String()
	if name == "" || name == "Local" {
		return "UTC"
	}
	return name
}

func (r *Issues) issuePath(path string) string {
	return path + "?tz=" + url.QueryEscape(r.timezone)
}

// snapshot возвращает копию кэша: вызывающий не должен видеть последующие
// изменения внутренней карты.
func (r *Issues) snapshot() map[string]Issue {
	out := make(map[string]Issue, len(r.cache))
	for id, issue := range r.cache {
		out[id] = issue
	}
	return out
}

// LoadIssues загружает полный список и заменяет кэш целиком: задачи,
// исчезнувшие на сервере, пропадают и из кэша.
func (r *Issues) LoadIssues(ctx context.Context) (map[string]Issue, error) {
	var body struct {
		Issues []Issue `json:"issues"`
	}
	if err := r.transport.getJSON(ctx, r.issuePath("/issues"), &body); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = make(map[string]Issue, len(body.Issues))
	for _, issue := range body.Issues {
		r.cache[issue.ID] = issue
	}
	return r.snapshot(), nil
}

// LoadIssue загружает одну задачу. Для неизвестной задачи сервер отвечает
// 200 с полем error — возвращается nil, отрицательный результат не кэшируется.
func (r *Issues) LoadIssue(ctx context.Context, id string) *Issue {
	var body struct {
		Issue
		Error string `json:"error"`
	}
	if err := r.transport.getJSON(ctx, r.issuePath("/issues/"+url.PathEscape(id)), &body); err != nil {
		logger.Debugf("client: load issue %s: %v", id, err)
		return nil
	}
	if body.Error != "" {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache[body.Issue.ID] = body.Issue
	issue := body.Issue
	return &issue
}

// CreateIssue создаёт задачу и перезагружает список. Возвращает false без
// обращения к сети, если сессии нет; false же при отказе сервера (401 —
// сохранённая сессия отозвана).
func (r *Issues) CreateIssue(ctx context.Context, title, description string) (map[string]Issue, bool) {
	fields := map[string]any{
		"title":       title,
		"description": description,
	}
	if !r.session.AddAuthentication(fields) {
		return nil, false
	}

	resp, err := r.transport.do(ctx, http.MethodPost, "/issues", fields)
	if err != nil {
		logger.Debugf("client: create issue: %v", err)
		return nil, false
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther {
		return nil, false
	}

	cache, err := r.LoadIssues(ctx)
	if err != nil {
		// Задача создана, но перечитать список не удалось: отдаём
		// прежний снимок кэша, чтобы результат при ok оставался годным.
		logger.Debugf("client: reload after create: %v", err)
		return r.Cached(), true
	}
	return cache, true
}

// UpdateIssue изменяет задачу и перезагружает её. Семантика полей:
// отсутствующий ключ не меняет поле, assigneeId "" снимает исполнителя,
// closedFlag true/false закрывает или переоткрывает задачу.
func (r *Issues) UpdateIssue(ctx context.Context, id string, fields map[string]any) (*Issue, bool) {
	if !r.session.AddAuthentication(fields) {
		return nil, false
	}

	resp, err := r.transport.do(ctx, http.MethodPut, "/issues/"+url.PathEscape(id), fields)
	if err != nil {
		logger.Debugf("client: update issue %s: %v", id, err)
		return nil, false
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		return nil, false
	}

	return r.LoadIssue(ctx, id), true
}

// DashboardStatistics — сквозное чтение агрегатов, без локального состояния.
func (r *Issues) DashboardStatistics(ctx context.Context) (*Statistics, error) {
	var stats Statistics
	if err := r.transport.getJSON(ctx, "/dashboard", &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// Cached возвращает текущее содержимое кэша.
func (r *Issues) Cached() map[string]Issue {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshot()
}
