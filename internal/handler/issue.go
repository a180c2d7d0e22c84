package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/bugtracker/internal/logger"
	"github.com/bugtracker/internal/middleware"
	"github.com/bugtracker/internal/model"
	"github.com/bugtracker/internal/push"
	"github.com/bugtracker/internal/repository"
	"github.com/bugtracker/internal/service"
	"github.com/bugtracker/internal/ws"
)

// Формат отображения времени в ответах API: локальное время без смещения.
const timeLayout = "2006-01-02T15:04:05"

// IssueHandler обрабатывает операции над задачами.
type IssueHandler struct {
	issues    *repository.IssueRepository
	stats     *service.StatsService
	hub       *ws.Hub
	notifier  *push.Notifier
	defaultTZ *time.Location
}

func NewIssueHandler(issues *repository.IssueRepository, stats *service.StatsService, hub *ws.Hub, notifier *push.Notifier, defaultTZ *time.Location) *IssueHandler {
	if defaultTZ == nil {
		defaultTZ = time.UTC
	}
	return &IssueHandler{issues: issues, stats: stats, hub: hub, notifier: notifier, defaultTZ: defaultTZ}
}

type issueView struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Opened      string  `json:"opened"`
	Closed      *string `json:"closed"`
	CreatedBy   string  `json:"createdBy"`
	AssignedTo  *string `json:"assignedTo"`
}

type issueListResponse struct {
	Issues []issueView `json:"issues"`
}

// location разбирает параметр tz запроса. Неизвестная зона не считается
// ошибкой: задачи отдаются во времени зоны по умолчанию.
func (h *IssueHandler) location(r *http.Request) *time.Location {
	tz := strings.TrimSpace(r.URL.Query().Get("tz"))
	if tz == "" {
		return h.defaultTZ
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		logger.Debugf("IssueHandler: unknown timezone %q, falling back to default", tz)
		return h.defaultTZ
	}
	return loc
}

// renderIssue переводит модель в ответ API: времена — строки в запрошенной
// зоне, создатель и исполнитель — email, а не внутренние id.
func renderIssue(i model.Issue, loc *time.Location) issueView {
	v := issueView{
		ID:          i.ID,
		Title:       i.Title,
		Description: i.Description,
		Opened:      i.Opened.In(loc).Format(timeLayout),
		CreatedBy:   i.CreatedByEmail,
	}
	if i.Closed != nil {
		closed := i.Closed.In(loc).Format(timeLayout)
		v.Closed = &closed
	}
	if i.AssignedTo != nil {
		email := i.AssignedToEmail
		v.AssignedTo = &email
	}
	return v
}

// List возвращает все задачи в порядке открытия.
func (h *IssueHandler) List(w http.ResponseWriter, r *http.Request) {
	issues, err := h.issues.List(r.Context())
	if err != nil {
		logger.Errorf("IssueHandler.List: %v", err)
		writeError(w, http.StatusInternalServerError, "Внутренняя ошибка сервера")
		return
	}

	loc := h.location(r)
	views := make([]issueView, 0, len(issues))
	for _, i := range issues {
		views = append(views, renderIssue(i, loc))
	}
	writeJSON(w, http.StatusOK, issueListResponse{Issues: views})
}

// Get возвращает задачу по идентификатору.
// Для неизвестной задачи отдаётся 200 с полем error: клиент различает
// «задачи нет» и «запрос не удался» по телу, а не по статусу.
func (h *IssueHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "issueID")

	issue, err := h.issues.GetByID(r.Context(), id)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, renderIssue(*issue, h.location(r)))
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusOK, fmt.Sprintf("Cannot find issue '%s'", id))
	default:
		logger.Errorf("IssueHandler.Get: %v", err)
		writeError(w, http.StatusInternalServerError, "Внутренняя ошибка сервера")
	}
}

type createIssueRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Create открывает новую задачу от имени аутентифицированного пользователя.
// Успешный ответ — 303 с заголовком Location созданной задачи.
func (h *IssueHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createIssueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Некорректное тело запроса")
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		writeError(w, http.StatusBadRequest, "Название задачи не может быть пустым")
		return
	}

	id := uuid.New().String()
	userID := middleware.GetUserID(r.Context())
	if err := h.issues.Create(r.Context(), id, req.Title, req.Description, userID); err != nil {
		logger.Errorf("IssueHandler.Create: %v", err)
		writeError(w, http.StatusInternalServerError, "Внутренняя ошибка сервера")
		return
	}

	h.stats.Invalidate()
	h.hub.Broadcast(ws.Event{Type: ws.EventIssueCreated, IssueID: id})

	w.Header().Set("Location", "/issues/"+id)
	w.WriteHeader(http.StatusSeeOther)
}

type updateIssueRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	ClosedFlag  *bool   `json:"closedFlag"`
	AssigneeID  *string `json:"assigneeId"`
}

// Update изменяет поля существующей задачи. Отсутствующие поля не трогаются,
// пустой assigneeId снимает исполнителя.
func (h *IssueHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "issueID")

	var req updateIssueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Некорректное тело запроса")
		return
	}

	prev, err := h.issues.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("Cannot find issue '%s'", id))
			return
		}
		logger.Errorf("IssueHandler.Update: %v", err)
		writeError(w, http.StatusInternalServerError, "Внутренняя ошибка сервера")
		return
	}

	upd := repository.IssueUpdate{
		Title:       req.Title,
		Description: req.Description,
		ClosedFlag:  req.ClosedFlag,
		AssigneeID:  req.AssigneeID,
	}
	if err := h.issues.Update(r.Context(), id, upd); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("Cannot find issue '%s'", id))
			return
		}
		logger.Errorf("IssueHandler.Update: %v", err)
		writeError(w, http.StatusInternalServerError, "Внутренняя ошибка сервера")
		return
	}

	if req.ClosedFlag != nil {
		h.stats.Invalidate()
	}
	h.hub.Broadcast(ws.Event{Type: ws.EventIssueUpdated, IssueID: id})
	h.notifyNewAssignee(*prev, req)

	w.WriteHeader(http.StatusNoContent)
}

// notifyNewAssignee отправляет push-уведомление, если задача назначена
// на нового исполнителя. Отправка идёт в фоне и не задерживает ответ.
func (h *IssueHandler) notifyNewAssignee(prev model.Issue, req updateIssueRequest) {
	if h.notifier == nil || !h.notifier.Enabled() {
		return
	}
	if req.AssigneeID == nil || *req.AssigneeID == "" {
		return
	}
	if prev.AssignedTo != nil && *prev.AssignedTo == *req.AssigneeID {
		return
	}

	assignee := *req.AssigneeID
	title := prev.Title
	if req.Title != nil {
		title = *req.Title
	}
	go h.notifier.NotifyAssigned(context.Background(), assignee, prev.ID, title)
}
