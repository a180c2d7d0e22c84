package client

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/bugtracker/internal/logger"
)

// SessionTTL — срок жизни клиентской сессии после входа.
const SessionTTL = 24 * time.Hour

// User — запись из списка пользователей (для выбора исполнителя).
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// UserSession — регистрация, вход, выход и добавление учётных данных
// к запросам. cachedEmail — мемоизация последней известной личности;
// источником истины остаётся SessionStore.
type UserSession struct {
	transport *Transport
	store     SessionStore

	mu          sync.Mutex
	cachedEmail string
}

func NewUserSession(transport *Transport, store SessionStore) *UserSession {
	return &UserSession{transport: transport, store: store}
}

// Register создаёт нового пользователя. Возвращает текст отказа сервера
// (занятый email, некорректный адрес) — пустая строка означает успех.
// Сессию регистрация не создаёт.
func (s *UserSession) Register(ctx context.Context, email, password string) (string, error) {
	resp, err := s.transport.do(ctx, http.MethodPost, "/register", map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return "", nil
	}
	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}
	return body.Error, nil
}

// Login проверяет учётные данные на сервере и сохраняет выданную сессию.
// Любая неудача (сеть, отказ сервера) оставляет клиента разлогиненным.
func (s *UserSession) Login(ctx context.Context, email, password string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	resp, err := s.transport.do(ctx, http.MethodPost, "/login", map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		logger.Debugf("client: login: %v", err)
		s.cachedEmail = ""
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.cachedEmail = ""
		return false
	}
	var body struct {
		UserID    string `json:"userId"`
		SessionID string `json:"sessionId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		logger.Debugf("client: login decode: %v", err)
		s.cachedEmail = ""
		return false
	}

	if err := s.store.Set(email, body.UserID, body.SessionID, SessionTTL); err != nil {
		logger.Errorf("client: save session: %v", err)
		s.cachedEmail = ""
		return false
	}
	s.cachedEmail = email
	return true
}

// Logout отзывает сессию на сервере и безусловно чистит локальное состояние:
// даже если сервер недоступен, клиент считается вышедшим.
func (s *UserSession) Logout(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess := s.store.Get(); sess != nil {
		resp, err := s.transport.do(ctx, http.MethodPost, "/logout", map[string]string{
			"userId": sess.UserID,
		})
		if err != nil {
			logger.Debugf("client: logout: %v", err)
		} else {
			resp.Body.Close()
		}
	}

	if err := s.store.Clear(); err != nil {
		logger.Errorf("client: clear session: %v", err)
	}
	s.cachedEmail = ""
}

// AddAuthentication добавляет в fields ключи userId и sessionId из сохранённой
// сессии. Возвращает false без изменения fields, если сессии нет — такой
// запрос отправлять бессмысленно.
func (s *UserSession) AddAuthentication(fields map[string]any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.store.Get()
	if sess == nil {
		s.cachedEmail = ""
		return false
	}
	fields["userId"] = sess.UserID
	fields["sessionId"] = sess.SessionID
	s.cachedEmail = sess.Email
	return true
}

// Email возвращает email текущего пользователя или пустую строку,
// если сессии нет.
func (s *UserSession) Email() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cachedEmail != "" {
		return s.cachedEmail
	}
	if sess := s.store.Get(); sess != nil {
		s.cachedEmail = sess.Email
	}
	return s.cachedEmail
}

// GetUsers возвращает всех пользователей для выбора исполнителя.
// Неудача не фатальна: возвращается пустой список.
func (s *UserSession) GetUsers(ctx context.Context) []User {
	var body struct {
		Users []User `json:"users"`
	}
	if err := s.transport.getJSON(ctx, "/users", &body); err != nil {
		logger.Debugf("client: get users: %v", err)
		return []User{}
	}
	if body.Users == nil {
		return []User{}
	}
	return body.Users
}
