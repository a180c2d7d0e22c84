package client

import (
	"encoding/json"
	"os"
	"sync"
	"time"
)

// Session — сохранённые учётные данные пользователя. Клиент их не проверяет:
// действительность пары userId/sessionId определяет сервер при каждом запросе.
type Session struct {
	Email     string    `json:"email"`
	UserID    string    `json:"userId"`
	SessionID string    `json:"sessionId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// SessionStore хранит сессию между запросами. Инвариант «всё или ничего»:
// Get возвращает сессию только если заполнены все три поля и срок не истёк,
// частичное состояние равносильно отсутствию сессии.
type SessionStore interface {
	Set(email, userID, sessionID string, ttl time.Duration) error
	Clear() error
	Get() *Session
}

// MemorySessionStore держит сессию в памяти процесса.
type MemorySessionStore struct {
	mu      sync.Mutex
	session Session
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{}
}

func (s *MemorySessionStore) Set(email, userID, sessionID string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = Session{
		Email:     email,
		UserID:    userID,
		SessionID: sessionID,
		ExpiresAt: time.Now().Add(ttl),
	}
	return nil
}

func (s *MemorySessionStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = Session{}
	return nil
}

func (s *MemorySessionStore) Get() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return validSession(s.session)
}

// FileSessionStore сохраняет сессию в JSON-файл, переживая перезапуск клиента.
type FileSessionStore struct {
	mu   sync.Mutex
	path string
}

func NewFileSessionStore(path string) *FileSessionStore {
	return &FileSessionStore{path: path}
}

func (s *FileSessionStore) Set(email, userID, sessionID string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := json.Marshal(Session{
		Email:     email,
		UserID:    userID,
		SessionID: sessionID,
		ExpiresAt: time.Now().Add(ttl),
	})
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0600)
}

func (s *FileSessionStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := os.Remove(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (s *FileSessionStore) Get() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil
	}
	return validSession(sess)
}

func validSession(sess Session) *Session {
	if sess.Email == "" || sess.UserID == "" || sess.SessionID == "" {
		return nil
	}
	if !sess.ExpiresAt.After(time.Now()) {
		return nil
	}
	return &sess
}
