package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bugtracker/internal/logger"
	"github.com/bugtracker/internal/middleware"
	"github.com/bugtracker/internal/model"
	"github.com/bugtracker/internal/repository"
	"github.com/bugtracker/internal/storage"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidEmail       = errors.New("invalid email format")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrRateLimitExceeded  = errors.New("rate limit exceeded")
)

// UserStore и SessionStore — подмножества репозиториев, нужные сервису
// (в тестах подменяются фейками без БД).
type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByID(ctx context.Context, id string) (*model.User, error)
}

type SessionStore interface {
	Create(ctx context.Context, s *model.Session) error
	GetActiveByID(ctx context.Context, id string) (*model.Session, error)
	RevokeByUserID(ctx context.Context, userID string) ([]string, error)
}

// AuthService — регистрация, вход по паролю и проверка пары (userId, sessionId).
// Пароли хранятся как bcrypt-хеши. Активная сессия у пользователя одна:
// вход отзывает предыдущие.
type AuthService struct {
	users    UserStore
	sessions SessionStore
	tokens   storage.SessionTokenStore
	ttl      time.Duration
}

func NewAuthService(users UserStore, sessions SessionStore, tokens storage.SessionTokenStore, ttl time.Duration) *AuthService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &AuthService{users: users, sessions: sessions, tokens: tokens, ttl: ttl}
}

// validEmail — упрощённая проверка: непустые части вокруг одного @, без
// пробелов, домен не оканчивается точкой.
func validEmail(s string) bool {
	if strings.ContainsAny(s, " \t") || strings.Count(s, "@") != 1 {
		return false
	}
	at := strings.Index(s, "@")
	local, domain := s[:at], s[at+1:]
	if local == "" || domain == "" {
		return false
	}
	return !strings.HasSuffix(domain, ".")
}

// Register создаёт пользователя. Сессию не открывает — клиент логинится отдельно.
func (s *AuthService) Register(ctx context.Context, email, password string) error {
	email = strings.TrimSpace(email)
	if !validEmail(email) {
		return ErrInvalidEmail
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("auth.Register hash: %w", err)
	}
	u := &model.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return ErrEmailTaken
		}
		return err
	}
	return nil
}

type LoginResult struct {
	UserID    string
	SessionID string
}

// Login проверяет пароль и открывает новую сессию, отзывая прежние.
// SessionID — 32-символьный hex-токен.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.TrimSpace(email)
	allowed, err := s.tokens.CheckLoginRateLimit(ctx, strings.ToLower(email))
	if err != nil {
		logger.Errorf("login: rate limit check email=%s: %v", email, err)
	} else if !allowed {
		return nil, ErrRateLimitExceeded
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}

	if err := s.revokeSessions(ctx, user.ID); err != nil {
		return nil, err
	}

	sessionID := strings.ReplaceAll(uuid.New().String(), "-", "")
	now := time.Now().UTC()
	session := &model.Session{
		ID:        sessionID,
		UserID:    user.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, err
	}
	if err := s.tokens.SetSessionToken(ctx, sessionID, user.ID); err != nil {
		// Токен — только ускорение; проверка упадёт обратно в Postgres.
		logger.Errorf("login: SetSessionToken session_id=%s: %v", middleware.MaskSessionID(sessionID), err)
	}
	return &LoginResult{UserID: user.ID, SessionID: sessionID}, nil
}

// Logout отзывает все сессии пользователя. Идемпотентен.
func (s *AuthService) Logout(ctx context.Context, userID string) error {
	return s.revokeSessions(ctx, userID)
}

func (s *AuthService) revokeSessions(ctx context.Context, userID string) error {
	ids, err := s.sessions.RevokeByUserID(ctx, userID)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := s.tokens.DeleteSessionToken(ctx, id); err != nil {
			logger.Errorf("logout: DeleteSessionToken session_id=%s: %v", middleware.MaskSessionID(id), err)
		}
	}
	return nil
}

// Authenticate проверяет пару (userId, sessionId): сперва быстрый путь через
// token store, затем Postgres (токен мог истечь раньше сессии или store пуст
// после перезапуска). Успешная проверка по БД заново прогревает токен.
func (s *AuthService) Authenticate(ctx context.Context, userID, sessionID string) bool {
	if userID == "" || sessionID == "" {
		return false
	}
	if owner, err := s.tokens.GetSessionToken(ctx, sessionID); err == nil && owner != "" {
		return owner == userID
	}
	session, err := s.sessions.GetActiveByID(ctx, sessionID)
	if err != nil || session.UserID != userID {
		return false
	}
	if err := s.tokens.SetSessionToken(ctx, sessionID, userID); err != nil {
		logger.Errorf("authenticate: SetSessionToken session_id=%s: %v", middleware.MaskSessionID(sessionID), err)
	}
	return true
}
