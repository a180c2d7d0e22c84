package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bugtracker/internal/model"
	"github.com/bugtracker/internal/repository"
	"github.com/bugtracker/internal/storage/memory"
)

type fakeUserStore struct {
	byEmail map[string]*model.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{byEmail: make(map[string]*model.User)}
}

func (f *fakeUserStore) Create(ctx context.Context, u *model.User) error {
	if _, ok := f.byEmail[u.Email]; ok {
		return repository.ErrDuplicateEmail
	}
	f.byEmail[u.Email] = u
	return nil
}

func (f *fakeUserStore) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	u, ok := f.byEmail[email]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return u, nil
}

func (f *fakeUserStore) GetByID(ctx context.Context, id string) (*model.User, error) {
	for _, u := range f.byEmail {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, repository.ErrNotFound
}

type fakeSessionStore struct {
	sessions map[string]*model.Session
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: make(map[string]*model.Session)}
}

func (f *fakeSessionStore) Create(ctx context.Context, s *model.Session) error {
	f.sessions[s.ID] = s
	return nil
}

func (f *fakeSessionStore) GetActiveByID(ctx context.Context, id string) (*model.Session, error) {
	s, ok := f.sessions[id]
	if !ok || s.RevokedAt != nil || !s.ExpiresAt.After(time.Now()) {
		return nil, repository.ErrNotFound
	}
	return s, nil
}

func (f *fakeSessionStore) RevokeByUserID(ctx context.Context, userID string) ([]string, error) {
	now := time.Now()
	var revoked []string
	for id, s := range f.sessions {
		if s.UserID == userID && s.RevokedAt == nil {
			s.RevokedAt = &now
			revoked = append(revoked, id)
		}
	}
	return revoked, nil
}

func newTestAuthService() (*AuthService, *fakeUserStore, *fakeSessionStore) {
	users := newFakeUserStore()
	sessions := newFakeSessionStore()
	svc := NewAuthService(users, sessions, memory.New(time.Hour), time.Hour)
	return svc, users, sessions
}

func TestValidEmail(t *testing.T) {
	valid := []string{"user@example.com", "wibble@wobble", "a@b.c"}
	for _, e := range valid {
		assert.True(t, validEmail(e), e)
	}
	invalid := []string{"", "no-at-sign", "@example.com", "user@", "someone@nowhere.", "two@@ats", "spa ce@example.com"}
	for _, e := range invalid {
		assert.False(t, validEmail(e), e)
	}
}

func TestAuthServiceRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("success hashes the password", func(t *testing.T) {
		svc, users, _ := newTestAuthService()
		require.NoError(t, svc.Register(ctx, "user@example.com", "pw1"))

		u := users.byEmail["user@example.com"]
		require.NotNil(t, u)
		assert.NotEmpty(t, u.ID)
		assert.NotEqual(t, "pw1", u.PasswordHash)
	})

	t.Run("duplicate email", func(t *testing.T) {
		svc, _, _ := newTestAuthService()
		require.NoError(t, svc.Register(ctx, "user@example.com", "pw1"))
		assert.ErrorIs(t, svc.Register(ctx, "user@example.com", "pw2"), ErrEmailTaken)
	})

	t.Run("invalid email", func(t *testing.T) {
		svc, _, _ := newTestAuthService()
		assert.ErrorIs(t, svc.Register(ctx, "someone@nowhere.", "pw"), ErrInvalidEmail)
	})
}

func TestAuthServiceLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("success issues a 32 char hex session", func(t *testing.T) {
		svc, _, _ := newTestAuthService()
		require.NoError(t, svc.Register(ctx, "user@example.com", "pw1"))

		res, err := svc.Login(ctx, "user@example.com", "pw1")
		require.NoError(t, err)
		assert.NotEmpty(t, res.UserID)
		assert.Len(t, res.SessionID, 32)
		assert.NotContains(t, res.SessionID, "-")
	})

	t.Run("wrong password", func(t *testing.T) {
		svc, _, _ := newTestAuthService()
		require.NoError(t, svc.Register(ctx, "user@example.com", "pw1"))

		_, err := svc.Login(ctx, "user@example.com", "wrong")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("unknown user", func(t *testing.T) {
		svc, _, _ := newTestAuthService()
		_, err := svc.Login(ctx, "nobody@example.com", "pw")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("login revokes the previous session", func(t *testing.T) {
		svc, _, _ := newTestAuthService()
		require.NoError(t, svc.Register(ctx, "user@example.com", "pw1"))

		first, err := svc.Login(ctx, "user@example.com", "pw1")
		require.NoError(t, err)
		second, err := svc.Login(ctx, "user@example.com", "pw1")
		require.NoError(t, err)

		assert.False(t, svc.Authenticate(ctx, first.UserID, first.SessionID))
		assert.True(t, svc.Authenticate(ctx, second.UserID, second.SessionID))
	})
}

func TestAuthServiceAuthenticate(t *testing.T) {
	ctx := context.Background()

	t.Run("valid pair", func(t *testing.T) {
		svc, _, _ := newTestAuthService()
		require.NoError(t, svc.Register(ctx, "user@example.com", "pw1"))
		res, err := svc.Login(ctx, "user@example.com", "pw1")
		require.NoError(t, err)

		assert.True(t, svc.Authenticate(ctx, res.UserID, res.SessionID))
	})

	t.Run("mismatched user", func(t *testing.T) {
		svc, _, _ := newTestAuthService()
		require.NoError(t, svc.Register(ctx, "user@example.com", "pw1"))
		res, err := svc.Login(ctx, "user@example.com", "pw1")
		require.NoError(t, err)

		assert.False(t, svc.Authenticate(ctx, "someone-else", res.SessionID))
	})

	t.Run("empty credentials", func(t *testing.T) {
		svc, _, _ := newTestAuthService()
		assert.False(t, svc.Authenticate(ctx, "", ""))
		assert.False(t, svc.Authenticate(ctx, "u1", ""))
		assert.False(t, svc.Authenticate(ctx, "", "s1"))
	})

	t.Run("falls back to sessions when token store is cold", func(t *testing.T) {
		users := newFakeUserStore()
		sessions := newFakeSessionStore()
		svc := NewAuthService(users, sessions, memory.New(time.Hour), time.Hour)
		require.NoError(t, svc.Register(ctx, "user@example.com", "pw1"))
		res, err := svc.Login(ctx, "user@example.com", "pw1")
		require.NoError(t, err)

		// Новый token store имитирует перезапуск: токенов нет, сессия в БД есть.
		cold := NewAuthService(users, sessions, memory.New(time.Hour), time.Hour)
		assert.True(t, cold.Authenticate(ctx, res.UserID, res.SessionID))
	})

	t.Run("logout revokes the session", func(t *testing.T) {
		svc, _, _ := newTestAuthService()
		require.NoError(t, svc.Register(ctx, "user@example.com", "pw1"))
		res, err := svc.Login(ctx, "user@example.com", "pw1")
		require.NoError(t, err)

		require.NoError(t, svc.Logout(ctx, res.UserID))
		assert.False(t, svc.Authenticate(ctx, res.UserID, res.SessionID))

		// Повторный выход не ошибка.
		require.NoError(t, svc.Logout(ctx, res.UserID))
	})
}
