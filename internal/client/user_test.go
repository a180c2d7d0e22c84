package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeServer — минимальный сервер трекера для тестов клиента.
type fakeServer struct {
	mux      *http.ServeMux
	requests []string
}

func newFakeServer() *fakeServer {
	f := &fakeServer{mux: http.NewServeMux()}
	return f
}

func (f *fakeServer) handle(pattern string, h http.HandlerFunc) {
	f.mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		f.requests = append(f.requests, r.Method+" "+r.URL.Path)
		h(w, r)
	})
}

func (f *fakeServer) start(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(f.mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestUserSessionRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("success is an empty message", func(t *testing.T) {
		f := newFakeServer()
		f.handle("/register", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})
		srv := f.start(t)

		s := NewUserSession(NewTransport(srv.URL), NewMemorySessionStore())
		msg, err := s.Register(ctx, "user@example.com", "pw")
		require.NoError(t, err)
		assert.Empty(t, msg)
	})

	t.Run("server refusal is returned verbatim", func(t *testing.T) {
		f := newFakeServer()
		f.handle("/register", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]string{
				"error": "User 'user@example.com' already exists",
			})
		})
		srv := f.start(t)

		s := NewUserSession(NewTransport(srv.URL), NewMemorySessionStore())
		msg, err := s.Register(ctx, "user@example.com", "pw")
		require.NoError(t, err)
		assert.Equal(t, "User 'user@example.com' already exists", msg)
	})

	t.Run("register does not establish a session", func(t *testing.T) {
		f := newFakeServer()
		f.handle("/register", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})
		srv := f.start(t)

		store := NewMemorySessionStore()
		s := NewUserSession(NewTransport(srv.URL), store)
		_, err := s.Register(ctx, "user@example.com", "pw")
		require.NoError(t, err)
		assert.Nil(t, store.Get())
		assert.Empty(t, s.Email())
	})
}

func TestUserSessionLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("success persists the session", func(t *testing.T) {
		f := newFakeServer()
		f.handle("/login", func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]string{
				"userId":    "u1",
				"sessionId": "0123456789abcdef0123456789abcdef",
			})
		})
		srv := f.start(t)

		store := NewMemorySessionStore()
		s := NewUserSession(NewTransport(srv.URL), store)
		assert.True(t, s.Login(ctx, "user@example.com", "pw"))

		sess := store.Get()
		require.NotNil(t, sess)
		assert.Equal(t, "user@example.com", sess.Email)
		assert.Equal(t, "u1", sess.UserID)
		assert.Equal(t, "0123456789abcdef0123456789abcdef", sess.SessionID)
		assert.Equal(t, "user@example.com", s.Email())
	})

	t.Run("rejected credentials leave no session", func(t *testing.T) {
		f := newFakeServer()
		f.handle("/login", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
		})
		srv := f.start(t)

		store := NewMemorySessionStore()
		s := NewUserSession(NewTransport(srv.URL), store)
		assert.False(t, s.Login(ctx, "user@example.com", "wrong"))
		assert.Nil(t, store.Get())
		assert.Empty(t, s.Email())
	})

	t.Run("network failure leaves no session", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		srv.Close() // сервер недоступен

		store := NewMemorySessionStore()
		s := NewUserSession(NewTransport(srv.URL), store)
		assert.False(t, s.Login(ctx, "user@example.com", "pw"))
		assert.Nil(t, store.Get())
	})
}

func TestUserSessionLogout(t *testing.T) {
	ctx := context.Background()

	t.Run("posts userId and clears locally", func(t *testing.T) {
		var gotUserID string
		f := newFakeServer()
		f.handle("/logout", func(w http.ResponseWriter, r *http.Request) {
			var body map[string]string
			json.NewDecoder(r.Body).Decode(&body)
			gotUserID = body["userId"]
			w.WriteHeader(http.StatusNoContent)
		})
		srv := f.start(t)

		store := NewMemorySessionStore()
		require.NoError(t, store.Set("user@example.com", "u1", "s1", time.Hour))
		s := NewUserSession(NewTransport(srv.URL), store)

		s.Logout(ctx)
		assert.Equal(t, "u1", gotUserID)
		assert.Nil(t, store.Get())
		assert.Empty(t, s.Email())
	})

	t.Run("clears locally even when the server is down", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		srv.Close()

		store := NewMemorySessionStore()
		require.NoError(t, store.Set("user@example.com", "u1", "s1", time.Hour))
		s := NewUserSession(NewTransport(srv.URL), store)

		s.Logout(ctx)
		assert.Nil(t, store.Get())
		assert.Empty(t, s.Email())
	})
}

func TestUserSessionAddAuthentication(t *testing.T) {
	t.Run("no session leaves fields untouched", func(t *testing.T) {
		s := NewUserSession(NewTransport("http://unused"), NewMemorySessionStore())

		fields := map[string]any{"title": "Bug A"}
		assert.False(t, s.AddAuthentication(fields))
		assert.Equal(t, map[string]any{"title": "Bug A"}, fields)
	})

	t.Run("session adds exactly userId and sessionId", func(t *testing.T) {
		store := NewMemorySessionStore()
		require.NoError(t, store.Set("user@example.com", "u1", "s1", time.Hour))
		s := NewUserSession(NewTransport("http://unused"), store)

		fields := map[string]any{"title": "Bug A"}
		assert.True(t, s.AddAuthentication(fields))
		assert.Equal(t, map[string]any{
			"title":     "Bug A",
			"userId":    "u1",
			"sessionId": "s1",
		}, fields)
	})

	t.Run("refreshes cached email from the store", func(t *testing.T) {
		store := NewMemorySessionStore()
		require.NoError(t, store.Set("user@example.com", "u1", "s1", time.Hour))
		s := NewUserSession(NewTransport("http://unused"), store)

		assert.True(t, s.AddAuthentication(map[string]any{}))
		assert.Equal(t, "user@example.com", s.Email())
	})
}

func TestUserSessionGetUsers(t *testing.T) {
	ctx := context.Background()

	t.Run("returns users from the server", func(t *testing.T) {
		f := newFakeServer()
		f.handle("/users", func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{
				"users": []User{
					{ID: "u1", Email: "a@example.com"},
					{ID: "u2", Email: "b@example.com"},
				},
			})
		})
		srv := f.start(t)

		s := NewUserSession(NewTransport(srv.URL), NewMemorySessionStore())
		users := s.GetUsers(ctx)
		require.Len(t, users, 2)
		assert.Equal(t, "a@example.com", users[0].Email)
	})

	t.Run("failure yields an empty list", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		srv.Close()

		s := NewUserSession(NewTransport(srv.URL), NewMemorySessionStore())
		users := s.GetUsers(ctx)
		assert.NotNil(t, users)
		assert.Empty(t, users)
	})
}
