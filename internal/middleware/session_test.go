package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeValidator struct {
	userID    string
	sessionID string
}

func (f *fakeValidator) Authenticate(ctx context.Context, userID, sessionID string) bool {
	return userID == f.userID && sessionID == f.sessionID
}

func TestSessionAuth(t *testing.T) {
	validator := &fakeValidator{userID: "u1", sessionID: "s1"}

	newHandler := func(got *map[string]any) http.Handler {
		return SessionAuth(validator)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if got != nil {
				body, _ := io.ReadAll(r.Body)
				var fields map[string]any
				json.Unmarshal(body, &fields)
				*got = fields
				(*got)["ctxUserID"] = GetUserID(r.Context())
			}
			w.WriteHeader(http.StatusNoContent)
		}))
	}

	t.Run("credentials in headers", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/issues", strings.NewReader(`{"title":"x"}`))
		req.Header.Set("X-User-Id", "u1")
		req.Header.Set("X-Session-Id", "s1")
		rec := httptest.NewRecorder()

		var got map[string]any
		newHandler(&got).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "u1", got["ctxUserID"])
	})

	t.Run("credentials in body, body restored for the handler", func(t *testing.T) {
		payload := map[string]any{"title": "Bug A", "userId": "u1", "sessionId": "s1"}
		body, err := json.Marshal(payload)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodPost, "/issues", bytes.NewReader(body))
		rec := httptest.NewRecorder()

		var got map[string]any
		newHandler(&got).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "Bug A", got["title"])
		assert.Equal(t, "u1", got["ctxUserID"])
	})

	t.Run("missing credentials", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/issues", strings.NewReader(`{"title":"x"}`))
		rec := httptest.NewRecorder()

		newHandler(nil).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "unauthorized")
	})

	t.Run("rejected credentials", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/issues", strings.NewReader(`{"userId":"u1","sessionId":"stale"}`))
		rec := httptest.NewRecorder()

		newHandler(nil).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestMaskSessionID(t *testing.T) {
	assert.Equal(t, "0123***", MaskSessionID("0123456789abcdef"))
	assert.Equal(t, "****", MaskSessionID("ab"))
	assert.Equal(t, "****", MaskSessionID(""))
}
