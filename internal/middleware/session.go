package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
)

// SessionValidator проверяет пару (userId, sessionId).
type SessionValidator interface {
	Authenticate(ctx context.Context, userID, sessionID string) bool
}

// bodyCredentials — учётные данные внутри JSON-тела изменяющего запроса.
// Клиент добавляет их через addAuthentication перед отправкой.
type bodyCredentials struct {
	UserID    string `json:"userId"`
	SessionID string `json:"sessionId"`
}

// SessionAuth достаёт userId/sessionId из заголовков X-User-Id/X-Session-Id
// или из JSON-тела запроса, проверяет пару и кладёт идентификаторы в контекст.
// Тело восстанавливается, чтобы обработчик прочитал его заново.
func SessionAuth(validator SessionValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := r.Header.Get("X-User-Id")
			sessionID := r.Header.Get("X-Session-Id")

			if r.Body != nil && (userID == "" || sessionID == "") {
				body, err := io.ReadAll(r.Body)
				if err != nil {
					writeJSONError(w, http.StatusBadRequest, "bad request")
					return
				}
				r.Body = io.NopCloser(bytes.NewReader(body))
				var creds bodyCredentials
				if err := json.Unmarshal(body, &creds); err == nil {
					userID = creds.UserID
					sessionID = creds.SessionID
				}
			}

			if userID == "" || sessionID == "" {
				writeJSONError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			if !validator.Authenticate(r.Context(), userID, sessionID) {
				writeJSONError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, userID)
			ctx = context.WithValue(ctx, SessionIDKey, sessionID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
