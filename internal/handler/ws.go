package handler

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/bugtracker/internal/logger"
	"github.com/bugtracker/internal/ws"
)

// WSHandler подключает браузеры к ленте событий по задачам.
type WSHandler struct {
	hub      *ws.Hub
	upgrader websocket.Upgrader
}

func NewWSHandler(hub *ws.Hub, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" || len(allowedOrigins) == 0 {
					return true
				}
				for _, allowed := range allowedOrigins {
					if allowed == "*" || allowed == origin {
						return true
					}
				}
				return false
			},
		},
	}
}

// Serve апгрейдит соединение и запускает клиента ленты событий.
func (h *WSHandler) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Errorf("WSHandler.Serve upgrade: %v", err)
		return
	}
	ws.NewClient(h.hub, conn).Start()
}
