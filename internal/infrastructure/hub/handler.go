package hub

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const pongWait = 60 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler подключает зрителя живой ленты. Входящие сообщения читаются
// только ради ping/pong и обнаружения разрыва.
func (h *Hub) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.log.Warnw("websocket upgrade failed", "error", err)
			return
		}
		conn.SetReadLimit(512)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(pongWait))
			return nil
		})

		ctx := r.Context()
		if err := h.Register(ctx, conn); err != nil {
			conn.Close()
			return
		}
		defer h.Unregister(ctx, conn)

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}
}
