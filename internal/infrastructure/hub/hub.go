package hub

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"blister-inspector/internal/domain/entity"
	"blister-inspector/internal/domain/port"
)

const (
	writeWait      = 5 * time.Second
	broadcastQueue = 32
	thumbWidth     = 240
)

var errStopped = errors.New("live hub is stopped")

// Hub рассылает сводки по партиям всем подключённым зрителям.
// Писать в соединения может только горутина Run.
type Hub struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	done       chan struct{}
	mu         sync.RWMutex
	log        *zap.SugaredLogger
}

// New создаёт хаб, рассылка начинается после запуска Run.
func New(log *zap.SugaredLogger) *Hub {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Hub{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan []byte, broadcastQueue),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Run обслуживает подключения до отмены контекста, затем закрывает их.
// Запускается один раз.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return nil

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			h.log.Infow("viewer connected", "total", total)

		case client := <-h.unregister:
			h.drop(client)

		case message := <-h.broadcast:
			h.mu.RLock()
			clients := make([]*websocket.Conn, 0, len(h.clients))
			for c := range h.clients {
				clients = append(clients, c)
			}
			h.mu.RUnlock()

			for _, c := range clients {
				c.SetWriteDeadline(time.Now().Add(writeWait))
				if err := c.WriteMessage(websocket.TextMessage, message); err != nil {
					h.log.Warnw("failed to send to viewer", "error", err)
					h.drop(c)
				}
			}
		}
	}
}

func (h *Hub) drop(client *websocket.Conn) {
	h.mu.Lock()
	_, ok := h.clients[client]
	delete(h.clients, client)
	total := len(h.clients)
	h.mu.Unlock()

	if ok {
		client.Close()
		h.log.Infow("viewer disconnected", "total", total)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(writeWait))
		c.Close()
		delete(h.clients, c)
	}
}

// Register добавляет зрителя. Блокируется, пока Run не примет соединение.
func (h *Hub) Register(ctx context.Context, client *websocket.Conn) error {
	select {
	case h.register <- client:
		return nil
	case <-h.done:
		return errStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Unregister убирает зрителя и закрывает соединение.
func (h *Hub) Unregister(ctx context.Context, client *websocket.Conn) {
	select {
	case h.unregister <- client:
	case <-h.done:
		client.Close()
	case <-ctx.Done():
		h.drop(client)
	}
}

// ClientCount число подключённых зрителей.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast ставит сообщение в очередь. Если очередь полна, сообщение теряется.
func (h *Hub) Broadcast(message []byte) bool {
	select {
	case h.broadcast <- message:
		return true
	default:
		h.log.Warnw("live queue is full, event dropped")
		return false
	}
}

// PublishInspection рассылает сводку партии с уменьшенным итоговым кадром.
func (h *Hub) PublishInspection(ctx context.Context, origin string, batch *entity.InspectionBatch, report *entity.InspectionReport) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ev := entity.NewLiveEvent(origin, batch, report)
	if report != nil && len(report.Final) > 0 {
		thumb, err := Thumbnail(report.Final, thumbWidth)
		if err != nil {
			h.log.Warnw("thumbnail skipped", "error", err)
		} else {
			ev.Thumbnail = DataURL(thumb)
		}
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	h.Broadcast(data)
	return nil
}

var _ port.BatchPublisher = (*Hub)(nil)
