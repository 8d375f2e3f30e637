package handler

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/quickcourt/reservation-core/internal/model"
	"github.com/quickcourt/reservation-core/internal/service"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

const wsWriteWait = 5 * time.Second

type windowsMsg struct {
	CourtID uint64       `json:"court_id"`
	Date    model.Date   `json:"date"`
	Windows []windowView `json:"windows"`
}

// wsSendBuffer is how many pending updates a subscriber may fall behind
// before it is disconnected.
const wsSendBuffer = 8

// hubClient is one websocket subscriber. Only its writer goroutine writes
// to conn; the hub hands it messages through send.
type hubClient struct {
	conn *websocket.Conn
	send chan windowsMsg
}

func (c *hubClient) writeLoop() {
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := c.conn.WriteJSON(msg); err != nil {
			// The read loop sees the closed conn and unregisters.
			c.conn.Close()
			return
		}
	}
}

// AvailabilityHub pushes a court's free windows for a day to websocket
// subscribers whenever a booking or cancellation changes them. It is
// subscribed to the ledger as an async observer. The hub lock only guards
// the subscriber lists; socket writes happen in per-client goroutines.
type AvailabilityHub struct {
	Avail *service.Availability
	Log   *zap.Logger

	mu          sync.Mutex
	subscribers map[string][]*hubClient
}

func NewAvailabilityHub(avail *service.Availability, log *zap.Logger) *AvailabilityHub {
	return &AvailabilityHub{Avail: avail, Log: log, subscribers: map[string][]*hubClient{}}
}

func hubKey(courtID uint64, d model.Date) string { return fmt.Sprintf("%d_%s", courtID, d) }

func (h *AvailabilityHub) snapshot(ctx context.Context, courtID uint64, d model.Date) (windowsMsg, error) {
	seq, err := h.Avail.FreeWindows(ctx, courtID, d)
	if err != nil {
		return windowsMsg{}, err
	}
	msg := windowsMsg{CourtID: courtID, Date: d, Windows: []windowView{}}
	for w := range seq {
		msg.Windows = append(msg.Windows, windowView{Start: model.FormatClock(w.Start), End: model.FormatClock(w.End)})
	}
	return msg, nil
}

// Subscribe handles GET /v1/courts/:id/availability/ws?date=YYYY-MM-DD.
// The current windows are sent on connect and again after every change.
func (h *AvailabilityHub) Subscribe(c echo.Context) error {
	courtID, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid court id")
	}
	d, err := queryDate(c, "date")
	if err != nil || d.IsZero() {
		return badRequest(c, "date must be YYYY-MM-DD")
	}
	first, err := h.snapshot(c.Request().Context(), courtID, d)
	if err != nil {
		return writeError(c, h.Log, err)
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		return nil
	}
	key := hubKey(courtID, d)
	client := &hubClient{conn: conn, send: make(chan windowsMsg, wsSendBuffer)}
	client.send <- first

	h.mu.Lock()
	h.subscribers[key] = append(h.subscribers[key], client)
	h.mu.Unlock()
	go client.writeLoop()

	// Block until the client goes away; inbound messages are ignored.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.remove(key, client)
	conn.Close()
	return nil
}

// remove unregisters client and stops its writer. It is a no-op when the
// client was already evicted.
func (h *AvailabilityHub) remove(key string, client *hubClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns := h.subscribers[key]
	kept := make([]*hubClient, 0, len(conns))
	found := false
	for _, other := range conns {
		if other == client {
			found = true
			continue
		}
		kept = append(kept, other)
	}
	if !found {
		return
	}
	close(client.send)
	if len(kept) == 0 {
		delete(h.subscribers, key)
	} else {
		h.subscribers[key] = kept
	}
}

// ReservationChanged broadcasts the new windows of the affected court and
// day. Approvals and completions do not change availability and are skipped.
func (h *AvailabilityHub) ReservationChanged(ctx context.Context, ev model.ReservationEvent) {
	if ev.Previous != "" && ev.Reservation.Status != model.StatusCancelled {
		return
	}
	r := ev.Reservation
	key := hubKey(r.CourtID, r.Date)

	h.mu.Lock()
	n := len(h.subscribers[key])
	h.mu.Unlock()
	if n == 0 {
		return
	}

	msg, err := h.snapshot(ctx, r.CourtID, r.Date)
	if err != nil {
		h.Log.Warn("availability push: snapshot failed", zap.String("key", key), zap.Error(err))
		return
	}
	h.broadcast(key, msg)
}

// broadcast queues msg for every subscriber of key without blocking. A
// subscriber whose queue is full is disconnected.
func (h *AvailabilityHub) broadcast(key string, msg windowsMsg) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conns := h.subscribers[key]
	kept := conns[:0]
	for _, client := range conns {
		select {
		case client.send <- msg:
			kept = append(kept, client)
		default:
			h.Log.Warn("availability push: slow subscriber dropped", zap.String("key", key))
			close(client.send)
			client.conn.Close()
		}
	}
	if len(kept) == 0 {
		delete(h.subscribers, key)
	} else {
		h.subscribers[key] = kept
	}
}

// Subscribers reports how many connections watch courtID on d.
func (h *AvailabilityHub) Subscribers(courtID uint64, d model.Date) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers[hubKey(courtID, d)])
}
