package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"

	"github.com/emandor/crosseval_service/internal/arena"
	"github.com/emandor/crosseval_service/internal/telemetry"
)

type Action string

const (
	ActionJoin  Action = "join"
	ActionLeave Action = "leave"
)

// RoomTurn prefixes per-turn rooms: "turn.<request-id>".
const RoomTurn = "turn."

const (
	sendBuffer = 64
	writeWait  = 5 * time.Second
)

type ClientMessage struct {
	Action Action `json:"action"`
	Room   string `json:"room"`
}

// PayloadEvent is what subscribers receive.
type PayloadEvent struct {
	Turn string `json:"turn"`
	arena.Event
}

// Conn is the part of a websocket connection the hub writes to. Each Conn is
// written by a single goroutine.
type Conn interface {
	WriteJSON(v any) error
}

// deadlineConn bounds every write so a client that stops reading is dropped.
type deadlineConn struct {
	conn *websocket.Conn
}

func (d deadlineConn) WriteJSON(v any) error {
	if err := d.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return d.conn.WriteJSON(v)
}

// client owns the outbound queue of one connection.
type client struct {
	conn Conn
	send chan PayloadEvent
	done chan struct{}
	once sync.Once
}

func (cl *client) close() { cl.once.Do(func() { close(cl.done) }) }

// Hub fans turn events out to subscribed connections. Publish never blocks:
// events for a connection whose queue is full are dropped.
type Hub struct {
	mu      sync.RWMutex
	rooms   map[string]map[*client]struct{}
	clients map[Conn]*client
}

func NewHub() *Hub {
	return &Hub{
		rooms:   map[string]map[*client]struct{}{},
		clients: map[Conn]*client{},
	}
}

// HandleWS serves one websocket connection until it closes.
func (h *Hub) HandleWS(c *websocket.Conn) {
	tlog := telemetry.L().With().Str("module", "ws").Logger()
	tlog.Info().Msg("ws_connected")
	conn := deadlineConn{conn: c}
	if room := initialRoom(c); room != "" {
		h.Join(conn, room)
	}
	defer func() {
		h.Drop(conn)
		_ = c.Close()
	}()

	for {
		_, msg, err := c.ReadMessage()
		if err != nil {
			break
		}

		var cm ClientMessage
		if err := json.Unmarshal(msg, &cm); err != nil {
			continue
		}

		switch cm.Action {
		case ActionJoin:
			h.Join(conn, cm.Room)
		case ActionLeave:
			h.Leave(conn, cm.Room)
		}
	}
}

func (h *Hub) Join(c Conn, room string) {
	if room == "" {
		return
	}
	h.mu.Lock()
	cl, ok := h.clients[c]
	if !ok {
		cl = &client{conn: c, send: make(chan PayloadEvent, sendBuffer), done: make(chan struct{})}
		h.clients[c] = cl
		go h.writeLoop(cl)
	}
	if h.rooms[room] == nil {
		h.rooms[room] = map[*client]struct{}{}
	}
	h.rooms[room][cl] = struct{}{}
	h.mu.Unlock()

	log := telemetry.L()
	log.Debug().Str("room", room).Msg("ws_room_joined")
}

func (h *Hub) Leave(c Conn, room string) {
	if room == "" {
		return
	}
	h.mu.Lock()
	if cl, ok := h.clients[c]; ok {
		delete(h.rooms[room], cl)
		if len(h.rooms[room]) == 0 {
			delete(h.rooms, room)
		}
	}
	h.mu.Unlock()
}

// Drop removes c from every room and stops its writer.
func (h *Hub) Drop(c Conn) {
	h.mu.Lock()
	cl, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		for room, members := range h.rooms {
			delete(members, cl)
			if len(members) == 0 {
				delete(h.rooms, room)
			}
		}
	}
	h.mu.Unlock()
	if ok {
		cl.close()
	}
}

func (h *Hub) Subscribers(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Publish implements arena.Publisher.
func (h *Hub) Publish(turnID string, ev arena.Event) {
	if turnID == "" {
		return
	}
	room := RoomTurn + turnID

	h.mu.RLock()
	members := make([]*client, 0, len(h.rooms[room]))
	for cl := range h.rooms[room] {
		members = append(members, cl)
	}
	h.mu.RUnlock()

	pl := PayloadEvent{Turn: turnID, Event: ev}
	for _, cl := range members {
		select {
		case cl.send <- pl:
		case <-cl.done:
		default:
			log := telemetry.L()
			log.Debug().Str("room", room).Str("event", string(ev.Kind)).Msg("ws_event_dropped")
		}
	}
}

func (h *Hub) writeLoop(cl *client) {
	for {
		select {
		case <-cl.done:
			return
		case pl := <-cl.send:
			if err := cl.conn.WriteJSON(pl); err != nil {
				log := telemetry.L()
				log.Debug().Err(err).Msg("ws_write_failed")
				h.Drop(cl.conn)
				return
			}
		}
	}
}
