package ws

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dtroode/mindhealer-server/internal/forum"
	"github.com/dtroode/mindhealer-server/internal/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 16 * 1024
	sendBuffer     = 256
)

var errMissingRoom = errors.New("room is required")

type inboundFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type roomPayload struct {
	Room string `json:"room"`
}

type messagePayload struct {
	Room    string `json:"room"`
	Message string `json:"message"`
}

// client adapts one websocket connection to a forum participant.
type client struct {
	id          forum.ParticipantID
	coordinator *forum.Coordinator
	conn        *websocket.Conn
	send        chan []byte
	logger      *logger.Logger
}

func newClient(coordinator *forum.Coordinator, conn *websocket.Conn, logger *logger.Logger) *client {
	return &client{
		coordinator: coordinator,
		conn:        conn,
		send:        make(chan []byte, sendBuffer),
		logger:      logger,
	}
}

// Deliver queues event for the write pump. It is called under the coordinator
// lock and drops the event when the queue is full.
func (c *client) Deliver(event forum.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		c.logger.Error("WS: failed to encode event",
			"participant_id", c.id,
			"event", event.Name,
			"error", err.Error())
		return
	}

	select {
	case c.send <- data:
	default:
		c.logger.Warn("WS: send queue full, dropping event",
			"participant_id", c.id,
			"event", event.Name)
	}
}

// readPump handles inbound frames until the connection fails, then removes the
// participant from the forum and stops the write pump.
func (c *client) readPump() {
	defer func() {
		c.coordinator.Disconnect(c.id)
		close(c.send)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Warn("WS: read error",
					"participant_id", c.id,
					"error", err.Error())
			}
			return
		}

		if err := c.handle(data); err != nil {
			c.logger.Info("WS: frame ignored",
				"participant_id", c.id,
				"error", err.Error())
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Warn("WS: write error",
					"participant_id", c.id,
					"error", err.Error())
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *client) handle(data []byte) error {
	var frame inboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return err
	}

	switch frame.Event {
	case forum.EventJoinRoom:
		room, err := decodeRoom(frame.Data)
		if err != nil {
			return err
		}
		return c.coordinator.Join(c.id, room)

	case forum.EventLeaveRoom:
		room, err := decodeRoom(frame.Data)
		if err != nil {
			return err
		}
		return c.coordinator.Leave(c.id, room)

	case forum.EventMessage:
		var msg messagePayload
		if err := json.Unmarshal(frame.Data, &msg); err != nil {
			return err
		}
		_, err := c.coordinator.Send(c.id, msg.Room, msg.Message)
		return err

	default:
		return errors.New("unknown event " + frame.Event)
	}
}

// decodeRoom accepts either a bare room name or {"room": name}.
func decodeRoom(data json.RawMessage) (string, error) {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		return name, nil
	}

	var payload roomPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return "", err
	}
	if payload.Room == "" {
		return "", errMissingRoom
	}
	return payload.Room, nil
}
