package websocket

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"anonchat/backend/internal/models"

	gorillaws "github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// Frame types sent to browsers.
const (
	FrameSystem  = "system"
	FrameMessage = "message"
)

// Frame is one outbound JSON frame.
type Frame struct {
	Type string             `json:"type"`
	Kind models.ContentKind `json:"kind,omitempty"`
	Text string             `json:"text"`
}

// InboundFrame is what browsers send. Text starting with "/" is a command.
type InboundFrame struct {
	Text string `json:"text"`
}

// Client is one browser connection.
type Client struct {
	ID   models.UserID
	Lang string
	Conn *gorillaws.Conn
	Hub  *Manager
	Send chan Frame

	ctx context.Context
}

// Run starts the read and write pumps.
func (c *Client) Run() {
	go c.writePump()
	go c.readPump()
}

func (c *Client) readPump() {
	defer func() {
		c.Hub.release(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if gorillaws.IsUnexpectedCloseError(err, gorillaws.CloseGoingAway, gorillaws.CloseAbnormalClosure) {
				c.Hub.log.Warn("error reading message", "user_id", c.ID, "error", err)
			}
			return
		}

		var in InboundFrame
		if err := json.Unmarshal(data, &in); err != nil {
			c.Hub.log.Debug("invalid frame", "user_id", c.ID, "error", err)
			continue
		}

		if err := c.Hub.events.Submit(c.ctx, EventFromFrame(c.ID, c.Lang, in)); err != nil {
			c.Hub.log.Error("failed to submit event", "user_id", c.ID, "error", err)
			return
		}
	}
}

// writePump writes frames from Send to the connection and keeps it alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Channel closed by the manager.
				_ = c.Conn.WriteMessage(gorillaws.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteJSON(frame); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(gorillaws.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// EventFromFrame turns an inbound frame into an Event.
func EventFromFrame(id models.UserID, lang string, in InboundFrame) models.Event {
	text := strings.TrimSpace(in.Text)
	ev := models.Event{
		UserID:   id,
		Kind:     models.EventText,
		Language: lang,
		Message: models.Message{
			Kind: models.KindText,
			Text: in.Text,
			Ref:  models.MessageRef{Transport: models.TransportWebSocket},
		},
	}

	if strings.HasPrefix(text, "/") && len(text) > 1 {
		cmd, args, _ := strings.Cut(text[1:], " ")
		ev.Kind = models.EventCommand
		ev.Command = strings.ToLower(cmd)
		ev.Args = strings.TrimSpace(args)
	}
	return ev
}
