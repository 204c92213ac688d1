package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Event is a realtime event received from the server.
type Event struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Realtime event names, matching the server's wire protocol.
const (
	EventNewMessage = "new_message"
	EventTyping     = "typing"
	EventError      = "error"
)

// Realtime is a websocket connection to the chat server's realtime gateway.
// Incoming events are delivered on Events(); the channel closes when the
// connection drops.
type Realtime struct {
	conn   *websocket.Conn
	events chan Event

	writeMu   sync.Mutex
	closeOnce sync.Once
	readErr   error
}

// Connect dials the realtime gateway using the client's current access token.
// Call Login or VerifyOTP first.
func (c *Client) Connect(ctx context.Context) (*Realtime, error) {
	token := c.AccessToken()
	if token == "" {
		return nil, fmt.Errorf("not logged in")
	}

	wsURL, err := websocketURL(c.baseURL, token)
	if err != nil {
		return nil, err
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("realtime dial failed with status %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("realtime dial failed: %w", err)
	}

	rt := &Realtime{
		conn:   conn,
		events: make(chan Event, 32),
	}
	go rt.readLoop()
	return rt, nil
}

// Events returns the channel of incoming server events. The channel closes
// when the connection ends; check Err for the cause.
func (r *Realtime) Events() <-chan Event {
	return r.events
}

// Err reports why the event stream ended, or nil after a clean Close.
// Valid only after Events() is closed.
func (r *Realtime) Err() error {
	return r.readErr
}

// JoinConversation subscribes this connection to a conversation's events.
// The server verifies membership.
func (r *Realtime) JoinConversation(conversationID string) error {
	return r.sendEvent("join_conversation", map[string]string{
		"conversation_id": conversationID,
	})
}

// SendMessage sends a message over the socket. The persisted message comes
// back as a new_message event to every joined member, sender included.
func (r *Realtime) SendMessage(conversationID, content, msgType string) error {
	payload := map[string]string{
		"conversation_id": conversationID,
		"content":         content,
	}
	if msgType != "" {
		payload["type"] = msgType
	}
	return r.sendEvent("send_message", payload)
}

// Typing notifies the conversation that the user is typing.
func (r *Realtime) Typing(conversationID string) error {
	return r.sendEvent("typing", map[string]string{
		"conversation_id": conversationID,
	})
}

// Close shuts the connection down. Events() closes shortly after.
func (r *Realtime) Close() error {
	var err error
	r.closeOnce.Do(func() {
		r.writeMu.Lock()
		_ = r.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		r.writeMu.Unlock()
		err = r.conn.Close()
	})
	return err
}

func (r *Realtime) sendEvent(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", event, err)
	}
	frame, err := json.Marshal(Event{Event: event, Data: data})
	if err != nil {
		return fmt.Errorf("encode %s frame: %w", event, err)
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	if err := r.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("send %s: %w", event, err)
	}
	return nil
}

func (r *Realtime) readLoop() {
	defer close(r.events)

	for {
		_, frame, err := r.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				r.readErr = err
			}
			return
		}

		var ev Event
		if err := json.Unmarshal(frame, &ev); err != nil {
			// Skip malformed frames rather than killing the stream.
			continue
		}
		r.events <- ev
	}
}

func websocketURL(baseURL, token string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base URL: %w", err)
	}

	switch {
	case u.Scheme == "https":
		u.Scheme = "wss"
	case strings.HasPrefix(u.Scheme, "ws"):
		// already a websocket URL
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	u.RawQuery = url.Values{"token": {token}}.Encode()
	return u.String(), nil
}
