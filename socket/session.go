package socket

import (
	"encoding/json"

	"codraft/internal/bus"
	"codraft/internal/document/service"
	"codraft/pkg/logger"
)

// Feed names a client can subscribe to over the socket.
const (
	FeedDocumentUpdated = "document_updated" // per-document content updates
	FeedPresenceUpdated = "presence_updated" // per-document presence snapshots
	FeedDocumentCreated = "document_created" // global creation announcements
)

// Client control actions.
const (
	ActionSubscribe   = "subscribe"
	ActionUnsubscribe = "unsubscribe"
	ActionPresence    = "presence"
)

// ClientMessage is a control frame sent by the browser: feed management or a
// live presence report. The user id always comes from the authenticated
// connection, never from the frame.
type ClientMessage struct {
	Action    string `json:"action"`
	Feed      string `json:"feed,omitempty"`
	DocID     string `json:"doc_id,omitempty"`
	Name      string `json:"name,omitempty"`
	Color     string `json:"color,omitempty"`
	IsTyping  bool   `json:"is_typing,omitempty"`
	CursorPos *int   `json:"cursor_pos,omitempty"`
}

// Frame is an event pushed to the browser: the feed it came from and the
// event payload (a document record or a presence snapshot).
type Frame struct {
	Type    string          `json:"type"`
	DocID   string          `json:"doc_id,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

// topicFor maps a (feed, docID) pair to its bus topic. The second return is
// false for unknown feeds or a missing doc id on a per-document feed.
func topicFor(feed, docID string) (string, bool) {
	switch feed {
	case FeedDocumentUpdated:
		if docID == "" {
			return "", false
		}
		return service.UpdatedTopic(docID), true
	case FeedPresenceUpdated:
		if docID == "" {
			return "", false
		}
		return service.PresenceTopic(docID), true
	case FeedDocumentCreated:
		return service.CreatedTopic, true
	}
	return "", false
}

func (c *Client) handleMessage(raw []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		logger.Sugar.Errorf("Error unmarshalling client message: %v", err)
		return
	}

	switch msg.Action {
	case ActionSubscribe:
		c.subscribe(msg.Feed, msg.DocID)
	case ActionUnsubscribe:
		c.unsubscribe(msg.Feed, msg.DocID)
	case ActionPresence:
		if msg.DocID == "" {
			return
		}
		// Same gateway path as the REST presence endpoint.
		c.Service.UpdatePresence(msg.DocID, c.UserID, msg.Name, msg.Color, msg.IsTyping, msg.CursorPos)
	default:
		logger.Sugar.Warnf("Client %s sent unknown action %q", c.UserID, msg.Action)
	}
}

// subscribe attaches this connection to a feed. The bus attachment happens
// here, before control returns to the read pump, so an event published right
// after the subscribe frame is processed cannot be missed. Subscribing twice
// to the same feed is a no-op.
func (c *Client) subscribe(feed, docID string) {
	topic, ok := topicFor(feed, docID)
	if !ok {
		logger.Sugar.Warnf("Client %s requested invalid feed %q (doc %q)", c.UserID, feed, docID)
		return
	}
	if _, exists := c.subs[topic]; exists {
		return
	}

	sub := c.Service.Bus.Subscribe(topic)
	c.subs[topic] = sub

	go c.forward(feed, docID, sub)
	logger.Sugar.Infof("Client %s subscribed to %s", c.UserID, topic)
}

func (c *Client) unsubscribe(feed, docID string) {
	topic, ok := topicFor(feed, docID)
	if !ok {
		return
	}
	if sub, exists := c.subs[topic]; exists {
		sub.Close()
		delete(c.subs, topic)
	}
}

// closeSubscriptions detaches every feed held by this connection. Closing a
// subscription closes its channel, which stops the matching forward loop.
func (c *Client) closeSubscriptions() {
	for topic, sub := range c.subs {
		sub.Close()
		delete(c.subs, topic)
	}
}

// forward drains one bus subscription into the connection's send channel.
// Runs until the subscription is closed.
func (c *Client) forward(feed, docID string, sub *bus.Subscription) {
	for ev := range sub.C {
		payload, err := json.Marshal(ev)
		if err != nil {
			logger.Sugar.Errorf("Error marshalling %s event: %v", feed, err)
			continue
		}
		frame, err := json.Marshal(Frame{Type: feed, DocID: docID, Payload: payload})
		if err != nil {
			logger.Sugar.Errorf("Error marshalling frame: %v", err)
			continue
		}
		c.enqueue(frame)
	}
}
