package client

import (
	"context"
	"net/http"
)

// ListMessages returns a page of a conversation's messages, oldest first.
// The caller must be a member of the conversation.
func (c *Client) ListMessages(ctx context.Context, conversationID string, page PageParams) (*Page[Message], error) {
	var result Page[Message]
	path := "/api/messages/" + conversationID + pageQuery(page, nil)
	if err := c.do(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SendMessage posts a message to a conversation. msgType is "text" or "image";
// empty defaults to "text". For image messages the content is the image URL.
func (c *Client) SendMessage(ctx context.Context, conversationID, content, msgType string) (*Message, error) {
	body := map[string]string{
		"conversation_id": conversationID,
		"content":         content,
	}
	if msgType != "" {
		body["type"] = msgType
	}

	var msg Message
	if err := c.do(ctx, http.MethodPost, "/api/messages", body, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// MarkAsRead resets the conversation's unread counter.
func (c *Client) MarkAsRead(ctx context.Context, conversationID string) error {
	return c.do(ctx, http.MethodPost, "/api/messages/"+conversationID+"/read", nil, nil)
}
