package client

import (
	"context"
	"net/http"
)

// ListConversations returns the caller's conversations, most recently
// active first, each with its member profiles.
func (c *Client) ListConversations(ctx context.Context) ([]Conversation, error) {
	var conversations []Conversation
	if err := c.do(ctx, http.MethodGet, "/api/conversations", nil, &conversations); err != nil {
		return nil, err
	}
	return conversations, nil
}

// CreateDirectConversation opens (or returns the existing) direct conversation
// with the given user.
func (c *Client) CreateDirectConversation(ctx context.Context, receiverID string) (*Conversation, error) {
	body := map[string]string{"receiver_id": receiverID}
	var conv Conversation
	if err := c.do(ctx, http.MethodPost, "/api/conversations", body, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

// CreateGroupConversation creates a named group. The caller is added
// automatically; memberIDs are the other participants.
func (c *Client) CreateGroupConversation(ctx context.Context, name string, memberIDs []string) (*Conversation, error) {
	body := map[string]any{"name": name, "member_ids": memberIDs}
	var conv Conversation
	if err := c.do(ctx, http.MethodPost, "/api/conversations/group", body, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

// AddMember adds a user to a group conversation the caller belongs to.
func (c *Client) AddMember(ctx context.Context, conversationID, userID string) error {
	body := map[string]string{"user_id": userID}
	return c.do(ctx, http.MethodPost, "/api/conversations/"+conversationID+"/add-member", body, nil)
}

// RemoveMember removes a user from a group conversation the caller belongs to.
func (c *Client) RemoveMember(ctx context.Context, conversationID, userID string) error {
	body := map[string]string{"user_id": userID}
	return c.do(ctx, http.MethodPost, "/api/conversations/"+conversationID+"/remove-member", body, nil)
}

// RenameConversation renames a group conversation.
func (c *Client) RenameConversation(ctx context.Context, conversationID, name string) error {
	body := map[string]string{"name": name}
	return c.do(ctx, http.MethodPatch, "/api/conversations/"+conversationID+"/rename", body, nil)
}
