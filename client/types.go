package client

import "time"

// User is a public user profile.
type User struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// Conversation is a direct or group conversation as listed for the caller.
type Conversation struct {
	ID          string    `json:"id"`
	Name        string    `json:"name,omitempty"`
	IsGroup     bool      `json:"is_group"`
	LastMessage string    `json:"last_message,omitempty"`
	UnreadCount int       `json:"unread_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Members     []User    `json:"members,omitempty"`
}

// Message is a single chat message.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	Content        string    `json:"content"`
	Type           string    `json:"type"`
	CreatedAt      time.Time `json:"created_at"`
	Sender         *User     `json:"sender,omitempty"`
}

// Page is a paginated listing.
type Page[T any] struct {
	Data       []T  `json:"data"`
	TotalCount int  `json:"total_count"`
	Page       int  `json:"page"`
	PerPage    int  `json:"per_page"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
	HasPrev    bool `json:"has_prev"`
}

// PageParams selects a page of a listing. The zero value means server defaults.
type PageParams struct {
	Page    int
	PerPage int
}

// SignupResult reports the outcome of a signup attempt.
type SignupResult struct {
	Email       string `json:"email"`
	RequiresOTP bool   `json:"requires_otp"`
}

// Session is the authenticated user plus the issued access token.
type Session struct {
	User        User   `json:"user"`
	AccessToken string `json:"access_token"`
}

// PresignedUpload is a short-lived direct-upload grant.
type PresignedUpload struct {
	UploadURL string `json:"upload_url"`
	PublicURL string `json:"public_url"`
	ExpiresIn int    `json:"expires_in_seconds"`
}
