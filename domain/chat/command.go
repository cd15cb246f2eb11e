package chat

import (
	"time"
)

// PostMessageCommand is a draft received over a live connection.
type PostMessageCommand struct {
	ChatID    string
	SenderID  string
	Content   string
	CreatedAt time.Time
}

// GetMessagesCommand asks for one page of a chat history, page 1 being the
// newest.
type GetMessagesCommand struct {
	ChatID string
	UserID string
	Page   int
}

// MessagePage is a page of history in chronological order.
type MessagePage struct {
	Messages   []Message `json:"messages"`
	TotalPages int       `json:"totalPages"`
}

const PageSize = 20
