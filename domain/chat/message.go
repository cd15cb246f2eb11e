package chat

import "time"

// Message is immutable once created; the only mutation is a hard delete.
type Message struct {
	ID          string       `json:"_id"`
	ChatID      string       `json:"chat"`
	SenderID    string       `json:"sender"`
	Content     string       `json:"content"`
	Attachments []Attachment `json:"attachments"`
	CreatedAt   time.Time    `json:"createdAt"`
}

// PublicIDs lists the blob ids referenced by messages.
func PublicIDs(messages []Message) []string {
	var ids []string
	for _, m := range messages {
		for _, a := range m.Attachments {
			if a.PublicID != "" {
				ids = append(ids, a.PublicID)
			}
		}
	}
	return ids
}

// Sender is the summary of a user embedded in realtime payloads.
type Sender struct {
	ID     string `json:"_id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

// RealtimeMessage is what members receive live for a new message.
type RealtimeMessage struct {
	ID          string       `json:"_id"`
	ChatID      string       `json:"chat"`
	Sender      Sender       `json:"sender"`
	Content     string       `json:"content"`
	Attachments []Attachment `json:"attachments"`
	CreatedAt   time.Time    `json:"createdAt"`
}

func NewRealtimeMessage(m Message, sender Sender) RealtimeMessage {
	return RealtimeMessage{
		ID:          m.ID,
		ChatID:      m.ChatID,
		Sender:      sender,
		Content:     m.Content,
		Attachments: m.Attachments,
		CreatedAt:   m.CreatedAt,
	}
}
