// Package event holds the realtime vocabulary exchanged over a socket.
// Frames are JSON objects of the form {"event": <Kind>, "data": <payload>}.
package event

import (
	"encoding/json"

	"syncx/domain/chat"
)

type Kind string

const (
	OnlineUsers     Kind = "ONLINE_USERS"
	GetOnlineUsers  Kind = "GET_ONLINE_USERS"
	NewMessage      Kind = "NEW_MESSAGE"
	NewMessageAlert Kind = "NEW_MESSAGE_ALERT"
	StartTyping     Kind = "START_TYPING"
	StopTyping      Kind = "STOP_TYPING"
	Alert           Kind = "ALERT"
	RefetchChats    Kind = "REFETCH_CHATS"
	NewRequest      Kind = "NEW_REQUEST"
	// Error answers the sender of a frame that was rejected.
	Error Kind = "ERROR"
)

// Event is an outbound frame.
type Event struct {
	Kind Kind `json:"event"`
	Data any  `json:"data,omitempty"`
}

// Inbound is a frame read from a client. Data is decoded once the kind is known.
type Inbound struct {
	Kind Kind            `json:"event"`
	Data json.RawMessage `json:"data,omitempty"`
}

// MessageDraft is what a client sends with NEW_MESSAGE. Members is accepted
// for compatibility but the stored chat membership decides the targets.
type MessageDraft struct {
	ChatID  string   `json:"chatId"`
	Members []string `json:"members,omitempty"`
	Message string   `json:"message"`
}

// Typing is sent with START_TYPING and STOP_TYPING.
type Typing struct {
	ChatID  string   `json:"chatId"`
	Members []string `json:"members,omitempty"`
}

type MessagePayload struct {
	ChatID  string               `json:"chatId"`
	Message chat.RealtimeMessage `json:"message"`
}

type ChatRef struct {
	ChatID string `json:"chatId"`
}

type AlertPayload struct {
	ChatID  string `json:"chatId"`
	Message string `json:"message"`
}

type ErrorPayload struct {
	Event   Kind   `json:"event"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Delivery reports what a fan-out did. Targets counts resolved connections.
type Delivery struct {
	Targets   int
	Delivered int
	Dropped   int
}

func (d Delivery) Add(other Delivery) Delivery {
	return Delivery{
		Targets:   d.Targets + other.Targets,
		Delivered: d.Delivered + other.Delivered,
		Dropped:   d.Dropped + other.Dropped,
	}
}
