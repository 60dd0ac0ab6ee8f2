package persistence

import (
	"context"
)

type MessageType string

const (
	MessageTypeText  MessageType = "text"
	MessageTypeVoice MessageType = "voice"
	MessageTypeImage MessageType = "image"
	MessageTypeVideo MessageType = "video"
	MessageTypeFile  MessageType = "file"
)

func (t MessageType) Valid() bool {
	switch t {
	case MessageTypeText, MessageTypeVoice, MessageTypeImage, MessageTypeVideo, MessageTypeFile:
		return true
	default:
		return false
	}
}

// Message is a stored chat message. Timestamp is in milliseconds since the
// Unix epoch.
type Message struct {
	Id         string      `json:"id"`
	SenderId   string      `json:"senderId"`
	ReceiverId string      `json:"receiverId"`
	Content    string      `json:"content"`
	Type       MessageType `json:"type"`
	Timestamp  int64       `json:"timestamp"`
	Read       bool        `json:"read"`
	FileName   string      `json:"fileName,omitempty"`
	FileSize   string      `json:"fileSize,omitempty"`
	MimeType   string      `json:"mimeType,omitempty"`
}

type SaveRequest struct {
	SenderId   string
	ReceiverId string
	Content    string
	Type       MessageType
	FileName   string
	FileSize   string
	MimeType   string
}

type Engine interface {
	Setup(ctx context.Context) error
	Save(ctx context.Context, request SaveRequest) (Message, error)
	// Conversation returns up to limit of the most recent messages exchanged
	// by the two users, oldest first.
	Conversation(ctx context.Context, userId string, otherUserId string, limit int64) ([]Message, error)
	// MarkConversationRead marks every unread message from otherUserId to
	// readerId as read and returns how many changed.
	MarkConversationRead(ctx context.Context, readerId string, otherUserId string) (int64, error)
	UnreadCount(ctx context.Context, userId string) (int64, error)
}
