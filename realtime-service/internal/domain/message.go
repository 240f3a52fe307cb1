package domain

import (
	"errors"
	"strings"
	"time"
)

// MessageType is the content kind of a message.
type MessageType string

const (
	MessageText  MessageType = "TEXT"
	MessageImage MessageType = "IMAGE"
	MessageFile  MessageType = "FILE"
)

var ErrInvalidMessage = errors.New("invalid message")

// ParseMessageType normalizes a client-provided type, defaulting to TEXT.
func ParseMessageType(s string) (MessageType, bool) {
	switch MessageType(strings.ToUpper(strings.TrimSpace(s))) {
	case "", MessageText:
		return MessageText, true
	case MessageImage:
		return MessageImage, true
	case MessageFile:
		return MessageFile, true
	}
	return "", false
}

// Message is a persisted chat message.
type Message struct {
	ID        string
	Thread    ThreadRef
	SenderID  string
	Content   string
	Type      MessageType
	CreatedAt time.Time
}

// SendMessageRequest is the socket send_message payload and the REST body.
type SendMessageRequest struct {
	ConversationID string `json:"conversationId,omitempty"`
	TaskID         string `json:"taskId,omitempty"`
	Content        string `json:"content"`
	MessageType    string `json:"messageType,omitempty"`
}

// Thread resolves the target thread; a conversation id wins when both are set.
func (r *SendMessageRequest) Thread() ThreadRef {
	if r.ConversationID != "" {
		return ConversationRef(r.ConversationID)
	}
	if r.TaskID != "" {
		return TaskRef(r.TaskID)
	}
	return ThreadRef{}
}

// MessageResponse is the broadcast and REST view of a message.
type MessageResponse struct {
	ID             string       `json:"id"`
	ConversationID string       `json:"conversationId,omitempty"`
	TaskID         string       `json:"taskId,omitempty"`
	SenderID       string       `json:"senderId"`
	Sender         *UserSummary `json:"sender"`
	Content        string       `json:"content"`
	MessageType    MessageType  `json:"messageType"`
	CreatedAt      time.Time    `json:"createdAt"`
}

// ToResponse attaches the sender summary.
func (m *Message) ToResponse(sender *UserSummary) *MessageResponse {
	if sender == nil {
		sender = &UserSummary{ID: m.SenderID}
	}
	resp := &MessageResponse{
		ID:          m.ID,
		SenderID:    m.SenderID,
		Sender:      sender,
		Content:     m.Content,
		MessageType: m.Type,
		CreatedAt:   m.CreatedAt,
	}
	switch m.Thread.Kind {
	case ThreadConversation:
		resp.ConversationID = m.Thread.ID
	case ThreadTask:
		resp.TaskID = m.Thread.ID
	}
	return resp
}

// MessagePage is one page of thread history in display order (oldest first).
type MessagePage struct {
	Messages   []*MessageResponse `json:"messages"`
	Page       int                `json:"page"`
	Limit      int                `json:"limit"`
	Total      int64              `json:"total"`
	TotalPages int                `json:"totalPages"`
}
