package domain

import "time"

// Conversation is a direct-message thread between two or more users.
type Conversation struct {
	ID           string
	Participants []Participant
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Participant is one member of a conversation.
type Participant struct {
	ConversationID string
	UserID         string
	LastReadAt     time.Time
	JoinedAt       time.Time
}

// CreateConversationRequest is the REST body for creating a conversation.
type CreateConversationRequest struct {
	ParticipantIDs []string `json:"participantIds" binding:"required,min=1"`
}

// ConversationSummary is one row of the conversation list.
type ConversationSummary struct {
	ID           string           `json:"id"`
	Participants []*UserSummary   `json:"participants"`
	LastMessage  *MessageResponse `json:"lastMessage,omitempty"`
	UnreadCount  int64            `json:"unreadCount"`
	LastReadAt   time.Time        `json:"lastReadAt"`
	UpdatedAt    time.Time        `json:"updatedAt"`
}
