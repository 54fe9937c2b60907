package message

import (
	"github.com/example/chat-app/domain/apperr"
	domain "github.com/example/chat-app/domain/message"
)

// SendRequest asks to persist a message.
type SendRequest struct {
	SenderID    string `json:"sender_id"`
	RecipientID string `json:"recipient_id"`
	Text        string `json:"text,omitempty"`
	Image       string `json:"image,omitempty"`
}

// SendResponse carries the stored message.
type SendResponse struct {
	Message *domain.Message `json:"message,omitempty"`
	Error   *apperr.Error   `json:"error,omitempty"`
}

// ListConversationRequest asks for one page of a conversation.
type ListConversationRequest struct {
	UserA string      `json:"user_a"`
	UserB string      `json:"user_b"`
	Page  domain.Page `json:"page"`
}

// ListConversationResponse carries messages in ascending order.
type ListConversationResponse struct {
	Messages []domain.Message `json:"messages"`
	Error    *apperr.Error    `json:"error,omitempty"`
}
