package message

import (
	"context"
	"encoding/json"

	"github.com/example/chat-app/domain/apperr"
	domain "github.com/example/chat-app/domain/message"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// MessagePort defines the message operations other modules depend on.
type MessagePort interface {
	Send(ctx context.Context, senderID, recipientID, text, image string) (*domain.Message, error)
	ListConversation(ctx context.Context, userA, userB string, page domain.Page) ([]domain.Message, error)
}

// MessageAdapter implements MessagePort using the service container.
type MessageAdapter struct {
	container mono.ServiceContainer
}

// NewMessageAdapter creates a new MessageAdapter.
func NewMessageAdapter(container mono.ServiceContainer) *MessageAdapter {
	return &MessageAdapter{container: container}
}

// Send persists a message.
func (a *MessageAdapter) Send(ctx context.Context, senderID, recipientID, text, image string) (*domain.Message, error) {
	req := SendRequest{SenderID: senderID, RecipientID: recipientID, Text: text, Image: image}
	var resp SendResponse

	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		"send-message",
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, apperr.Internal("send-message request failed", err)
	}
	if resp.Error != nil {
		return nil, resp.Error
	}
	return resp.Message, nil
}

// ListConversation returns one page of the conversation between two users.
func (a *MessageAdapter) ListConversation(ctx context.Context, userA, userB string, page domain.Page) ([]domain.Message, error) {
	req := ListConversationRequest{UserA: userA, UserB: userB, Page: page}
	var resp ListConversationResponse

	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		"list-conversation",
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, apperr.Internal("list-conversation request failed", err)
	}
	if resp.Error != nil {
		return nil, resp.Error
	}
	return resp.Messages, nil
}
