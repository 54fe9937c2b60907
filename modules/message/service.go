package message

import (
	"context"
	"strings"
	"time"

	"github.com/example/chat-app/domain/apperr"
	domain "github.com/example/chat-app/domain/message"
	user "github.com/example/chat-app/domain/user"
	"github.com/google/uuid"
)

const maxTextLength = 4096

var (
	// ErrEmptyMessage is returned when neither text nor image is present.
	ErrEmptyMessage = apperr.Validation("message text or image is required")
	// ErrMessageTooLong is returned when the text exceeds maxTextLength bytes.
	ErrMessageTooLong = apperr.Validation("message text is too long")
	// ErrMissingPeer is returned when no counterpart user id is given.
	ErrMissingPeer = apperr.Validation("peer id is required")
	// ErrPeerNotFound is returned when the counterpart user does not exist.
	ErrPeerNotFound = apperr.NotFound("user not found")
)

// UserLookup resolves user ids. The auth adapter satisfies it.
type UserLookup interface {
	GetUser(ctx context.Context, userID string) (*user.Profile, error)
}

// PageConfig bounds conversation queries.
type PageConfig struct {
	DefaultLimit int
	MaxLimit     int
}

// DefaultPageConfig returns the default paging bounds.
func DefaultPageConfig() PageConfig {
	return PageConfig{
		DefaultLimit: 100,
		MaxLimit:     1000,
	}
}

// Service implements message sending and conversation queries.
type Service struct {
	repo   *Repository
	users  UserLookup
	paging PageConfig
	now    func() time.Time
}

// NewService creates a new Service.
func NewService(repo *Repository, users UserLookup, paging PageConfig) *Service {
	return &Service{
		repo:   repo,
		users:  users,
		paging: paging,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Send persists a message from sender to recipient.
func (s *Service) Send(ctx context.Context, senderID, recipientID, text, image string) (*domain.Message, error) {
	if strings.TrimSpace(text) == "" {
		text = ""
	}
	image = strings.TrimSpace(image)

	if text == "" && image == "" {
		return nil, ErrEmptyMessage
	}
	if len(text) > maxTextLength {
		return nil, ErrMessageTooLong
	}
	if err := s.requireUser(ctx, recipientID); err != nil {
		return nil, err
	}

	msg := &domain.Message{
		ID:         uuid.New().String(),
		SenderID:   senderID,
		ReceiverID: recipientID,
		Text:       text,
		Image:      image,
		CreatedAt:  s.now(),
	}
	if err := s.repo.Create(ctx, msg); err != nil {
		return nil, apperr.Internal("failed to store message", err)
	}
	return msg, nil
}

// ListConversation returns the messages exchanged by userA and userB in
// ascending order. The result does not depend on argument order.
func (s *Service) ListConversation(ctx context.Context, userA, userB string, page domain.Page) ([]domain.Message, error) {
	if err := s.requireUser(ctx, userB); err != nil {
		return nil, err
	}

	msgs, err := s.repo.Conversation(ctx, userA, userB, s.normalizePage(page))
	if err != nil {
		return nil, apperr.Internal("failed to load conversation", err)
	}
	return msgs, nil
}

func (s *Service) normalizePage(page domain.Page) domain.Page {
	if page.Limit <= 0 {
		page.Limit = s.paging.DefaultLimit
	}
	if page.Limit > s.paging.MaxLimit {
		page.Limit = s.paging.MaxLimit
	}
	return page
}

func (s *Service) requireUser(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrMissingPeer
	}
	if _, err := s.users.GetUser(ctx, userID); err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return ErrPeerNotFound
		}
		return apperr.From(err)
	}
	return nil
}
