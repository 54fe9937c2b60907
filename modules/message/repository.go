package message

import (
	"context"

	domain "github.com/example/chat-app/domain/message"
	"gorm.io/gorm"
)

const pairCondition = "((sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?))"

// Repository handles message persistence using GORM.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new Repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a message.
func (r *Repository) Create(ctx context.Context, msg *domain.Message) error {
	return r.db.WithContext(ctx).Create(msg).Error
}

// Conversation returns the newest page.Limit messages exchanged between a
// and b, oldest first. The pair is unordered.
func (r *Repository) Conversation(ctx context.Context, a, b string, page domain.Page) ([]domain.Message, error) {
	q := r.db.WithContext(ctx).
		Where(pairCondition, a, b, b, a)
	if !page.Before.IsZero() {
		q = q.Where("created_at < ?", page.Before.UTC())
	}

	var msgs []domain.Message
	if err := q.Order("created_at DESC").Order("id DESC").Limit(page.Limit).Find(&msgs).Error; err != nil {
		return nil, err
	}

	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}
