package message

import (
	"time"
)

// Message is a direct message between two users. Messages are immutable.
type Message struct {
	ID         string    `gorm:"primaryKey;type:text" json:"id"`
	SenderID   string    `gorm:"index:idx_pair;not null;type:text" json:"senderId"`
	ReceiverID string    `gorm:"index:idx_pair;not null;type:text" json:"receiverId"`
	Text       string    `gorm:"type:text" json:"text"`
	Image      string    `gorm:"type:text" json:"image"`
	CreatedAt  time.Time `gorm:"index;not null" json:"createdAt"`
}

// TableName returns the table name for the Message entity.
func (Message) TableName() string {
	return "messages"
}

// Involves reports whether userID is the sender or the recipient.
func (m *Message) Involves(userID string) bool {
	return m.SenderID == userID || m.ReceiverID == userID
}

// Page bounds a conversation query. The newest Limit messages created
// strictly before Before are selected; a zero Before means "now".
type Page struct {
	Limit  int       `json:"limit"`
	Before time.Time `json:"before,omitempty"`
}
