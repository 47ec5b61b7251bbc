package inbox

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, m *Message) error
	GetByID(ctx context.Context, id uuid.UUID) (*Message, error)
	// ListConversation returns messages exchanged between two principals in
	// either direction, oldest first.
	ListConversation(ctx context.Context, a, b uuid.UUID, limit, offset int) ([]*Message, int, error)
	// ListInbox returns messages addressed to the recipient, newest first.
	ListInbox(ctx context.Context, recipientID uuid.UUID, unreadOnly bool, limit, offset int) ([]*Message, int, error)
	// MarkRead flags every unread message from sender to recipient as read and
	// reports how many rows changed.
	MarkRead(ctx context.Context, recipientID, senderID uuid.UUID) (int64, error)
}
