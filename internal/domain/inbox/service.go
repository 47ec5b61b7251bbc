package inbox

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/medline/medline/internal/platform/apperr"
)

const maxContentLength = 4000

type Service struct {
	messages Repository
}

func NewService(messages Repository) *Service {
	return &Service{messages: messages}
}

type SendInput struct {
	SenderID    uuid.UUID `json:"sender_id"`
	RecipientID uuid.UUID `json:"recipient_id"`
	Content     string    `json:"content"`
}

func (s *Service) Send(ctx context.Context, in SendInput) (*Message, error) {
	if in.SenderID == uuid.Nil || in.RecipientID == uuid.Nil {
		return nil, apperr.New(apperr.Validation, "sender_id and recipient_id are required")
	}
	if in.SenderID == in.RecipientID {
		return nil, apperr.New(apperr.Validation, "cannot message yourself")
	}
	in.Content = strings.TrimSpace(in.Content)
	if in.Content == "" {
		return nil, apperr.New(apperr.Validation, "content is required")
	}
	if len(in.Content) > maxContentLength {
		return nil, apperr.New(apperr.Validation, "content exceeds %d characters", maxContentLength)
	}

	m := &Message{SenderID: in.SenderID, RecipientID: in.RecipientID, Content: in.Content}
	if err := s.messages.Create(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Message, error) {
	return s.messages.GetByID(ctx, id)
}

func (s *Service) Conversation(ctx context.Context, a, b uuid.UUID, limit, offset int) ([]*Message, int, error) {
	if a == uuid.Nil || b == uuid.Nil {
		return nil, 0, apperr.New(apperr.Validation, "both participants are required")
	}
	return s.messages.ListConversation(ctx, a, b, limit, offset)
}

func (s *Service) Inbox(ctx context.Context, recipientID uuid.UUID, unreadOnly bool, limit, offset int) ([]*Message, int, error) {
	return s.messages.ListInbox(ctx, recipientID, unreadOnly, limit, offset)
}

// MarkConversationRead flags everything the sender wrote to the recipient as
// read and returns the number of messages affected.
func (s *Service) MarkConversationRead(ctx context.Context, recipientID, senderID uuid.UUID) (int64, error) {
	if recipientID == uuid.Nil || senderID == uuid.Nil {
		return 0, apperr.New(apperr.Validation, "both participants are required")
	}
	return s.messages.MarkRead(ctx, recipientID, senderID)
}
