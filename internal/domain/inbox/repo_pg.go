package inbox

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medline/medline/internal/platform/apperr"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

const messageCols = `id, sender_id, recipient_id, content, read, created_at`

func scanMessage(row pgx.Row) (*Message, error) {
	var m Message
	err := row.Scan(&m.ID, &m.SenderID, &m.RecipientID, &m.Content, &m.Read, &m.CreatedAt)
	return &m, err
}

func (r *repoPG) Create(ctx context.Context, m *Message) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	row := r.pool.QueryRow(ctx, `
		INSERT INTO message (id, sender_id, recipient_id, content)
		VALUES ($1, $2, $3, $4)
		RETURNING `+messageCols,
		m.ID, m.SenderID, m.RecipientID, m.Content)
	stored, err := scanMessage(row)
	if err != nil {
		return err
	}
	*m = *stored
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Message, error) {
	m, err := scanMessage(r.pool.QueryRow(ctx,
		`SELECT `+messageCols+` FROM message WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.New(apperr.NotFound, "message not found")
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (r *repoPG) ListConversation(ctx context.Context, a, b uuid.UUID, limit, offset int) ([]*Message, int, error) {
	const where = ` WHERE (sender_id = $1 AND recipient_id = $2) OR (sender_id = $2 AND recipient_id = $1)`

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM message`+where, a, b).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+messageCols+` FROM message`+where+` ORDER BY created_at ASC LIMIT $3 OFFSET $4`,
		a, b, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	return collectMessages(rows, total)
}

func (r *repoPG) ListInbox(ctx context.Context, recipientID uuid.UUID, unreadOnly bool, limit, offset int) ([]*Message, int, error) {
	where := ` WHERE recipient_id = $1`
	if unreadOnly {
		where += ` AND read = FALSE`
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM message`+where, recipientID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+messageCols+` FROM message`+where+` ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		recipientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	return collectMessages(rows, total)
}

func (r *repoPG) MarkRead(ctx context.Context, recipientID, senderID uuid.UUID) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE message SET read = TRUE
		WHERE recipient_id = $1 AND sender_id = $2 AND read = FALSE`,
		recipientID, senderID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func collectMessages(rows pgx.Rows, total int) ([]*Message, int, error) {
	var items []*Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, m)
	}
	return items, total, rows.Err()
}
