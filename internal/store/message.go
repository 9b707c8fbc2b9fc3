package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"neurocare-api/internal/model"
)

func (q *Queries) CreateConversation(ctx context.Context, c *model.Conversation) error {
	err := q.db.QueryRow(ctx,
		`INSERT INTO conversations (user_id, title) VALUES ($1,$2) RETURNING id, started_at`,
		c.UserID, c.Title,
	).Scan(&c.ID, &c.StartedAt)
	if err != nil {
		return fmt.Errorf("create conversation: %w", mapErr(err))
	}
	return nil
}

func (q *Queries) ConversationByID(ctx context.Context, id int64) (*model.Conversation, error) {
	c := &model.Conversation{}
	err := q.db.QueryRow(ctx,
		`SELECT id, user_id, title, started_at FROM conversations WHERE id = $1`, id,
	).Scan(&c.ID, &c.UserID, &c.Title, &c.StartedAt)
	if err != nil {
		return nil, fmt.Errorf("conversation by id: %w", mapErr(err))
	}
	return c, nil
}

func (q *Queries) ListConversations(ctx context.Context, userID int64) ([]model.Conversation, error) {
	rows, err := q.db.Query(ctx,
		`SELECT id, user_id, title, started_at
		 FROM conversations
		 WHERE user_id = $1
		 ORDER BY started_at DESC, id DESC`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var out []model.Conversation
	for rows.Next() {
		var c model.Conversation
		if err := rows.Scan(&c.ID, &c.UserID, &c.Title, &c.StartedAt); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (q *Queries) CreateMessage(ctx context.Context, m *model.Message) error {
	if m.Category == "" {
		m.Category = model.CategoryOther
	}
	err := q.db.QueryRow(ctx,
		`INSERT INTO messages (conversation_id, sender, message, category)
		 VALUES ($1,$2,$3,$4) RETURNING id, created_at`,
		m.ConversationID, m.Sender, m.Text, m.Category,
	).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return fmt.Errorf("create message: %w", mapErr(err))
	}
	return nil
}

const messageCols = `SELECT id, conversation_id, sender, message, category, created_at, classification_batch FROM messages`

func (q *Queries) scanMessages(ctx context.Context, sql string, args ...any) ([]model.Message, error) {
	rows, err := q.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Message
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Sender, &m.Text, &m.Category, &m.CreatedAt, &m.Batch); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (q *Queries) ListMessages(ctx context.Context, conversationID int64) ([]model.Message, error) {
	out, err := q.scanMessages(ctx, messageCols+` WHERE conversation_id = $1 ORDER BY created_at, id`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return out, nil
}

// UserMessagesByIDs returns the user-authored rows among ids in id order.
// Bot replies and unknown ids are silently dropped.
func (q *Queries) UserMessagesByIDs(ctx context.Context, ids []int64) ([]model.Message, error) {
	out, err := q.scanMessages(ctx, messageCols+` WHERE id = ANY($1) AND sender = 'user' ORDER BY id`, ids)
	if err != nil {
		return nil, fmt.Errorf("messages by ids: %w", err)
	}
	return out, nil
}

// PendingUserMessages lists user messages still carrying the default label.
func (q *Queries) PendingUserMessages(ctx context.Context) ([]model.Message, error) {
	out, err := q.scanMessages(ctx, messageCols+` WHERE sender = 'user' AND category = 'other' ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("pending messages: %w", err)
	}
	return out, nil
}

// SetMessageCategory labels one message and stamps the run that produced the label.
func (q *Queries) SetMessageCategory(ctx context.Context, id int64, c model.MessageCategory, batch uuid.UUID) error {
	tag, err := q.db.Exec(ctx,
		`UPDATE messages SET category = $2, classification_batch = $3 WHERE id = $1`, id, c, batch)
	if err != nil {
		return fmt.Errorf("set message category: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CategoryCounts groups user messages by label. Categories with no rows are absent.
func (q *Queries) CategoryCounts(ctx context.Context) ([]model.CategoryCount, error) {
	rows, err := q.db.Query(ctx,
		`SELECT category, COUNT(*) FROM messages WHERE sender = 'user' GROUP BY category ORDER BY category`,
	)
	if err != nil {
		return nil, fmt.Errorf("category counts: %w", err)
	}
	defer rows.Close()

	var out []model.CategoryCount
	for rows.Next() {
		var c model.CategoryCount
		if err := rows.Scan(&c.Category, &c.Count); err != nil {
			return nil, fmt.Errorf("scan category count: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
