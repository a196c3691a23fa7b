package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jisero/internal/logger"
	"github.com/jisero/internal/model"
)

const msgCols = `id, chat_id, sender_id, recipient_id, text, original_text, status, created_at, delivered_at, seen_at`

// statusRankSQL maps a status to its rank for the monotonic-update guard.
// Must agree with model.StatusRank.
const statusRankSQL = `CASE %s WHEN 'delivered' THEN 1 WHEN 'seen' THEN 2 ELSE 0 END`

type MessageRepository struct {
	pool *pgxpool.Pool
}

func NewMessageRepository(pool *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{pool: pool}
}

func scanMessage(s interface{ Scan(dest ...any) error }, m *model.Message) error {
	return s.Scan(&m.ID, &m.ChatID, &m.SenderID, &m.RecipientID, &m.Text, &m.OriginalText,
		&m.Status, &m.CreatedAt, &m.DeliveredAt, &m.SeenAt)
}

// Save persists a message, idempotent on its client-generated id: when the
// id already exists the insert is a no-op and the existing row is returned
// with inserted=false (retransmission tolerance).
func (r *MessageRepository) Save(ctx context.Context, m *model.Message) (*model.Message, bool, error) {
	defer logger.DeferLogDuration("msg.Save", time.Now())()
	tag, err := r.pool.Exec(ctx,
		`INSERT INTO messages (id, chat_id, sender_id, recipient_id, text, original_text, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (id) DO NOTHING`,
		m.ID, m.ChatID, m.SenderID, m.RecipientID, m.Text, m.OriginalText, m.Status, m.CreatedAt,
	)
	if err != nil {
		return nil, false, fmt.Errorf("msgRepo.Save: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return m, true, nil
	}
	existing, err := r.GetByID(ctx, m.ID)
	if err != nil {
		return nil, false, fmt.Errorf("msgRepo.Save reselect: %w", err)
	}
	return existing, false, nil
}

func (r *MessageRepository) GetByID(ctx context.Context, id string) (*model.Message, error) {
	defer logger.DeferLogDuration("msg.GetByID", time.Now())()
	m := &model.Message{}
	row := r.pool.QueryRow(ctx, `SELECT `+msgCols+` FROM messages WHERE id = $1`, id)
	if err := scanMessage(row, m); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("msgRepo.GetByID: %w", err)
	}
	return m, nil
}

// UpdateStatus advances a message's status. The update is conditional on the
// new status ranking strictly above the current one, which makes concurrent
// acknowledgements commutative and retrograde updates a no-op (0 rows).
func (r *MessageRepository) UpdateStatus(ctx context.Context, id string, status model.MessageStatus, at time.Time) (int64, error) {
	defer logger.DeferLogDuration("msg.UpdateStatus", time.Now())()
	tag, err := r.pool.Exec(ctx,
		`UPDATE messages SET status = $2,
		        delivered_at = CASE WHEN $2 = 'delivered' THEN COALESCE(delivered_at, $3) ELSE delivered_at END,
		        seen_at      = CASE WHEN $2 = 'seen'      THEN COALESCE(seen_at, $3)      ELSE seen_at      END
		 WHERE id = $1
		   AND `+fmt.Sprintf(statusRankSQL, "status")+` < `+fmt.Sprintf(statusRankSQL, "$2::text"),
		id, status, at.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("msgRepo.UpdateStatus: %w", err)
	}
	return tag.RowsAffected(), nil
}

// FindPending returns all messages for the recipient still in a non-terminal
// delivery state (sent or queued), oldest first — the replay order.
func (r *MessageRepository) FindPending(ctx context.Context, recipientID string) ([]model.Message, error) {
	defer logger.DeferLogDuration("msg.FindPending", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT `+msgCols+` FROM messages
		 WHERE recipient_id = $1 AND status IN ('sent', 'queued')
		 ORDER BY created_at ASC, id ASC`, recipientID,
	)
	if err != nil {
		return nil, fmt.Errorf("msgRepo.FindPending query: %w", err)
	}
	defer rows.Close()

	msgs := make([]model.Message, 0, 16)
	for rows.Next() {
		var m model.Message
		if err := scanMessage(rows, &m); err != nil {
			return nil, fmt.Errorf("msgRepo.FindPending scan: %w", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("msgRepo.FindPending rows: %w", err)
	}
	return msgs, nil
}

// PruneQueued evicts the oldest pending messages beyond keep for the
// recipient. Called right after a queued insert to bound per-recipient
// backlog; returns how many rows were evicted.
func (r *MessageRepository) PruneQueued(ctx context.Context, recipientID string, keep int) (int64, error) {
	defer logger.DeferLogDuration("msg.PruneQueued", time.Now())()
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM messages WHERE id IN (
		     SELECT id FROM messages
		     WHERE recipient_id = $1 AND status IN ('sent', 'queued')
		     ORDER BY created_at DESC, id DESC
		     OFFSET $2
		 )`, recipientID, keep,
	)
	if err != nil {
		return 0, fmt.Errorf("msgRepo.PruneQueued: %w", err)
	}
	return tag.RowsAffected(), nil
}
