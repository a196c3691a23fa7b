package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jisero/internal/logger"
	"github.com/jisero/internal/model"
)

const chatCols = `id, user_a_id, user_b_id, created_at, last_message_at`

type ChatRepository struct {
	pool *pgxpool.Pool
}

func NewChatRepository(pool *pgxpool.Pool) *ChatRepository {
	return &ChatRepository{pool: pool}
}

func scanChat(s interface{ Scan(dest ...any) error }, c *model.Chat) error {
	return s.Scan(&c.ID, &c.UserAID, &c.UserBID, &c.CreatedAt, &c.LastMessageAt)
}

// FindOrCreate resolves the chat for an unordered participant pair,
// creating it lazily on first contact. The pair is normalized before
// lookup so FindOrCreate(A, B) and FindOrCreate(B, A) return the same row;
// a concurrent create loses on the unique constraint and re-reads.
func (r *ChatRepository) FindOrCreate(ctx context.Context, userA, userB string) (*model.Chat, error) {
	defer logger.DeferLogDuration("chat.FindOrCreate", time.Now())()
	a, b := model.NormalizePair(userA, userB)

	c := &model.Chat{}
	row := r.pool.QueryRow(ctx, `SELECT `+chatCols+` FROM chats WHERE user_a_id = $1 AND user_b_id = $2`, a, b)
	err := scanChat(row, c)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("chatRepo.FindOrCreate select: %w", err)
	}

	now := time.Now().UTC()
	_, err = r.pool.Exec(ctx,
		`INSERT INTO chats (id, user_a_id, user_b_id, created_at, last_message_at)
		 VALUES ($1, $2, $3, $4, $4)
		 ON CONFLICT (user_a_id, user_b_id) DO NOTHING`,
		uuid.New().String(), a, b, now,
	)
	if err != nil {
		return nil, fmt.Errorf("chatRepo.FindOrCreate insert: %w", err)
	}

	row = r.pool.QueryRow(ctx, `SELECT `+chatCols+` FROM chats WHERE user_a_id = $1 AND user_b_id = $2`, a, b)
	if err := scanChat(row, c); err != nil {
		return nil, fmt.Errorf("chatRepo.FindOrCreate reselect: %w", err)
	}
	return c, nil
}

func (r *ChatRepository) GetByID(ctx context.Context, id string) (*model.Chat, error) {
	defer logger.DeferLogDuration("chat.GetByID", time.Now())()
	c := &model.Chat{}
	row := r.pool.QueryRow(ctx, `SELECT `+chatCols+` FROM chats WHERE id = $1`, id)
	if err := scanChat(row, c); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("chatRepo.GetByID: %w", err)
	}
	return c, nil
}

// Touch bumps last_message_at after a send.
func (r *ChatRepository) Touch(ctx context.Context, chatID string, at time.Time) error {
	defer logger.DeferLogDuration("chat.Touch", time.Now())()
	_, err := r.pool.Exec(ctx,
		`UPDATE chats SET last_message_at = $1 WHERE id = $2`, at, chatID,
	)
	if err != nil {
		return fmt.Errorf("chatRepo.Touch: %w", err)
	}
	return nil
}
