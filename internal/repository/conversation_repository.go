package repository

import (
	"context"
	"fmt"
	"slices"

	"trendcast/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ConversationRepository keeps advisor chat history per chat or session id.
type ConversationRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewConversationRepository(pool PgxPool, tracer trace.Tracer) *ConversationRepository {
	return &ConversationRepository{pool: pool, tracer: tracer}
}

func (r *ConversationRepository) AppendMessage(ctx context.Context, chatID int64, role, content string) error {
	if role != RoleUser && role != RoleAssistant {
		return fmt.Errorf("unknown conversation role %q: %w", role, domain.ErrInvalidInput)
	}

	ctx, span := r.tracer.Start(ctx, "conversation-repo.append-message")
	defer span.End()
	span.SetAttributes(attribute.Int64("chat_id", chatID), attribute.String("role", role))

	_, err := r.pool.Exec(ctx,
		`INSERT INTO conversation_messages (chat_id, role, content) VALUES ($1, $2, $3)`,
		chatID, role, content,
	)
	return err
}

// RecentMessages returns up to limit messages, oldest first.
func (r *ConversationRepository) RecentMessages(ctx context.Context, chatID int64, limit int) ([]domain.ConversationMessage, error) {
	ctx, span := r.tracer.Start(ctx, "conversation-repo.recent-messages")
	defer span.End()

	rows, err := r.pool.Query(ctx,
		`SELECT role, content, created_at
		 FROM conversation_messages
		 WHERE chat_id = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2`,
		chatID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []domain.ConversationMessage
	for rows.Next() {
		var m domain.ConversationMessage
		if err := rows.Scan(&m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.CreatedAt = m.CreatedAt.UTC()
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	slices.Reverse(messages)
	return messages, nil
}

// Prune drops everything but the newest keep messages of a chat.
func (r *ConversationRepository) Prune(ctx context.Context, chatID int64, keep int) (int64, error) {
	ctx, span := r.tracer.Start(ctx, "conversation-repo.prune")
	defer span.End()

	tag, err := r.pool.Exec(ctx,
		`DELETE FROM conversation_messages
		 WHERE chat_id = $1 AND id NOT IN (
		     SELECT id FROM conversation_messages
		     WHERE chat_id = $1
		     ORDER BY created_at DESC, id DESC
		     LIMIT $2
		 )`,
		chatID, keep,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
