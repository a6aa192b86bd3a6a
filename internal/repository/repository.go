package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"whatsapp-service/internal/domain"
)

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

type TemplateRepository interface {
	ListTemplates(ctx context.Context) ([]domain.Template, error)
	CreateTemplate(ctx context.Context, t *domain.Template) (*domain.Template, error)
	DeleteTemplate(ctx context.Context, id string) error
}

type MessageLogRepository interface {
	SaveLedger(ctx context.Context, senderID string, res *domain.DispatchResult) error
	ListRecent(ctx context.Context, limit int) ([]*domain.MessageLog, error)
}

const schema = `
CREATE TABLE IF NOT EXISTS message_templates (
	id         TEXT PRIMARY KEY,
	title      TEXT NOT NULL,
	content    TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS message_logs (
	id           TEXT PRIMARY KEY,
	batch_id     TEXT NOT NULL,
	sender_id    TEXT NOT NULL DEFAULT '',
	recipient_id TEXT NOT NULL DEFAULT '',
	phone        TEXT NOT NULL,
	content      TEXT NOT NULL,
	status       TEXT NOT NULL,
	reason       TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_message_logs_created_at ON message_logs (created_at DESC);
`

// EnsureSchema creates the tables this service writes to.
func EnsureSchema(ctx context.Context, db DBTX) error {
	_, err := db.Exec(ctx, schema)
	return err
}
