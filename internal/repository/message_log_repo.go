package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"whatsapp-service/internal/domain"
)

type pgMessageLogRepo struct {
	db DBTX
}

func NewMessageLogRepository(db DBTX) MessageLogRepository {
	return &pgMessageLogRepo{db: db}
}

// SaveLedger writes one row per ledger entry in a single batch.
func (p *pgMessageLogRepo) SaveLedger(ctx context.Context, senderID string, res *domain.DispatchResult) error {
	if res == nil || len(res.Entries) == 0 {
		return nil
	}

	query := `
		INSERT INTO message_logs (
			id, batch_id, sender_id, recipient_id,
			phone, content, status, reason, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING
	`

	batch := &pgx.Batch{}
	for _, e := range res.Entries {
		batch.Queue(query,
			e.ID,
			res.BatchID,
			senderID,
			e.RecipientID,
			e.Phone,
			res.Request.Body,
			string(e.Outcome),
			e.Reason,
			e.FinishedAt,
		)
	}

	br := p.db.SendBatch(ctx, batch)
	defer br.Close()

	for i := range res.Entries {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("insert ledger entry %d of batch %s: %w", i, res.BatchID, err)
		}
	}
	return nil
}

func (p *pgMessageLogRepo) ListRecent(ctx context.Context, limit int) ([]*domain.MessageLog, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := `
		SELECT id, batch_id, sender_id, recipient_id,
		       phone, content, status, reason, created_at
		FROM message_logs
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := p.db.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []*domain.MessageLog
	for rows.Next() {
		var m domain.MessageLog
		var status string
		err := rows.Scan(
			&m.ID,
			&m.BatchID,
			&m.SenderID,
			&m.RecipientID,
			&m.Phone,
			&m.Content,
			&status,
			&m.Reason,
			&m.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		m.Status = domain.Outcome(status)
		logs = append(logs, &m)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return logs, nil
}
