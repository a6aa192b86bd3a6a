package repository

import (
	"context"

	"whatsapp-service/internal/domain"
	"whatsapp-service/pkg/id"
)

type pgTemplateRepo struct {
	db DBTX
}

func NewTemplateRepository(db DBTX) TemplateRepository {
	return &pgTemplateRepo{db: db}
}

func (p *pgTemplateRepo) ListTemplates(ctx context.Context) ([]domain.Template, error) {
	query := `
		SELECT id, title, content, created_at
		FROM message_templates
		ORDER BY created_at DESC
	`

	rows, err := p.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var templates []domain.Template
	for rows.Next() {
		var t domain.Template
		if err := rows.Scan(&t.ID, &t.Title, &t.Content, &t.CreatedAt); err != nil {
			return nil, err
		}
		templates = append(templates, t)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return templates, nil
}

func (p *pgTemplateRepo) CreateTemplate(ctx context.Context, t *domain.Template) (*domain.Template, error) {
	if t.ID == "" {
		t.ID = id.NewULID("tpl")
	}

	query := `
		INSERT INTO message_templates (id, title, content)
		VALUES ($1, $2, $3)
		RETURNING id, title, content, created_at
	`

	var created domain.Template
	err := p.db.QueryRow(ctx, query, t.ID, t.Title, t.Content).
		Scan(&created.ID, &created.Title, &created.Content, &created.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (p *pgTemplateRepo) DeleteTemplate(ctx context.Context, templateID string) error {
	ct, err := p.db.Exec(ctx, `DELETE FROM message_templates WHERE id = $1`, templateID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrTemplateNotFound
	}
	return nil
}
