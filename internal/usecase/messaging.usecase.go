package usecase

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"whatsapp-service/internal/dispatch"
	"whatsapp-service/internal/domain"
	"whatsapp-service/internal/repository"
	"whatsapp-service/internal/sender"
	"whatsapp-service/pkg/phone"
	"whatsapp-service/pkg/selection"
	"whatsapp-service/pkg/template"
)

// BulkRequest is one bulk send as submitted by the CRM lead list.
type BulkRequest struct {
	Recipients        []domain.Recipient `json:"recipients"`
	SelectedIDs       []string           `json:"selected_ids"`
	SelectAllFiltered bool               `json:"select_all_filtered"`
	Filter            selection.Filter   `json:"filter"`
	TemplateID        string             `json:"template_id"`
	Message           string             `json:"message"`
}

type TemplateLister interface {
	List(ctx context.Context) ([]domain.Template, error)
}

type MessagingUsecase struct {
	dispatcher *dispatch.Dispatcher
	sender     sender.Sender
	templates  TemplateLister
	logs       repository.MessageLogRepository
	normalizer *phone.Normalizer
	logger     *zap.Logger
}

// NewMessagingUsecase accepts a nil logs repository; ledgers are then only
// returned to the caller.
func NewMessagingUsecase(
	dispatcher *dispatch.Dispatcher,
	s sender.Sender,
	templates TemplateLister,
	logs repository.MessageLogRepository,
	normalizer *phone.Normalizer,
	logger *zap.Logger,
) *MessagingUsecase {
	return &MessagingUsecase{
		dispatcher: dispatcher,
		sender:     s,
		templates:  templates,
		logs:       logs,
		normalizer: normalizer,
		logger:     logger,
	}
}

// Select resolves which recipients a bulk request targets, in the order
// they appear in the list.
func Select(req BulkRequest) []domain.Recipient {
	sel := selection.New(req.SelectedIDs...)
	if req.SelectAllFiltered {
		sel.SelectAll(req.Filter.Visible(req.Recipients))
	}
	return sel.Materialize(req.Recipients)
}

// BulkSend materializes the selection, resolves the body and runs one
// dispatch. The ledger is persisted best effort.
func (u *MessagingUsecase) BulkSend(ctx context.Context, senderID string, req BulkRequest) (*domain.DispatchResult, error) {
	recipients := Select(req)
	if len(recipients) == 0 {
		return nil, domain.ErrNoValidRecipients
	}

	body, err := u.resolveBody(ctx, req.TemplateID, req.Message)
	if err != nil {
		return nil, err
	}

	res, err := u.dispatcher.Dispatch(ctx, recipients, body, u.sender.Send)
	if err != nil {
		return nil, err
	}
	u.persist(ctx, senderID, res)
	return res, nil
}

// SendOne sends to a single number through the same pipeline as a bulk send.
func (u *MessagingUsecase) SendOne(ctx context.Context, senderID, phoneNumber, templateID, message string) (*domain.DispatchResult, error) {
	if _, err := u.normalizer.Normalize(phoneNumber); err != nil {
		return nil, err
	}
	return u.BulkSend(ctx, senderID, BulkRequest{
		Recipients:  []domain.Recipient{{ID: phoneNumber, Phone: phoneNumber}},
		SelectedIDs: []string{phoneNumber},
		TemplateID:  templateID,
		Message:     message,
	})
}

// resolveBody fetches the template snapshot once per dispatch. An unknown
// template id is reported as such rather than as an empty message.
func (u *MessagingUsecase) resolveBody(ctx context.Context, templateID, message string) (string, error) {
	if templateID == "" {
		return message, nil
	}
	templates, err := u.templates.List(ctx)
	if err != nil {
		return "", err
	}
	r := template.NewResolver(templates)
	if _, ok := r.Lookup(templateID); !ok {
		return "", domain.ErrTemplateNotFound
	}
	return r.Resolve(templateID, message), nil
}

func (u *MessagingUsecase) persist(ctx context.Context, senderID string, res *domain.DispatchResult) {
	if u.logs == nil {
		return
	}
	// The batch already ran; a cancelled request must not lose its ledger.
	ctx = context.WithoutCancel(ctx)
	if err := u.logs.SaveLedger(ctx, senderID, res); err != nil {
		u.logger.Error("failed to persist dispatch ledger",
			zap.String("batch_id", res.BatchID),
			zap.Int("entries", len(res.Entries)),
			zap.Error(err))
	}
}

func (u *MessagingUsecase) Recent(ctx context.Context, limit int) ([]*domain.MessageLog, error) {
	if u.logs == nil {
		return []*domain.MessageLog{}, nil
	}
	logs, err := u.logs.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent messages: %w", err)
	}
	if logs == nil {
		logs = []*domain.MessageLog{}
	}
	return logs, nil
}

// WebLink builds a click-to-chat link for manual sending.
func (u *MessagingUsecase) WebLink(phoneNumber, text string) (string, error) {
	return u.normalizer.WebLink(phoneNumber, text)
}
