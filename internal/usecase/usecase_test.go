package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"whatsapp-service/internal/dispatch"
	"whatsapp-service/internal/domain"
	"whatsapp-service/internal/repository"
	"whatsapp-service/pkg/cache"
	"whatsapp-service/pkg/phone"
	"whatsapp-service/pkg/selection"
)

type fakeSender struct {
	mu    sync.Mutex
	calls []string
}

func (s *fakeSender) Send(_ context.Context, phone, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, phone+"|"+body)
	return nil
}

type fakeLogs struct {
	saved   []*domain.DispatchResult
	sender  string
	saveErr error
}

func (f *fakeLogs) SaveLedger(_ context.Context, senderID string, res *domain.DispatchResult) error {
	f.sender = senderID
	f.saved = append(f.saved, res)
	return f.saveErr
}

func (f *fakeLogs) ListRecent(context.Context, int) ([]*domain.MessageLog, error) {
	return nil, nil
}

type fakeTemplateRepo struct {
	templates []domain.Template
	lists     int
}

func (f *fakeTemplateRepo) ListTemplates(context.Context) ([]domain.Template, error) {
	f.lists++
	return append([]domain.Template(nil), f.templates...), nil
}

func (f *fakeTemplateRepo) CreateTemplate(_ context.Context, t *domain.Template) (*domain.Template, error) {
	t.ID = "tpl_new"
	t.CreatedAt = time.Now()
	f.templates = append(f.templates, *t)
	return t, nil
}

func (f *fakeTemplateRepo) DeleteTemplate(_ context.Context, id string) error {
	for i, t := range f.templates {
		if t.ID == id {
			f.templates = append(f.templates[:i], f.templates[i+1:]...)
			return nil
		}
	}
	return domain.ErrTemplateNotFound
}

type memCache struct {
	data map[string]any
}

func (m *memCache) GetJSON(_ context.Context, ns, key string, dst any) error {
	v, ok := m.data[ns+":"+key]
	if !ok {
		return cache.ErrMiss
	}
	*dst.(*[]domain.Template) = v.([]domain.Template)
	return nil
}

func (m *memCache) SetJSON(_ context.Context, ns, key string, value any, _ time.Duration) error {
	m.data[ns+":"+key] = value
	return nil
}

func (m *memCache) Delete(_ context.Context, ns, key string) error {
	delete(m.data, ns+":"+key)
	return nil
}

var leads = []domain.Recipient{
	{ID: "1", Name: "Asha", Phone: "98765 43210", Status: "new", Source: "web"},
	{ID: "2", Name: "Ravi", Phone: "+91 91234 56789", Status: "contacted", Source: "web"},
	{ID: "3", Name: "Meera", Phone: "12345", Status: "new", Source: "referral"},
	{ID: "4", Name: "Asha duplicate", Phone: "919876543210", Status: "new", Source: "web"},
}

func newMessaging(t *testing.T, static []domain.Template, logs *fakeLogs) (*MessagingUsecase, *fakeSender) {
	t.Helper()
	n, err := phone.NewNormalizer("91")
	require.NoError(t, err)
	s := &fakeSender{}
	d := dispatch.NewDispatcher(n, dispatch.Options{Concurrency: 1}, zap.NewNop())
	tpl := NewTemplateUsecase(nil, nil, static, zap.NewNop())
	var repo repository.MessageLogRepository
	if logs != nil {
		repo = logs
	}
	return NewMessagingUsecase(d, s, tpl, repo, n, zap.NewNop()), s
}

func TestSelect(t *testing.T) {
	got := Select(BulkRequest{Recipients: leads, SelectedIDs: []string{"3", "1"}})
	require.Len(t, got, 2)
	assert.Equal(t, "1", got[0].ID)
	assert.Equal(t, "3", got[1].ID)

	got = Select(BulkRequest{
		Recipients:        leads,
		SelectAllFiltered: true,
		Filter:            selection.Filter{Status: "new", Source: "web"},
	})
	require.Len(t, got, 2)
	assert.Equal(t, "1", got[0].ID)
	assert.Equal(t, "4", got[1].ID)

	assert.Empty(t, Select(BulkRequest{Recipients: leads}))
}

func TestBulkSendWithTemplate(t *testing.T) {
	logs := &fakeLogs{}
	uc, s := newMessaging(t, []domain.Template{{ID: "welcome", Title: "Welcome", Content: "Hi! Thanks for your interest."}}, logs)

	res, err := uc.BulkSend(context.Background(), "user-1", BulkRequest{
		Recipients:  leads,
		SelectedIDs: []string{"1", "2", "3", "4"},
		TemplateID:  "welcome",
		Message:     "ignored",
	})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Sent)
	assert.Equal(t, 1, res.DroppedInvalid)
	assert.Equal(t, 1, res.DroppedDuplicate)
	assert.Equal(t, []string{
		"919876543210|Hi! Thanks for your interest.",
		"919123456789|Hi! Thanks for your interest.",
	}, s.calls)

	require.Len(t, logs.saved, 1)
	assert.Equal(t, "user-1", logs.sender)
	assert.Same(t, res, logs.saved[0])
}

func TestBulkSendErrors(t *testing.T) {
	uc, s := newMessaging(t, nil, nil)
	ctx := context.Background()

	_, err := uc.BulkSend(ctx, "u", BulkRequest{Recipients: leads, Message: "hi"})
	assert.ErrorIs(t, err, domain.ErrNoValidRecipients)

	_, err = uc.BulkSend(ctx, "u", BulkRequest{Recipients: leads, SelectedIDs: []string{"3"}, Message: "hi"})
	assert.ErrorIs(t, err, domain.ErrNoValidRecipients)

	_, err = uc.BulkSend(ctx, "u", BulkRequest{Recipients: leads, SelectedIDs: []string{"1"}, Message: "  "})
	assert.ErrorIs(t, err, domain.ErrEmptyMessage)

	_, err = uc.BulkSend(ctx, "u", BulkRequest{Recipients: leads, SelectedIDs: []string{"1"}, TemplateID: "missing"})
	assert.ErrorIs(t, err, domain.ErrTemplateNotFound)

	assert.Empty(t, s.calls)
}

func TestBulkSendLedgerFailureDoesNotFailDispatch(t *testing.T) {
	logs := &fakeLogs{saveErr: errors.New("db down")}
	uc, s := newMessaging(t, nil, logs)

	res, err := uc.BulkSend(context.Background(), "u", BulkRequest{Recipients: leads, SelectedIDs: []string{"2"}, Message: "hello"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Sent)
	assert.Len(t, s.calls, 1)
}

func TestSendOne(t *testing.T) {
	uc, s := newMessaging(t, nil, nil)

	res, err := uc.SendOne(context.Background(), "u", "(987) 654-3210", "", "hello")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Sent)
	assert.Equal(t, []string{"919876543210|hello"}, s.calls)

	_, err = uc.SendOne(context.Background(), "u", "123", "", "hello")
	assert.ErrorIs(t, err, domain.ErrInvalidPhone)
}

func TestRecentWithoutDatabase(t *testing.T) {
	uc, _ := newMessaging(t, nil, nil)
	logs, err := uc.Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestTemplateUsecaseCachesAndInvalidates(t *testing.T) {
	repo := &fakeTemplateRepo{templates: []domain.Template{{ID: "tpl_a", Title: "A", Content: "a"}}}
	c := &memCache{data: map[string]any{}}
	uc := NewTemplateUsecase(repo, c, []domain.Template{{ID: "welcome", Title: "Welcome", Content: "hi"}}, zap.NewNop())
	ctx := context.Background()

	list, err := uc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "welcome", list[0].ID)

	_, err = uc.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.lists, "second list served from cache")

	created, err := uc.Create(ctx, " Follow up ", "Checking in")
	require.NoError(t, err)
	assert.Equal(t, "Follow up", created.Title)

	list, err = uc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 3)
	assert.Equal(t, 2, repo.lists)

	require.NoError(t, uc.Delete(ctx, "tpl_a"))
	assert.ErrorIs(t, uc.Delete(ctx, "tpl_a"), domain.ErrTemplateNotFound)
	assert.ErrorIs(t, uc.Delete(ctx, "welcome"), domain.ErrTemplatesReadOnly)

	_, err = uc.Create(ctx, "", "x")
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestTemplateUsecaseStaticOnly(t *testing.T) {
	uc := NewTemplateUsecase(nil, nil, []domain.Template{{ID: "welcome", Content: "hi"}}, zap.NewNop())

	list, err := uc.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = uc.Create(context.Background(), "t", "c")
	assert.ErrorIs(t, err, domain.ErrTemplatesReadOnly)
}
