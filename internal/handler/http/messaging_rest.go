package httphandler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"whatsapp-service/internal/domain"
	"whatsapp-service/internal/usecase"
	"whatsapp-service/pkg/middleware"
	"whatsapp-service/pkg/response"
)

// Pairing is the device-pairing surface of the connection session.
type Pairing interface {
	Snapshot() domain.ConnectionSession
	RequestPairingCode(ctx context.Context, phone string) error
	RequestCredential(ctx context.Context) error
	Reset()
}

type MessagingHandler struct {
	pairing   Pairing
	messaging *usecase.MessagingUsecase
	templates *usecase.TemplateUsecase
	logger    *zap.Logger
}

func NewMessagingHandler(
	pairing Pairing,
	messaging *usecase.MessagingUsecase,
	templates *usecase.TemplateUsecase,
	logger *zap.Logger,
) *MessagingHandler {
	return &MessagingHandler{
		pairing:   pairing,
		messaging: messaging,
		templates: templates,
		logger:    logger,
	}
}

func (h *MessagingHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	response.Error(w, status, err.Error())
}

func decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errors.Join(domain.ErrInvalidRequest, err)
	}
	return nil
}

// ----------------------
// Connection
// ----------------------

func (h *MessagingHandler) Status(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, h.pairing.Snapshot().View())
}

type pairingRequest struct {
	Phone string `json:"phone"`
}

func (h *MessagingHandler) RequestPairingCode(w http.ResponseWriter, r *http.Request) {
	var req pairingRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.pairing.RequestPairingCode(r.Context(), req.Phone); err != nil {
		h.fail(w, r, err)
		return
	}
	response.Message(w, http.StatusAccepted, "Pairing code requested")
}

func (h *MessagingHandler) RequestQR(w http.ResponseWriter, r *http.Request) {
	if err := h.pairing.RequestCredential(r.Context()); err != nil {
		h.fail(w, r, err)
		return
	}
	response.Message(w, http.StatusAccepted, "QR code requested")
}

func (h *MessagingHandler) Reset(w http.ResponseWriter, r *http.Request) {
	h.pairing.Reset()
	response.JSON(w, http.StatusOK, h.pairing.Snapshot().View())
}

// ----------------------
// Sending
// ----------------------

type sendRequest struct {
	Phone      string `json:"phone"`
	Message    string `json:"message"`
	TemplateID string `json:"template_id"`
}

func (h *MessagingHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if req.Phone == "" {
		h.fail(w, r, domain.ErrPhoneRequired)
		return
	}
	uid, _ := middleware.GetUserID(r.Context())

	res, err := h.messaging.SendOne(r.Context(), uid, req.Phone, req.TemplateID, req.Message)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, res)
}

func (h *MessagingHandler) BulkSend(w http.ResponseWriter, r *http.Request) {
	var req usecase.BulkRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	uid, _ := middleware.GetUserID(r.Context())

	res, err := h.messaging.BulkSend(r.Context(), uid, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, res)
}

func (h *MessagingHandler) Recent(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	logs, err := h.messaging.Recent(r.Context(), limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, logs)
}

func (h *MessagingHandler) WebLink(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	link, err := h.messaging.WebLink(q.Get("phone"), q.Get("text"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]string{"url": link})
}

// ----------------------
// Templates
// ----------------------

func (h *MessagingHandler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := h.templates.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if templates == nil {
		templates = []domain.Template{}
	}
	response.JSON(w, http.StatusOK, templates)
}

type templateRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

func (h *MessagingHandler) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req templateRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	t, err := h.templates.Create(r.Context(), req.Title, req.Content)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.JSON(w, http.StatusCreated, t)
}

func (h *MessagingHandler) DeleteTemplate(w http.ResponseWriter, r *http.Request) {
	if err := h.templates.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, domain.ErrTemplateNotFound) {
			response.Error(w, http.StatusNotFound, "template not found")
			return
		}
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
