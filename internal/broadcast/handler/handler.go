package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"clocklayer/internal/broadcast/models"
	id "clocklayer/pkg/domain"
	dErrors "clocklayer/pkg/domain-errors"
	"clocklayer/pkg/platform/httputil"
	"clocklayer/pkg/platform/middleware/admin"
	"clocklayer/pkg/platform/middleware/auth"
	"clocklayer/pkg/platform/middleware/request"
	"clocklayer/pkg/requestcontext"
)

// Service defines the interface for broadcast and inbox operations.
type Service interface {
	Broadcast(ctx context.Context, title, content string) (*models.Message, error)
	Inbox(ctx context.Context, identityID id.IdentityID) (*models.Inbox, error)
	MarkRead(ctx context.Context, identityID id.IdentityID) (*models.Inbox, error)
	Watch(ctx context.Context, identityID id.IdentityID) <-chan *models.Inbox
}

type Handler struct {
	service    Service
	logger     *slog.Logger
	validator  auth.JWTValidator
	adminToken string
}

func New(service Service, logger *slog.Logger, validator auth.JWTValidator, adminToken string) *Handler {
	return &Handler{service: service, logger: logger, validator: validator, adminToken: adminToken}
}

func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(admin.RequireAdminToken(h.adminToken, h.logger))
		r.Post("/admin/messages", h.HandleBroadcast)
	})
	r.Group(func(r chi.Router) {
		if h.validator != nil {
			r.Use(auth.RequireAuth(h.validator, h.logger))
		}
		r.Get("/me/inbox", h.HandleInbox)
		r.Post("/me/inbox/read", h.HandleMarkRead)
		r.Get("/me/inbox/stream", h.HandleStream)
	})
}

type BroadcastRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

func (r *BroadcastRequest) Validate() error {
	r.Title = strings.TrimSpace(r.Title)
	r.Content = strings.TrimSpace(r.Content)
	if r.Title == "" || r.Content == "" {
		return dErrors.New(dErrors.CodeValidation, "title and content are required")
	}
	return nil
}

func (h *Handler) HandleBroadcast(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[BroadcastRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	msg, err := h.service.Broadcast(ctx, req.Title, req.Content)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to broadcast message",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, msg)
}

func (h *Handler) HandleInbox(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	inbox, err := h.service.Inbox(ctx, requestcontext.IdentityID(ctx))
	if err != nil {
		h.fail(ctx, w, "failed to load inbox", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, inbox)
}

func (h *Handler) HandleMarkRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	inbox, err := h.service.MarkRead(ctx, requestcontext.IdentityID(ctx))
	if err != nil {
		h.fail(ctx, w, "failed to mark inbox read", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, inbox)
}

func (h *Handler) HandleStream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identityID := requestcontext.IdentityID(ctx)
	if identityID.IsZero() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	err := httputil.StreamSSE(w, r, "inbox", h.service.Watch(ctx, identityID))
	if errors.Is(err, httputil.ErrStreamingUnsupported) {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "streaming unavailable"))
		return
	}
	if err != nil {
		h.logger.WarnContext(ctx, "inbox stream ended with error",
			"request_id", request.GetRequestID(ctx),
			"error", err,
		)
	}
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	h.logger.WarnContext(ctx, msg,
		"request_id", request.GetRequestID(ctx),
		"error", err,
	)
	httputil.WriteError(w, err)
}
