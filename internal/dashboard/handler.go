package dashboard

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	dErrors "clocklayer/pkg/domain-errors"
	"clocklayer/pkg/platform/httputil"
	"clocklayer/pkg/platform/middleware/auth"
	"clocklayer/pkg/platform/middleware/request"
	"clocklayer/pkg/requestcontext"
)

type Handler struct {
	service   *Service
	logger    *slog.Logger
	validator auth.JWTValidator
}

func NewHandler(service *Service, logger *slog.Logger, validator auth.JWTValidator) *Handler {
	return &Handler{service: service, logger: logger, validator: validator}
}

func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		if h.validator != nil {
			r.Use(auth.RequireAuth(h.validator, h.logger))
		}
		r.Get("/me", h.HandleMe)
		r.Patch("/me", h.HandleUpdateMe)
		r.Get("/me/referrals", h.HandleReferrals)
		r.Get("/me/referrals/stream", h.HandleReferralStream)
	})
}

// UpdateMeRequest is the body for PATCH /me.
type UpdateMeRequest struct {
	Name     *string `json:"name"`
	Username *string `json:"username"`
	Phone    *string `json:"phone"`
}

func (r *UpdateMeRequest) Validate() error {
	if r.Name == nil && r.Username == nil && r.Phone == nil {
		return dErrors.New(dErrors.CodeValidation, "nothing to update")
	}
	return nil
}

func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	card, err := h.service.Me(ctx, requestcontext.IdentityID(ctx))
	if err != nil {
		h.fail(w, r, "failed to load profile card", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, card)
}

func (h *Handler) HandleUpdateMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[UpdateMeRequest](w, r, h.logger, ctx, request.GetRequestID(ctx))
	if !ok {
		return
	}
	card, err := h.service.UpdateMe(ctx, requestcontext.IdentityID(ctx), Update{
		Name:     req.Name,
		Username: req.Username,
		Phone:    req.Phone,
	})
	if err != nil {
		h.fail(w, r, "failed to update profile", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, card)
}

func (h *Handler) HandleReferrals(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	refs, err := h.service.Referrals(ctx, requestcontext.IdentityID(ctx))
	if err != nil {
		h.fail(w, r, "failed to list referrals", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"referrals": refs,
		"count":     len(refs),
	})
}

func (h *Handler) HandleReferralStream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ch, err := h.service.WatchReferrals(ctx, requestcontext.IdentityID(ctx))
	if err != nil {
		h.fail(w, r, "failed to watch referrals", err)
		return
	}
	err = httputil.StreamSSE(w, r, "referrals", ch)
	if errors.Is(err, httputil.ErrStreamingUnsupported) {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "streaming unavailable"))
		return
	}
	if err != nil {
		h.logger.WarnContext(ctx, "referral stream ended with error",
			"request_id", request.GetRequestID(ctx),
			"error", err,
		)
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	ctx := r.Context()
	h.logger.WarnContext(ctx, msg,
		"request_id", request.GetRequestID(ctx),
		"error", err,
	)
	httputil.WriteError(w, err)
}
