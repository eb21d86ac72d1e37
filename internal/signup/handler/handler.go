package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"clocklayer/internal/blob"
	"clocklayer/internal/ratelimit"
	"clocklayer/internal/signup/models"
	id "clocklayer/pkg/domain"
	dErrors "clocklayer/pkg/domain-errors"
	"clocklayer/pkg/platform/httputil"
	"clocklayer/pkg/platform/middleware/auth"
	"clocklayer/pkg/requestcontext"
)

// maxFrameBytes bounds the liveness still.
const maxFrameBytes = 5 << 20

// Service defines the interface for signup wizard operations.
type Service interface {
	Start(ctx context.Context, referralCode string) (*models.View, error)
	Get(ctx context.Context, sessionID id.SessionID) (*models.View, error)
	LinkIdentity(ctx context.Context, sessionID id.SessionID, req models.LinkRequest) (*models.LinkOutcome, error)
	SubmitProfile(ctx context.Context, sessionID id.SessionID, in models.ProfileInput) (*models.View, error)
	RequestPhoneCode(ctx context.Context, sessionID id.SessionID, phone, challengeToken string) (*models.View, error)
	VerifyPhoneCode(ctx context.Context, sessionID id.SessionID, code string) (*models.View, error)
	ChangePhoneNumber(ctx context.Context, sessionID id.SessionID) (*models.View, error)
	Confirm(ctx context.Context, sessionID id.SessionID) (*models.View, error)
	JumpTo(ctx context.Context, sessionID id.SessionID, step models.Step) (*models.View, error)
	Back(ctx context.Context, sessionID id.SessionID) (*models.View, error)
	SubmitLiveness(ctx context.Context, sessionID id.SessionID, frame []byte, contentType string) (*models.View, error)
	CompleteTasks(ctx context.Context, sessionID id.SessionID, tc models.TaskConnect) (*models.View, error)
}

// Limiter throttles a class of routes.
type Limiter interface {
	Limit(class ratelimit.Class) func(http.Handler) http.Handler
}

// Handler exposes the signup wizard over HTTP.
type Handler struct {
	service   Service
	logger    *slog.Logger
	validator auth.JWTValidator
	limiter   Limiter
}

type Option func(*Handler)

// WithLimiter throttles session creation, identity linking and SMS sends.
func WithLimiter(l Limiter) Option {
	return func(h *Handler) {
		h.limiter = l
	}
}

func New(service Service, logger *slog.Logger, validator auth.JWTValidator, opts ...Option) *Handler {
	h := &Handler{service: service, logger: logger, validator: validator}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) limit(class ratelimit.Class) func(http.Handler) http.Handler {
	if h.limiter == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return h.limiter.Limit(class)
}

// Register mounts the signup routes. Authentication is optional at the
// router: the service itself decides when a missing identity sends the
// session back to the connect step.
func (h *Handler) Register(r chi.Router) {
	r.Route("/signup/sessions", func(r chi.Router) {
		if h.validator != nil {
			r.Use(auth.OptionalAuth(h.validator, h.logger))
		}
		r.With(h.limit(ratelimit.ClassSignup)).Post("/", h.HandleStart)
		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/", h.HandleGet)
			r.With(h.limit(ratelimit.ClassIdentity)).Post("/identity", h.HandleLinkIdentity)
			r.Post("/profile", h.HandleSubmitProfile)
			r.With(h.limit(ratelimit.ClassPhoneCode)).Post("/phone/code", h.HandleRequestPhoneCode)
			r.Post("/phone/verify", h.HandleVerifyPhoneCode)
			r.Post("/phone/change", h.HandleChangePhone)
			r.Post("/confirm", h.HandleConfirm)
			r.Post("/back", h.HandleBack)
			r.Post("/jump", h.HandleJump)
			r.Post("/liveness", h.HandleLiveness)
			r.Post("/tasks", h.HandleTasks)
		})
	})
}

func (h *Handler) HandleStart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req := &StartRequest{}
	if r.ContentLength != 0 {
		var ok bool
		req, ok = httputil.DecodeAndPrepare[StartRequest](w, r, h.logger, ctx, requestID)
		if !ok {
			return
		}
	}
	if req.ReferralCode == "" {
		req.ReferralCode = strings.TrimSpace(r.URL.Query().Get("ref"))
	}

	view, err := h.service.Start(ctx, req.ReferralCode)
	if err != nil {
		h.fail(w, r, "start signup", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toSessionResponse(view))
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	view, err := h.service.Get(r.Context(), sessionID)
	h.respond(w, r, "get signup session", view, err)
}

func (h *Handler) HandleLinkIdentity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[LinkIdentityRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	outcome, err := h.service.LinkIdentity(ctx, sessionID, models.LinkRequest{
		Provider:   req.Provider,
		Credential: req.Credential,
	})
	if err != nil {
		h.fail(w, r, "link identity", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toLinkResponse(outcome))
}

func (h *Handler) HandleSubmitProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, blob.MaxImageBytes+(1<<20))
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "expected a multipart form no larger than 5MB"))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	in := models.ProfileInput{
		Name:     r.FormValue("name"),
		Username: r.FormValue("username"),
	}
	file, header, err := r.FormFile("image")
	switch {
	case err == nil:
		img, err := readImage(file, header)
		_ = file.Close()
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		in.Image = img
	case errors.Is(err, http.ErrMissingFile):
	default:
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid image upload"))
		return
	}

	view, err := h.service.SubmitProfile(ctx, sessionID, in)
	h.respond(w, r, "submit profile", view, err)
}

func (h *Handler) HandleRequestPhoneCode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[PhoneCodeRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	view, err := h.service.RequestPhoneCode(ctx, sessionID, req.Phone, req.ChallengeToken)
	h.respond(w, r, "request phone code", view, err)
}

func (h *Handler) HandleVerifyPhoneCode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[VerifyCodeRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	view, err := h.service.VerifyPhoneCode(ctx, sessionID, req.Code)
	h.respond(w, r, "verify phone code", view, err)
}

func (h *Handler) HandleChangePhone(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	view, err := h.service.ChangePhoneNumber(r.Context(), sessionID)
	h.respond(w, r, "change phone number", view, err)
}

func (h *Handler) HandleConfirm(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	view, err := h.service.Confirm(r.Context(), sessionID)
	h.respond(w, r, "confirm details", view, err)
}

func (h *Handler) HandleBack(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	view, err := h.service.Back(r.Context(), sessionID)
	h.respond(w, r, "step back", view, err)
}

func (h *Handler) HandleJump(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[JumpRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	view, err := h.service.JumpTo(ctx, sessionID, models.Step(req.Step))
	h.respond(w, r, "jump to step", view, err)
}

// HandleLiveness takes the still frame as the raw request body.
func (h *Handler) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	frame, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxFrameBytes))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "photo must be at most 5MB"))
		return
	}
	contentType, _, _ := strings.Cut(r.Header.Get("Content-Type"), ";")
	view, err := h.service.SubmitLiveness(ctx, sessionID, frame, strings.TrimSpace(contentType))
	h.respond(w, r, "submit liveness", view, err)
}

func (h *Handler) HandleTasks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[TasksRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	view, err := h.service.CompleteTasks(ctx, sessionID, models.TaskConnect{
		ExternalID: req.ExternalID,
		Points:     req.Points,
	})
	h.respond(w, r, "complete tasks", view, err)
}

func (h *Handler) sessionID(w http.ResponseWriter, r *http.Request) (id.SessionID, bool) {
	sessionID, err := id.ParseSessionID(chi.URLParam(r, "sessionID"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.SessionID{}, false
	}
	return sessionID, true
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, action string, view *models.View, err error) {
	if err != nil {
		h.fail(w, r, action, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toSessionResponse(view))
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, action string, err error) {
	ctx := r.Context()
	level := slog.LevelWarn
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		level = slog.LevelError
	}
	h.logger.Log(ctx, level, action+" failed",
		"request_id", requestcontext.RequestID(ctx),
		"error", err,
	)
	httputil.WriteError(w, err)
}

func readImage(file multipart.File, header *multipart.FileHeader) (*models.ImageUpload, error) {
	if header.Size > blob.MaxImageBytes {
		return nil, dErrors.New(dErrors.CodeValidation, "image must be at most 5MB")
	}
	data, err := io.ReadAll(io.LimitReader(file, blob.MaxImageBytes+1))
	if err != nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "invalid image upload")
	}
	if len(data) > blob.MaxImageBytes {
		return nil, dErrors.New(dErrors.CodeValidation, "image must be at most 5MB")
	}
	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	return &models.ImageUpload{
		FileName:    header.Filename,
		ContentType: contentType,
		Data:        data,
	}, nil
}
