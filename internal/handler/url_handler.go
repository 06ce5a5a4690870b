package handler

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/darkodi/shortlink/internal/apperr"
	"github.com/darkodi/shortlink/internal/auth"
	"github.com/darkodi/shortlink/internal/logger"
	"github.com/darkodi/shortlink/internal/model"
	"github.com/darkodi/shortlink/internal/service"
	"github.com/darkodi/shortlink/internal/validator"
)

// URLHandler handles HTTP requests for URL operations
type URLHandler struct {
	service      *service.URLService
	log          *logger.Logger
	clickTimeout time.Duration

	clicks sync.WaitGroup
}

// NewURLHandler creates a new handler instance
func NewURLHandler(svc *service.URLService, log *logger.Logger, clickTimeout time.Duration) *URLHandler {
	if log == nil {
		log = logger.Nop()
	}
	if clickTimeout <= 0 {
		clickTimeout = 5 * time.Second
	}
	return &URLHandler{service: svc, log: log, clickTimeout: clickTimeout}
}

// ============ HANDLERS ============

// HandleCreate creates a new short URL
// POST /url
func (h *URLHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		apperr.Unauthorized("Missing bearer token").WriteJSON(w)
		return
	}

	var req model.CreateURLRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if appErr := validator.Struct(req); appErr != nil {
		appErr.WriteJSON(w)
		return
	}

	record, err := h.service.CreateShortURL(r.Context(), req, id.Email)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusCreated, record)
}

// HandleList lists the caller's URLs
// GET /url?skip=&limit=&custom=
func (h *URLHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		apperr.Unauthorized("Missing bearer token").WriteJSON(w)
		return
	}

	q, appErr := parseListQuery(r)
	if appErr != nil {
		appErr.WriteJSON(w)
		return
	}

	records, err := h.service.ListURLs(r.Context(), id.Email, q)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, records)
}

// HandleTiers returns the monthly limit of every tier
// GET /url/tiers
func (h *URLHandler) HandleTiers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.service.GetTierLimits())
}

// HandleStats returns statistics for a short URL
// GET /{alias}/stats
func (h *URLHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	record, err := h.service.GetURLStats(r.Context(), chi.URLParam(r, "alias"))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, record)
}

// HandleRedirect redirects to the target URL and counts the click once the
// response is written.
// GET /{alias}
func (h *URLHandler) HandleRedirect(w http.ResponseWriter, r *http.Request) {
	alias := chi.URLParam(r, "alias")

	target, err := h.service.Resolve(r.Context(), alias)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	http.Redirect(w, r, target, http.StatusFound)

	// Only successful redirects are counted. The click survives client
	// disconnects but not the timeout.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), h.clickTimeout)
	h.clicks.Add(1)
	go func() {
		defer h.clicks.Done()
		defer cancel()
		if _, err := h.service.RecordClick(ctx, alias); err != nil {
			logger.FromContext(ctx, h.log).Warn("click not recorded", "alias", alias, "error", err)
		}
	}()
}

// Wait blocks until every pending click has been recorded.
func (h *URLHandler) Wait() {
	h.clicks.Wait()
}

// ============ HELPERS ============

func parseListQuery(r *http.Request) (model.ListURLsQuery, *apperr.AppError) {
	var q model.ListURLsQuery
	values := r.URL.Query()

	if s := values.Get("skip"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return q, apperr.BadRequest("skip must be an integer")
		}
		q.Skip = n
	}
	if s := values.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return q, apperr.BadRequest("limit must be an integer")
		}
		q.Limit = n
	}
	if s := values.Get("custom"); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			return q, apperr.BadRequest("custom must be true or false")
		}
		q.Custom = &b
	}

	if appErr := validator.Struct(q); appErr != nil {
		return q, appErr
	}
	return q, nil
}
