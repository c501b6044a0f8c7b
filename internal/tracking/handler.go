package tracking

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/ignite/engagement-tracker/internal/domain"
	"github.com/ignite/engagement-tracker/internal/observability"
	"github.com/ignite/engagement-tracker/internal/pkg/httputil"
	"github.com/ignite/engagement-tracker/internal/pkg/logger"
)

// 1x1 transparent GIF
var pixelGIF = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00,
	0x80, 0x00, 0x00, 0xff, 0xff, 0xff, 0x00, 0x00, 0x00, 0x2c,
	0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00, 0x00, 0x02,
	0x02, 0x44, 0x01, 0x00, 0x3b,
}

// Ingestor records tracking hits. The engagement service implements it for
// synchronous ingestion; AsyncIngestor implements it by publishing to SQS.
type Ingestor interface {
	// RecordOpen returns an error only when the hit could not be stored.
	RecordOpen(ctx context.Context, trackingID string, meta domain.RequestMeta) error
	RecordClick(ctx context.Context, token string, meta domain.RequestMeta) (string, error)
	RecordUnsubscribe(ctx context.Context, token string, meta domain.RequestMeta) error
}

// Handler serves the public, unauthenticated tracking endpoints.
type Handler struct {
	ing            Ingestor
	locationHeader string
	timeout        time.Duration
}

func NewHandler(ing Ingestor, locationHeader string) *Handler {
	return &Handler{ing: ing, locationHeader: locationHeader, timeout: 3 * time.Second}
}

// Mount registers the tracking routes on r.
func (h *Handler) Mount(r chi.Router) {
	r.Get("/tracking/pixel/{trackingID}", h.HandleOpen)
	r.Get("/tracking/click/{token}", h.HandleClick)
	r.Get("/tracking/unsubscribe", h.HandleUnsubscribe)
	r.Post("/tracking/unsubscribe", h.HandleUnsubscribe)
}

// Routes returns a standalone router for the tracking edge binary.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	h.Mount(r)
	r.Get("/health", h.HandleHealth)
	return r
}

func (h *Handler) HandleOpen(w http.ResponseWriter, r *http.Request) {
	trackingID := chi.URLParam(r, "trackingID")
	meta := MetaFromRequest(r, h.locationHeader)

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	if err := h.ing.RecordOpen(ctx, trackingID, meta); err != nil {
		observability.TrackingHits.WithLabelValues("open", "error").Inc()
		logger.Warn("open not recorded", "tracking_id", trackingID, "error", err)
	} else {
		observability.TrackingHits.WithLabelValues("open", "ok").Inc()
	}
	h.servePixel(w)
}

func (h *Handler) HandleClick(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	meta := MetaFromRequest(r, h.locationHeader)

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	target, err := h.ing.RecordClick(ctx, token, meta)
	switch {
	case err == nil:
		observability.TrackingHits.WithLabelValues("click", "ok").Inc()
	case domain.IsInvalidToken(err) || errors.Is(err, domain.ErrMissingTarget):
		observability.TrackingHits.WithLabelValues("click", "rejected").Inc()
		logger.Info("click rejected", "error", err, "source", meta.SourceAddress)
		httputil.BadRequest(w, "bad link")
		return
	case target != "":
		// The recipient still gets their link when only the record failed.
		observability.TrackingHits.WithLabelValues("click", "error").Inc()
		logger.Error("click not recorded", "error", err)
	default:
		observability.TrackingHits.WithLabelValues("click", "error").Inc()
		httputil.InternalError(w, err)
		return
	}

	http.Redirect(w, r, target, http.StatusFound)
}

func (h *Handler) HandleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	token := r.FormValue("token")
	meta := MetaFromRequest(r, h.locationHeader)

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	err := h.ing.RecordUnsubscribe(ctx, token, meta)
	switch {
	case err == nil:
		observability.TrackingHits.WithLabelValues("unsubscribe", "ok").Inc()
		httputil.HTML(w, http.StatusOK, unsubscribedPage)
	case domain.IsInvalidToken(err) || errors.Is(err, domain.ErrNotFound):
		observability.TrackingHits.WithLabelValues("unsubscribe", "rejected").Inc()
		logger.Info("unsubscribe rejected", "error", err, "source", meta.SourceAddress)
		httputil.HTML(w, http.StatusBadRequest, failedPage)
	default:
		observability.TrackingHits.WithLabelValues("unsubscribe", "error").Inc()
		logger.Error("unsubscribe failed", "error", err)
		w.Header().Set("Retry-After", "60")
		httputil.HTML(w, http.StatusServiceUnavailable, failedPage)
	}
}

func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]string{"status": "ok"})
}

func (h *Handler) servePixel(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "image/gif")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	w.Write(pixelGIF)
}

const unsubscribedPage = `<!DOCTYPE html><html><body style="font-family:Arial,sans-serif;text-align:center;padding:50px;">
	<h1>You have been unsubscribed</h1>
	<p>You will no longer receive emails from this sender.</p>
</body></html>`

const failedPage = `<!DOCTYPE html><html><body style="font-family:Arial,sans-serif;text-align:center;padding:50px;">
	<h1>We could not process your request</h1>
	<p>The link may be incomplete or expired. Please try again later.</p>
</body></html>`
