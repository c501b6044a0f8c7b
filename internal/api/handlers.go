package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/ignite/engagement-tracker/internal/domain"
	"github.com/ignite/engagement-tracker/internal/pkg/httputil"
	"github.com/ignite/engagement-tracker/internal/pkg/logger"
	"github.com/ignite/engagement-tracker/internal/service/analytics"
)

// Analytics is the reporting side used by the handlers.
type Analytics interface {
	Report(ctx context.Context, ownerID string, campaignID int64, w analytics.Window) (*domain.CampaignAnalyticsReport, error)
	Recalculate(ctx context.Context, ownerID string, campaignID int64) (*domain.CampaignAnalyticsSnapshot, error)
}

// Sender starts a campaign send.
type Sender interface {
	Send(ctx context.Context, ownerID string, campaignID int64) error
}

// Handlers contains all HTTP handlers
type Handlers struct {
	analytics Analytics
	sender    Sender
	startedAt time.Time
}

// NewHandlers creates the management handlers.
func NewHandlers(a Analytics, s Sender) *Handlers {
	return &Handlers{analytics: a, sender: s, startedAt: time.Now()}
}

// HealthCheck reports liveness.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]interface{}{
		"status": "healthy",
		"uptime": time.Since(h.startedAt).Round(time.Second).String(),
	})
}

// GetCampaignAnalytics returns the snapshot and breakdowns for a campaign.
// Optional from/to query parameters (RFC3339) narrow the breakdowns.
func (h *Handlers) GetCampaignAnalytics(w http.ResponseWriter, r *http.Request) {
	id, ok := campaignID(w, r)
	if !ok {
		return
	}

	var win analytics.Window
	for _, p := range []struct {
		name string
		dst  *time.Time
	}{{"from", &win.From}, {"to", &win.To}} {
		v := r.URL.Query().Get(p.name)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			httputil.BadRequest(w, "invalid '"+p.name+"': expected RFC3339 timestamp")
			return
		}
		*p.dst = t
	}

	report, err := h.analytics.Report(r.Context(), OrgFromContext(r.Context()), id, win)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, report)
}

// RecalculateCampaignAnalytics recomputes and returns the snapshot.
func (h *Handlers) RecalculateCampaignAnalytics(w http.ResponseWriter, r *http.Request) {
	id, ok := campaignID(w, r)
	if !ok {
		return
	}
	snap, err := h.analytics.Recalculate(r.Context(), OrgFromContext(r.Context()), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.OK(w, snap)
}

// SendCampaign queues a campaign send and answers 202 once it is claimed.
func (h *Handlers) SendCampaign(w http.ResponseWriter, r *http.Request) {
	id, ok := campaignID(w, r)
	if !ok {
		return
	}
	if err := h.sender.Send(r.Context(), OrgFromContext(r.Context()), id); err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.Accepted(w, map[string]interface{}{
		"campaign_id": id,
		"status":      string(domain.CampaignSending),
	})
}

func campaignID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httputil.BadRequest(w, "invalid campaign id")
		return 0, false
	}
	return id, true
}

// writeServiceError maps service errors to status codes. Anything
// unrecognized is logged and reported as a 500.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		httputil.NotFound(w, "campaign not found")
	case errors.Is(err, domain.ErrAccessDenied):
		httputil.Forbidden(w, "access denied")
	case errors.Is(err, domain.ErrInvalidState):
		httputil.Conflict(w, err.Error())
	case errors.Is(err, analytics.ErrInvalidWindow):
		httputil.BadRequest(w, err.Error())
	case errors.Is(err, context.Canceled):
		logger.Debug("request cancelled", "error", err)
	default:
		httputil.InternalError(w, err)
	}
}
