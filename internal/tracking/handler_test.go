package tracking

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/ignite/engagement-tracker/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubIngestor returns canned results and remembers what it saw.
type stubIngestor struct {
	openErr  error
	target   string
	clickErr error
	unsubErr error

	lastID    string
	lastToken string
	lastMeta  domain.RequestMeta
}

func (s *stubIngestor) RecordOpen(_ context.Context, id string, meta domain.RequestMeta) error {
	s.lastID, s.lastMeta = id, meta
	return s.openErr
}

func (s *stubIngestor) RecordClick(_ context.Context, token string, meta domain.RequestMeta) (string, error) {
	s.lastToken, s.lastMeta = token, meta
	return s.target, s.clickErr
}

func (s *stubIngestor) RecordUnsubscribe(_ context.Context, token string, meta domain.RequestMeta) error {
	s.lastToken, s.lastMeta = token, meta
	return s.unsubErr
}

func serve(h *Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)
	return rec
}

func TestHandleOpenAlwaysServesPixel(t *testing.T) {
	for name, err := range map[string]error{"ok": nil, "store down": errors.New("db down")} {
		t.Run(name, func(t *testing.T) {
			ing := &stubIngestor{openErr: err}
			h := NewHandler(ing, "")

			req := httptest.NewRequest(http.MethodGet, "/tracking/pixel/pix-1", nil)
			req.Header.Set("User-Agent", "Outlook")
			req.Header.Set("X-Client-Location", "FR")
			rec := serve(h, req)

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "image/gif", rec.Header().Get("Content-Type"))
			assert.Contains(t, rec.Header().Get("Cache-Control"), "no-store")
			assert.Equal(t, pixelGIF, rec.Body.Bytes())
			assert.Equal(t, "pix-1", ing.lastID)
			assert.Equal(t, "FR", ing.lastMeta.Location)
			assert.Equal(t, "Outlook", ing.lastMeta.UserAgent)
		})
	}
}

func TestHandleClick(t *testing.T) {
	tests := []struct {
		name     string
		ing      *stubIngestor
		wantCode int
		wantLoc  string
	}{
		{"redirect", &stubIngestor{target: "https://example.com/a"}, http.StatusFound, "https://example.com/a"},
		{"bad token", &stubIngestor{clickErr: &domain.InvalidTokenError{Reason: "too few fields"}}, http.StatusBadRequest, ""},
		{"no target", &stubIngestor{clickErr: domain.ErrMissingTarget}, http.StatusBadRequest, ""},
		{"internal", &stubIngestor{clickErr: errors.New("boom")}, http.StatusInternalServerError, ""},
		{"record failed still redirects", &stubIngestor{target: "https://example.com/b", clickErr: errors.New("insert click: db down")}, http.StatusFound, "https://example.com/b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(NewHandler(tt.ing, ""), httptest.NewRequest(http.MethodGet, "/tracking/click/abc", nil))
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantLoc, rec.Header().Get("Location"))
			assert.Equal(t, "abc", tt.ing.lastToken)
		})
	}
}

func TestHandleUnsubscribe(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantText string
	}{
		{"ok", nil, http.StatusOK, "You have been unsubscribed"},
		{"bad token", &domain.InvalidTokenError{Reason: "x"}, http.StatusBadRequest, "could not process"},
		{"unknown recipient", domain.ErrNotFound, http.StatusBadRequest, "could not process"},
		{"store failure", errors.New("db down"), http.StatusServiceUnavailable, "could not process"},
		{"queue failure", fmt.Errorf("publish unsubscribe: %w", errors.New("sqs down")), http.StatusServiceUnavailable, "could not process"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ing := &stubIngestor{unsubErr: tt.err}
			rec := serve(NewHandler(ing, ""), httptest.NewRequest(http.MethodGet, "/tracking/unsubscribe?token=tok", nil))
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
			assert.Contains(t, rec.Body.String(), tt.wantText)
			assert.Equal(t, "tok", ing.lastToken)
			if tt.wantCode == http.StatusServiceUnavailable {
				assert.Equal(t, "60", rec.Header().Get("Retry-After"))
			}
		})
	}

	t.Run("one-click post", func(t *testing.T) {
		ing := &stubIngestor{}
		form := url.Values{"token": {"posted"}, "List-Unsubscribe": {"One-Click"}}
		req := httptest.NewRequest(http.MethodPost, "/tracking/unsubscribe", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := serve(NewHandler(ing, ""), req)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "posted", ing.lastToken)
	})
}

func TestHealth(t *testing.T) {
	rec := serve(NewHandler(&stubIngestor{}, ""), httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}
