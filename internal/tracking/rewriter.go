package tracking

import (
	"fmt"
	"html"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Path prefixes served by the tracking handler.
const (
	PathPrefix      = "/tracking/"
	PixelPath       = "/tracking/pixel/"
	ClickPath       = "/tracking/click/"
	UnsubscribePath = "/tracking/unsubscribe"
)

var (
	anchorTagRe = regexp.MustCompile(`(?is)<a\b[^>]*>`)
	hrefAttrRe  = regexp.MustCompile(`(?i)\shref\s*=\s*(?:"([^"]*)"|'([^']*)')`)
	bodyCloseRe = regexp.MustCompile(`(?i)</body\s*>`)
)

// Rewriter turns campaign HTML into tracked HTML for one recipient.
type Rewriter struct {
	baseURL string
	now     func() time.Time
	newID   func() string
}

// Result is the tracked body plus the identifiers minted for it.
type Result struct {
	HTML string
	// TrackingID identifies the open pixel; the sender stores it on the
	// SENT event so opens can be resolved.
	TrackingID     string
	UnsubscribeURL string
}

// NewRewriter creates a rewriter that points tracked URLs at baseURL.
func NewRewriter(baseURL string) *Rewriter {
	return &Rewriter{
		baseURL: strings.TrimRight(baseURL, "/"),
		now:     time.Now,
		newID:   func() string { return uuid.New().String() },
	}
}

// BaseURL returns the tracking origin without a trailing slash.
func (rw *Rewriter) BaseURL() string { return rw.baseURL }

// ClickURL returns the tracked redirect URL for target.
func (rw *Rewriter) ClickURL(campaignID, recipientID int64, target string) string {
	return rw.baseURL + ClickPath + Encode(campaignID, recipientID, target, rw.now())
}

// PixelURL returns the open pixel URL for a tracking id.
func (rw *Rewriter) PixelURL(trackingID string) string {
	return rw.baseURL + PixelPath + trackingID
}

// UnsubscribeURL returns the one-click unsubscribe URL for a recipient.
func (rw *Rewriter) UnsubscribeURL(campaignID, recipientID int64) string {
	tok := Encode(campaignID, recipientID, "", rw.now())
	return rw.baseURL + UnsubscribePath + "?token=" + url.QueryEscape(tok)
}

// Rewrite routes every outbound link through the click endpoint, adds the
// open pixel and makes sure an unsubscribe link is present.
func (rw *Rewriter) Rewrite(body string, campaignID, recipientID int64) Result {
	res := Result{
		TrackingID:     rw.newID(),
		UnsubscribeURL: rw.UnsubscribeURL(campaignID, recipientID),
	}

	hasUnsubscribe := false
	out := anchorTagRe.ReplaceAllStringFunc(body, func(tag string) string {
		loc := hrefAttrRe.FindStringSubmatchIndex(tag)
		if loc == nil {
			return tag
		}
		// group 1 is double-quoted, group 2 single-quoted
		start, end := loc[2], loc[3]
		if start < 0 {
			start, end = loc[4], loc[5]
		}
		raw := strings.TrimSpace(tag[start:end])
		if rw.isTrackingURL(raw) {
			if strings.Contains(raw, UnsubscribePath) {
				hasUnsubscribe = true
			}
			return tag
		}
		if !isTrackable(raw) {
			return tag
		}
		tracked := rw.ClickURL(campaignID, recipientID, html.UnescapeString(raw))
		return tag[:start] + html.EscapeString(tracked) + tag[end:]
	})

	if !hasUnsubscribe {
		out = insertBeforeBodyClose(out, fmt.Sprintf(
			`<p style="font-size:12px;color:#888;text-align:center;"><a href="%s">Unsubscribe</a></p>`,
			html.EscapeString(res.UnsubscribeURL)))
	}

	pixel := fmt.Sprintf(`<img src="%s" width="1" height="1" alt="" style="display:none" />`,
		html.EscapeString(rw.PixelURL(res.TrackingID)))
	res.HTML = insertBeforeBodyClose(out, pixel)
	return res
}

func (rw *Rewriter) isTrackingURL(raw string) bool {
	if strings.HasPrefix(raw, PathPrefix) {
		return true
	}
	return rw.baseURL != "" && strings.HasPrefix(raw, rw.baseURL+PathPrefix)
}

func isTrackable(raw string) bool {
	if raw == "" || strings.HasPrefix(raw, "#") {
		return false
	}
	return Redirectable(html.UnescapeString(raw))
}

// Redirectable reports whether target is an absolute http(s) URL that is
// safe to redirect a browser to.
func Redirectable(target string) bool {
	if target == "" {
		return false
	}
	u, err := url.Parse(target)
	if err != nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return (scheme == "http" || scheme == "https") && u.Host != ""
}

func insertBeforeBodyClose(doc, fragment string) string {
	locs := bodyCloseRe.FindAllStringIndex(doc, -1)
	if len(locs) == 0 {
		return doc + fragment
	}
	at := locs[len(locs)-1][0]
	return doc[:at] + fragment + doc[at:]
}
