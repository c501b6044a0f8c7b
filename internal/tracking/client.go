package tracking

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/ignite/engagement-tracker/internal/domain"
)

// DefaultLocationHeader carries an already-resolved location label set by
// the edge proxy.
const DefaultLocationHeader = "X-Client-Location"

// MetaFromRequest captures the client details of a tracking hit.
func MetaFromRequest(r *http.Request, locationHeader string) domain.RequestMeta {
	if locationHeader == "" {
		locationHeader = DefaultLocationHeader
	}
	location := strings.TrimSpace(r.Header.Get(locationHeader))
	if location == "" {
		location = strings.TrimSpace(r.Header.Get("CF-IPCountry"))
	}
	return domain.RequestMeta{
		SourceAddress: SourceAddress(r),
		UserAgent:     r.UserAgent(),
		Location:      location,
		ReceivedAt:    time.Now().UTC(),
	}
}

// SourceAddress prefers the first X-Forwarded-For hop, then X-Real-IP,
// then the peer address.
func SourceAddress(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// ClassifyDevice maps a user agent to Mobile, Tablet, Desktop or Unknown.
func ClassifyDevice(userAgent string) string {
	if strings.TrimSpace(userAgent) == "" {
		return domain.DeviceUnknown
	}
	ua := strings.ToLower(userAgent)
	if strings.Contains(ua, "mobile") || strings.Contains(ua, "android") || strings.Contains(ua, "iphone") {
		return "Mobile"
	}
	if strings.Contains(ua, "tablet") || strings.Contains(ua, "ipad") {
		return "Tablet"
	}
	return "Desktop"
}

var mailClients = []struct {
	needle string
	label  string
}{
	{"outlook", "Outlook"},
	{"thunderbird", "Thunderbird"},
	{"apple mail", "Apple Mail"},
	{"gmail", "Gmail"},
	{"yahoo", "Yahoo Mail"},
}

// ClassifyMailClient returns the first known mail client named in the user
// agent, or Unknown.
func ClassifyMailClient(userAgent string) string {
	ua := strings.ToLower(userAgent)
	for _, mc := range mailClients {
		if strings.Contains(ua, mc.needle) {
			return mc.label
		}
	}
	return domain.ClientUnknown
}
