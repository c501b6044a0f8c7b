package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/ignite/engagement-tracker/internal/pkg/httputil"
)

// OrgHeader names the request header carrying the caller's organization.
const OrgHeader = "X-Organization-ID"

type orgContextKey struct{}

// RequireOrg rejects requests without an organization header and stores the
// organization id on the request context.
func RequireOrg(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		orgID := strings.TrimSpace(r.Header.Get(OrgHeader))
		if orgID == "" {
			httputil.Unauthorized(w, "missing "+OrgHeader+" header")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), orgContextKey{}, orgID)))
	})
}

// OrgFromContext returns the organization set by RequireOrg.
func OrgFromContext(ctx context.Context) string {
	orgID, _ := ctx.Value(orgContextKey{}).(string)
	return orgID
}
