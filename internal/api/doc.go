// Package api is the authenticated management surface: campaign analytics
// reports, snapshot recalculation and campaign send. Callers identify their
// organization with the X-Organization-ID header.
package api
