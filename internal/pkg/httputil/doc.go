// Package httputil provides shared HTTP response helpers for the management
// API and the public tracking endpoints.
//
// Handlers use these helpers instead of raw http.ResponseWriter calls so
// JSON envelopes, HTML pages and error logging stay consistent.
package httputil
