// Package engagement ingests tracking hits: pixel opens, link clicks and
// unsubscribe confirmations.
//
// Every entry point resolves its identifiers, classifies the requesting
// client and appends an immutable event. Public callers are unauthenticated
// mail clients, so the service degrades quietly instead of failing loudly:
// unknown pixels are ignored, clicks always return their target when one
// can be decoded, and store failures on the click path are only logged.
//
// Repository implementations live in repository/postgres/ and
// repository/memory/.
package engagement
