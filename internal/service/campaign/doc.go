// Package campaign implements the campaign send path.
//
// Send validates and claims a campaign synchronously, then hands the
// per-recipient work to a worker Pool. Each recipient gets personalised,
// tracked content and exactly one SENT or BOUNCED event; a failed delivery
// never stops the rest of the batch.
//
// Store implementations live in repository/postgres/ and repository/memory/.
package campaign
