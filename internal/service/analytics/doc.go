// Package analytics turns the engagement event ledger into campaign metrics.
//
// Snapshots (totals and rates) are recomputed wholesale and upserted; the
// last writer wins. Breakdowns by hour, device and location are computed
// from raw events on every report and never cached. A Refresher keeps
// snapshots of recently active campaigns current in the background.
package analytics
