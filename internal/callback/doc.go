// Package callback delivers computed results to the upstream system via a
// single authenticated HTTP POST. Delivery is best-effort and at-most-once:
// one attempt, bounded by the configured timeout, with no retry or
// persistence. A failed delivery is the caller's to log — the package never
// interprets the upstream response body.
package callback
