// Package api is the inbound HTTP boundary: it validates calculation
// requests once, hands them to the dispatcher, and answers 202 without
// waiting for the job. Validation happens here and nowhere deeper.
package api
