// Package rpc exposes the engine over HTTP.
//
// Routes:
//
//	POST /v1/transactions        submit a signed envelope (JSON)
//	GET  /v1/accounts/{address}  account plus decoded record
//	GET  /v1/entries/{seq}       one ledger entry
//	GET  /v1/head                seq and id of the last entry
//	GET  /healthz                liveness
//	GET  /metrics                Prometheus exposition
//
// Transactions go through the engine queue, so concurrent requests are
// executed one at a time in arrival order. Errors are returned as
// {"error": {"code", "message"}} with the symbolic error code; a failed
// instruction also carries the entry it produced.
package rpc
