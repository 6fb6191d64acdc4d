// Package app contains the stealth service: use-case orchestration over the
// key, address, payload, nullifier and registry packages, independent of any
// transport.
//
// Responsibilities:
// - Resolve caller-supplied or keystore-held keys for each operation.
// - Enforce claim authorization and single use of nullifiers.
// - Record metrics and structured logs for every operation.
//
// Non-responsibilities:
// - JSON-RPC/HTTP protocol handling and endpoint-level mapping.
package app
