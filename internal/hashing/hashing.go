// Package hashing provides the deterministic content hashes the intake
// engine keys on: account-number identity and whole-payload fingerprints.
package hashing

import (
	"crypto/sha256"
	"encoding/hex"
)

// AccountNumber hashes a normalized (digits-only) account number. The hash
// is the uniqueness key for accounts so plaintext numbers are never persisted
// for comparison. Callers must reject empty input before hashing.
func AccountNumber(normalized string) string {
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// FingerprintPayload hashes a raw extraction payload. Two byte-identical
// deliveries fingerprint identically, which lets the idempotency guard
// short-circuit before the pipeline runs.
func FingerprintPayload(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
