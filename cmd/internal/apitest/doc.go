// Package apitest runs an in-process stand-in for the GlowGuard backend.
//
// It speaks the same wire contract (shared/contracts/api/v1) with FastAPI
// style {"detail": ...} errors, issues short-lived HS256 access credentials and
// opaque refresh credentials, and exposes knobs to expire or revoke them so
// refresh paths can be exercised end to end. Skin analysis is a
// deterministic fake derived from the submitted bytes.
//
// It is used by package tests and by tools/scripts/api-smoke.go -fake.
package apitest
